package codepush

import "time"

// Platform identifies the operating system family of the embedding application
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
)

// SendsBinaryHash reports whether the binary's own baseline hash is sent with
// update queries when no update has been installed yet.
func (p Platform) SendsBinaryHash() bool {
	return p == PlatformIOS
}

// ReportsFirstRun reports whether local packages are decorated with the first-run flag.
func (p Platform) ReportsFirstRun() bool {
	return p == PlatformIOS
}

// Configuration is the device and binary configuration provided by the host runtime
type Configuration struct {
	AppVersion     string   `json:"appVersion" yaml:"appVersion"`
	DeploymentKey  string   `json:"deploymentKey" yaml:"deploymentKey"`
	ClientUniqueID string   `json:"clientUniqueId" yaml:"clientUniqueId"`
	ServerURL      string   `json:"serverUrl" yaml:"serverUrl"`
	PackageHash    string   `json:"packageHash,omitempty" yaml:"packageHash,omitempty"`
	Platform       Platform `json:"platform" yaml:"platform"`
}

// WithDeploymentKey returns a copy of the configuration using key when it is not empty
func (c Configuration) WithDeploymentKey(key string) Configuration {
	if key != "" {
		c.DeploymentKey = key
	}
	return c
}

// Package identifies a code bundle. Two packages with the same PackageHash carry the same code.
type Package struct {
	AppVersion    string `json:"appVersion" yaml:"appVersion"`
	DeploymentKey string `json:"deploymentKey" yaml:"deploymentKey"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	IsMandatory   bool   `json:"isMandatory" yaml:"isMandatory"`
	PackageHash   string `json:"packageHash" yaml:"packageHash"`
	PackageSize   int64  `json:"packageSize,omitempty" yaml:"packageSize,omitempty"`
	Label         string `json:"label" yaml:"label"`
}

// LocalPackage is a package installed on the device
type LocalPackage struct {
	Package `yaml:",inline"`

	// FailedInstall and IsFirstRun are derived from the fault log on every read
	FailedInstall bool `json:"failedInstall" yaml:"failedInstall"`
	IsFirstRun    bool `json:"isFirstRun" yaml:"isFirstRun"`
	IsPending     bool `json:"isPending" yaml:"isPending"`
}

// UpdateDescriptor is what the host receives to fetch an update
type UpdateDescriptor struct {
	Package
	DownloadURL string
}

// DownloadedPackage is a fetched artifact that has not been installed yet
type DownloadedPackage struct {
	Package
	Path string
}

// UpdateState selects which local package the host metadata reader returns
type UpdateState int

const (
	// UpdateStateRunning is the package currently executing
	UpdateStateRunning UpdateState = iota
	// UpdateStatePending is a package installed but not yet applied
	UpdateStatePending
	// UpdateStateLatest is the pending package if there is one, otherwise the running one
	UpdateStateLatest
)

func (s UpdateState) String() string {
	switch s {
	case UpdateStateRunning:
		return "running"
	case UpdateStatePending:
		return "pending"
	case UpdateStateLatest:
		return "latest"
	default:
		return "unknown"
	}
}

// DownloadProgress is reported while a package is being fetched
type DownloadProgress struct {
	TotalBytes    int64
	ReceivedBytes int64
}

// Completed returns true once every expected byte was received
func (p DownloadProgress) Completed() bool {
	return p.TotalBytes > 0 && p.ReceivedBytes >= p.TotalBytes
}

// ProgressFunc receives download progress events
type ProgressFunc func(DownloadProgress)

// HostInstallOptions are the effective options the host install primitive receives
type HostInstallOptions struct {
	Mode                      InstallMode
	MinimumBackgroundDuration time.Duration
	IsMandatory               bool
}
