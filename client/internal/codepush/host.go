package codepush

import "context"

// ConfigurationSource provides the device and binary configuration
type ConfigurationSource interface {
	GetConfiguration(ctx context.Context) (Configuration, error)
}

// MetadataReader returns the installed package for the given state, nil when there is none
type MetadataReader interface {
	GetUpdateMetadata(ctx context.Context, state UpdateState) (*LocalPackage, error)
}

// FaultLog answers questions about packages that failed to start or are running for the first time
type FaultLog interface {
	IsFailedUpdate(ctx context.Context, packageHash string) (bool, error)
	IsFirstRun(ctx context.Context, packageHash string) (bool, error)
}

// UpdateDownloader fetches and stores a remote package
type UpdateDownloader interface {
	DownloadUpdate(ctx context.Context, update UpdateDescriptor, progress ProgressFunc) (*DownloadedPackage, error)
}

// UpdateInstaller makes a downloaded package current or pending
type UpdateInstaller interface {
	InstallUpdate(ctx context.Context, pkg *DownloadedPackage, opts HostInstallOptions) error
}

// RemoteHost is the part of the host a remote package needs
type RemoteHost interface {
	FaultLog
	UpdateDownloader
	UpdateInstaller
}

// Host is the full set of runtime primitives the client drives
type Host interface {
	ConfigurationSource
	MetadataReader
	RemoteHost
}

// StatusReporter records a successful download with the update server
type StatusReporter interface {
	ReportDownload(ctx context.Context, pkg Package) error
}
