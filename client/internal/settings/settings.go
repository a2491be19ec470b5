// Package settings loads the agent configuration from a YAML file and CODEPUSH_* environment variables
package settings

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/netbirdio/codepush/client/internal/codepush"
	"github.com/netbirdio/codepush/client/internal/codepush/fshost"
	"github.com/netbirdio/codepush/client/internal/updatemanager"
)

const (
	DefaultSyncInterval = time.Hour
	DefaultRetryDelay   = 5 * time.Second
)

var (
	ErrFailedToParseConfig = errors.New("failed to parse config")
	ErrInvalidConfig       = errors.New("invalid config")
)

// Settings is the agent configuration
type Settings struct {
	ServerURL     string            `yaml:"serverUrl" env:"CODEPUSH_SERVER_URL"`
	DeploymentKey string            `yaml:"deploymentKey" env:"CODEPUSH_DEPLOYMENT_KEY"`
	AppVersion    string            `yaml:"appVersion" env:"CODEPUSH_APP_VERSION"`
	BinaryHash    string            `yaml:"binaryHash,omitempty" env:"CODEPUSH_BINARY_HASH"`
	Platform      codepush.Platform `yaml:"platform" env:"CODEPUSH_PLATFORM"`

	// DataDir holds the CodePush folder with installed packages
	DataDir          string `yaml:"dataDir" env:"CODEPUSH_DATA_DIR"`
	BundleFileName   string `yaml:"bundleFileName" env:"CODEPUSH_BUNDLE_FILE_NAME"`
	BinaryBundlePath string `yaml:"binaryBundlePath,omitempty" env:"CODEPUSH_BINARY_BUNDLE_PATH"`

	InstallMode               codepush.InstallMode `yaml:"installMode" env:"CODEPUSH_INSTALL_MODE"`
	MandatoryInstallMode      codepush.InstallMode `yaml:"mandatoryInstallMode" env:"CODEPUSH_MANDATORY_INSTALL_MODE"`
	MinimumBackgroundDuration time.Duration        `yaml:"minimumBackgroundDuration" env:"CODEPUSH_MINIMUM_BACKGROUND_DURATION"`
	IgnoreFailedUpdates       bool                 `yaml:"ignoreFailedUpdates" env:"CODEPUSH_IGNORE_FAILED_UPDATES"`

	SyncInterval time.Duration `yaml:"syncInterval" env:"CODEPUSH_SYNC_INTERVAL"`
	RetryDelay   time.Duration `yaml:"retryDelay" env:"CODEPUSH_RETRY_DELAY"`

	// MetricsAddr is the listen address of the prometheus endpoint in run mode, empty to disable
	MetricsAddr string `yaml:"metricsAddr,omitempty" env:"CODEPUSH_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"CODEPUSH_LOG_LEVEL"`
	LogFile     string `yaml:"logFile" env:"CODEPUSH_LOG_FILE"`
}

// Default returns the settings used for every value the file and the environment leave out
func Default() Settings {
	install := codepush.DefaultInstallOptions()
	return Settings{
		Platform:             codepush.PlatformAndroid,
		DataDir:              defaultDataDir(),
		BundleFileName:       fshost.DefaultBundleFileName,
		InstallMode:          install.InstallMode,
		MandatoryInstallMode: install.MandatoryInstallMode,
		IgnoreFailedUpdates:  true,
		SyncInterval:         DefaultSyncInterval,
		RetryDelay:           DefaultRetryDelay,
		LogLevel:             "info",
		LogFile:              "console",
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "codepush")
	}
	return filepath.Join(dir, "codepush")
}

// Load applies the defaults, the YAML file at path when path is not empty, then the environment
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("%w: %w", ErrFailedToParseConfig, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("%w: %s: %w", ErrFailedToParseConfig, path, err)
		}
		log.Debugf("loaded settings from %s", path)
	}

	if err := env.Parse(&s); err != nil {
		return s, fmt.Errorf("%w: %w", ErrFailedToParseConfig, err)
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks the values the update client cannot work without
func (s Settings) Validate() error {
	if s.ServerURL == "" {
		return fmt.Errorf("%w: server url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(s.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server url %q must be an http or https url", ErrInvalidConfig, s.ServerURL)
	}

	if s.DeploymentKey == "" {
		return fmt.Errorf("%w: deployment key is required", ErrInvalidConfig)
	}

	if _, err := version.NewVersion(s.AppVersion); err != nil {
		return fmt.Errorf("%w: app version %q: %w", ErrInvalidConfig, s.AppVersion, err)
	}

	switch s.Platform {
	case codepush.PlatformAndroid, codepush.PlatformIOS, codepush.PlatformWindows, codepush.PlatformLinux, codepush.PlatformDarwin:
	default:
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidConfig, s.Platform)
	}

	if s.DataDir == "" {
		return fmt.Errorf("%w: data directory is required", ErrInvalidConfig)
	}
	if s.SyncInterval <= 0 {
		return fmt.Errorf("%w: sync interval must be positive", ErrInvalidConfig)
	}
	if s.MinimumBackgroundDuration < 0 || s.RetryDelay < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}

// HostOptions configures the filesystem host
func (s Settings) HostOptions() fshost.Options {
	return fshost.Options{
		DataDir:          s.DataDir,
		AppVersion:       s.AppVersion,
		DeploymentKey:    s.DeploymentKey,
		ServerURL:        s.ServerURL,
		BinaryHash:       s.BinaryHash,
		Platform:         s.Platform,
		BundleFileName:   s.BundleFileName,
		BinaryBundlePath: s.BinaryBundlePath,
		RetryDelay:       s.RetryDelay,
	}
}

// SyncOptions configures a sync cycle
func (s Settings) SyncOptions() updatemanager.SyncOptions {
	return updatemanager.SyncOptions{
		InstallOptions: codepush.InstallOptions{
			InstallMode:               s.InstallMode,
			MandatoryInstallMode:      s.MandatoryInstallMode,
			MinimumBackgroundDuration: s.MinimumBackgroundDuration,
		},
		IgnoreFailedUpdates: s.IgnoreFailedUpdates,
	}
}
