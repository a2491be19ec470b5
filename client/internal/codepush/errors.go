package codepush

import "errors"

var (
	// ErrConfigurationUnavailable is returned when the host cannot provide a usable configuration
	ErrConfigurationUnavailable = errors.New("configuration unavailable")
	// ErrUpdateCheckFailed is returned on transport failures, timeouts and non 2xx answers
	ErrUpdateCheckFailed = errors.New("update check failed")
	// ErrInvalidServerResponse is returned when the update check answer cannot be interpreted
	ErrInvalidServerResponse = errors.New("invalid server response")
	// ErrDownloadFailed is returned when fetching a package failed or was cancelled
	ErrDownloadFailed = errors.New("download failed")
	// ErrInstallFailed is returned when the host rejected the install
	ErrInstallFailed = errors.New("install failed")
	// ErrSyncAlreadyInProgress is returned to a sync started while another one runs
	ErrSyncAlreadyInProgress = errors.New("sync already in progress")
	// ErrPackageConsumed is returned on a second Download or Install of the same remote package
	ErrPackageConsumed = errors.New("package already consumed")
	// ErrNotDownloaded is returned when Install is called before a successful Download
	ErrNotDownloaded = errors.New("package not downloaded")
)

// Taxonomy lists the sentinels every error leaving the sync orchestrator wraps one of
var Taxonomy = []error{
	ErrConfigurationUnavailable,
	ErrUpdateCheckFailed,
	ErrInvalidServerResponse,
	ErrDownloadFailed,
	ErrInstallFailed,
	ErrSyncAlreadyInProgress,
	ErrPackageConsumed,
}

// Classify returns the taxonomy sentinel err wraps, or nil
func Classify(err error) error {
	for _, sentinel := range Taxonomy {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}
