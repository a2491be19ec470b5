package codepush

// SyncStatus is reported to the sync status callback
type SyncStatus int

const (
	SyncStatusCheckingForUpdate SyncStatus = iota
	// SyncStatusAwaitingUserAction is reserved for interactive update prompts
	SyncStatusAwaitingUserAction
	SyncStatusDownloadingPackage
	SyncStatusInstallingUpdate
	SyncStatusUpToDate
	SyncStatusUpdateInstalled
	SyncStatusUpdateIgnored
	SyncStatusUnknownError
	SyncStatusSyncInProgress
)

var syncStatusNames = map[SyncStatus]string{
	SyncStatusCheckingForUpdate:  "CheckingForUpdate",
	SyncStatusAwaitingUserAction: "AwaitingUserAction",
	SyncStatusDownloadingPackage: "DownloadingPackage",
	SyncStatusInstallingUpdate:   "InstallingUpdate",
	SyncStatusUpToDate:           "UpToDate",
	SyncStatusUpdateInstalled:    "UpdateInstalled",
	SyncStatusUpdateIgnored:      "UpdateIgnored",
	SyncStatusUnknownError:       "UnknownError",
	SyncStatusSyncInProgress:     "SyncInProgress",
}

func (s SyncStatus) String() string {
	if name, ok := syncStatusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// State is the sync state machine position
type State int

const (
	StateIdle State = iota
	StateCheckingForUpdate
	StateNoUpdateFound
	StateUpdateFound
	StateDownloading
	StateInstalling
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCheckingForUpdate:
		return "CheckingForUpdate"
	case StateNoUpdateFound:
		return "NoUpdateFound"
	case StateUpdateFound:
		return "UpdateFound"
	case StateDownloading:
		return "Downloading"
	case StateInstalling:
		return "Installing"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// SyncCallbacks are optional observers of a sync. They run synchronously on the sync goroutine.
type SyncCallbacks struct {
	OnSyncStatusChanged     func(SyncStatus)
	OnDownloadProgress      func(DownloadProgress)
	OnBinaryVersionMismatch func(BinaryMismatch)
}
