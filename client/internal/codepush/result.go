package codepush

import (
	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// CheckOutcome is the classification of an update check
type CheckOutcome int

const (
	OutcomeNoUpdate CheckOutcome = iota
	OutcomeUpdateAvailable
	OutcomeBinaryVersionMismatch
)

func (o CheckOutcome) String() string {
	switch o {
	case OutcomeNoUpdate:
		return "NoUpdate"
	case OutcomeUpdateAvailable:
		return "UpdateAvailable"
	case OutcomeBinaryVersionMismatch:
		return "BinaryVersionMismatch"
	default:
		return "Unknown"
	}
}

// BinaryMismatch describes an update that requires a new binary from the store
type BinaryMismatch struct {
	AppVersion  string
	Description string
	IsMandatory bool
	DownloadURL string
}

// RequiresNewerBinary compares the advertised binary version with current.
// Unparseable versions are treated as requiring an update when they differ.
func (m BinaryMismatch) RequiresNewerBinary(current string) bool {
	advertised, err := version.NewVersion(m.AppVersion)
	if err != nil {
		log.Debugf("advertised binary version %q is not semantic: %v", m.AppVersion, err)
		return m.AppVersion != "" && m.AppVersion != current
	}
	running, err := version.NewVersion(current)
	if err != nil {
		log.Debugf("running binary version %q is not semantic: %v", current, err)
		return true
	}
	return advertised.GreaterThan(running)
}

// UpdateCheckResult carries either a remote package or a binary mismatch, never both
type UpdateCheckResult struct {
	Outcome  CheckOutcome
	Package  *RemotePackage
	Mismatch *BinaryMismatch
}

// NoUpdate is the result of a check with nothing to do
func NoUpdate() UpdateCheckResult {
	return UpdateCheckResult{Outcome: OutcomeNoUpdate}
}

// UpdateAvailable wraps a remote package in a check result
func UpdateAvailable(pkg *RemotePackage) UpdateCheckResult {
	return UpdateCheckResult{Outcome: OutcomeUpdateAvailable, Package: pkg}
}

// VersionMismatch wraps a binary mismatch in a check result
func VersionMismatch(m BinaryMismatch) UpdateCheckResult {
	return UpdateCheckResult{Outcome: OutcomeBinaryVersionMismatch, Mismatch: &m}
}
