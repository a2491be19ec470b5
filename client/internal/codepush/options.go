package codepush

import (
	"fmt"
	"strings"
	"time"
)

// InstallMode decides when an installed package starts running
type InstallMode int

const (
	// InstallModeImmediate applies the update right away
	InstallModeImmediate InstallMode = iota
	// InstallModeOnNextRestart applies the update on the next cold start
	InstallModeOnNextRestart
	// InstallModeOnNextResume applies the update when the app returns from background
	InstallModeOnNextResume
)

func (m InstallMode) String() string {
	switch m {
	case InstallModeImmediate:
		return "immediate"
	case InstallModeOnNextRestart:
		return "on-next-restart"
	case InstallModeOnNextResume:
		return "on-next-resume"
	default:
		return fmt.Sprintf("InstallMode(%d)", int(m))
	}
}

// ParseInstallMode accepts the names produced by InstallMode.String, case insensitive
func ParseInstallMode(s string) (InstallMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "immediate":
		return InstallModeImmediate, nil
	case "on-next-restart", "onnextrestart", "restart":
		return InstallModeOnNextRestart, nil
	case "on-next-resume", "onnextresume", "resume":
		return InstallModeOnNextResume, nil
	}
	return 0, fmt.Errorf("unknown install mode %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (m InstallMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *InstallMode) UnmarshalText(text []byte) error {
	parsed, err := ParseInstallMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// InstallOptions are the caller facing install preferences
type InstallOptions struct {
	InstallMode               InstallMode
	MandatoryInstallMode      InstallMode
	MinimumBackgroundDuration time.Duration
}

// DefaultInstallOptions installs optional updates on the next restart and mandatory ones immediately
func DefaultInstallOptions() InstallOptions {
	return InstallOptions{
		InstallMode:          InstallModeOnNextRestart,
		MandatoryInstallMode: InstallModeImmediate,
	}
}

// Effective resolves the options the host receives for pkg
func (o InstallOptions) Effective(pkg Package) HostInstallOptions {
	mode := o.InstallMode
	if pkg.IsMandatory {
		mode = o.MandatoryInstallMode
	}
	return HostInstallOptions{
		Mode:                      mode,
		MinimumBackgroundDuration: o.MinimumBackgroundDuration,
		IsMandatory:               pkg.IsMandatory,
	}
}
