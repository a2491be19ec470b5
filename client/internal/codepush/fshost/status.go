package fshost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/codepush/client/internal/codepush"
	"github.com/netbirdio/codepush/util"
)

// status is the content of codepush.json
type status struct {
	CurrentPackage  string          `json:"currentPackage,omitempty"`
	PreviousPackage string          `json:"previousPackage,omitempty"`
	PendingPackage  *pendingInstall `json:"pendingPackage,omitempty"`
	// FirstRun holds the hash of a package that was applied but not yet reported ready
	FirstRun string `json:"firstRun,omitempty"`
}

// latest is the pending package if there is one, otherwise the running one
func (st *status) latest() string {
	if st.PendingPackage != nil {
		return st.PendingPackage.Hash
	}
	return st.CurrentPackage
}

// references reports whether hash is the current, previous or pending package
func (st *status) references(hash string) bool {
	if hash == "" {
		return false
	}
	return hash == st.CurrentPackage || hash == st.PreviousPackage || hash == st.latest()
}

type pendingInstall struct {
	Hash                      string               `json:"hash"`
	Mode                      codepush.InstallMode `json:"mode"`
	MinimumBackgroundDuration time.Duration        `json:"minimumBackgroundDuration"`
	IsMandatory               bool                 `json:"isMandatory"`
	InstalledAt               time.Time            `json:"installedAt"`
}

// packageRecord is the content of <hash>/app.json
type packageRecord struct {
	codepush.Package
	DownloadURL  string    `json:"downloadUrl"`
	BundlePath   string    `json:"bundlePath"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// readStatus returns an empty status when the file does not exist. A corrupted status file
// cannot be trusted to point at valid packages, so every update is dropped.
// Must be called with h.mu held.
func (h *Host) readStatus() (*status, error) {
	data, err := os.ReadFile(h.statusPath())
	if errors.Is(err, os.ErrNotExist) {
		return &status{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status file: %w", err)
	}

	st := &status{}
	if err := json.Unmarshal(data, st); err != nil {
		log.Warnf("status file %s is malformed, clearing updates: %v", h.statusPath(), err)
		if cerr := h.clearLocked(); cerr != nil {
			log.Errorf("failed to clear updates: %v", cerr)
		}
		return &status{}, nil
	}
	return st, nil
}

// Must be called with h.mu held.
func (h *Host) writeStatus(ctx context.Context, st *status) error {
	if err := util.WriteJson(ctx, h.statusPath(), st); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}

func (h *Host) readPackage(hash string) (*packageRecord, error) {
	res, err := util.ReadJson(h.packageFile(hash), &packageRecord{})
	if err != nil {
		return nil, fmt.Errorf("read package %s: %w", hash, err)
	}
	return res.(*packageRecord), nil
}

// GetUpdateMetadata returns the package for state, nil when there is none
func (h *Host) GetUpdateMetadata(_ context.Context, state codepush.UpdateState) (*codepush.LocalPackage, error) {
	h.mu.Lock()
	st, err := h.readStatus()
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var (
		hash    string
		pending bool
	)
	switch state {
	case codepush.UpdateStateRunning:
		hash = st.CurrentPackage
	case codepush.UpdateStatePending:
		if st.PendingPackage != nil {
			hash, pending = st.PendingPackage.Hash, true
		}
	case codepush.UpdateStateLatest:
		if st.PendingPackage != nil {
			hash, pending = st.PendingPackage.Hash, true
		} else {
			hash = st.CurrentPackage
		}
	default:
		return nil, fmt.Errorf("unknown update state %d", state)
	}

	if hash == "" {
		return nil, nil
	}

	record, err := h.readPackage(hash)
	if err != nil {
		return nil, err
	}

	return &codepush.LocalPackage{Package: record.Package, IsPending: pending}, nil
}
