package fshost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	nberrors "github.com/netbirdio/codepush/client/errors"
	"github.com/netbirdio/codepush/client/internal/codepush"
	"github.com/netbirdio/codepush/util"
)

// ErrNoUpdateInstalled is returned by Rollback when the binary's bundle is running
var ErrNoUpdateInstalled = errors.New("no update installed")

// Trigger is the application lifecycle event that may apply a pending install
type Trigger int

const (
	TriggerRestart Trigger = iota
	TriggerResume
)

func (t Trigger) String() string {
	if t == TriggerResume {
		return "resume"
	}
	return "restart"
}

// InstallUpdate makes a downloaded package current, or records it as pending for the
// on-next-restart and on-next-resume modes. Installing the current package drops any pending
// install, since the server advertised the running code as the release to run.
func (h *Host) InstallUpdate(ctx context.Context, pkg *codepush.DownloadedPackage, opts codepush.HostInstallOptions) error {
	if pkg == nil {
		return errors.New("nothing to install")
	}
	hash := pkg.PackageHash
	if err := checkHash(hash); err != nil {
		return err
	}
	if !util.FileExists(h.packageFile(hash)) {
		return fmt.Errorf("package %s was not downloaded", hash)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.readStatus()
	if err != nil {
		return err
	}

	if st.CurrentPackage == hash && st.PendingPackage == nil {
		log.Debugf("package %s is already current", hash)
		return nil
	}

	if st.CurrentPackage == hash {
		log.Infof("package %s is current again, dropping pending package %s", hash, st.PendingPackage.Hash)
		st.PendingPackage = nil
	} else if opts.Mode == codepush.InstallModeImmediate {
		applyPackage(st, hash)
	} else {
		st.PendingPackage = &pendingInstall{
			Hash:                      hash,
			Mode:                      opts.Mode,
			MinimumBackgroundDuration: opts.MinimumBackgroundDuration,
			IsMandatory:               opts.IsMandatory,
			InstalledAt:               time.Now().UTC(),
		}
	}

	if err := h.writeStatus(ctx, st); err != nil {
		return err
	}

	log.Infof("package %s installed with mode %s", pkg.Label, opts.Mode)
	h.prune(st)
	return nil
}

func applyPackage(st *status, hash string) {
	if st.CurrentPackage != hash {
		st.PreviousPackage = st.CurrentPackage
	}
	st.CurrentPackage = hash
	st.FirstRun = hash
	st.PendingPackage = nil
}

// ApplyPending promotes a pending install. A restart applies any pending package, a resume
// only packages installed on-next-resume after spending the minimum duration in background,
// or mandatory ones. It returns whether a package was applied.
func (h *Host) ApplyPending(ctx context.Context, trigger Trigger, backgroundFor time.Duration) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.readStatus()
	if err != nil {
		return false, err
	}

	pending := st.PendingPackage
	if pending == nil {
		return false, nil
	}

	if trigger == TriggerResume && !pending.IsMandatory {
		if pending.Mode != codepush.InstallModeOnNextResume {
			log.Debugf("pending package %s waits for a restart", pending.Hash)
			return false, nil
		}
		if backgroundFor < pending.MinimumBackgroundDuration {
			log.Debugf("app was in background for %s, %s required", backgroundFor, pending.MinimumBackgroundDuration)
			return false, nil
		}
	}

	applyPackage(st, pending.Hash)
	if err := h.writeStatus(ctx, st); err != nil {
		return false, err
	}

	log.Infof("pending package %s applied on %s", st.CurrentPackage, trigger)
	h.prune(st)
	return true, nil
}

// Rollback records the current package as failed and restores the previous one.
// It returns the hash that is now current, empty for the binary's bundle.
func (h *Host) Rollback(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.readStatus()
	if err != nil {
		return "", err
	}

	failed := st.CurrentPackage
	if failed == "" {
		return "", ErrNoUpdateInstalled
	}

	if err := h.markFailed(ctx, failed); err != nil {
		return "", err
	}

	st.CurrentPackage = st.PreviousPackage
	st.PreviousPackage = ""
	st.FirstRun = ""
	if st.PendingPackage != nil && st.PendingPackage.Hash == failed {
		st.PendingPackage = nil
	}

	if err := h.writeStatus(ctx, st); err != nil {
		return "", err
	}

	log.Warnf("package %s rolled back, current package is now %q", failed, st.CurrentPackage)
	h.prune(st)
	return st.CurrentPackage, nil
}

// NotifyApplicationReady confirms the current package started successfully
func (h *Host) NotifyApplicationReady(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.readStatus()
	if err != nil {
		return err
	}
	if st.FirstRun == "" {
		return nil
	}

	st.FirstRun = ""
	return h.writeStatus(ctx, st)
}

// ClearUpdates removes every installed package and the status file. The fault log is kept
// so packages that failed once stay flagged.
func (h *Host) ClearUpdates() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.clearLocked()
}

// Must be called with h.mu held.
func (h *Host) clearLocked() error {
	entries, err := os.ReadDir(h.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", h.root, err)
	}

	steps := make([]func() error, 0, len(entries))
	for _, e := range entries {
		switch e.Name() {
		case faultLogFileName, downloadFileName, unzippedFolderName:
			// fault log outlives updates, the others belong to a running download
			continue
		}
		path := filepath.Join(h.root, e.Name())
		steps = append(steps, func() error {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("remove %s: %w", path, err)
			}
			return nil
		})
	}

	if err := nberrors.Collect(steps...); err != nil {
		return err
	}
	log.Infof("cleared all updates in %s", h.root)
	return nil
}

// BundlePath returns the bundle the application should run: the current package's bundle,
// or the binary's own bundle when no update is applied.
func (h *Host) BundlePath() (string, error) {
	h.mu.Lock()
	st, err := h.readStatus()
	h.mu.Unlock()
	if err != nil {
		return "", err
	}

	if st.CurrentPackage == "" {
		return h.opts.BinaryBundlePath, nil
	}

	record, err := h.readPackage(st.CurrentPackage)
	if err != nil {
		return "", err
	}
	rel := record.BundlePath
	if rel == "" {
		rel = h.opts.BundleFileName
	}
	return filepath.Join(h.packageFolder(st.CurrentPackage), filepath.FromSlash(rel)), nil
}

// prune removes package folders that are neither current, previous nor pending.
// Must be called with h.mu held.
func (h *Host) prune(st *status) {
	keep := map[string]struct{}{
		st.CurrentPackage:  {},
		st.PreviousPackage: {},
	}
	if st.PendingPackage != nil {
		keep[st.PendingPackage.Hash] = struct{}{}
	}

	entries, err := os.ReadDir(h.root)
	if err != nil {
		log.Warnf("failed to list %s: %v", h.root, err)
		return
	}

	for _, e := range entries {
		if !e.IsDir() || e.Name() == unzippedFolderName {
			continue
		}
		if _, ok := keep[e.Name()]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(h.root, e.Name())); err != nil {
			log.Warnf("failed to remove old package %s: %v", e.Name(), err)
			continue
		}
		log.Debugf("removed old package %s", e.Name())
	}
}
