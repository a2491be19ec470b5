package fshost

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/netbirdio/codepush/util"
)

// IsFailedUpdate reports whether the package was rolled back before
func (h *Host) IsFailedUpdate(_ context.Context, hash string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	failed, err := h.readFaultLog()
	if err != nil {
		return false, err
	}
	for _, f := range failed {
		if f == hash {
			return true, nil
		}
	}
	return false, nil
}

// IsFirstRun reports whether the package was applied and has not reported ready yet
func (h *Host) IsFirstRun(_ context.Context, hash string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.readStatus()
	if err != nil {
		return false, err
	}
	return hash != "" && st.FirstRun == hash, nil
}

// Must be called with h.mu held.
func (h *Host) readFaultLog() ([]string, error) {
	var failed []string
	if _, err := util.ReadJson(h.faultLogPath(), &failed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fault log: %w", err)
	}
	return failed, nil
}

// Must be called with h.mu held.
func (h *Host) markFailed(ctx context.Context, hash string) error {
	failed, err := h.readFaultLog()
	if err != nil {
		return err
	}
	for _, f := range failed {
		if f == hash {
			return nil
		}
	}
	return util.WriteJson(ctx, h.faultLogPath(), append(failed, hash))
}
