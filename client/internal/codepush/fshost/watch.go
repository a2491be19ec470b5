package fshost

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watch calls onChange with the new current package hash whenever another process changes
// the running package, e.g. the CLI applying or rolling back an update. It blocks until ctx
// is done.
func (h *Host) Watch(ctx context.Context, onChange func(hash string)) error {
	current, err := h.currentHash()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Warnf("failed to close watcher: %v", err)
		}
	}()

	// the status file is replaced by rename, so watch the directory holding it
	if err := watcher.Add(h.root); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	log.Infof("start watching status: %s", h.statusPath())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			if event.Name != h.statusPath() || !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			hash, err := h.currentHash()
			if err != nil {
				log.Debugf("error while reading status: %v", err)
				continue
			}
			if hash == current {
				continue
			}
			log.Infof("current package changed from %q to %q", current, hash)
			current = hash
			if onChange != nil {
				onChange(hash)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed unexpectedly")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (h *Host) currentHash() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st, err := h.readStatus()
	if err != nil {
		return "", err
	}
	return st.CurrentPackage, nil
}
