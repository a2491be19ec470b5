package updatemanager

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

// Start runs Sync every interval and whenever TriggerSync is called, with at least the
// configured minimum spacing between two runs. The first sync starts immediately.
func (m *Manager) Start(ctx context.Context, interval time.Duration, opts SyncOptions, cb codepush.SyncCallbacks) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.cancel != nil {
		log.Errorf("update loop already started")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.updateLoop(ctx, interval, opts, cb)

	m.TriggerSync()
}

// Stop ends the update loop and waits for a running sync to return
func (m *Manager) Stop() {
	m.loopMu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.loopMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	m.wg.Wait()
}

// TriggerSync asks the update loop for a sync. Requests coalesce while one is queued.
func (m *Manager) TriggerSync() {
	select {
	case m.triggerChan <- struct{}{}:
	default:
	}
}

func (m *Manager) updateLoop(ctx context.Context, interval time.Duration, opts SyncOptions, cb codepush.SyncCallbacks) {
	defer m.wg.Done()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-m.triggerChan:
		}

		m.handleSync(ctx, opts, cb)
	}
}

func (m *Manager) handleSync(ctx context.Context, opts SyncOptions, cb codepush.SyncCallbacks) {
	if !m.limiter.Allow() {
		log.Tracef("last sync started less than %s ago, skipping", m.minSyncSpacing)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, defaultSyncTimeout)
	defer cancel()

	log.Debugf("periodic sync triggered")
	local, err := m.Sync(ctx, opts, cb)
	switch {
	case errors.Is(err, codepush.ErrSyncAlreadyInProgress):
		log.Debugf("periodic sync skipped: %v", err)
	case err != nil:
		log.Errorf("periodic sync failed: %v", err)
	case local != nil:
		log.Infof("periodic sync installed %s", local.Label)
	}
}
