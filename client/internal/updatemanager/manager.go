package updatemanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/netbirdio/codepush/client/internal/codepush"
	"github.com/netbirdio/codepush/client/internal/codepush/acquisition"
	"github.com/netbirdio/codepush/client/internal/codepush/config"
	"github.com/netbirdio/codepush/client/internal/codepush/localstore"
	"github.com/netbirdio/codepush/client/internal/metrics"
	"github.com/netbirdio/codepush/client/internal/updatemanager/installer"
)

const (
	defaultMinSyncSpacing = 5 * time.Minute
	defaultSyncTimeout    = 15 * time.Minute
)

// SyncOptions controls a single sync
type SyncOptions struct {
	// DeploymentKey overrides the device's deployment key when set
	DeploymentKey       string
	InstallOptions      codepush.InstallOptions
	IgnoreFailedUpdates bool
}

// DefaultSyncOptions skips updates that failed before and installs optional updates on next restart
func DefaultSyncOptions() SyncOptions {
	return SyncOptions{
		InstallOptions:      codepush.DefaultInstallOptions(),
		IgnoreFailedUpdates: true,
	}
}

// Option configures a Manager
type Option func(*Manager)

// WithChecker replaces the update server client
func WithChecker(checker Checker) Option {
	return func(m *Manager) {
		m.checker = checker
	}
}

// WithMetrics records sync outcomes
func WithMetrics(rec *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = rec
	}
}

// WithInstaller replaces the default installer
func WithInstaller(i *installer.Installer) Option {
	return func(m *Manager) {
		m.installer = i
	}
}

// WithMinSyncSpacing sets the minimum time between two syncs started by the update loop
func WithMinSyncSpacing(d time.Duration) Option {
	return func(m *Manager) {
		m.minSyncSpacing = d
	}
}

// Manager reconciles the installed package with the update server
type Manager struct {
	config    *config.Provider
	store     *localstore.Store
	checker   Checker
	installer *installer.Installer
	metrics   *metrics.Metrics

	syncing atomic.Bool
	state   atomic.Int32

	// update loop
	minSyncSpacing time.Duration
	limiter        *rate.Limiter
	triggerChan    chan struct{}
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	loopMu         sync.Mutex
}

// New creates a Manager driving host
func New(host codepush.Host, opts ...Option) *Manager {
	m := &Manager{
		config:         config.NewProvider(host),
		store:          localstore.New(host),
		installer:      installer.New(),
		minSyncSpacing: defaultMinSyncSpacing,
		triggerChan:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.checker == nil {
		m.checker = acquisition.New(host)
	}
	m.limiter = rate.NewLimiter(rate.Every(m.minSyncSpacing), 1)
	return m
}

// State returns the current state of the sync state machine
func (m *Manager) State() codepush.State {
	return codepush.State(m.state.Load())
}

func (m *Manager) setState(s codepush.State) {
	old := codepush.State(m.state.Swap(int32(s)))
	if old != s {
		log.Tracef("sync state %s -> %s", old, s)
	}
}

// Sync checks for an update and, when one applies, downloads and installs it.
// It returns the installed package, or nil when nothing was installed. Only one sync
// runs at a time, a concurrent call fails with ErrSyncAlreadyInProgress.
func (m *Manager) Sync(ctx context.Context, opts SyncOptions, cb codepush.SyncCallbacks) (*codepush.LocalPackage, error) {
	if !m.syncing.CompareAndSwap(false, true) {
		log.Debugf("sync rejected, another sync is in progress")
		notifyStatus(cb, codepush.SyncStatusSyncInProgress)
		return nil, codepush.ErrSyncAlreadyInProgress
	}
	defer m.syncing.Store(false)

	logger := log.WithField("sync", xid.New().String())
	logger.Debugf("sync started")

	local, status, err := m.sync(ctx, opts, cb)
	if err != nil {
		m.setState(codepush.StateFailed)
		err = taxonomyError(err)
		status = codepush.SyncStatusUnknownError
		logger.Errorf("sync failed: %v", err)
	} else {
		logger.Debugf("sync finished: %s", status)
	}

	notifyStatus(cb, status)
	m.metrics.RecordSync(status.String())
	m.setState(codepush.StateIdle)

	return local, err
}

func (m *Manager) sync(ctx context.Context, opts SyncOptions, cb codepush.SyncCallbacks) (*codepush.LocalPackage, codepush.SyncStatus, error) {
	m.setState(codepush.StateCheckingForUpdate)
	notifyStatus(cb, codepush.SyncStatusCheckingForUpdate)

	cfg, local, result, err := m.check(ctx, opts.DeploymentKey)
	if errors.Is(err, codepush.ErrInvalidServerResponse) {
		log.Warnf("ignoring update check answer: %v", err)
		m.setState(codepush.StateNoUpdateFound)
		return nil, codepush.SyncStatusUpToDate, nil
	}
	if err != nil {
		return nil, 0, err
	}

	switch result.Outcome {
	case codepush.OutcomeBinaryVersionMismatch:
		m.setState(codepush.StateNoUpdateFound)
		if result.Mismatch != nil && cb.OnBinaryVersionMismatch != nil {
			mismatch := *result.Mismatch
			safeCall("binary version mismatch", func() { cb.OnBinaryVersionMismatch(mismatch) })
		}
		return nil, codepush.SyncStatusUpToDate, nil
	case codepush.OutcomeNoUpdate:
		m.setState(codepush.StateNoUpdateFound)
		return nil, codepush.SyncStatusUpToDate, nil
	}

	remote := result.Package
	if remote == nil {
		m.setState(codepush.StateNoUpdateFound)
		return nil, codepush.SyncStatusUpToDate, nil
	}
	info := remote.Info()

	if local != nil && local.PackageHash == info.PackageHash {
		log.Debugf("package %s already installed", info.PackageHash)
		m.setState(codepush.StateNoUpdateFound)
		return nil, codepush.SyncStatusUpToDate, nil
	}

	if remote.FailedInstall() && opts.IgnoreFailedUpdates {
		log.Infof("skipping package %s (%s), it failed to start before", info.Label, info.PackageHash)
		m.setState(codepush.StateNoUpdateFound)
		return nil, codepush.SyncStatusUpdateIgnored, nil
	}

	log.Infof("update %s found for deployment %s", info.Label, cfg.DeploymentKey)
	m.setState(codepush.StateUpdateFound)
	m.setState(codepush.StateDownloading)
	notifyStatus(cb, codepush.SyncStatusDownloadingPackage)

	var downloaded int64
	installed, err := m.installer.DownloadAndInstall(ctx, remote, opts.InstallOptions, installer.Hooks{
		Progress: func(p codepush.DownloadProgress) {
			m.metrics.AddDownloadedBytes(p.ReceivedBytes - downloaded)
			downloaded = p.ReceivedBytes
			if cb.OnDownloadProgress != nil {
				safeCall("download progress", func() { cb.OnDownloadProgress(p) })
			}
		},
		BeforeInstall: func() {
			m.setState(codepush.StateInstalling)
			notifyStatus(cb, codepush.SyncStatusInstallingUpdate)
		},
	})
	if err != nil {
		return nil, 0, err
	}

	m.metrics.RecordInstall(opts.InstallOptions.Effective(info).Mode.String())
	log.Infof("package %s installed (pending: %t)", installed.Label, installed.IsPending)
	return installed, codepush.SyncStatusUpdateInstalled, nil
}

// check resolves the configuration, reads the local package once and asks the server
func (m *Manager) check(ctx context.Context, deploymentKey string) (codepush.Configuration, *codepush.LocalPackage, codepush.UpdateCheckResult, error) {
	cfg, err := m.config.Get(ctx)
	if err != nil {
		return cfg, nil, codepush.UpdateCheckResult{}, err
	}
	cfg = cfg.WithDeploymentKey(deploymentKey)

	local, err := m.store.CurrentPackage(ctx, cfg.Platform)
	if err != nil {
		return cfg, nil, codepush.UpdateCheckResult{}, fmt.Errorf("%w: %w", codepush.ErrUpdateCheckFailed, err)
	}

	start := time.Now()
	result, err := m.checker.CheckForUpdate(ctx, cfg, local)
	if err != nil {
		m.metrics.RecordCheck("error", time.Since(start))
		return cfg, local, result, err
	}
	m.metrics.RecordCheck(result.Outcome.String(), time.Since(start))

	return cfg, local, result, nil
}

// CheckForUpdate queries the server without downloading anything
func (m *Manager) CheckForUpdate(ctx context.Context, deploymentKey string) (codepush.UpdateCheckResult, error) {
	_, _, result, err := m.check(ctx, deploymentKey)
	if err != nil {
		return codepush.UpdateCheckResult{}, taxonomyError(err)
	}
	return result, nil
}

// CurrentPackage returns the installed package, nil when the binary's bundle is running
func (m *Manager) CurrentPackage(ctx context.Context) (*codepush.LocalPackage, error) {
	cfg, err := m.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	return m.store.CurrentPackage(ctx, cfg.Platform)
}

// taxonomyError makes sure err wraps one of the codepush sentinels
func taxonomyError(err error) error {
	if codepush.Classify(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %w", codepush.ErrUpdateCheckFailed, err)
}

func notifyStatus(cb codepush.SyncCallbacks, status codepush.SyncStatus) {
	if cb.OnSyncStatusChanged == nil {
		return
	}
	safeCall("sync status", func() { cb.OnSyncStatusChanged(status) })
}

func safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s callback panicked: %v", name, r)
		}
	}()
	fn()
}
