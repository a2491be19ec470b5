package installer

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

// Hooks observe the progress of DownloadAndInstall. Every field is optional.
type Hooks struct {
	Progress      func(codepush.DownloadProgress)
	BeforeInstall func()
}

// Option configures an Installer
type Option func(*Installer)

// WithResultHandler records the outcome of every attempt
func WithResultHandler(rh *ResultHandler) Option {
	return func(i *Installer) {
		i.results = rh
	}
}

// Installer drives a remote package through download and install
type Installer struct {
	results *ResultHandler
}

// New creates an Installer
func New(opts ...Option) *Installer {
	i := &Installer{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// DownloadAndInstall downloads remote through the host and installs it with the effective
// options. Install is never attempted when the download failed or ctx was cancelled.
func (i *Installer) DownloadAndInstall(ctx context.Context, remote *codepush.RemotePackage, opts codepush.InstallOptions, hooks Hooks) (local *codepush.LocalPackage, err error) {
	info := remote.Info()
	defer func() {
		i.record(info, err)
	}()

	log.Infof("downloading package %s (%s)", info.Label, info.PackageHash)
	if _, err := remote.Download(ctx, monotonic(hooks.Progress)); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		log.Infof("install of %s skipped, sync cancelled after download", info.Label)
		return nil, fmt.Errorf("%w: %w", codepush.ErrDownloadFailed, err)
	}

	if hooks.BeforeInstall != nil {
		hooks.BeforeInstall()
	}

	hostOpts := opts.Effective(info)
	log.Infof("installing package %s with mode %s", info.Label, hostOpts.Mode)
	local, err = remote.Install(ctx, hostOpts)
	if err != nil {
		return nil, err
	}

	return local, nil
}

func (i *Installer) record(info codepush.Package, err error) {
	if i.results == nil {
		return
	}

	result := Result{
		Success:     err == nil,
		PackageHash: info.PackageHash,
		Label:       info.Label,
		ExecutedAt:  time.Now().UTC(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	if werr := i.results.Write(result); werr != nil {
		log.Warnf("failed to record install result: %v", werr)
	}
}

// monotonic drops progress events that would move the received byte count backwards,
// which happens when the host restarts a transfer.
func monotonic(progress func(codepush.DownloadProgress)) codepush.ProgressFunc {
	if progress == nil {
		return nil
	}

	var last int64 = -1
	return func(p codepush.DownloadProgress) {
		if p.ReceivedBytes < last {
			return
		}
		last = p.ReceivedBytes
		progress(p)
	}
}
