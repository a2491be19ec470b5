package codepush

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// NewLocalPackage decorates an installed package record with its fault-log derived flags
func NewLocalPackage(data Package, failedInstall, isFirstRun bool) *LocalPackage {
	return &LocalPackage{
		Package:       data,
		FailedInstall: failedInstall,
		IsFirstRun:    isFirstRun,
	}
}

// RemotePackage is an update advertised by the server. Download and Install may each run once.
type RemotePackage struct {
	info          Package
	downloadURL   string
	failedInstall bool

	host     RemoteHost
	reporter StatusReporter

	mu              sync.Mutex
	downloadStarted bool
	downloaded      *DownloadedPackage
	downloadOK      bool
	installed       bool
}

// NewRemotePackage binds the host download and install primitives to an advertised update.
// reporter may be nil.
func NewRemotePackage(desc UpdateDescriptor, failedInstall bool, host RemoteHost, reporter StatusReporter) *RemotePackage {
	return &RemotePackage{
		info:          desc.Package,
		downloadURL:   desc.DownloadURL,
		failedInstall: failedInstall,
		host:          host,
		reporter:      reporter,
	}
}

// Info returns a copy of the package identity
func (p *RemotePackage) Info() Package {
	return p.info
}

// DownloadURL returns where the package bundle is fetched from
func (p *RemotePackage) DownloadURL() string {
	return p.downloadURL
}

// FailedInstall reports whether this hash previously failed to start on the device
func (p *RemotePackage) FailedInstall() bool {
	return p.failedInstall
}

// Descriptor returns what the host download primitive receives
func (p *RemotePackage) Descriptor() UpdateDescriptor {
	return UpdateDescriptor{Package: p.info, DownloadURL: p.downloadURL}
}

// Download fetches the package through the host. A second call fails with ErrPackageConsumed.
func (p *RemotePackage) Download(ctx context.Context, progress ProgressFunc) (*DownloadedPackage, error) {
	p.mu.Lock()
	if p.downloadStarted {
		p.mu.Unlock()
		return nil, ErrPackageConsumed
	}
	p.downloadStarted = true
	p.mu.Unlock()

	if p.downloadURL == "" {
		return nil, fmt.Errorf("%w: package %s has no download url", ErrDownloadFailed, p.info.PackageHash)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	downloaded, err := p.host.DownloadUpdate(ctx, p.Descriptor(), progress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if downloaded == nil {
		return nil, fmt.Errorf("%w: host returned no artifact for %s", ErrDownloadFailed, p.info.PackageHash)
	}
	if downloaded.PackageHash != p.info.PackageHash {
		return nil, fmt.Errorf("%w: host stored %q, expected %q", ErrDownloadFailed, downloaded.PackageHash, p.info.PackageHash)
	}

	p.mu.Lock()
	p.downloaded = downloaded
	p.downloadOK = true
	p.mu.Unlock()

	p.reportDownload(ctx)

	return downloaded, nil
}

func (p *RemotePackage) reportDownload(ctx context.Context) {
	if p.reporter == nil {
		return
	}
	if err := p.reporter.ReportDownload(ctx, p.info); err != nil {
		log.Warnf("failed to report download of package %s: %v", p.info.Label, err)
	}
}

// Install hands the downloaded artifact to the host. It requires a successful Download
// and can succeed or fail only once.
func (p *RemotePackage) Install(ctx context.Context, opts HostInstallOptions) (*LocalPackage, error) {
	p.mu.Lock()
	if p.installed {
		p.mu.Unlock()
		return nil, ErrPackageConsumed
	}
	if !p.downloadOK {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrInstallFailed, ErrNotDownloaded)
	}
	p.installed = true
	downloaded := p.downloaded
	p.mu.Unlock()

	if err := p.host.InstallUpdate(ctx, downloaded, opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	local := NewLocalPackage(p.info, false, false)
	local.IsPending = opts.Mode != InstallModeImmediate
	return local, nil
}
