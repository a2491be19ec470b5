package localstore

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

// Host is the subset of the runtime the store reads from
type Host interface {
	codepush.MetadataReader
	codepush.FaultLog
}

// Store exposes the package currently installed on the device
type Store struct {
	host Host
}

// New creates a Store on top of host
func New(host Host) *Store {
	return &Store{host: host}
}

// CurrentPackage returns the latest installed package, running or pending, or nil if the
// binary's own bundle is still in use. FailedInstall is always attached, IsFirstRun only on
// platforms reporting it.
func (s *Store) CurrentPackage(ctx context.Context, platform codepush.Platform) (*codepush.LocalPackage, error) {
	meta, err := s.host.GetUpdateMetadata(ctx, codepush.UpdateStateLatest)
	if err != nil {
		return nil, fmt.Errorf("read update metadata: %w", err)
	}
	if meta == nil || meta.PackageHash == "" {
		log.Debugf("no package installed")
		return nil, nil
	}

	failed, err := s.host.IsFailedUpdate(ctx, meta.PackageHash)
	if err != nil {
		return nil, fmt.Errorf("read fault log for %s: %w", meta.PackageHash, err)
	}

	var firstRun bool
	if platform.ReportsFirstRun() {
		firstRun, err = s.host.IsFirstRun(ctx, meta.PackageHash)
		if err != nil {
			return nil, fmt.Errorf("read first run flag for %s: %w", meta.PackageHash, err)
		}
	}

	local := codepush.NewLocalPackage(meta.Package, failed, firstRun)
	local.IsPending = meta.IsPending
	return local, nil
}
