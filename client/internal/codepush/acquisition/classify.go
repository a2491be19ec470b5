package acquisition

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

func (c *Client) classify(ctx context.Context, cfg codepush.Configuration, local *codepush.LocalPackage, resp *updateInfo) (codepush.UpdateCheckResult, error) {
	if !resp.IsAvailable {
		log.Debugf("server reports no update for app version %s", cfg.AppVersion)
		return codepush.NoUpdate(), nil
	}

	if resp.UpdateAppVersion {
		log.Infof("update requires a newer binary (advertised app version %q)", resp.AppVersion)
		return codepush.VersionMismatch(codepush.BinaryMismatch{
			AppVersion:  resp.AppVersion,
			Description: resp.Description,
			IsMandatory: resp.IsMandatory,
			DownloadURL: resp.DownloadURL,
		}), nil
	}

	if local != nil && resp.PackageHash != "" && local.PackageHash == resp.PackageHash {
		log.Debugf("advertised package %s is already installed", resp.PackageHash)
		return codepush.NoUpdate(), nil
	}

	if local == nil && resp.PackageHash != "" && resp.PackageHash == cfg.PackageHash {
		log.Debugf("advertised package %s is the binary's own bundle", resp.PackageHash)
		return codepush.NoUpdate(), nil
	}

	if resp.PackageHash == "" || resp.DownloadURL == "" {
		return codepush.UpdateCheckResult{}, invalidResponse("available update without packageHash or downloadUrl")
	}

	failed, err := c.host.IsFailedUpdate(ctx, resp.PackageHash)
	if err != nil {
		log.Warnf("failed to read fault log for %s, assuming no failed install: %v", resp.PackageHash, err)
		failed = false
	}

	appVersion := resp.AppVersion
	if appVersion == "" {
		appVersion = cfg.AppVersion
	}

	desc := codepush.UpdateDescriptor{
		Package: codepush.Package{
			AppVersion:    appVersion,
			DeploymentKey: cfg.DeploymentKey,
			Description:   resp.Description,
			IsMandatory:   resp.IsMandatory,
			PackageHash:   resp.PackageHash,
			PackageSize:   resp.PackageSize,
			Label:         resp.Label,
		},
		DownloadURL: resp.DownloadURL,
	}

	return codepush.UpdateAvailable(codepush.NewRemotePackage(desc, failed, c.host, c.Reporter(cfg))), nil
}
