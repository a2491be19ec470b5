package acquisition

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

func updateCheckURL(cfg codepush.Configuration, local *codepush.LocalPackage) (string, error) {
	base, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/") + "/" + updateCheckPath)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", fmt.Errorf("unsupported server url scheme %q", base.Scheme)
	}

	base.RawQuery = queryParams(cfg, local).Encode()
	return base.String(), nil
}

func queryParams(cfg codepush.Configuration, local *codepush.LocalPackage) url.Values {
	q := url.Values{}
	q.Set("deploymentKey", cfg.DeploymentKey)
	q.Set("clientUniqueId", cfg.ClientUniqueID)

	if local != nil {
		appVersion := local.AppVersion
		if appVersion == "" {
			appVersion = cfg.AppVersion
		}
		q.Set("appVersion", appVersion)
		if local.PackageHash != "" {
			q.Set("packageHash", local.PackageHash)
		}
		if local.Label != "" {
			q.Set("label", local.Label)
		}
		return q
	}

	q.Set("appVersion", cfg.AppVersion)
	if cfg.Platform.SendsBinaryHash() && cfg.PackageHash != "" {
		q.Set("packageHash", cfg.PackageHash)
	}
	return q
}
