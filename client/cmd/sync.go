package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netbirdio/codepush/client/internal/codepush"
	"github.com/netbirdio/codepush/client/internal/updatemanager"
)

const (
	deploymentKeyFlag         = "deployment-key"
	installModeFlag           = "install-mode"
	mandatoryInstallModeFlag  = "mandatory-install-mode"
	minBackgroundDurationFlag = "min-background-duration"
)

var (
	deploymentKey         string
	installMode           string
	mandatoryInstallMode  string
	minBackgroundDuration time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "checks for an update and installs it",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		opts, err := syncOptionsFromFlags(cmd, s.SyncOptions())
		if err != nil {
			return err
		}

		host, err := newHost(s)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		SetupCloseHandler(ctx, cancel)

		m := newManager(host, s)
		local, err := m.Sync(ctx, opts, codepush.SyncCallbacks{
			OnSyncStatusChanged: func(status codepush.SyncStatus) {
				log.Debugf("sync status: %s", status)
			},
			OnDownloadProgress: func(p codepush.DownloadProgress) {
				if p.Completed() {
					log.Debugf("downloaded %d bytes", p.ReceivedBytes)
				}
			},
			OnBinaryVersionMismatch: func(mismatch codepush.BinaryMismatch) {
				cmd.Printf("A newer binary is required for the next update (app version %s)\n", mismatch.AppVersion)
			},
		})
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		if local == nil {
			cmd.Println("Up to date")
			return nil
		}

		if local.IsPending {
			cmd.Printf("Update %s (%s) installed, it will be applied with mode %s\n", local.Label, local.PackageHash, opts.InstallOptions.Effective(local.Package).Mode)
			return nil
		}
		cmd.Printf("Update %s (%s) installed\n", local.Label, local.PackageHash)
		return nil
	},
}

func init() {
	syncCmd.PersistentFlags().StringVar(&deploymentKey, deploymentKeyFlag, "", "use this deployment key instead of the configured one")
	syncCmd.PersistentFlags().StringVar(&installMode, installModeFlag, "", "install mode of optional updates (immediate|on-next-restart|on-next-resume)")
	syncCmd.PersistentFlags().StringVar(&mandatoryInstallMode, mandatoryInstallModeFlag, "", "install mode of mandatory updates (immediate|on-next-restart|on-next-resume)")
	syncCmd.PersistentFlags().DurationVar(&minBackgroundDuration, minBackgroundDurationFlag, 0, "time the application must spend in background before an on-next-resume update is applied")
}

func syncOptionsFromFlags(cmd *cobra.Command, opts updatemanager.SyncOptions) (updatemanager.SyncOptions, error) {
	opts.DeploymentKey = deploymentKey

	if installMode != "" {
		mode, err := codepush.ParseInstallMode(installMode)
		if err != nil {
			return opts, err
		}
		opts.InstallOptions.InstallMode = mode
	}

	if mandatoryInstallMode != "" {
		mode, err := codepush.ParseInstallMode(mandatoryInstallMode)
		if err != nil {
			return opts, err
		}
		opts.InstallOptions.MandatoryInstallMode = mode
	}

	if cmd.Flag(minBackgroundDurationFlag).Changed {
		if minBackgroundDuration < 0 {
			return opts, fmt.Errorf("%s must not be negative", minBackgroundDurationFlag)
		}
		opts.InstallOptions.MinimumBackgroundDuration = minBackgroundDuration
	}
	return opts, nil
}
