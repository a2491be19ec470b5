package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netbirdio/codepush/client/internal/codepush"
	"github.com/netbirdio/codepush/client/internal/codepush/fshost"
	"github.com/netbirdio/codepush/client/internal/metrics"
	"github.com/netbirdio/codepush/client/internal/updatemanager"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "syncs periodically and reports bundle changes until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
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

		reg := prometheus.NewRegistry()
		if s.MetricsAddr != "" {
			srv, err := metrics.NewServer(s.MetricsAddr, "", reg)
			if err != nil {
				return err
			}
			go srv.Serve()
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Warnf("failed to stop metrics server: %v", err)
				}
			}()
		}

		// apply whatever was left pending by the previous run before syncing again
		if applied, err := host.ApplyPending(ctx, fshost.TriggerRestart, 0); err != nil {
			log.Errorf("failed to apply pending update: %v", err)
		} else if applied {
			log.Infof("pending update applied on start")
		}

		m := newManager(host, s, updatemanager.WithMetrics(metrics.New(reg)))
		m.Start(ctx, s.SyncInterval, s.SyncOptions(), codepush.SyncCallbacks{
			OnSyncStatusChanged: func(status codepush.SyncStatus) {
				log.Debugf("sync status: %s", status)
			},
			OnBinaryVersionMismatch: func(mismatch codepush.BinaryMismatch) {
				log.Warnf("update server requires a newer binary (app version %s)", mismatch.AppVersion)
			},
		})
		defer m.Stop()

		cmd.Printf("CodePush client started, syncing every %s\n", s.SyncInterval)

		err = host.Watch(ctx, func(hash string) {
			bundle, err := host.BundlePath()
			if err != nil {
				log.Errorf("failed to resolve bundle path: %v", err)
				return
			}
			log.Infof("running package changed to %q, bundle %s", hash, bundle)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		cmd.Println("CodePush client stopped")
		return nil
	},
}
