package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/netbirdio/codepush/client/internal/codepush/fshost"
)

var (
	resumeFlag    bool
	backgroundFor time.Duration
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "applies a pending update as on application restart or resume",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		host, err := newHost(s)
		if err != nil {
			return err
		}

		trigger := fshost.TriggerRestart
		if resumeFlag {
			trigger = fshost.TriggerResume
		}

		applied, err := host.ApplyPending(cmd.Context(), trigger, backgroundFor)
		if err != nil {
			return err
		}
		if !applied {
			cmd.Println("No pending update applied")
			return nil
		}

		bundle, err := host.BundlePath()
		if err != nil {
			return err
		}
		cmd.Printf("Pending update applied, bundle: %s\n", bundle)
		return nil
	},
}

func init() {
	applyCmd.PersistentFlags().BoolVar(&resumeFlag, "resume", false, "apply as on resume instead of restart")
	applyCmd.PersistentFlags().DurationVar(&backgroundFor, "background-for", 0, "time the application spent in background, used with --resume")
}
