package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "asks the update server for an update without installing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		host, err := newHost(s)
		if err != nil {
			return err
		}

		result, err := newManager(host, s).CheckForUpdate(cmd.Context(), deploymentKey)
		if err != nil {
			return fmt.Errorf("update check failed: %w", err)
		}

		switch result.Outcome {
		case codepush.OutcomeUpdateAvailable:
			info := result.Package.Info()
			cmd.Printf("Update available: %s (%s)\n", info.Label, info.PackageHash)
			cmd.Printf("  mandatory: %t\n", info.IsMandatory)
			if info.Description != "" {
				cmd.Printf("  description: %s\n", info.Description)
			}
			if result.Package.FailedInstall() {
				cmd.Println("  this package failed to start before and will be skipped by sync")
			}
		case codepush.OutcomeBinaryVersionMismatch:
			cmd.Printf("A newer binary is required (app version %s)\n", result.Mismatch.AppVersion)
		default:
			cmd.Println("Up to date")
		}
		return nil
	},
}

func init() {
	checkCmd.PersistentFlags().StringVar(&deploymentKey, deploymentKeyFlag, "", "use this deployment key instead of the configured one")
}
