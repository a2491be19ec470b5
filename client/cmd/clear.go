package cmd

import (
	"github.com/spf13/cobra"

	"github.com/netbirdio/codepush/client/internal/updatemanager/installer"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "removes every installed update, the binary bundle runs again",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		host, err := newHost(s)
		if err != nil {
			return err
		}

		if err := host.ClearUpdates(); err != nil {
			return err
		}
		if err := installer.NewResultHandler(s.DataDir).Cleanup(); err != nil {
			return err
		}
		cmd.Println("Updates cleared")
		return nil
	},
}
