package cmd

import (
	"github.com/spf13/cobra"
)

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "confirms the running update started successfully",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		host, err := newHost(s)
		if err != nil {
			return err
		}

		if err := host.NotifyApplicationReady(cmd.Context()); err != nil {
			return err
		}
		cmd.Println("Application ready")
		return nil
	},
}
