package cmd

import (
	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "marks the running update as failed and restores the previous one",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		host, err := newHost(s)
		if err != nil {
			return err
		}

		restored, err := host.Rollback(cmd.Context())
		if err != nil {
			return err
		}

		if restored == "" {
			cmd.Println("Rolled back to the binary bundle")
			return nil
		}
		cmd.Printf("Rolled back to %s\n", restored)
		return nil
	},
}
