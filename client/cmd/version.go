package cmd

import (
	"github.com/spf13/cobra"

	"github.com/netbirdio/codepush/version"
)

var (
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "prints CodePush client version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.Println(version.ClientVersion())
		},
	}
)
