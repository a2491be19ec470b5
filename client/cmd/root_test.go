package cmd

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestInitCommands(t *testing.T) {
	helpFlag := "-h"
	commandArgs := [][]string{{"root", helpFlag}}
	for _, command := range rootCmd.Commands() {
		commandArgs = append(commandArgs, []string{command.Name(), command.Name(), helpFlag})
		for _, subcommand := range command.Commands() {
			commandArgs = append(commandArgs, []string{command.Name() + " " + subcommand.Name(), command.Name(), subcommand.Name(), helpFlag})
		}
	}

	for _, args := range commandArgs {
		t.Run(fmt.Sprintf("Testing Command %s", args[0]), func(t *testing.T) {
			defer func() {
				err := recover()
				if err != nil {
					t.Fatalf("got an panic error while running the command: %s -h. Error: %s", args[0], err)
				}
			}()

			rootCmd.SetArgs(args[1:])
			rootCmd.SetOut(io.Discard)
			if err := rootCmd.Execute(); err != nil {
				t.Errorf("expected no error while running %s command, got %v", args[0], err)
				return
			}
		})
	}
}

func TestSetFlagsFromEnvVars(t *testing.T) {
	var (
		dir      string
		interval time.Duration
		verbose  bool
	)
	var cmd = &cobra.Command{
		Use:          "codepush",
		Long:         "test",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			SetFlagsFromEnvVars(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&dir, "data-dir", "", "data directory")
	cmd.PersistentFlags().DurationVar(&interval, "sync-interval", time.Hour, "sync interval")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose")

	t.Setenv("CODEPUSH_DATA_DIR", "/tmp/codepush")
	t.Setenv("CODEPUSH_SYNC_INTERVAL", "5m")
	t.Setenv("CODEPUSH_VERBOSE", "not-a-bool")
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	if err != nil {
		t.Fatalf("expected no error while running codepush command, got %v", err)
	}
	if dir != "/tmp/codepush" {
		t.Errorf("expected /tmp/codepush, got %s", dir)
	}
	if interval != 5*time.Minute {
		t.Errorf("expected 5m, got %s", interval)
	}
	if verbose {
		t.Errorf("expected verbose to stay false on an invalid value")
	}
}

func TestFlagNameToEnvVar(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"config", "CODEPUSH_CONFIG"},
		{"log-level", "CODEPUSH_LOG_LEVEL"},
		{"min-background-duration", "CODEPUSH_MIN_BACKGROUND_DURATION"},
	}
	for _, tt := range tests {
		if got := FlagNameToEnvVar(tt.flag, envPrefix); got != tt.want {
			t.Errorf("FlagNameToEnvVar(%q) = %q, want %q", tt.flag, got, tt.want)
		}
	}
}
