package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/netbirdio/codepush/client/internal/codepush/fshost"
	"github.com/netbirdio/codepush/client/internal/settings"
	"github.com/netbirdio/codepush/client/internal/updatemanager"
	"github.com/netbirdio/codepush/client/internal/updatemanager/installer"
	"github.com/netbirdio/codepush/formatter"
	"github.com/netbirdio/codepush/util"
)

const (
	envPrefix = "CODEPUSH_"
)

var (
	configPath string
	logLevel   string
	logFile    string
	dataDir    string
	rootCmd    = &cobra.Command{
		Use:          "codepush",
		Short:        "over-the-air bundle updates for the installed application",
		Long:         "",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "CodePush config file location")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "sets CodePush log level, overrides the config file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "sets CodePush log path. If console is specified the log will be output to stderr")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the installed packages, overrides the config file")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetupCloseHandler handles SIGTERM signal and exits with success
func SetupCloseHandler(ctx context.Context, cancel context.CancelFunc) {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(termCh)
		select {
		case <-ctx.Done():
		case <-termCh:
			log.Info("shutdown signal received")
			cancel()
		}
	}()
}

// SetFlagsFromEnvVars reads and updates flag values from environment variables with prefix CODEPUSH_
func SetFlagsFromEnvVars(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.VisitAll(func(f *pflag.Flag) {
		envVar := FlagNameToEnvVar(f.Name, envPrefix)

		if value, present := os.LookupEnv(envVar); present {
			err := flags.Set(f.Name, value)
			if err != nil {
				log.Infof("unable to configure flag %s using variable %s, err: %v", f.Name, envVar, err)
			}
		}
	})
}

// FlagNameToEnvVar converts flag name to environment var name adding a prefix,
// replacing dashes and making all uppercase (e.g. data-dir is converted to CODEPUSH_DATA_DIR according to the input prefix)
func FlagNameToEnvVar(cmdFlag string, prefix string) string {
	parsed := strings.ReplaceAll(cmdFlag, "-", "_")
	upper := strings.ToUpper(parsed)
	return prefix + upper
}

// loadSettings reads the config file and the environment, applies the persistent flags and initializes logging
func loadSettings(cmd *cobra.Command) (settings.Settings, error) {
	SetFlagsFromEnvVars(rootCmd)
	cmd.SetOut(cmd.OutOrStdout())

	s, err := settings.Load(configPath)
	if err != nil {
		return s, err
	}

	if dataDir != "" {
		s.DataDir = dataDir
	}
	if logLevel != "" {
		s.LogLevel = logLevel
	}
	if logFile != "" {
		s.LogFile = logFile
	}

	if err := util.InitLog(s.LogLevel, s.LogFile); err != nil {
		return s, fmt.Errorf("failed initializing log %v", err)
	}
	// one-shot commands log next to their own output
	if s.LogFile == util.LogConsole && cmd.Name() != "run" {
		formatter.SetPlainFormatter(log.StandardLogger())
	}
	return s, nil
}

func newHost(s settings.Settings) (*fshost.Host, error) {
	host, err := fshost.New(s.HostOptions())
	if err != nil {
		return nil, fmt.Errorf("open data directory: %w", err)
	}
	return host, nil
}

func newManager(host *fshost.Host, s settings.Settings, opts ...updatemanager.Option) *updatemanager.Manager {
	results := installer.NewResultHandler(s.DataDir)
	opts = append([]updatemanager.Option{
		updatemanager.WithInstaller(installer.New(installer.WithResultHandler(results))),
	}, opts...)
	return updatemanager.New(host, opts...)
}
