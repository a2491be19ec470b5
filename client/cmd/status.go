package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/netbirdio/codepush/client/internal/codepush"
	"github.com/netbirdio/codepush/client/internal/codepush/fshost"
	"github.com/netbirdio/codepush/client/internal/updatemanager/installer"
)

var (
	jsonFlag bool
	yamlFlag bool
)

type statusOutput struct {
	ClientID       string                 `json:"clientId" yaml:"clientId"`
	AppVersion     string                 `json:"appVersion" yaml:"appVersion"`
	DeploymentKey  string                 `json:"deploymentKey" yaml:"deploymentKey"`
	CurrentPackage *codepush.LocalPackage `json:"currentPackage,omitempty" yaml:"currentPackage,omitempty"`
	PendingPackage *codepush.LocalPackage `json:"pendingPackage,omitempty" yaml:"pendingPackage,omitempty"`
	BundlePath     string                 `json:"bundlePath" yaml:"bundlePath"`
	LastInstall    *installer.Result      `json:"lastInstall,omitempty" yaml:"lastInstall,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "status of the installed update",
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonFlag && yamlFlag {
			return fmt.Errorf("only one of --json and --yaml can be set")
		}

		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		host, err := newHost(s)
		if err != nil {
			return err
		}

		out, err := collectStatus(cmd, host, installer.NewResultHandler(s.DataDir))
		if err != nil {
			return err
		}
		out.AppVersion = s.AppVersion
		out.DeploymentKey = s.DeploymentKey

		switch {
		case jsonFlag:
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("json marshal failed")
			}
			cmd.Println(string(data))
		case yamlFlag:
			data, err := yaml.Marshal(out)
			if err != nil {
				return fmt.Errorf("yaml marshal failed")
			}
			cmd.Print(string(data))
		default:
			cmd.Print(out.summary())
		}
		return nil
	},
}

func init() {
	statusCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "display status in JSON format")
	statusCmd.PersistentFlags().BoolVar(&yamlFlag, "yaml", false, "display status in YAML format")
}

func collectStatus(cmd *cobra.Command, host *fshost.Host, results *installer.ResultHandler) (*statusOutput, error) {
	current, err := host.GetUpdateMetadata(cmd.Context(), codepush.UpdateStateRunning)
	if err != nil {
		return nil, err
	}
	pending, err := host.GetUpdateMetadata(cmd.Context(), codepush.UpdateStatePending)
	if err != nil {
		return nil, err
	}
	bundle, err := host.BundlePath()
	if err != nil {
		return nil, err
	}
	last, err := results.Read()
	if err != nil {
		return nil, fmt.Errorf("read last install result: %w", err)
	}

	return &statusOutput{
		ClientID:       host.ClientID(),
		CurrentPackage: current,
		PendingPackage: pending,
		BundlePath:     bundle,
		LastInstall:    last,
	}, nil
}

func (o *statusOutput) summary() string {
	current := "binary bundle"
	if o.CurrentPackage != nil {
		current = fmt.Sprintf("%s (%s)", o.CurrentPackage.Label, o.CurrentPackage.PackageHash)
	}
	pending := "none"
	if o.PendingPackage != nil {
		pending = fmt.Sprintf("%s (%s)", o.PendingPackage.Label, o.PendingPackage.PackageHash)
	}

	summary := fmt.Sprintf("App version: %s\n"+
		"Deployment key: %s\n"+
		"Running: %s\n"+
		"Pending: %s\n"+
		"Bundle: %s\n",
		o.AppVersion, o.DeploymentKey, current, pending, o.BundlePath)

	if o.LastInstall != nil {
		result := "succeeded"
		if !o.LastInstall.Success {
			result = "failed: " + o.LastInstall.Error
		}
		summary += fmt.Sprintf("Last install: %s %s at %s\n", o.LastInstall.Label, result, o.LastInstall.ExecutedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return summary
}
