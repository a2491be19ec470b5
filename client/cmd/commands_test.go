package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBundleServer(t *testing.T, hash, label, bundle string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/updateCheck", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("packageHash") == hash {
			_, _ = w.Write([]byte(`{"isAvailable": false}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"isAvailable": true, "packageHash": %q, "label": %q, "downloadUrl": %q}`,
			hash, label, srv.URL+"/bundle")
	})
	mux.HandleFunc("/bundle", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bundle))
	})
	mux.HandleFunc("/reportStatus/download", func(w http.ResponseWriter, r *http.Request) {})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// resetFlags restores every flag to its default between two executions of rootCmd
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	reset(rootCmd.Flags())
	for _, c := range rootCmd.Commands() {
		reset(c.PersistentFlags())
		reset(c.Flags())
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T, serverURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf("serverUrl: %s\ndeploymentKey: key\nappVersion: 1.0.0\nretryDelay: 0s\nlogFile: console\nlogLevel: error\n", serverURL)
	path := filepath.Join(dir, "codepush.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, filepath.Join(dir, "data")
}

func TestSyncStatusRollback(t *testing.T) {
	srv := newBundleServer(t, "h1", "v1", "console.log('v1')")
	config, data := writeTestConfig(t, srv.URL)

	out, err := execute(t, "sync", "--config", config, "--data-dir", data, "--install-mode", "immediate")
	require.NoError(t, err)
	assert.Contains(t, out, "Update v1 (h1) installed")

	out, err = execute(t, "sync", "--config", config, "--data-dir", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Up to date")

	out, err = execute(t, "status", "--json", "--config", config, "--data-dir", data)
	require.NoError(t, err)

	var status statusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.NotNil(t, status.CurrentPackage)
	assert.Equal(t, "h1", status.CurrentPackage.PackageHash)
	assert.Nil(t, status.PendingPackage)
	assert.True(t, strings.HasPrefix(status.BundlePath, data))
	require.NotNil(t, status.LastInstall)
	assert.True(t, status.LastInstall.Success)
	assert.NotEmpty(t, status.ClientID)

	out, err = execute(t, "ready", "--config", config, "--data-dir", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Application ready")

	out, err = execute(t, "rollback", "--config", config, "--data-dir", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Rolled back to the binary bundle")

	// the rolled back package is skipped from now on
	out, err = execute(t, "sync", "--config", config, "--data-dir", data, "--install-mode", "immediate")
	require.NoError(t, err)
	assert.Contains(t, out, "Up to date")

	out, err = execute(t, "check", "--config", config, "--data-dir", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Update available: v1 (h1)")
	assert.Contains(t, out, "will be skipped by sync")
}

func TestSyncPendingAndApply(t *testing.T) {
	srv := newBundleServer(t, "h1", "v1", "v1")
	config, data := writeTestConfig(t, srv.URL)

	out, err := execute(t, "sync", "--config", config, "--data-dir", data, "--install-mode", "on-next-restart")
	require.NoError(t, err)
	assert.Contains(t, out, "it will be applied with mode on-next-restart")

	out, err = execute(t, "status", "--config", config, "--data-dir", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Running: binary bundle")
	assert.Contains(t, out, "Pending: v1 (h1)")

	out, err = execute(t, "apply", "--resume", "--config", config, "--data-dir", data)
	require.NoError(t, err)
	assert.Contains(t, out, "No pending update applied")

	out, err = execute(t, "apply", "--config", config, "--data-dir", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Pending update applied")

	out, err = execute(t, "clear", "--config", config, "--data-dir", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Updates cleared")

	out, err = execute(t, "status", "--yaml", "--config", config, "--data-dir", data)
	require.NoError(t, err)
	assert.NotContains(t, out, "currentPackage")
	assert.NotContains(t, out, "lastInstall")
}

func TestSyncRejectsInvalidInstallMode(t *testing.T) {
	config, data := writeTestConfig(t, "http://127.0.0.1:1")

	_, err := execute(t, "sync", "--config", config, "--data-dir", data, "--install-mode", "later")
	assert.Error(t, err)
}

func TestStatusRejectsBothFormats(t *testing.T) {
	config, data := writeTestConfig(t, "http://127.0.0.1:1")

	_, err := execute(t, "status", "--json", "--yaml", "--config", config, "--data-dir", data)
	assert.Error(t, err)
}

