package installer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

type scriptedHost struct {
	progress     []codepush.DownloadProgress
	downloadErr  error
	installErr   error
	cancel       context.CancelFunc
	installCalls int
	installOpts  codepush.HostInstallOptions
}

func (h *scriptedHost) IsFailedUpdate(context.Context, string) (bool, error) { return false, nil }
func (h *scriptedHost) IsFirstRun(context.Context, string) (bool, error)     { return false, nil }

func (h *scriptedHost) DownloadUpdate(_ context.Context, update codepush.UpdateDescriptor, progress codepush.ProgressFunc) (*codepush.DownloadedPackage, error) {
	for _, p := range h.progress {
		if progress != nil {
			progress(p)
		}
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.downloadErr != nil {
		return nil, h.downloadErr
	}
	return &codepush.DownloadedPackage{Package: update.Package, Path: "/data/" + update.PackageHash}, nil
}

func (h *scriptedHost) InstallUpdate(_ context.Context, _ *codepush.DownloadedPackage, opts codepush.HostInstallOptions) error {
	h.installCalls++
	h.installOpts = opts
	return h.installErr
}

func remoteFor(host codepush.RemoteHost, mandatory bool) *codepush.RemotePackage {
	return codepush.NewRemotePackage(codepush.UpdateDescriptor{
		Package:     codepush.Package{PackageHash: "h2", Label: "v2", IsMandatory: mandatory},
		DownloadURL: "https://cdn/h2",
	}, false, host, nil)
}

func TestDownloadAndInstall_ProgressIsMonotonic(t *testing.T) {
	host := &scriptedHost{progress: []codepush.DownloadProgress{
		{TotalBytes: 100, ReceivedBytes: 10},
		{TotalBytes: 100, ReceivedBytes: 60},
		{TotalBytes: 100, ReceivedBytes: 20},
		{TotalBytes: 100, ReceivedBytes: 60},
		{TotalBytes: 100, ReceivedBytes: 100},
	}}

	var received []int64
	var installing bool
	local, err := New().DownloadAndInstall(context.Background(), remoteFor(host, false), codepush.DefaultInstallOptions(), Hooks{
		Progress:      func(p codepush.DownloadProgress) { received = append(received, p.ReceivedBytes) },
		BeforeInstall: func() { installing = true },
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 60, 60, 100}, received)
	assert.True(t, installing)
	assert.Equal(t, "h2", local.PackageHash)
	assert.True(t, local.IsPending)
}

func TestDownloadAndInstall_EffectiveMode(t *testing.T) {
	opts := codepush.InstallOptions{
		InstallMode:          codepush.InstallModeOnNextResume,
		MandatoryInstallMode: codepush.InstallModeImmediate,
	}

	host := &scriptedHost{}
	local, err := New().DownloadAndInstall(context.Background(), remoteFor(host, true), opts, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, codepush.InstallModeImmediate, host.installOpts.Mode)
	assert.True(t, host.installOpts.IsMandatory)
	assert.False(t, local.IsPending)

	host = &scriptedHost{}
	_, err = New().DownloadAndInstall(context.Background(), remoteFor(host, false), opts, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, codepush.InstallModeOnNextResume, host.installOpts.Mode)
}

func TestDownloadAndInstall_DownloadFailureSkipsInstall(t *testing.T) {
	host := &scriptedHost{downloadErr: errors.New("connection reset")}
	rh := NewResultHandler(t.TempDir())

	_, err := New(WithResultHandler(rh)).DownloadAndInstall(context.Background(), remoteFor(host, false), codepush.DefaultInstallOptions(), Hooks{})
	assert.ErrorIs(t, err, codepush.ErrDownloadFailed)
	assert.Zero(t, host.installCalls)

	result, err := rh.Read()
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "h2", result.PackageHash)
	assert.Contains(t, result.Error, "connection reset")
}

func TestDownloadAndInstall_CancelledAfterDownload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host := &scriptedHost{cancel: cancel}

	_, err := New().DownloadAndInstall(ctx, remoteFor(host, false), codepush.DefaultInstallOptions(), Hooks{})
	assert.ErrorIs(t, err, codepush.ErrDownloadFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, host.installCalls)
}

func TestDownloadAndInstall_InstallFailure(t *testing.T) {
	host := &scriptedHost{installErr: errors.New("no space left on device")}

	_, err := New().DownloadAndInstall(context.Background(), remoteFor(host, false), codepush.DefaultInstallOptions(), Hooks{})
	assert.ErrorIs(t, err, codepush.ErrInstallFailed)
	assert.Equal(t, 1, host.installCalls)
}

func TestResultHandler(t *testing.T) {
	rh := NewResultHandler(t.TempDir())

	result, err := rh.Read()
	require.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, rh.Write(Result{Success: true, PackageHash: "h1", Label: "v1"}))
	result, err = rh.Read()
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "v1", result.Label)

	require.NoError(t, rh.Cleanup())
	require.NoError(t, rh.Cleanup())
	result, err = rh.Read()
	require.NoError(t, err)
	assert.Nil(t, result)
}
