package acquisition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

type stubHost struct {
	failed        map[string]bool
	downloadCalls atomic.Int32
}

func (h *stubHost) IsFailedUpdate(_ context.Context, hash string) (bool, error) {
	return h.failed[hash], nil
}

func (h *stubHost) IsFirstRun(context.Context, string) (bool, error) { return false, nil }

func (h *stubHost) DownloadUpdate(_ context.Context, update codepush.UpdateDescriptor, _ codepush.ProgressFunc) (*codepush.DownloadedPackage, error) {
	h.downloadCalls.Add(1)
	return &codepush.DownloadedPackage{Package: update.Package, Path: "/tmp/" + update.PackageHash}, nil
}

func (h *stubHost) InstallUpdate(context.Context, *codepush.DownloadedPackage, codepush.HostInstallOptions) error {
	return nil
}

type updateServer struct {
	*httptest.Server

	mu       sync.Mutex
	queries  []url.Values
	reports  []downloadReport
	statuses []int
	body     string
	delay    time.Duration
}

func newUpdateServer(t *testing.T, body string) *updateServer {
	t.Helper()
	s := &updateServer{body: body}
	mux := http.NewServeMux()
	mux.HandleFunc("/updateCheck", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		status := http.StatusOK
		if len(s.statuses) > 0 {
			status = s.statuses[0]
			s.statuses = s.statuses[1:]
		}
		body, delay := s.body, s.delay
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/reportStatus/download", func(w http.ResponseWriter, r *http.Request) {
		var report downloadReport
		_ = json.NewDecoder(r.Body).Decode(&report)
		s.mu.Lock()
		s.reports = append(s.reports, report)
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *updateServer) lastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

func (s *updateServer) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func testConfig(serverURL string) codepush.Configuration {
	return codepush.Configuration{
		AppVersion:     "1.0.0",
		DeploymentKey:  "dk",
		ClientUniqueID: "device-1",
		ServerURL:      serverURL,
		PackageHash:    "binary-hash",
		Platform:       codepush.PlatformAndroid,
	}
}

func newTestClient(host codepush.RemoteHost, opts ...Option) *Client {
	opts = append([]Option{WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	})}, opts...)
	return New(host, opts...)
}

func localPackage(hash, label string) *codepush.LocalPackage {
	return codepush.NewLocalPackage(codepush.Package{AppVersion: "1.0.0", PackageHash: hash, Label: label}, false, false)
}

func TestCheckForUpdate_Classification(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		local   *codepush.LocalPackage
		outcome codepush.CheckOutcome
		errIs   error
	}{
		{
			name:    "not available",
			body:    `{"isAvailable": false}`,
			local:   localPackage("h1", "v1"),
			outcome: codepush.OutcomeNoUpdate,
		},
		{
			name:    "availability missing",
			body:    `{"packageHash": "h2", "downloadUrl": "https://cdn/h2"}`,
			outcome: codepush.OutcomeNoUpdate,
		},
		{
			name:    "same hash as local",
			body:    `{"isAvailable": true, "packageHash": "h1", "downloadUrl": "https://cdn/h1"}`,
			local:   localPackage("h1", "v1"),
			outcome: codepush.OutcomeNoUpdate,
		},
		{
			name:    "same hash as binary",
			body:    `{"isAvailable": true, "packageHash": "binary-hash", "downloadUrl": "https://cdn/b"}`,
			outcome: codepush.OutcomeNoUpdate,
		},
		{
			name:    "binary mismatch",
			body:    `{"isAvailable": true, "updateAppVersion": true, "appVersion": "2.0.0", "packageHash": "h2", "downloadUrl": "https://cdn/h2"}`,
			local:   localPackage("h1", "v1"),
			outcome: codepush.OutcomeBinaryVersionMismatch,
		},
		{
			name:    "flat legacy shape",
			body:    `{"success": "true", "updateDownloadUrl": "https://cdn/h5", "bundleVersion": "v5", "packageHash": "h5", "packageSize": "488754"}`,
			local:   localPackage("h1", "v1"),
			outcome: codepush.OutcomeUpdateAvailable,
		},
		{
			name:    "wrapped shape",
			body:    `{"updateInfo": {"isAvailable": 1, "downloadURL": "https://cdn/h2", "packageHash": "h2", "label": "v2", "isMandatory": "1"}}`,
			local:   localPackage("h1", "v1"),
			outcome: codepush.OutcomeUpdateAvailable,
		},
		{
			name:  "available without hash",
			body:  `{"isAvailable": true, "downloadUrl": "https://cdn/h2"}`,
			local: localPackage("h1", "v1"),
			errIs: codepush.ErrInvalidServerResponse,
		},
		{
			name:  "availability of unknown type",
			body:  `{"isAvailable": {"value": true}}`,
			errIs: codepush.ErrInvalidServerResponse,
		},
		{
			name:  "availability string not boolean",
			body:  `{"isAvailable": "maybe"}`,
			errIs: codepush.ErrInvalidServerResponse,
		},
		{
			name:  "not an object",
			body:  `["h2"]`,
			errIs: codepush.ErrInvalidServerResponse,
		},
		{
			name:  "not json",
			body:  `<html>maintenance</html>`,
			errIs: codepush.ErrInvalidServerResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newUpdateServer(t, tt.body)
			host := &stubHost{}
			client := newTestClient(host)

			res, err := client.CheckForUpdate(context.Background(), testConfig(srv.URL), tt.local)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)

			switch res.Outcome {
			case codepush.OutcomeUpdateAvailable:
				require.NotNil(t, res.Package)
				assert.Nil(t, res.Mismatch)
				assert.NotEmpty(t, res.Package.DownloadURL())
			case codepush.OutcomeBinaryVersionMismatch:
				require.NotNil(t, res.Mismatch)
				assert.Nil(t, res.Package)
				assert.Equal(t, "2.0.0", res.Mismatch.AppVersion)
			default:
				assert.Nil(t, res.Package)
				assert.Nil(t, res.Mismatch)
			}
			assert.Zero(t, host.downloadCalls.Load(), "checking never downloads")
		})
	}
}

func TestCheckForUpdate_NormalizedPackage(t *testing.T) {
	srv := newUpdateServer(t, `{"success": 1, "updateDownloadUrl": "https://cdn/h5", "bundleVersion": "v5", "packageHash": "h5", "packageSize": 488754, "isMandatory": "true", "description": "fixes"}`)
	host := &stubHost{failed: map[string]bool{"h5": true}}
	cfg := testConfig(srv.URL).WithDeploymentKey("staging")

	res, err := newTestClient(host).CheckForUpdate(context.Background(), cfg, localPackage("h1", "v1"))
	require.NoError(t, err)
	require.Equal(t, codepush.OutcomeUpdateAvailable, res.Outcome)

	info := res.Package.Info()
	assert.Equal(t, "h5", info.PackageHash)
	assert.Equal(t, "v5", info.Label)
	assert.Equal(t, int64(488754), info.PackageSize)
	assert.True(t, info.IsMandatory)
	assert.Equal(t, "staging", info.DeploymentKey)
	assert.Equal(t, "1.0.0", info.AppVersion)
	assert.Equal(t, "fixes", info.Description)
	assert.True(t, res.Package.FailedInstall(), "failed install is looked up by the new hash")
}

func TestCheckForUpdate_QueryParameters(t *testing.T) {
	srv := newUpdateServer(t, `{"isAvailable": false}`)
	client := newTestClient(&stubHost{})

	t.Run("local package", func(t *testing.T) {
		_, err := client.CheckForUpdate(context.Background(), testConfig(srv.URL), localPackage("h1", "v1"))
		require.NoError(t, err)
		q := srv.lastQuery()
		assert.Equal(t, "dk", q.Get("deploymentKey"))
		assert.Equal(t, "h1", q.Get("packageHash"))
		assert.Equal(t, "v1", q.Get("label"))
		assert.Equal(t, "1.0.0", q.Get("appVersion"))
		assert.Equal(t, "device-1", q.Get("clientUniqueId"))
	})

	t.Run("binary on android", func(t *testing.T) {
		_, err := client.CheckForUpdate(context.Background(), testConfig(srv.URL), nil)
		require.NoError(t, err)
		q := srv.lastQuery()
		assert.False(t, q.Has("packageHash"))
		assert.False(t, q.Has("label"))
	})

	t.Run("binary on ios", func(t *testing.T) {
		cfg := testConfig(srv.URL)
		cfg.Platform = codepush.PlatformIOS
		_, err := client.CheckForUpdate(context.Background(), cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, "binary-hash", srv.lastQuery().Get("packageHash"))
	})

	t.Run("deployment key override", func(t *testing.T) {
		cfg := testConfig(srv.URL).WithDeploymentKey("staging")
		_, err := client.CheckForUpdate(context.Background(), cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, "staging", srv.lastQuery().Get("deploymentKey"))
	})
}

func TestCheckForUpdate_Failures(t *testing.T) {
	t.Run("server error is retried", func(t *testing.T) {
		srv := newUpdateServer(t, `{"isAvailable": false}`)
		srv.statuses = []int{http.StatusServiceUnavailable, http.StatusBadGateway}

		res, err := newTestClient(&stubHost{}).CheckForUpdate(context.Background(), testConfig(srv.URL), nil)
		require.NoError(t, err)
		assert.Equal(t, codepush.OutcomeNoUpdate, res.Outcome)
		assert.Equal(t, 3, srv.queryCount())
	})

	t.Run("retries exhausted", func(t *testing.T) {
		srv := newUpdateServer(t, ``)
		srv.statuses = []int{500, 500, 500, 500}

		_, err := newTestClient(&stubHost{}).CheckForUpdate(context.Background(), testConfig(srv.URL), nil)
		assert.ErrorIs(t, err, codepush.ErrUpdateCheckFailed)
		assert.Equal(t, 3, srv.queryCount())
	})

	t.Run("client error is not retried", func(t *testing.T) {
		srv := newUpdateServer(t, ``)
		srv.statuses = []int{http.StatusNotFound}

		_, err := newTestClient(&stubHost{}).CheckForUpdate(context.Background(), testConfig(srv.URL), nil)
		assert.ErrorIs(t, err, codepush.ErrUpdateCheckFailed)
		assert.Equal(t, 1, srv.queryCount())
	})

	t.Run("timeout", func(t *testing.T) {
		srv := newUpdateServer(t, `{"isAvailable": false}`)
		srv.delay = time.Second

		_, err := newTestClient(&stubHost{}, WithTimeout(50*time.Millisecond)).
			CheckForUpdate(context.Background(), testConfig(srv.URL), nil)
		assert.ErrorIs(t, err, codepush.ErrUpdateCheckFailed)
	})

	t.Run("server unreachable", func(t *testing.T) {
		srv := newUpdateServer(t, ``)
		endpoint := srv.URL
		srv.Close()

		_, err := newTestClient(&stubHost{}).CheckForUpdate(context.Background(), testConfig(endpoint), nil)
		assert.ErrorIs(t, err, codepush.ErrUpdateCheckFailed)
	})

	t.Run("bad server url", func(t *testing.T) {
		_, err := newTestClient(&stubHost{}).CheckForUpdate(context.Background(), testConfig("ftp://updates"), nil)
		assert.ErrorIs(t, err, codepush.ErrUpdateCheckFailed)
	})
}

func TestRemotePackage_ReportsDownload(t *testing.T) {
	srv := newUpdateServer(t, `{"isAvailable": true, "packageHash": "h2", "label": "v2", "downloadUrl": "https://cdn/h2"}`)
	client := newTestClient(&stubHost{})

	res, err := client.CheckForUpdate(context.Background(), testConfig(srv.URL), localPackage("h1", "v1"))
	require.NoError(t, err)
	require.Equal(t, codepush.OutcomeUpdateAvailable, res.Outcome)

	_, err = res.Package.Download(context.Background(), nil)
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.reports, 1)
	assert.Equal(t, downloadReport{ClientUniqueID: "device-1", DeploymentKey: "dk", Label: "v2"}, srv.reports[0])
}
