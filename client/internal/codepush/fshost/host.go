package fshost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/codepush/client/internal/codepush"
)

const (
	codePushFolder     = "CodePush"
	statusFileName     = "codepush.json"
	packageFileName    = "app.json"
	downloadFileName   = "download.zip"
	unzippedFolderName = "unzipped"
	diffManifestName   = "hotcodepush.json"
	faultLogFileName   = "failed-updates.json"
	clientIDFileName   = "client-id"
	stagingSuffix      = ".tmp"

	DefaultBundleFileName = "index.android.bundle"
)

// Options describe the binary the host serves updates for
type Options struct {
	DataDir        string
	AppVersion     string
	DeploymentKey  string
	ServerURL      string
	BinaryHash     string
	Platform       codepush.Platform
	BundleFileName string
	// BinaryBundlePath is returned by BundlePath while no update is installed
	BinaryBundlePath string
	RetryDelay       time.Duration
}

// Host keeps installed packages on the local filesystem, one folder per package hash
type Host struct {
	opts     Options
	root     string
	clientID string

	// mu serializes read-modify-write cycles of the status file and the fault log
	mu sync.Mutex
}

// New creates the data directory if needed and loads or generates the client id
func New(opts Options) (*Host, error) {
	if opts.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if opts.BundleFileName == "" {
		opts.BundleFileName = DefaultBundleFileName
	}
	if opts.Platform == "" {
		opts.Platform = codepush.PlatformAndroid
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}

	h := &Host{
		opts: opts,
		root: filepath.Join(opts.DataDir, codePushFolder),
	}

	if err := os.MkdirAll(h.root, 0o750); err != nil {
		return nil, fmt.Errorf("create %s: %w", h.root, err)
	}

	id, err := loadClientID(filepath.Join(opts.DataDir, clientIDFileName))
	if err != nil {
		return nil, err
	}
	h.clientID = id

	return h, nil
}

func loadClientID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if id, perr := uuid.Parse(strings.TrimSpace(string(data))); perr == nil {
			return id.String(), nil
		}
		log.Warnf("client id in %s is invalid, generating a new one", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read client id: %w", err)
	}

	id := uuid.New().String()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write client id: %w", err)
	}
	log.Debugf("generated client id %s", id)
	return id, nil
}

// Root is the folder holding the status file and the package folders
func (h *Host) Root() string {
	return h.root
}

// ClientID is the unique id of this installation
func (h *Host) ClientID() string {
	return h.clientID
}

// GetConfiguration describes this binary to the update client
func (h *Host) GetConfiguration(context.Context) (codepush.Configuration, error) {
	return codepush.Configuration{
		AppVersion:     h.opts.AppVersion,
		DeploymentKey:  h.opts.DeploymentKey,
		ClientUniqueID: h.clientID,
		ServerURL:      h.opts.ServerURL,
		PackageHash:    h.opts.BinaryHash,
		Platform:       h.opts.Platform,
	}, nil
}

func (h *Host) statusPath() string {
	return filepath.Join(h.root, statusFileName)
}

func (h *Host) faultLogPath() string {
	return filepath.Join(h.root, faultLogFileName)
}

func (h *Host) packageFolder(hash string) string {
	return filepath.Join(h.root, hash)
}

func (h *Host) packageFile(hash string) string {
	return filepath.Join(h.packageFolder(hash), packageFileName)
}

// checkHash rejects hashes that cannot be used as a folder name below root
func checkHash(hash string) error {
	if hash == "" || hash == "." || hash == ".." || strings.ContainsAny(hash, `/\`) || strings.HasSuffix(hash, stagingSuffix) {
		return fmt.Errorf("invalid package hash %q", hash)
	}
	return nil
}

var _ codepush.Host = (*Host)(nil)
