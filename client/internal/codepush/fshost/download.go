package fshost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mholt/archiver"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/codepush/client/internal/codepush"
	"github.com/netbirdio/codepush/client/internal/updatemanager/downloader"
	"github.com/netbirdio/codepush/util"
)

// DownloadUpdate fetches the package into <root>/<hash>. Zip archives are unpacked and
// merged with the latest installed package when they carry a diff manifest; any other payload
// is stored as the bundle file itself. The package is assembled in a staging folder and moved
// into place only once complete, so a failed download never touches an installed package.
func (h *Host) DownloadUpdate(ctx context.Context, update codepush.UpdateDescriptor, progress codepush.ProgressFunc) (*codepush.DownloadedPackage, error) {
	if err := checkHash(update.PackageHash); err != nil {
		return nil, err
	}

	staging := h.stagingFolder(update.PackageHash)
	// left behind by an interrupted download
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("remove stale staging folder: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			log.Warnf("failed to remove %s: %v", staging, err)
		}
	}()

	downloadPath := filepath.Join(h.root, downloadFileName)
	defer func() {
		if err := os.Remove(downloadPath); err != nil && !os.IsNotExist(err) {
			log.Warnf("failed to remove %s: %v", downloadPath, err)
		}
	}()

	res, err := downloader.DownloadToFile(ctx, h.opts.RetryDelay, update.DownloadURL, downloadPath, update.PackageSize, func(total, received int64) {
		if progress != nil {
			progress(codepush.DownloadProgress{TotalBytes: total, ReceivedBytes: received})
		}
	})
	if err != nil {
		return nil, err
	}

	record := &packageRecord{
		Package:      update.Package,
		DownloadURL:  update.DownloadURL,
		DownloadedAt: time.Now().UTC(),
	}

	if res.IsZip {
		record.BundlePath, err = h.unpack(downloadPath, staging)
	} else {
		record.BundlePath, err = h.storeBundle(downloadPath, staging)
	}
	if err != nil {
		return nil, err
	}

	if err := util.WriteJson(ctx, filepath.Join(staging, packageFileName), record); err != nil {
		return nil, fmt.Errorf("write package metadata: %w", err)
	}

	if err := h.commitPackage(update.PackageHash, staging); err != nil {
		return nil, err
	}

	folder := h.packageFolder(update.PackageHash)
	log.Infof("package %s stored in %s", update.Label, folder)
	return &codepush.DownloadedPackage{Package: update.Package, Path: folder}, nil
}

// stagingFolder holds a package while it is downloaded and unpacked
func (h *Host) stagingFolder(hash string) string {
	return filepath.Join(h.root, hash+stagingSuffix)
}

// commitPackage moves a complete staging folder to <root>/<hash>. A package folder that is
// current, previous or pending is kept as is: equal hashes carry equal code.
func (h *Host) commitPackage(hash, staging string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	folder := h.packageFolder(hash)
	if util.DirExists(folder) {
		st, err := h.readStatus()
		if err != nil {
			return err
		}
		if st.references(hash) && util.FileExists(h.packageFile(hash)) {
			log.Debugf("package %s is already installed, keeping the existing folder", hash)
			return nil
		}
		if err := os.RemoveAll(folder); err != nil {
			return fmt.Errorf("remove stale package folder: %w", err)
		}
	}

	if err := os.Rename(staging, folder); err != nil {
		return fmt.Errorf("move package into place: %w", err)
	}
	return nil
}

func (h *Host) storeBundle(downloadPath, folder string) (string, error) {
	if err := os.MkdirAll(folder, 0o750); err != nil {
		return "", fmt.Errorf("create package folder: %w", err)
	}
	if err := os.Rename(downloadPath, filepath.Join(folder, h.opts.BundleFileName)); err != nil {
		return "", fmt.Errorf("move bundle: %w", err)
	}
	return h.opts.BundleFileName, nil
}

func (h *Host) unpack(downloadPath, folder string) (string, error) {
	unzipped := filepath.Join(h.root, unzippedFolderName)
	if err := os.RemoveAll(unzipped); err != nil {
		return "", fmt.Errorf("remove stale unzipped folder: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(unzipped); err != nil {
			log.Warnf("failed to remove %s: %v", unzipped, err)
		}
	}()

	z := archiver.NewZip()
	z.OverwriteExisting = true
	z.MkdirAll = true
	if err := z.Unarchive(downloadPath, unzipped); err != nil {
		return "", fmt.Errorf("unzip package: %w", err)
	}

	if err := os.MkdirAll(folder, 0o750); err != nil {
		return "", fmt.Errorf("create package folder: %w", err)
	}

	manifestPath := filepath.Join(unzipped, diffManifestName)
	isDiff := util.FileExists(manifestPath)
	if isDiff {
		if err := h.applyDiffManifest(manifestPath, folder); err != nil {
			return "", err
		}
		if err := os.Remove(manifestPath); err != nil {
			return "", fmt.Errorf("remove diff manifest: %w", err)
		}
	}

	if err := util.CopyDirContents(unzipped, folder); err != nil {
		return "", fmt.Errorf("copy update contents: %w", err)
	}

	rel, err := findBundle(folder, h.opts.BundleFileName)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return "", fmt.Errorf("update is invalid, no bundle named %q in the downloaded contents", h.opts.BundleFileName)
	}

	if isDiff {
		log.Infof("applying diff update")
	} else {
		log.Infof("applying full update")
	}
	return rel, nil
}

type diffManifest struct {
	DeletedFiles []string `json:"deletedFiles"`
}

// applyDiffManifest seeds folder with the latest installed package, pending or running, and
// removes the files the diff deletes. The update check reports that package's hash, so the
// server computed the diff against it.
func (h *Host) applyDiffManifest(manifestPath, folder string) error {
	h.mu.Lock()
	st, err := h.readStatus()
	h.mu.Unlock()
	if err != nil {
		return err
	}

	if base := st.latest(); base != "" {
		if err := util.CopyDirContents(h.packageFolder(base), folder); err != nil {
			return fmt.Errorf("copy package %s: %w", base, err)
		}
		if err := os.Remove(filepath.Join(folder, packageFileName)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove copied package metadata: %w", err)
		}
	}

	res, err := util.ReadJson(manifestPath, &diffManifest{})
	if err != nil {
		return fmt.Errorf("read diff manifest: %w", err)
	}

	for _, name := range res.(*diffManifest).DeletedFiles {
		target := filepath.Join(folder, filepath.FromSlash(name))
		rel, err := filepath.Rel(folder, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			log.Warnf("ignoring deleted file outside the package: %s", name)
			continue
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return nil
}

// findBundle returns the path of the first file named bundleName below folder, relative to folder.
// Entries are visited in lexical order, files of a folder before its subfolders.
func findBundle(folder, bundleName string) (string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", folder, err)
	}

	for _, e := range entries {
		if !e.IsDir() && e.Name() == bundleName {
			return bundleName, nil
		}
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rel, err := findBundle(filepath.Join(folder, e.Name()), bundleName)
		if err != nil {
			return "", err
		}
		if rel != "" {
			return filepath.ToSlash(filepath.Join(e.Name(), rel)), nil
		}
	}
	return "", nil
}
