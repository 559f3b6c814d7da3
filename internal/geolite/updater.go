package geolite

import (
	"archive/zip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"ipcrawl/internal/config"
)

const userAgent = "ipcrawl-geolite-updater/1.0"

var defaultHTTPClient = &http.Client{Timeout: 2 * time.Minute}

var (
	// ErrChecksumMismatch indicates that a downloaded archive does not match
	// its published md5 digest.
	ErrChecksumMismatch = errors.New("geolite: md5 checksum mismatch")
	// ErrUnknownEdition is returned for edition names missing from settings.
	ErrUnknownEdition = errors.New("geolite: unknown edition")
)

// Updater fetches GeoLite CSV archives and unpacks them below DataDir, one
// directory per edition.
type Updater struct {
	BaseURI     string
	DataDir     string
	Editions    map[string]config.Edition
	KeepArchive bool
	Client      *http.Client

	group singleflight.Group
}

func NewUpdater(cfg config.Config) *Updater {
	return &Updater{
		BaseURI:  cfg.GeoLite.BaseURI,
		DataDir:  cfg.GeoLite.DataDir,
		Editions: cfg.GeoLite.Editions,
		Client:   defaultHTTPClient,
	}
}

// Download installs the named editions, or every configured edition in name
// order when names is empty. Concurrent calls for the same edition share one
// download.
func (u *Updater) Download(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = config.EditionNames(u.Editions)
	}

	for _, name := range names {
		edition, ok := u.Editions[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownEdition, name)
		}

		_, err, shared := u.group.Do(name, func() (interface{}, error) {
			return nil, u.downloadEdition(ctx, name, edition)
		})
		if err != nil {
			return err
		}
		if shared {
			log.Debug("GeoLite download shared with a concurrent caller", "edition", name)
		}
	}

	return nil
}

// EditionDir is the directory an edition is unpacked into.
func (u *Updater) EditionDir(name string) string {
	return filepath.Join(u.DataDir, name)
}

func (u *Updater) downloadEdition(ctx context.Context, name string, edition config.Edition) error {
	if err := os.MkdirAll(u.DataDir, 0o755); err != nil {
		return fmt.Errorf("geolite: ensure data dir: %w", err)
	}

	archiveURL, err := u.resolve(edition.Archive)
	if err != nil {
		return err
	}
	checksumURL, err := u.resolve(edition.Archive + ".md5")
	if err != nil {
		return err
	}

	archivePath := filepath.Join(u.DataDir, edition.Archive)
	log.Info("Downloading GeoLite archive", "edition", name, "url", archiveURL)
	if err := u.fetchToFile(ctx, archiveURL, archivePath); err != nil {
		return fmt.Errorf("geolite: download %s: %w", name, err)
	}
	if !u.KeepArchive {
		defer func() {
			if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("Failed to remove GeoLite archive", "path", archivePath, "error", err)
			}
		}()
	}

	expected, err := u.fetchString(ctx, checksumURL)
	if err != nil {
		return fmt.Errorf("geolite: download %s checksum: %w", name, err)
	}
	if err := ValidateMD5(archivePath, expected); err != nil {
		return err
	}

	if err := unzipFile(archivePath, u.DataDir); err != nil {
		return fmt.Errorf("geolite: unpack %s: %w", name, err)
	}

	target := u.EditionDir(name)
	if err := renameDirectory(filepath.Join(u.DataDir, edition.DirectoryGlob), target); err != nil {
		return fmt.Errorf("geolite: install %s: %w", name, err)
	}

	if err := removeFiles(filepath.Join(target, "*.csv"), edition.Whitelist); err != nil {
		return fmt.Errorf("geolite: prune %s: %w", name, err)
	}

	log.Info("GeoLite edition installed", "edition", name, "dir", target)
	return nil
}

func (u *Updater) resolve(name string) (string, error) {
	base, err := url.Parse(u.BaseURI)
	if err != nil {
		return "", fmt.Errorf("geolite: base uri %q: %w", u.BaseURI, err)
	}
	return base.JoinPath(name).String(), nil
}

func (u *Updater) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := u.Client
	if client == nil {
		client = defaultHTTPClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("url=%s status_code=%d: %s", rawURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp, nil
}

func (u *Updater) fetchToFile(ctx context.Context, rawURL, destPath string) error {
	resp, err := u.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return writeToFile(destPath, resp.Body)
}

func (u *Updater) fetchString(ctx context.Context, rawURL string) (string, error) {
	resp, err := u.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ValidateMD5 compares the md5 digest of the file at path with expected. The
// expected value may carry a trailing file name, as md5sum prints it.
func ValidateMD5(path, expected string) error {
	actual, err := md5Checksum(path)
	if err != nil {
		return fmt.Errorf("geolite: checksum %s: %w", path, err)
	}

	fields := strings.Fields(expected)
	want := ""
	if len(fields) > 0 {
		want = strings.ToLower(fields[0])
	}

	if actual != want {
		return fmt.Errorf("%w for %s, expected %s to equal %s", ErrChecksumMismatch, filepath.Base(path), want, actual)
	}
	return nil
}

func md5Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func unzipFile(archivePath, dir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	for _, f := range zr.File {
		dest := filepath.Join(root, filepath.FromSlash(f.Name))
		if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
			return fmt.Errorf("entry %q escapes %s", f.Name, dir)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := extractEntry(f, dest); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}

	return nil
}

func extractEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return writeToFile(dest, rc)
}

// renameDirectory moves the first directory matching pattern to dst,
// replacing dst if it exists. No match leaves dst untouched.
func renameDirectory(pattern, dst string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	var src string
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil && info.IsDir() {
			src = match
			break
		}
	}
	if src == "" {
		log.Warn("No unpacked GeoLite directory found", "pattern", pattern)
		return nil
	}

	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// removeFiles deletes regular files matching pattern unless their base name
// is whitelisted.
func removeFiles(pattern string, whitelist []string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(whitelist))
	for _, name := range whitelist {
		keep[name] = struct{}{}
	}

	var errs []error
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if _, ok := keep[filepath.Base(match)]; ok {
			continue
		}
		if err := os.Remove(match); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeToFile(destPath string, data io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".geolite-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmpFile.Name())
	}()

	if _, err := io.Copy(tmpFile, data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("copy data: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), destPath); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}

	return nil
}
