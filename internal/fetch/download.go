package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/felixgeelhaar/afterpkg/internal/log"
)

// Source is one file to fetch for a package.
type Source struct {
	URL    string
	MD5Sum string
}

// FileName is the last path element of the URL.
func (s Source) FileName() string {
	if u, err := url.Parse(s.URL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(s.URL)
}

// Downloader caches sources under <cacheDir>/<category>/<name>/ and copies
// them into a work directory. With serial set, only one download runs at a
// time across all workers.
type Downloader struct {
	client   *Client
	cacheDir string
	serial   bool
	logger   *log.Logger

	mu sync.Mutex
}

// NewDownloader creates a Downloader rooted at cacheDir.
func NewDownloader(c *Client, cacheDir string, serial bool, logger *log.Logger) *Downloader {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Downloader{
		client:   c,
		cacheDir: cacheDir,
		serial:   serial,
		logger:   logger,
	}
}

// CachePath is where src is kept for category/name.
func (d *Downloader) CachePath(category, name string, src Source) string {
	return filepath.Join(d.cacheDir, category, name, src.FileName())
}

// Fetch makes every source available in workDir, downloading those not
// already cached with a matching checksum.
func (d *Downloader) Fetch(ctx context.Context, category, name string, sources []Source, workDir string) error {
	if d.serial {
		d.mu.Lock()
		defer d.mu.Unlock()
	}

	for _, src := range sources {
		cached := d.CachePath(category, name, src)
		if ok, _ := verify(cached, src.MD5Sum); !ok {
			d.logger.Info("downloading source", "package", name, "url", src.URL)
			if err := d.download(ctx, src, cached); err != nil {
				return err
			}
		}
		if workDir == "" {
			continue
		}
		if err := copyFile(cached, filepath.Join(workDir, src.FileName())); err != nil {
			return fmt.Errorf("staging %s: %w", src.FileName(), err)
		}
	}
	return nil
}

func (d *Downloader) download(ctx context.Context, src Source, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	resp, err := d.client.get(ctx, src.URL)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".partial-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hash := md5.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("downloading %s: %w", src.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if src.MD5Sum != "" {
		if got := hex.EncodeToString(hash.Sum(nil)); !strings.EqualFold(got, src.MD5Sum) {
			return &ChecksumError{URL: src.URL, Want: src.MD5Sum, Got: got}
		}
	}
	return os.Rename(tmp.Name(), dest)
}

// ChecksumError reports a source whose md5 does not match the .info file.
type ChecksumError struct {
	URL  string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("md5 mismatch for %s: want %s, got %s", e.URL, e.Want, e.Got)
}

// verify reports whether file exists and, when want is set, matches it.
func verify(file, want string) (bool, error) {
	f, err := os.Open(file)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if want == "" {
		return true, nil
	}
	hash := md5.New()
	if _, err := io.Copy(hash, f); err != nil {
		return false, err
	}
	return strings.EqualFold(hex.EncodeToString(hash.Sum(nil)), want), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Sources pairs URLs with checksums by position.
func Sources(urls, md5s []string) []Source {
	out := make([]Source, len(urls))
	for i, u := range urls {
		out[i] = Source{URL: u}
		if i < len(md5s) {
			out[i].MD5Sum = md5s[i]
		}
	}
	return out
}
