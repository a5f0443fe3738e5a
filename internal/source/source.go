// Package source fetches debug files for stack trace headers.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/stacksym/stacksym/internal/utils"
	"github.com/stacksym/stacksym/pkg/stacktrace"
)

// ErrNotFound is returned when a source has no debug file for a header.
var ErrNotFound = errors.New("debug info not found")

// Source fetches the debug file for the release a header describes.
type Source interface {
	Fetch(ctx context.Context, h stacktrace.Header) ([]byte, error)
}

var fileNameReplacer = strings.NewReplacer("/", "__", ".", "_")

// FileName is the name a debug file is stored under for a cache key,
// e.g. x86_64/linux/1.0.0 becomes x86_64__linux__1_0_0.debuginfo.
func FileName(key string) string {
	return fileNameReplacer.Replace(key) + ".debuginfo"
}

// Dir looks up debug files in a local folder.
type Dir struct {
	Root string
}

// Fetch reads <Root>/<FileName(key)>, falling back to a dSYM bundle of the same name.
func (d Dir) Fetch(ctx context.Context, h stacktrace.Header) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := FileName(h.CacheKey())
	path := filepath.Join(d.Root, name)
	if _, err := os.Stat(path); err != nil {
		bundle := filepath.Join(d.Root, strings.TrimSuffix(name, ".debuginfo")+".dSYM")
		if _, err := os.Stat(bundle); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		path = bundle
	}
	log.WithField("path", path).Debug("Reading debug info")
	return ReadDebugFile(path)
}

// ReadDebugFile reads a debug file. A dSYM bundle resolves to the DWARF file
// inside Contents/Resources/DWARF.
func ReadDebugFile(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		if path, err = dsymDWARF(path); err != nil {
			return nil, err
		}
	}
	return os.ReadFile(path)
}

func dsymDWARF(bundle string) (string, error) {
	dir := filepath.Join(bundle, "Contents", "Resources", "DWARF")
	name := strings.TrimSuffix(filepath.Base(filepath.Clean(bundle)), ".dSYM")
	if path := filepath.Join(dir, name); fileExists(path) {
		return path, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%s is not a dSYM bundle: %w", bundle, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	if len(files) != 1 {
		return "", fmt.Errorf("expected one DWARF file in %s, found %d", dir, len(files))
	}
	return filepath.Join(dir, files[0]), nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// HTTP downloads debug files from a URL template. The placeholders {arch},
// {os}, {version} and {key} are replaced with path escaped header values.
// Failed downloads other than 404 are retried.
type HTTP struct {
	URL    string
	Client *http.Client
	// Attempts defaults to 3.
	Attempts int
	// Backoff is the sleep before the first retry and defaults to 500ms.
	Backoff time.Duration
}

// Expand fills in the URL template for a header.
func (s HTTP) Expand(h stacktrace.Header) string {
	return strings.NewReplacer(
		"{arch}", url.PathEscape(h.Arch),
		"{os}", url.PathEscape(h.OS),
		"{version}", url.PathEscape(h.Version.String()),
		"{key}", url.PathEscape(h.CacheKey()),
	).Replace(s.URL)
}

// Fetch downloads the debug file. A 404 response is ErrNotFound.
func (s HTTP) Fetch(ctx context.Context, h stacktrace.Header) ([]byte, error) {
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := s.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	u := s.Expand(h)
	var data []byte
	err := utils.Retry(ctx, attempts, backoff, func() (err error) {
		data, err = s.download(ctx, u)
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return utils.Stop(err)
		}
		if err != nil {
			log.WithError(err).WithField("url", u).Debug("Retrying debug info download")
		}
		return err
	})
	return data, err
}

func (s HTTP) download(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, utils.Stop(fmt.Errorf("failed to create request: %w", err))
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	log.WithField("url", u).Debug("Downloading debug info")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download debug info: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to download debug info: got response %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read debug info: %w", err)
	}
	return data, nil
}

// Chain tries each source in order and returns the first debug file found.
type Chain []Source

// Fetch returns ErrNotFound only when every source reports it.
func (c Chain) Fetch(ctx context.Context, h stacktrace.Header) ([]byte, error) {
	for _, s := range c {
		data, err := s.Fetch(ctx, h)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}
