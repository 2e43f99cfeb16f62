// Package fetch gives adapters uniform read access to their upstream data,
// whether it is a local repository snapshot or an HTTP location.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/devblac/dex-catalog/internal/catalog"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxBodyBytes       = 64 << 20
)

// Tree is a read-only view of an upstream location.
type Tree interface {
	// ReadFile returns the content of name relative to the tree root.
	ReadFile(ctx context.Context, name string) ([]byte, error)
	// ReadDir lists the file names (not paths) directly under dir.
	ReadDir(ctx context.Context, dir string) ([]string, error)
	// Location returns the root the tree was opened on.
	Location() string
}

// Open picks a Tree implementation for location: http(s) URLs are fetched
// over the network, everything else (optionally file://) is read from disk.
func Open(location string, client *http.Client) (Tree, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("location is required")
	}
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		if client == nil {
			client = DefaultClient()
		}
		return &HTTPTree{base: strings.TrimRight(location, "/"), client: client}, nil
	case strings.HasPrefix(lower, "file://"):
		return &LocalTree{root: location[len("file://"):]}, nil
	default:
		return &LocalTree{root: location}, nil
	}
}

// DefaultClient returns the HTTP client used when none is configured.
func DefaultClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// LocalTree reads from a directory on disk.
type LocalTree struct {
	root string
}

// NewLocalTree builds a tree rooted at dir.
func NewLocalTree(dir string) *LocalTree { return &LocalTree{root: dir} }

func (t *LocalTree) Location() string { return t.root }

func (t *LocalTree) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, catalog.WrapError(catalog.KindSourceUnavailable, "read "+name, err)
	}
	data, err := os.ReadFile(filepath.Join(t.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, catalog.WrapError(catalog.KindSourceUnavailable, "read "+name, err)
	}
	return data, nil
}

func (t *LocalTree) ReadDir(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, catalog.WrapError(catalog.KindSourceUnavailable, "list "+dir, err)
	}
	entries, err := os.ReadDir(filepath.Join(t.root, filepath.FromSlash(dir)))
	if err != nil {
		return nil, catalog.WrapError(catalog.KindSourceUnavailable, "list "+dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type()&fs.ModeType != 0 {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// HTTPTree reads files below a base URL. Directory listing is not available
// over plain HTTP, so adapters must be told which files to fetch.
type HTTPTree struct {
	base   string
	client *http.Client
}

func (t *HTTPTree) Location() string { return t.base }

func (t *HTTPTree) ReadFile(ctx context.Context, name string) ([]byte, error) {
	url := t.base
	if name != "" && name != "." {
		url = t.base + "/" + strings.TrimLeft(path.Clean("/"+name), "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, catalog.WrapError(catalog.KindSourceUnavailable, "get "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, catalog.NewError(catalog.KindSourceUnavailable, fmt.Sprintf("get %s: status %d", url, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, catalog.WrapError(catalog.KindSourceUnavailable, "read body "+url, err)
	}
	if len(data) > maxBodyBytes {
		return nil, catalog.NewError(catalog.KindSourceMalformed, fmt.Sprintf("get %s: body exceeds %d bytes", url, maxBodyBytes))
	}
	return data, nil
}

func (t *HTTPTree) ReadDir(_ context.Context, dir string) ([]string, error) {
	return nil, catalog.NewError(catalog.KindSourceMalformed, fmt.Sprintf("list %s: directory listing is not supported for %s, configure explicit files", dir, t.base))
}
