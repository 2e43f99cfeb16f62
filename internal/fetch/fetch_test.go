package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/devblac/dex-catalog/internal/catalog"
)

func TestLocalTreeReadsAndLists(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "deployments", "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"8453.json", "1.json"} {
		if err := os.WriteFile(filepath.Join(dir, "deployments", name), []byte(`{}`), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	tree, err := Open("file://"+dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	names, err := tree.ReadDir(context.Background(), "deployments")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if want := []string{"1.json", "8453.json"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}

	if _, err := tree.ReadFile(context.Background(), "deployments/missing.json"); !catalog.IsKind(err, catalog.KindSourceUnavailable) {
		t.Fatalf("missing file should be SourceUnavailable, got %v", err)
	}
}

func TestHTTPTreeStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manifest.json":
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	tree, err := Open(srv.URL+"/", srv.Client())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	data, err := tree.ReadFile(context.Background(), "manifest.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("unexpected body %q", data)
	}

	_, err = tree.ReadFile(context.Background(), "other.json")
	if !catalog.IsKind(err, catalog.KindSourceUnavailable) {
		t.Fatalf("502 should be SourceUnavailable, got %v", err)
	}

	if _, err := tree.ReadDir(context.Background(), "."); err == nil {
		t.Fatalf("expected listing over http to fail")
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return catalog.NewError(catalog.KindSourceUnavailable, "flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("attempts=%d calls=%d, want 3", attempts, calls)
	}
}

func TestRetryGivesUpAfterBudget(t *testing.T) {
	want := errors.New("down")
	attempts, err := Retry(context.Background(), 2, time.Millisecond, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetrySkipsMalformed(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return catalog.NewError(catalog.KindSourceMalformed, "bad json")
	})
	if err == nil || calls != 1 {
		t.Fatalf("malformed errors must not be retried, calls=%d err=%v", calls, err)
	}
}
