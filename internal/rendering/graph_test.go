package rendering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type graphFixture struct {
	server   *httptest.Server
	uploads  atomic.Int64
	deletes  atomic.Int64
	expired  atomic.Bool
	sequence atomic.Int64
}

func newGraphFixture(t *testing.T) *graphFixture {
	t.Helper()
	f := &graphFixture{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		f.uploads.Add(1)
		id := fmt.Sprintf("session-%d", f.sequence.Add(1))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "slide_count": 2})
	})
	mux.HandleFunc("GET /sessions/", func(w http.ResponseWriter, r *http.Request) {
		if f.expired.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		_ = png.Encode(w, img)
	})
	mux.HandleFunc("DELETE /sessions/", func(w http.ResponseWriter, r *http.Request) {
		f.deletes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func TestGraphPrepareReusesCachedSession(t *testing.T) {
	f := newGraphFixture(t)
	backend := NewGraphBackend(f.server.URL, "key", 5, true)
	document := []byte("deck contents")
	ctx := context.Background()

	first := backend.NewStrategy()
	if err := first.PrepareForRendering(ctx, document); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := first.RenderSlide(ctx, 1, 64, 64); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := first.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	second := backend.NewStrategy()
	if err := second.PrepareForRendering(ctx, document); err != nil {
		t.Fatalf("second prepare: %v", err)
	}
	if got := f.uploads.Load(); got != 1 {
		t.Fatalf("uploads = %d, same document must reuse the cached session", got)
	}
	if got := f.deletes.Load(); got != 0 {
		t.Fatalf("deletes = %d, cached sessions must survive cleanup", got)
	}
}

func TestGraphCleanupDeletesUncachedSession(t *testing.T) {
	f := newGraphFixture(t)
	backend := NewGraphBackend(f.server.URL, "key", 5, false)
	ctx := context.Background()

	strategy := backend.NewStrategy()
	if err := strategy.PrepareForRendering(ctx, []byte("deck contents")); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := strategy.Cleanup(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if err := strategy.Cleanup(ctx); err != nil {
		t.Fatalf("repeated cleanup: %v", err)
	}
	if got := f.deletes.Load(); got != 1 {
		t.Fatalf("deletes = %d, want exactly one remote delete", got)
	}
}

func TestGraphRenderEvictsExpiredSession(t *testing.T) {
	f := newGraphFixture(t)
	backend := NewGraphBackend(f.server.URL, "key", 5, true)
	document := []byte("deck contents")
	ctx := context.Background()

	first := backend.NewStrategy()
	if err := first.PrepareForRendering(ctx, document); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	f.expired.Store(true)
	_, err := first.RenderSlide(ctx, 1, 64, 64)
	if err == nil {
		t.Fatal("render against an expired session must fail")
	}
	var renderErr *RenderError
	if !errors.As(err, &renderErr) || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("error = %v, want a slide render error carrying session expiry", err)
	}

	f.expired.Store(false)
	second := backend.NewStrategy()
	if err := second.PrepareForRendering(ctx, document); err != nil {
		t.Fatalf("prepare after eviction: %v", err)
	}
	if got := f.uploads.Load(); got != 2 {
		t.Fatalf("uploads = %d, expired sessions must be evicted and re-uploaded", got)
	}
}
