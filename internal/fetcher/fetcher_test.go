package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanq16/rangepull/internal/httpclient"
	"github.com/tanq16/rangepull/internal/planner"
)

func newTestClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{})
}

func TestFetchSucceedsOnFirstAttempt(t *testing.T) {
	content := []byte("0123456789abcdef")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var start, end int
		fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &start, &end)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[start : end+1])
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.bin")
	chunk := planner.Chunk{ID: 0, Start: 4, EndInclusive: 9}
	cfg := Config{URL: srv.URL, OutputPath: out, MaxRetries: 3, BaseBackoff: time.Millisecond}

	result := Fetch(context.Background(), newTestClient(), chunk, cfg, nil)
	if !result.Ok() {
		t.Fatalf("Fetch failed: %v", result.Err)
	}
	if result.BytesWritten != chunk.Length() {
		t.Errorf("BytesWritten = %d, want %d", result.BytesWritten, chunk.Length())
	}
	data, err := os.ReadFile(result.PartPath)
	if err != nil {
		t.Fatalf("read part file: %v", err)
	}
	if string(data) != "456789" {
		t.Errorf("part content = %q, want %q", data, "456789")
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	content := []byte("hello world of range downloads")
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var start, end int
		fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &start, &end)
		w.WriteHeader(http.StatusPartialContent)
		w.Write(content[start : end+1])
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.bin")
	chunk := planner.Chunk{ID: 0, Start: 0, EndInclusive: 4}
	cfg := Config{URL: srv.URL, OutputPath: out, MaxRetries: 3, BaseBackoff: time.Millisecond}

	result := Fetch(context.Background(), newTestClient(), chunk, cfg, nil)
	if !result.Ok() {
		t.Fatalf("Fetch failed after retry: %v", result.Err)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestFetchPermanentFailureDoesNotRetry(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.bin")
	chunk := planner.Chunk{ID: 0, Start: 0, EndInclusive: 4}
	cfg := Config{URL: srv.URL, OutputPath: out, MaxRetries: 3, BaseBackoff: time.Millisecond}

	result := Fetch(context.Background(), newTestClient(), chunk, cfg, nil)
	if result.Ok() {
		t.Fatal("expected Fetch to fail on permanent 404")
	}
	if result.Reason != ReasonHTTPStatus {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonHTTPStatus)
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent failure)", attempts.Load())
	}
	if _, err := os.Stat(PartPath(out, 0)); !os.IsNotExist(err) {
		t.Error("expected part file to be removed after permanent failure")
	}
}

func TestFetchProtocolViolationWhenOriginIgnoresRange(t *testing.T) {
	content := []byte("full body ignoring the range header")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.bin")
	chunk := planner.Chunk{ID: 0, Start: 0, EndInclusive: 4}
	cfg := Config{URL: srv.URL, OutputPath: out, MaxRetries: 1, BaseBackoff: time.Millisecond}

	result := Fetch(context.Background(), newTestClient(), chunk, cfg, nil)
	if result.Ok() {
		t.Fatal("expected Fetch to fail when origin returns 200 to a range request")
	}
	if result.Reason != ReasonProtocolViolation {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonProtocolViolation)
	}
}

func TestFetchExhaustsRetriesOnPersistentServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.bin")
	chunk := planner.Chunk{ID: 2, Start: 0, EndInclusive: 9}
	cfg := Config{URL: srv.URL, OutputPath: out, MaxRetries: 2, BaseBackoff: time.Millisecond}

	result := Fetch(context.Background(), newTestClient(), chunk, cfg, nil)
	if result.Ok() {
		t.Fatal("expected Fetch to fail after exhausting retries")
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2 (MaxRetries)", attempts.Load())
	}
}

func TestPartPathConvention(t *testing.T) {
	if got, want := PartPath("/tmp/out.bin", 3), "/tmp/out.bin.part3"; got != want {
		t.Errorf("PartPath() = %q, want %q", got, want)
	}
}
