package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tanq16/rangepull/internal/httpclient"
)

func newTestClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{})
}

func TestProbeRangeCapableOrigin(t *testing.T) {
	body := make([]byte, 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
			w.Header().Set("Content-Range", "bytes 0-1023/4096")
			w.WriteHeader(http.StatusPartialContent)
			w.Write(body[:1024])
			return
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "4096")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	defer srv.Close()

	cap, err := Probe(context.Background(), newTestClient(), srv.URL+"/file.bin")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if cap.ContentLength != 4096 {
		t.Errorf("ContentLength = %d, want 4096", cap.ContentLength)
	}
	if !cap.SupportsRanges {
		t.Error("expected SupportsRanges = true")
	}
}

func TestProbeOriginWithoutRangeSupport(t *testing.T) {
	body := make([]byte, 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2048")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	defer srv.Close()

	cap, err := Probe(context.Background(), newTestClient(), srv.URL+"/file.bin")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if cap.ContentLength != 2048 {
		t.Errorf("ContentLength = %d, want 2048", cap.ContentLength)
	}
	if cap.SupportsRanges {
		t.Error("expected SupportsRanges = false when origin returns 200 to a range request")
	}
}

func TestProbeUnknownContentLengthSkipsRangeTest(t *testing.T) {
	rangeTestHit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			rangeTestHit = true
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cap, err := Probe(context.Background(), newTestClient(), srv.URL+"/stream")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if cap.ContentLength != -1 {
		t.Errorf("ContentLength = %d, want -1", cap.ContentLength)
	}
	if rangeTestHit {
		t.Error("range test should be skipped when content length is unknown")
	}
}

func TestProbeHeadFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Probe(context.Background(), newTestClient(), srv.URL+"/missing")
	if err == nil {
		t.Fatal("expected error for 404 HEAD response")
	}
}

func TestLooksLikeMarkup(t *testing.T) {
	cases := map[string]bool{
		"text/html; charset=utf-8":  true,
		"text/plain":                true,
		"application/octet-stream":  false,
		"application/json":          false,
		"":                          false,
	}
	for ct, want := range cases {
		if got := LooksLikeMarkup(ct); got != want {
			t.Errorf("LooksLikeMarkup(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestFilenameFromContentDisposition(t *testing.T) {
	cases := map[string]string{
		`attachment; filename="report.pdf"`: "report.pdf",
		`attachment; filename*=UTF-8''na%C3%AFve.txt`: "na_ve.txt",
		``:                     "",
		`garbage; no equals`:   "",
	}
	for header, want := range cases {
		if got := FilenameFromContentDisposition(header); got != want {
			t.Errorf("FilenameFromContentDisposition(%q) = %q, want %q", header, got, want)
		}
	}
}
