package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"feed-relay/internal/feed"
	"feed-relay/internal/handlers"
	"feed-relay/internal/mediacache"
)

type stubFeed struct{}

func (stubFeed) FetchPage(_ context.Context, _ string, _ int, origin feed.Origin) (feed.Page, error) {
	return feed.Page{Cursor: "1", Items: []feed.Item{{ID: "1", VideoURL: origin.Host}}}, nil
}

type stubMedia struct {
	dir string
}

func (s stubMedia) Serve(_ context.Context, key, _ string) (*mediacache.Handle, error) {
	path := filepath.Join(s.dir, key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &mediacache.Handle{Key: key, Path: path, ContentType: mediacache.ContentType, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s stubMedia) Stats() (mediacache.Stats, error) { return mediacache.Stats{}, nil }
func (s stubMedia) InFlight() int                    { return 0 }
func (s stubMedia) Dir() string                      { return s.dir }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "7.mp4"), []byte("video"), 0o644); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	h := handlers.New(stubFeed{}, stubMedia{dir: dir}, handlers.Config{FFmpegAvailable: true})
	ts := httptest.NewServer(setupRouter(h))
	t.Cleanup(ts.Close)
	return ts
}

func TestSetupRouter(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{name: "Feed", method: http.MethodGet, path: "/fyp", wantCode: http.StatusOK, wantBody: `"cursor":"1"`},
		{name: "Media path form", method: http.MethodGet, path: "/media/7.mp4?src=x", wantCode: http.StatusOK, wantBody: "video"},
		{name: "Media query form", method: http.MethodGet, path: "/media?file=7.mp4&url=x", wantCode: http.StatusOK, wantBody: "video"},
		{name: "Legacy alias", method: http.MethodGet, path: "/video_proxy?file=7.mp4&url=x", wantCode: http.StatusOK, wantBody: "video"},
		{name: "Media missing params", method: http.MethodGet, path: "/video_proxy", wantCode: http.StatusBadRequest, wantBody: "missing file or url"},
		{name: "Media HEAD", method: http.MethodHead, path: "/media/7.mp4?src=x", wantCode: http.StatusOK},
		{name: "Liveness", method: http.MethodGet, path: "/livez", wantCode: http.StatusOK, wantBody: "alive"},
		{name: "Version", method: http.MethodGet, path: "/version", wantCode: http.StatusOK, wantBody: "version"},
		{name: "Feed wrong method", method: http.MethodPost, path: "/fyp", wantCode: http.StatusMethodNotAllowed},
		{name: "Unknown route", method: http.MethodGet, path: "/api/files", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, http.NoBody)
			if err != nil {
				t.Fatalf("Failed to build request: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, resp.StatusCode)
			}

			body, _ := io.ReadAll(resp.Body)
			if tt.wantBody != "" && !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("Expected body to contain %q, got %q", tt.wantBody, body)
			}
		})
	}
}

func TestMetricsServer(t *testing.T) {
	srv := newMetricsServer("0")
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "feed_relay_") {
		t.Errorf("Expected feed_relay_ metrics in output")
	}
	if srv.WriteTimeout == 0 {
		t.Errorf("Expected metrics server to have a write timeout")
	}
}
