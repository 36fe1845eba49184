package handlers

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"feed-relay/internal/feed"
	"feed-relay/internal/mediacache"
)

// =============================================================================
// Mocks
// =============================================================================

type mockFeed struct {
	mu        sync.Mutex
	page      feed.Page
	err       error
	calls     int
	gotCursor string
	gotCount  int
	gotOrigin feed.Origin
}

func (m *mockFeed) FetchPage(_ context.Context, cursor string, count int, origin feed.Origin) (feed.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.gotCursor = cursor
	m.gotCount = count
	m.gotOrigin = origin
	return m.page, m.err
}

type mockMedia struct {
	mu       sync.Mutex
	dir      string
	err      error
	statsErr error
	inFlight int
	calls    int
	gotKey   string
	gotSrc   string
}

func newMockMedia(t *testing.T) *mockMedia {
	t.Helper()
	return &mockMedia{dir: t.TempDir()}
}

// put publishes content under key so Serve can return it.
func (m *mockMedia) put(t *testing.T, key, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(m.dir, key), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write cache entry: %v", err)
	}
}

func (m *mockMedia) Serve(_ context.Context, key, src string) (*mediacache.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.gotKey = key
	m.gotSrc = src
	if m.err != nil {
		return nil, m.err
	}

	path := filepath.Join(m.dir, key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &mediacache.Handle{
		Key:         key,
		Path:        path,
		ContentType: mediacache.ContentType,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Outcome:     mediacache.OutcomeHit,
	}, nil
}

func (m *mockMedia) Stats() (mediacache.Stats, error) {
	if m.statsErr != nil {
		return mediacache.Stats{}, m.statsErr
	}
	entries, _ := os.ReadDir(m.dir)
	return mediacache.Stats{Entries: len(entries)}, nil
}

func (m *mockMedia) InFlight() int { return m.inFlight }

func (m *mockMedia) Dir() string { return m.dir }

// =============================================================================
// requestOrigin Tests
// =============================================================================

func TestRequestOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		host       string
		headers    map[string]string
		tls        bool
		trusted    bool
		wantScheme string
		wantHost   string
	}{
		{
			name:       "Plain HTTP",
			host:       "relay.local:5000",
			wantScheme: "http",
			wantHost:   "relay.local:5000",
		},
		{
			name:       "Direct TLS",
			host:       "relay.example",
			tls:        true,
			wantScheme: "https",
			wantHost:   "relay.example",
		},
		{
			name: "Behind reverse proxy",
			host: "10.0.0.5:5000",
			headers: map[string]string{
				"X-Forwarded-Proto": "https",
				"X-Forwarded-Host":  "feed.example.com, proxy.internal",
			},
			trusted:    true,
			wantScheme: "https",
			wantHost:   "feed.example.com",
		},
		{
			name: "Forwarded headers from untrusted client",
			host: "relay.local:5000",
			headers: map[string]string{
				"X-Forwarded-Proto": "https",
				"X-Forwarded-Host":  "attacker.example",
			},
			wantScheme: "http",
			wantHost:   "relay.local:5000",
		},
		{
			name:       "Trusted without forwarded headers",
			host:       "relay.local:5000",
			trusted:    true,
			wantScheme: "http",
			wantHost:   "relay.local:5000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/fyp", http.NoBody)
			req.Host = tt.host
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			got := requestOrigin(req, tt.trusted)
			if got.Scheme != tt.wantScheme || got.Host != tt.wantHost {
				t.Errorf("Expected %s://%s, got %s://%s", tt.wantScheme, tt.wantHost, got.Scheme, got.Host)
			}
		})
	}
}

func TestNewDefaultsStartTime(t *testing.T) {
	t.Parallel()

	before := time.Now()
	h := New(&mockFeed{}, &mockMedia{}, Config{})
	if h.startTime.Before(before) {
		t.Errorf("Expected start time to default to now")
	}
}
