package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCookies(t *testing.T) {
	data := []byte(`[
		{"name": "sessionid", "value": "abc123", "domain": ".tiktok.com"},
		{"Name": "tt_csrf", "Value": "xyz", "Domain": "m.tiktok.com", "Path": "/api"},
		{"name": "no_domain", "value": "v"},
		{"value": "orphan"},
		{"name": "no_value"},
		"not-an-object",
		42
	]`)

	cookies, err := ParseCookies(data)
	require.NoError(t, err)
	require.Len(t, cookies, 3)

	assert.Equal(t, Cookie{Name: "sessionid", Value: "abc123", Domain: ".tiktok.com"}, cookies[0])
	assert.Equal(t, Cookie{Name: "tt_csrf", Value: "xyz", Domain: "m.tiktok.com", Path: "/api"}, cookies[1])
	assert.Equal(t, DefaultCookieDomain, cookies[2].Domain)
}

func TestParseCookies_NotAnArray(t *testing.T) {
	_, err := ParseCookies([]byte(`{"name": "x"}`))
	assert.Error(t, err)
}

func TestLoadCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"a","value":"b"}]`), 0o600))

	cookies, err := LoadCookies(path)
	require.NoError(t, err)
	assert.Len(t, cookies, 1)

	_, err = LoadCookies(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSession_SendsHeadersAndCookies(t *testing.T) {
	var gotUA, gotCookie string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if c, err := r.Cookie("sessionid"); err == nil {
			gotCookie = c.Value
		}
		http.SetCookie(w, &http.Cookie{Name: "injected", Value: "zzz"})
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)

	s, err := New(Config{
		Cookies: []Cookie{{Name: "sessionid", Value: "secret-session", Domain: u.Hostname()}},
	})
	require.NoError(t, err)

	req, err := s.NewRequest(context.Background(), http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	resp, err := s.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, gotUA, "iPhone")
	assert.Equal(t, "secret-session", gotCookie)

	// cookies set by the upstream are not retained
	for _, c := range s.client.Jar.Cookies(u) {
		assert.NotEqual(t, "injected", c.Name)
	}
}

func TestSession_DomainScoping(t *testing.T) {
	s, err := New(Config{Cookies: []Cookie{{Name: "sessionid", Value: "v", Domain: ".tiktok.com"}}})
	require.NoError(t, err)

	sub, _ := url.Parse("https://m.tiktok.com/api/recommend/item_list/")
	other, _ := url.Parse("https://example.com/")

	assert.Len(t, s.client.Jar.Cookies(sub), 1)
	assert.Empty(t, s.client.Jar.Cookies(other))
}

func TestSession_HeadersAreCopies(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)

	h := s.Headers()
	h.Set("User-Agent", "changed")

	assert.NotEqual(t, "changed", s.Headers().Get("User-Agent"))
	assert.Equal(t, "https://www.tiktok.com/foryou", s.Headers().Get("Referer"))
}

func TestSession_Secrets(t *testing.T) {
	s, err := New(Config{Cookies: []Cookie{{Name: "a", Value: "one"}, {Name: "b", Value: "two"}}})
	require.NoError(t, err)

	assert.Equal(t, 2, s.CookieCount())
	assert.ElementsMatch(t, []string{"one", "two"}, s.Secrets())
}
