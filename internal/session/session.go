package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"feed-relay/internal/logging"
)

// DefaultCookieDomain is applied to cookies that carry no domain.
const DefaultCookieDomain = ".tiktok.com"

// MobileHeaders returns the default outbound headers: an iOS Safari identity
// that the upstream serves mobile web payloads to.
func MobileHeaders() http.Header {
	h := make(http.Header)
	h.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 15_5 like Mac OS X) "+
		"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.5 Mobile/15E148 Safari/604.1")
	h.Set("Referer", "https://www.tiktok.com/foryou")
	h.Set("Accept", "application/json, text/plain, */*")
	return h
}

// Config holds everything a Session is built from.
type Config struct {
	Cookies []Cookie
	// Headers replaces MobileHeaders when non-nil.
	Headers http.Header
	// Transport replaces a clone of http.DefaultTransport when non-nil.
	Transport http.RoundTripper
}

// Session carries upstream authentication state and default outbound
// headers. It is immutable after New and safe for concurrent use.
type Session struct {
	client  *http.Client
	headers http.Header
	cookies []Cookie
}

// New builds a Session, seeding a cookie jar with cfg.Cookies.
func New(cfg Config) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	for _, c := range cfg.Cookies {
		domain := c.Domain
		if domain == "" {
			domain = DefaultCookieDomain
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		u := &url.URL{Scheme: "https", Host: strings.TrimPrefix(domain, "."), Path: "/"}
		jar.SetCookies(u, []*http.Cookie{{
			Name:   c.Name,
			Value:  c.Value,
			Domain: domain,
			Path:   path,
		}})
	}

	headers := cfg.Headers
	if headers == nil {
		headers = MobileHeaders()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Session{
		client: &http.Client{
			Transport: transport,
			Jar:       &frozenJar{jar: jar},
		},
		headers: headers.Clone(),
		cookies: append([]Cookie(nil), cfg.Cookies...),
	}, nil
}

// NewRequest creates a request carrying the session's default headers.
func (s *Session) NewRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range s.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	return req, nil
}

// Do sends req with the session's cookies.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.client.Do(req)
}

// Headers returns a copy of the default outbound headers.
func (s *Session) Headers() http.Header {
	return s.headers.Clone()
}

// CookieCount returns the number of cookies the session was seeded with.
func (s *Session) CookieCount() int {
	return len(s.cookies)
}

// Secrets returns the cookie values, for masking in logs.
func (s *Session) Secrets() []string {
	res := make([]string, 0, len(s.cookies))
	for _, c := range s.cookies {
		res = append(res, c.Value)
	}
	return res
}

// frozenJar serves the seeded cookies and drops anything the upstream tries
// to set, keeping the session read-only after construction.
type frozenJar struct {
	jar http.CookieJar
}

func (j *frozenJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) > 0 {
		logging.Debug("Ignoring %d cookies set by %s", len(cookies), u.Host)
	}
}

func (j *frozenJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}
