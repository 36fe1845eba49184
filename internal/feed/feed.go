package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"feed-relay/internal/logging"
	"feed-relay/internal/mediacache"
	"feed-relay/internal/metrics"
)

// Sentinel errors for feed operations.
var (
	// ErrInvalidArgument indicates bad caller input; no request was made.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstreamProtocol indicates the upstream response body could not be decoded.
	ErrUpstreamProtocol = errors.New("upstream protocol error")

	// ErrUpstreamRequest indicates the upstream could not be reached within the
	// configured timeout and retries.
	ErrUpstreamRequest = errors.New("upstream request failed")
)

// errClientStatus stops retries when the upstream rejects the request.
var errClientStatus = errors.New("client error status")

const (
	// DefaultEndpoint is the recommendation endpoint relative to the upstream base.
	DefaultEndpoint = "api/recommend/item_list/"
	// DefaultTimeout bounds one page request including retries.
	DefaultTimeout = 15 * time.Second
	// placeholderDescription is used when an entry has no description field.
	placeholderDescription = "(no title)"
	// maxBodySize caps the upstream response read into memory.
	maxBodySize = 16 << 20
)

// Requester issues upstream requests. *session.Session implements it.
type Requester interface {
	NewRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

// Item is a normalized feed entry.
type Item struct {
	ID          string `json:"id"`
	Description string `json:"desc"`
	VideoURL    string `json:"video_url"`
}

// Page is one page of normalized items plus the cursor for the next page.
type Page struct {
	Cursor string `json:"cursor"`
	Items  []Item `json:"videos"`
}

// Origin is the scheme and host clients reach the relay on; media URLs in a
// page point back at it.
type Origin struct {
	Scheme string
	Host   string
}

// Config configures an Aggregator.
type Config struct {
	// BaseURL is the upstream root, e.g. "https://m.tiktok.com/".
	BaseURL string
	// Timeout bounds a page request including retries.
	Timeout time.Duration
	// Retries is the number of additional attempts after a transport failure.
	Retries int
	// RetryDelay is the initial backoff between attempts.
	RetryDelay time.Duration
	// NewCursor generates pagination tokens. Defaults to NewCursor.
	NewCursor func() string
}

// Aggregator pages through the upstream recommendation feed.
type Aggregator struct {
	requester  Requester
	endpoint   string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	newCursor  func() string
}

// New creates an Aggregator that talks to the upstream through requester.
func New(requester Requester, cfg Config) (*Aggregator, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: upstream base url %q", ErrInvalidArgument, cfg.BaseURL)
	}
	endpoint := base.ResolveReference(&url.URL{Path: DefaultEndpoint})

	a := &Aggregator{
		requester:  requester,
		endpoint:   endpoint.String(),
		timeout:    cfg.Timeout,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		newCursor:  cfg.NewCursor,
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.retries < 0 {
		a.retries = 0
	}
	if a.retryDelay <= 0 {
		a.retryDelay = 200 * time.Millisecond
	}
	if a.newCursor == nil {
		a.newCursor = NewCursor
	}
	return a, nil
}

// FetchPage requests one page of count items starting at cursor. An empty
// cursor is replaced with a generated one. The returned page always carries a
// freshly generated cursor; on an upstream failure it carries no items and
// the error describes the failure.
func (a *Aggregator) FetchPage(ctx context.Context, cursor string, count int, origin Origin) (Page, error) {
	if count <= 0 {
		return Page{}, fmt.Errorf("%w: count must be positive, got %d", ErrInvalidArgument, count)
	}
	if origin.Host == "" {
		return Page{}, fmt.Errorf("%w: origin host is required", ErrInvalidArgument)
	}
	if origin.Scheme == "" {
		origin.Scheme = "http"
	}
	if cursor == "" {
		cursor = a.newCursor()
	}

	start := time.Now()
	body, err := a.fetch(ctx, cursor, count)
	metrics.FeedPageDuration.Observe(time.Since(start).Seconds())

	page := Page{Cursor: a.newCursor(), Items: []Item{}}
	if err != nil {
		metrics.FeedPagesTotal.WithLabelValues("request_error").Inc()
		return page, err
	}

	items, dropped, err := parseItems(body)
	if err != nil {
		metrics.FeedPagesTotal.WithLabelValues("protocol_error").Inc()
		return page, err
	}

	for _, it := range items {
		key := mediacache.KeyFor(it.id)
		page.Items = append(page.Items, Item{
			ID:          it.id,
			Description: it.description,
			VideoURL:    mediacache.MediaURL(origin.Scheme, origin.Host, key, it.playURL),
		})
	}

	metrics.FeedPagesTotal.WithLabelValues("success").Inc()
	metrics.FeedItemsTotal.WithLabelValues("delivered").Add(float64(len(page.Items)))
	metrics.FeedItemsTotal.WithLabelValues("dropped").Add(float64(dropped))
	logging.Info("Delivered %d videos, dropped %d (next_cursor=%s)", len(page.Items), dropped, page.Cursor)

	return page, nil
}

// fetch performs the upstream GET, retrying transport failures.
func (a *Aggregator) fetch(ctx context.Context, cursor string, count int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	q.Set("aid", "1988")
	q.Set("cookie_enabled", "true")
	q.Set("screen_width", "720")
	q.Set("screen_height", "1280")
	q.Set("region", "US")
	q.Set("language", "en")
	q.Set("cursor", cursor)
	target := a.endpoint + "?" + q.Encode()

	var body []byte
	var statusErr error
	attempt := 0
	retrier := repeater.NewBackoff(a.retries+1, a.retryDelay, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		if attempt > 0 {
			metrics.FeedUpstreamRetries.Inc()
			logging.Debug("Retrying upstream feed request (attempt %d)", attempt+1)
		}
		attempt++

		req, err := a.requester.NewRequest(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := a.requester.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		logging.Info("Upstream feed status: %d", resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("upstream status %d", resp.StatusCode)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			statusErr = fmt.Errorf("upstream status %d", resp.StatusCode)
			return errClientStatus
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return err
	}, errClientStatus)
	if statusErr != nil {
		logging.Warn("Upstream feed request rejected: %v", statusErr)
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRequest, statusErr)
	}
	if err != nil {
		logging.Warn("Upstream feed request failed after %d attempts: %v", attempt, err)
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRequest, err)
	}
	return body, nil
}

// extracted is an upstream entry that yielded a playable URL.
type extracted struct {
	id          string
	description string
	playURL     string
}

type rawPage struct {
	ItemList []json.RawMessage `json:"itemList"`
}

type rawItem struct {
	ID    json.RawMessage `json:"id"`
	Desc  *string         `json:"desc"`
	Video *struct {
		PlayAddr json.RawMessage `json:"playAddr"`
	} `json:"video"`
}

// parseItems decodes an upstream page body. Entries that are not objects,
// lack an id, or carry no playable URL are counted as dropped.
func parseItems(body []byte) ([]extracted, int, error) {
	var page rawPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrUpstreamProtocol, err)
	}

	items := make([]extracted, 0, len(page.ItemList))
	dropped := 0
	for _, entry := range page.ItemList {
		var raw rawItem
		if err := json.Unmarshal(entry, &raw); err != nil {
			dropped++
			continue
		}

		id := scalarString(raw.ID)
		if id == "" || raw.Video == nil {
			dropped++
			continue
		}

		playURL := firstPlayURL(raw.Video.PlayAddr)
		if playURL == "" {
			dropped++
			continue
		}

		desc := placeholderDescription
		if raw.Desc != nil {
			desc = *raw.Desc
		}
		items = append(items, extracted{id: id, description: desc, playURL: playURL})
	}

	return items, dropped, nil
}

// firstPlayURL extracts the first playable URL from a playAddr value, which
// the upstream encodes as {"url_list": [...]}, a bare list, or a string.
func firstPlayURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		return firstString(list)
	}

	var obj struct {
		URLList []any `json:"url_list"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return firstString(obj.URLList)
	}

	return ""
}

func firstString(values []any) string {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// scalarString renders a JSON string or number as a plain string.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
