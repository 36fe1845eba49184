package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"feed-relay/internal/feed"
	"feed-relay/internal/logging"
)

// FeedResponse is the body of GET /fyp. Error is set when the upstream
// failed; the response is still a 200 with an empty video list.
type FeedResponse struct {
	Cursor string      `json:"cursor"`
	Videos []feed.Item `json:"videos"`
	Error  string      `json:"error,omitempty"`
}

// GetFeed returns one page of the recommendation feed.
// GET /fyp?cursor=&count=
func (h *Handlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	cursor := query.Get("cursor")

	count := DefaultFeedCount
	if countStr := query.Get("count"); countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil || n <= 0 {
			writeJSONError(w, "count must be a positive integer", http.StatusBadRequest)
			return
		}
		count = n
	}

	page, err := h.feed.FetchPage(r.Context(), cursor, count, requestOrigin(r, h.trustProxyHeaders))
	if errors.Is(err, feed.ErrInvalidArgument) {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := FeedResponse{Cursor: page.Cursor, Videos: page.Items}
	if resp.Videos == nil {
		resp.Videos = []feed.Item{}
	}
	if err != nil {
		logging.Warn("Feed request failed: %v", err)
		resp.Error = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, resp)
}
