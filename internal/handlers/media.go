package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"feed-relay/internal/logging"
	"feed-relay/internal/mediacache"
)

// GetMedia serves a cached, transcoded video, populating the cache on first
// access. Both URL forms are accepted:
//
//	GET /media/{key}?src=<source url>
//	GET /media?file=<key>&url=<source url>
func (h *Handlers) GetMedia(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	key, src := mux.Vars(r)["key"], query.Get("src")
	if key == "" {
		key, src = query.Get("file"), query.Get("url")
	}
	if key == "" || src == "" {
		writeJSONError(w, "missing file or url", http.StatusBadRequest)
		return
	}

	handle, err := h.media.Serve(r.Context(), key, src)
	if err != nil {
		switch {
		case errors.Is(err, mediacache.ErrInvalidArgument):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case r.Context().Err() != nil:
			// the proxy's own timeouts also wrap context errors, so only
			// the request context says whether the client left
			logging.Debug("Client went away while waiting for %s", key)
		default:
			logging.Error("Failed to serve %s: %v", key, err)
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	f, err := handle.Open()
	if err != nil {
		logging.Error("Failed to open cached %s: %v", key, err)
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	// Published entries never change.
	w.Header().Set("Content-Type", handle.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set(mediacache.OutcomeHeader, handle.Outcome)
	http.ServeContent(w, r, handle.Key, handle.ModTime, f)
}
