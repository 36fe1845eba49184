package mediacache

import (
	"net/url"
	"strings"
)

// MediaRoute is the path prefix under which cached media is served.
const MediaRoute = "/media"

// KeyFor derives the cache key for an upstream media id.
func KeyFor(id string) string {
	return id + ".mp4"
}

// MediaURL builds the client-facing URL for key, carrying src so the proxy can
// fetch it on first access: {scheme}://{host}/media/{key}?src={src}.
func MediaURL(scheme, host, key, src string) string {
	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     MediaRoute + "/" + key,
		RawPath:  MediaRoute + "/" + url.PathEscape(key),
		RawQuery: "src=" + url.QueryEscape(src),
	}
	return u.String()
}

// ValidKey reports whether key can be used as a cache file name: non-empty,
// a single path element, and not hidden (the staging area is a dot-directory).
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	if strings.HasPrefix(key, ".") {
		return false
	}
	if strings.ContainsAny(key, "/\\\x00") {
		return false
	}
	return true
}
