package session

import (
	"encoding/json"
	"fmt"
	"os"

	"feed-relay/internal/logging"
)

// Cookie is a single name/value/domain entry from the credential store.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// LoadCookies reads a browser-exported JSON cookie array from path.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies file: %w", err)
	}
	return ParseCookies(data)
}

// ParseCookies decodes a JSON array of cookie objects. Both lower-case and
// capitalised field names are accepted ("name"/"Name", "value"/"Value",
// "domain"/"Domain", "path"/"Path"). Entries without a name or value are
// skipped with a warning; only a document that is not an array is an error.
func ParseCookies(data []byte) ([]Cookie, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for i, entry := range raw {
		var fields map[string]any
		if err := json.Unmarshal(entry, &fields); err != nil {
			logging.Warn("Skipping bad cookie #%d: not an object", i)
			continue
		}

		c := Cookie{
			Name:   pick(fields, "name", "Name"),
			Value:  pick(fields, "value", "Value"),
			Domain: pick(fields, "domain", "Domain"),
			Path:   pick(fields, "path", "Path"),
		}
		if c.Name == "" {
			logging.Warn("Skipping bad cookie #%d: missing name", i)
			continue
		}
		if _, ok := fields["value"]; !ok {
			if _, ok := fields["Value"]; !ok {
				logging.Warn("Skipping bad cookie #%d (%s): missing value", i, c.Name)
				continue
			}
		}
		if c.Domain == "" {
			c.Domain = DefaultCookieDomain
		}
		cookies = append(cookies, c)
	}

	return cookies, nil
}

// pick returns the first non-empty string value among keys.
func pick(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
