// Package feed pages through the upstream recommendation endpoint and
// normalizes its entries into [Item] values whose media URLs point at the
// relay's cache proxy rather than at the upstream CDN.
//
// The upstream payload is loosely typed: an entry's playAddr may be an object
// with a url_list, a bare list, or a single string, and any field may be
// missing. Entries that yield no playable URL are dropped, never reported as
// errors. Page-level failures come back as an empty page with a fresh cursor
// alongside the error so that infinite-scroll clients keep paginating.
//
// Cursors are always freshly generated. The upstream's own continuation token
// is ignored because clients use the feed for endless scrolling, not for
// exact resumption.
package feed
