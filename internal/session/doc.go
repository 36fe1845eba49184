// Package session holds the upstream authentication state shared by the feed
// aggregator and the media cache proxy.
//
// A [Session] is built once at startup from the cookie store and a set of
// default outbound headers, then passed explicitly to every component that
// talks to the upstream. Cookies set by upstream responses are ignored, so a
// Session never changes after [New] returns.
package session
