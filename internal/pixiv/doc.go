// Package pixiv implements the remote gallery API client: credential login,
// session refresh, paginated record fetch streams, and the raw byte
// transport used by the downloader.
//
// The session is the one piece of state shared across all worker
// goroutines. Expiry checks and re-authentication are serialized so that
// concurrent expiry detection triggers exactly one refresh; losers of the
// race re-check and reuse the winner's session. Every network-requiring
// method verifies session freshness first and fails with an auth error when
// auto re-login is disabled or re-authentication fails.
package pixiv
