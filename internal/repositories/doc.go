// Package repositories implements SQLite persistence for the local cache.
//
// Key Implementations:
//   - [ItemRepository] : feed items keyed by gid and lowercased token, with the feed they were last seen in
//   - [SessionRepository] : chat transcripts, one row per message ordered by position
//   - [AuthRepository] : the saved cookie jar and CSRF token per API base URL
//
// Adapters connect the repositories to the rest of the client:
//   - [ItemCacheAdapter] caches pages walked by feed exports
//   - [SessionCache] saves the chat store's sessions and serves transcripts to exports
package repositories
