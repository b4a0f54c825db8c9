// Package models holds the types exchanged with the AutoEhHunter web API and
// persisted by the local cache.
//
// [FeedItem] keeps the raw server object next to its decoded fields so that
// exports and the sqlite cache store exactly what the server sent.
package models
