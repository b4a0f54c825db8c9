// Package feed implements cursor pagination for the history, recommend and search feeds.
//
// A [Controller] owns one feed. [Controller.LoadNext] appends the next page
// (or replaces the items when resetting) and never runs two loads at once.
// When the recommend feed runs out it asks the backend for a deeper candidate
// pool, one depth step at a time up to a cap; past the cap expansion stays
// off until [Controller.Reset].
//
// The recommend controller also sends implicit feedback:
//   - impressions, coalesced by item key and flushed after a quiet window
//   - dislikes, removed from the feed after a short delay once the backend accepts them
//   - touches (opens), deduplicated per item and sent in the background
//
// Timers go through [shared.Clock] so tests can drive them with a fake clock.
//
// [Dashboard] ties the three controllers together with the active tab,
// search filters and debounced tag suggestions.
package feed
