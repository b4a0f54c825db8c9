// Package tasks runs the client's long-running operations with real-time progress reporting.
//
// # Core Operations
//
//  1. [Engine.ExportFeeds] : walk the history and recommend feeds page by page
//     - A shared [rate.Limiter] paces page requests across feeds
//     - Walking stops at has_more=false or at the page cap
//     - Items repeated across pages are dropped
//     - Each page is cached through the optional [ItemCacher]
//     - One file per feed plus export_manifest.json
//
//  2. [Engine.ExportTranscripts] : write chat transcripts with a bounded errgroup worker pool
//
//  3. [Engine.WatchTasks] : follow the backend task stream and report failures
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
package tasks
