// Package tasks runs long playlist operations against the gateway with progress reporting.
//
// # Bulk Export
//
// [Exporter.BulkExport] fetches playlists through a [PlaylistSource] and writes each one in a
// [formatter] format. A rate limiter paces the fetches and a bounded worker pool writes the files.
// One failed playlist does not stop the others. A manifest summarizing every result is written
// next to the exports.
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends never block: when the
// channel is full the update is dropped.
package tasks
