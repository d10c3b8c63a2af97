// Package handlers provides the HTTP API of the media library.
//
// It includes handlers for:
//   - Listing, filtering and editing records, with undo and redo
//   - Thumbnails, timeline previews and on-demand regeneration
//   - Sync, processing and duration scan jobs and their progress
//   - Playlists in JSON and WPL form, store and selection exports
//   - The player state machine
//   - Health checks, version and Prometheus metrics
package handlers
