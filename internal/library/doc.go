// Package library is the entry point for user-facing metadata operations.
//
// It owns the visible set (the records matching the current Filter), routes
// every edit through the edit history so it can be undone, and implements
// the player's observer so open counts and resume positions are persisted.
// Changing the filter clears the preview cache, since the previews of
// records that left the view are unlikely to be requested again soon.
package library
