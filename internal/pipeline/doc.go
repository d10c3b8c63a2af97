// Package pipeline derives preview artifacts for library records in the
// background.
//
// A Pipeline processes records strictly one at a time and persists each
// result before moving on, which bounds peak memory while video frames are
// being decoded. Cancellation is cooperative and only takes effect between
// records, so the record in flight always finishes and is written.
//
// For every record the pipeline first checks that the file is still
// reachable. An unreachable file keeps its thumbnail and playability and only
// gets a diagnostic appended to its description. Otherwise the primary frame
// is rendered: success stores the thumbnail and marks the record playable,
// failure marks it unplayable with the probe's error as description.
//
// Timeline previews are read through a PreviewCache: cache, then store, then
// a fresh render which is persisted and cached.
package pipeline
