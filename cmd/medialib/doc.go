// Command medialib indexes a local video library and derives its previews.
//
// Usage:
//
//	medialib [--library DIR] <command>
//
// Commands:
//
//	serve             Run the HTTP API. An initial sync runs at startup and
//	                  further passes are triggered by the file watcher,
//	                  polling or POST /api/sync. Records a pass flags for
//	                  regeneration are handed to the processing pipeline.
//	sync              Run one sync pass, then process what it flagged.
//	process           Generate missing thumbnails (--all for every record).
//	durations         Probe unknown durations.
//	regenerate        Re-derive the previews of the given records.
//	export            Write the store as JSON.
//	export-selection  Write the reduced form of the records matching a filter.
//	playlist          list, import, export, import-wpl, export-wpl, delete.
//	purge             Remove records flagged deleted.
//	reset             Clear the store.
//
// Configuration is read from the environment and an optional .env file in
// the working directory; see package startup for the variables.
//
// A progress bar is drawn for processing batches when stderr is a terminal.
package main
