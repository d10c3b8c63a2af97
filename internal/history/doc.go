// Package history makes metadata edits reversible.
//
// Every committed edit pushes the pre-edit snapshots of the affected records
// as one Entry onto the undo stack. Undo and Redo swap an entry between the
// two stacks, persisting the snapshot and capturing the state it replaces so
// the move can be reversed. A single-record edit and a batch edit look the
// same: an entry holding however many records were affected.
package history
