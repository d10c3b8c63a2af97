// Package memory keeps background media processing within a memory budget.
//
// ApplyLimit sets the Go soft memory limit (GOMEMLIMIT) from a container
// limit and a heap ratio. Monitor samples heap usage against that limit and
// acts as a gate: once usage crosses the critical watermark, Wait blocks the
// processing pipeline between records until usage falls back under the high
// watermark.
package memory
