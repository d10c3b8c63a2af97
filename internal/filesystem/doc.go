// Package filesystem provides filesystem helpers with retry logic for stale
// NFS file handles.
//
// Library folders frequently live on network shares. A stale handle (ESTALE)
// is transient: the same path usually resolves on the next attempt, so Stat
// and Open are retried with capped exponential backoff. Every other error is
// returned immediately.
package filesystem
