/*
Package workers sizes the goroutine pools used while walking the library.

GOMAXPROCS follows the container CPU limit, so pool sizes derive from it
rather than runtime.NumCPU:

	n := workers.Size(workers.Disk, 8)    // 2 per CPU, at most 8
	n := workers.Size(workers.Compute, 4) // 1 per CPU, at most 4

Operators can pin the size with INDEX_WORKERS; the limit still applies.
*/
package workers
