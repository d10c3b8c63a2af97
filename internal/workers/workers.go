package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the pool size.
const EnvOverride = "INDEX_WORKERS"

// Load describes what a pool spends its time on.
type Load int

const (
	// Compute pools decode or hash and want one goroutine per CPU.
	Compute Load = iota
	// Disk pools mostly wait on stat and readdir calls.
	Disk
)

func (l Load) perCPU() float64 {
	if l == Disk {
		return 2
	}
	return 1
}

// Size returns the pool size for load on this machine, at least one and at
// most limit (0 means no limit). A positive INDEX_WORKERS value replaces the
// computed size but is still capped.
func Size(load Load, limit int) int {
	n := int(float64(runtime.GOMAXPROCS(0)) * load.perCPU())
	if v, err := strconv.Atoi(os.Getenv(EnvOverride)); err == nil && v > 0 {
		n = v
	}
	return clamp(n, limit)
}

func clamp(n, limit int) int {
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}
