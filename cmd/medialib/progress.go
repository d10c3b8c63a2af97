package main

import (
	"os"
	"sync"

	bar "github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"media-library/internal/pipeline"
)

// progressReporter draws a progress bar for pipeline batches when stderr is
// a terminal. Otherwise the pipeline's own log lines are the only output.
type progressReporter struct {
	mu          sync.Mutex
	description string
	enabled     bool
	bar         *bar.ProgressBar
}

func newProgressReporter(description string) *progressReporter {
	return &progressReporter{
		description: description,
		enabled:     term.IsTerminal(int(os.Stderr.Fd())),
	}
}

func (r *progressReporter) update(p pipeline.Progress) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil {
		if !p.Running || p.Total == 0 {
			return
		}
		r.bar = bar.Default(int64(p.Total), r.description)
	}
	_ = r.bar.Set(p.Processed)
	if !p.Running {
		_ = r.bar.Finish()
		r.bar = nil
	}
}
