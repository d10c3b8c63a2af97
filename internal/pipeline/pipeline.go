package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"media-library/internal/database"
	"media-library/internal/filesystem"
	"media-library/internal/logging"
	"media-library/internal/media"
	"media-library/internal/mediatypes"
	"media-library/internal/metrics"
	"media-library/internal/previewcache"
)

var (
	// ErrAlreadyRunning is returned when a batch is started while another runs.
	ErrAlreadyRunning = errors.New("processing already running")

	// ErrNoPreview is returned when no timeline preview can be produced.
	ErrNoPreview = errors.New("no preview available")
)

// DefaultTimelineFrames is the number of frames in a timeline preview.
const DefaultTimelineFrames = 10

// Store is the part of the persistent store the pipeline uses.
type Store interface {
	Ping(ctx context.Context) error
	GetRecord(ctx context.Context, id string) (database.Record, error)
	AllRecords(ctx context.Context) ([]database.Record, error)
	UpsertRecord(ctx context.Context, rec database.Record) error
	PutThumbnail(ctx context.Context, id string, data []byte) error
	DeleteThumbnail(ctx context.Context, id string) error
	GetTimeline(ctx context.Context, id string) ([][]byte, error)
	PutTimeline(ctx context.Context, id string, frames [][]byte) error
	DeleteTimeline(ctx context.Context, id string) error
}

// Gate blocks between records while processing should pause.
type Gate interface {
	Wait(ctx context.Context) error
}

// Config holds pipeline settings.
type Config struct {
	LibraryDir     string
	TimelineFrames int
	Retry          filesystem.RetryConfig
}

// Outcome is what happened to one record.
type Outcome string

const (
	OutcomeGenerated    Outcome = "generated"
	OutcomeFailed       Outcome = "failed"
	OutcomeInaccessible Outcome = "inaccessible"
	OutcomeSkipped      Outcome = "skipped"
)

// Progress is a snapshot of the running (or last) batch.
type Progress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Phase     string `json:"phase"`
	Running   bool   `json:"running"`
	Canceled  bool   `json:"canceled"`
}

// Summary totals one batch.
type Summary struct {
	Processed    int  `json:"processed"`
	Generated    int  `json:"generated"`
	Failed       int  `json:"failed"`
	Inaccessible int  `json:"inaccessible"`
	Skipped      int  `json:"skipped"`
	Canceled     bool `json:"canceled"`
}

func (s *Summary) add(o Outcome) {
	s.Processed++
	switch o {
	case OutcomeGenerated:
		s.Generated++
	case OutcomeFailed:
		s.Failed++
	case OutcomeInaccessible:
		s.Inaccessible++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// Pipeline runs background preview derivation.
type Pipeline struct {
	store Store
	probe media.Probe
	cache *previewcache.Cache
	gate  Gate
	cfg   Config

	// procMu serializes all probe work, batch or on demand.
	procMu sync.Mutex

	running         atomic.Bool
	cancelRequested atomic.Bool
	progress        atomic.Value

	// stopWait releases a batch blocked in the gate when Cancel is called.
	waitMu   sync.Mutex
	stopWait context.CancelFunc

	onProgress func(Progress)
}

// New creates a Pipeline. gate may be nil.
func New(store Store, probe media.Probe, cache *previewcache.Cache, gate Gate, cfg Config) *Pipeline {
	if cfg.TimelineFrames <= 0 {
		cfg.TimelineFrames = DefaultTimelineFrames
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	if cache == nil {
		cache = previewcache.New(previewcache.DefaultCapacity)
	}
	p := &Pipeline{
		store: store,
		probe: probe,
		cache: cache,
		gate:  gate,
		cfg:   cfg,
	}
	p.progress.Store(Progress{Phase: "idle"})
	return p
}

// SetOnProgress registers a callback invoked after every record.
func (p *Pipeline) SetOnProgress(fn func(Progress)) {
	p.onProgress = fn
}

// Cache returns the preview cache the pipeline reads through.
func (p *Pipeline) Cache() *previewcache.Cache {
	return p.cache
}

// GetProgress returns the current progress snapshot.
func (p *Pipeline) GetProgress() Progress {
	if v, ok := p.progress.Load().(Progress); ok {
		return v
	}
	return Progress{Phase: "idle"}
}

// IsRunning reports whether a batch is in progress.
func (p *Pipeline) IsRunning() bool {
	return p.running.Load()
}

// Cancel asks the running batch to stop after the current record.
func (p *Pipeline) Cancel() {
	if p.running.Load() {
		logging.Info("Processing cancellation requested")
		p.cancelRequested.Store(true)
		p.waitMu.Lock()
		if p.stopWait != nil {
			p.stopWait()
		}
		p.waitMu.Unlock()
	}
}

func (p *Pipeline) setProgress(pr Progress) {
	p.progress.Store(pr)
	metrics.PipelineRemaining.Set(float64(pr.Total - pr.Processed))
	if p.onProgress != nil {
		p.onProgress(pr)
	}
}

// batch runs fn over items one at a time with cancellation and memory
// backpressure checked between items. A store error from fn stops the batch
// and is returned with the summary so far.
func (p *Pipeline) batch(ctx context.Context, label string, total int, fn func(i int) (Outcome, error)) (Summary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRunning
	}
	defer p.running.Store(false)
	p.cancelRequested.Store(false)

	// Only the gate sees waitCtx; in-flight probes finish on ctx.
	waitCtx, stopWait := context.WithCancel(ctx)
	p.waitMu.Lock()
	p.stopWait = stopWait
	p.waitMu.Unlock()
	defer func() {
		p.waitMu.Lock()
		p.stopWait = nil
		p.waitMu.Unlock()
		stopWait()
	}()

	if err := p.store.Ping(ctx); err != nil {
		return Summary{}, err
	}

	metrics.PipelineRunning.Set(1)
	defer metrics.PipelineRunning.Set(0)

	start := time.Now()
	logging.Info("%s: %d records", label, total)

	var sum Summary
	var storeErr error
	p.setProgress(Progress{Total: total, Phase: label, Running: true})

	for i := 0; i < total; i++ {
		if p.cancelRequested.Load() || ctx.Err() != nil {
			sum.Canceled = true
			break
		}
		if p.gate != nil {
			if err := p.gate.Wait(waitCtx); err != nil {
				sum.Canceled = true
				break
			}
		}

		outcome, err := fn(i)
		if err != nil {
			storeErr = err
			break
		}
		sum.add(outcome)
		p.setProgress(Progress{
			Processed: sum.Processed,
			Total:     total,
			Phase:     fmt.Sprintf("%s (%d of %d)", label, sum.Processed, total),
			Running:   true,
		})
	}

	phase := "done"
	switch {
	case storeErr != nil:
		phase = "failed"
		logging.Error("%s stopped after %d of %d records: %v", label, sum.Processed, total, storeErr)
	case sum.Canceled:
		phase = "canceled"
		logging.Info("%s canceled after %d of %d records", label, sum.Processed, total)
	}
	p.setProgress(Progress{
		Processed: sum.Processed,
		Total:     total,
		Phase:     phase,
		Canceled:  sum.Canceled,
	})
	if storeErr != nil {
		return sum, fmt.Errorf("%s: %w", strings.ToLower(label), storeErr)
	}

	logging.Info("%s finished in %v: %d generated, %d failed, %d inaccessible, %d skipped",
		label, time.Since(start), sum.Generated, sum.Failed, sum.Inaccessible, sum.Skipped)
	return sum, nil
}

// Run derives thumbnails for records, in order.
func (p *Pipeline) Run(ctx context.Context, records []database.Record) (Summary, error) {
	return p.batch(ctx, "Generating thumbnails", len(records), func(i int) (Outcome, error) {
		outcome, err := p.processRecord(ctx, records[i].ID, false)
		if err != nil {
			return "", fmt.Errorf("processing %s: %w", records[i].Path, err)
		}
		metrics.PipelineRecordsTotal.WithLabelValues("thumbnail", string(outcome)).Inc()
		return outcome, nil
	})
}

// Pending selects the records a processing pass should visit: present,
// undeleted, playable records without a stored thumbnail. With all set the
// thumbnail check is dropped and records whose last probe failed are retried
// too, as long as their type is playable. Order is preserved.
func Pending(records []database.Record, thumbs map[string]bool, all bool) []database.Record {
	var out []database.Record
	for _, rec := range records {
		if rec.Deleted || rec.NotFound || !mediatypes.IsPlayable(rec.Path) {
			continue
		}
		if all || (rec.Playable && !thumbs[rec.ID]) {
			out = append(out, rec)
		}
	}
	return out
}

// Regenerate re-derives the previews of one record on demand. Stale
// artifacts and the cached timeline are discarded first, unless the file is
// unreachable, in which case they are kept.
func (p *Pipeline) Regenerate(ctx context.Context, id string) (Outcome, error) {
	outcome, err := p.processRecord(ctx, id, true)
	if err == nil {
		metrics.PipelineRecordsTotal.WithLabelValues("regenerate", string(outcome)).Inc()
	}
	return outcome, err
}

func (p *Pipeline) absPath(rec database.Record) string {
	return filepath.Join(p.cfg.LibraryDir, filepath.FromSlash(rec.Path))
}

// processRecord applies the per-record contract. The returned error is
// reserved for store failures; probe failures are an outcome.
func (p *Pipeline) processRecord(ctx context.Context, id string, discardThumbnail bool) (Outcome, error) {
	p.procMu.Lock()
	defer p.procMu.Unlock()

	rec, err := p.store.GetRecord(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", err
	}
	if !mediatypes.IsPlayable(rec.Path) {
		return OutcomeSkipped, nil
	}

	abs := p.absPath(rec)
	if _, err := filesystem.StatWithRetry(abs, p.cfg.Retry); err != nil {
		rec.Description = appendDiagnostic(rec.Description, fmt.Sprintf("File not accessible: %v", err))
		if err := p.store.UpsertRecord(ctx, rec); err != nil {
			return "", err
		}
		return OutcomeInaccessible, nil
	}

	// The file is reachable and about to be re-rendered, so any timeline
	// preview is stale.
	if err := p.store.DeleteTimeline(ctx, id); err != nil {
		return "", err
	}
	p.cache.Delete(id)
	if discardThumbnail {
		if err := p.store.DeleteThumbnail(ctx, id); err != nil {
			return "", err
		}
	}

	thumb, probeErr := p.probe.PrimaryFrame(ctx, abs)
	if probeErr != nil {
		logging.Warn("Thumbnail generation failed for %s: %v", rec.Path, probeErr)
		if err := p.store.DeleteThumbnail(ctx, id); err != nil {
			return "", err
		}
		rec.Playable = false
		rec.Description = diagnostic(probeErr)
		if err := p.store.UpsertRecord(ctx, rec); err != nil {
			return "", err
		}
		return OutcomeFailed, nil
	}

	if err := p.store.PutThumbnail(ctx, id, thumb); err != nil {
		return "", err
	}
	rec.Playable = true
	rec.Description = ""
	if err := p.store.UpsertRecord(ctx, rec); err != nil {
		return "", err
	}
	return OutcomeGenerated, nil
}

// ScanDurations probes the duration of every present, playable record whose
// duration is still unknown.
func (p *Pipeline) ScanDurations(ctx context.Context) (Summary, error) {
	all, err := p.store.AllRecords(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load records: %w", err)
	}

	var pending []database.Record
	for _, rec := range all {
		if rec.Playable && !rec.NotFound && !rec.Deleted && rec.Duration == nil {
			pending = append(pending, rec)
		}
	}

	return p.batch(ctx, "Scanning durations", len(pending), func(i int) (Outcome, error) {
		outcome, err := p.scanDuration(ctx, pending[i].ID)
		if err != nil {
			return "", fmt.Errorf("scanning %s: %w", pending[i].Path, err)
		}
		metrics.PipelineRecordsTotal.WithLabelValues("duration", string(outcome)).Inc()
		return outcome, nil
	})
}

func (p *Pipeline) scanDuration(ctx context.Context, id string) (Outcome, error) {
	p.procMu.Lock()
	defer p.procMu.Unlock()

	rec, err := p.store.GetRecord(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		return "", err
	}
	if rec.Duration != nil {
		return OutcomeSkipped, nil
	}

	abs := p.absPath(rec)
	if _, err := filesystem.StatWithRetry(abs, p.cfg.Retry); err != nil {
		return OutcomeInaccessible, nil
	}

	d, err := p.probe.Duration(ctx, abs)
	if err != nil || d == nil {
		logging.Debug("No duration for %s: %v", rec.Path, err)
		return OutcomeFailed, nil
	}

	rec.Duration = d
	if err := p.store.UpsertRecord(ctx, rec); err != nil {
		return "", err
	}
	return OutcomeGenerated, nil
}

// Timeline returns the timeline preview of a record: from the cache, else
// from the store, else freshly rendered and persisted. Every successful
// result ends up cached.
func (p *Pipeline) Timeline(ctx context.Context, id string) ([][]byte, error) {
	if frames, ok := p.cache.Get(id); ok {
		return frames, nil
	}

	frames, err := p.store.GetTimeline(ctx, id)
	if err == nil {
		p.cache.Set(id, frames)
		return frames, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	rec, err := p.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	p.procMu.Lock()
	frames, err = p.probe.TimelineFrames(ctx, p.absPath(rec), p.cfg.TimelineFrames)
	p.procMu.Unlock()
	if err != nil {
		metrics.PipelineRecordsTotal.WithLabelValues("timeline", string(OutcomeFailed)).Inc()
		return nil, fmt.Errorf("%w: %s: %w", ErrNoPreview, rec.Path, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPreview, rec.Path)
	}

	if err := p.store.PutTimeline(ctx, id, frames); err != nil {
		return nil, err
	}
	p.cache.Set(id, frames)
	metrics.PipelineRecordsTotal.WithLabelValues("timeline", string(OutcomeGenerated)).Inc()
	return frames, nil
}

// InvalidateTimelines drops cached previews of the given records.
func (p *Pipeline) InvalidateTimelines(ids ...string) {
	p.cache.Invalidate(ids...)
}

const maxDiagnosticLen = 500

func diagnostic(err error) string {
	return "Preview generation failed: " + truncate(err.Error(), maxDiagnosticLen)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// appendDiagnostic adds line to a description, skipping exact repeats.
func appendDiagnostic(desc, line string) string {
	if desc == "" {
		return line
	}
	if strings.HasSuffix(desc, line) {
		return desc
	}
	return desc + "\n" + line
}
