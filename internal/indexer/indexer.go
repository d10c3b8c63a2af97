package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"media-library/internal/database"
	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// ErrSyncInProgress is returned by Sync when another pass is running.
var ErrSyncInProgress = errors.New("sync already in progress")

// Default polling interval for change detection
const defaultPollInterval = 30 * time.Second

// Store is the part of the persistent store a sync pass needs.
type Store interface {
	AllRecords(ctx context.Context) ([]database.Record, error)
	ThumbnailIDs(ctx context.Context) (map[string]bool, error)
	UpsertRecords(ctx context.Context, records []database.Record) error
}

// Phase labels reported while syncing.
const (
	PhaseIdle        = "idle"
	PhaseEnumerating = "enumerating"
	PhaseReconciling = "reconciling"
	PhaseWriting     = "writing"
)

// SyncProgress tracks the current sync pass
type SyncProgress struct {
	Phase      string    `json:"phase"`
	FilesFound int64     `json:"filesFound"`
	IsSyncing  bool      `json:"isSyncing"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
}

// SyncResult is the outcome of one sync pass.
type SyncResult struct {
	Plan
	Files     int           `json:"files"`
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Indexer runs sync passes against one library root and store.
type Indexer struct {
	store    Store
	enum     Enumerator
	mediaDir string
	newID    func() string
	now      func() time.Time

	pollInterval time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once

	syncMu       sync.Mutex
	isSyncing    bool
	lastSyncTime time.Time
	lastErr      error

	filesFound atomic.Int64
	progress   atomic.Value

	onSyncComplete func(*SyncResult)

	// Last known state for lightweight change detection
	stateMu            sync.RWMutex
	lastRootModTime    time.Time
	lastTopLevelCount  int
	lastSubdirModTimes map[string]time.Time
}

// New creates an Indexer. mediaDir is only used by the polling loop; the
// enumerator decides what a pass sees.
func New(store Store, enum Enumerator, mediaDir string) *Indexer {
	idx := &Indexer{
		store:              store,
		enum:               enum,
		mediaDir:           mediaDir,
		newID:              uuid.NewString,
		now:                time.Now,
		pollInterval:       defaultPollInterval,
		stopChan:           make(chan struct{}),
		lastSubdirModTimes: make(map[string]time.Time),
	}
	idx.progress.Store(SyncProgress{Phase: PhaseIdle})
	return idx
}

// SetPollInterval sets the interval for polling-based change detection.
func (idx *Indexer) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		idx.pollInterval = interval
	}
}

// SetOnSyncComplete sets a callback invoked after every successful pass.
func (idx *Indexer) SetOnSyncComplete(callback func(*SyncResult)) {
	idx.onSyncComplete = callback
}

// Sync runs one enumerate, reconcile and write pass. The plan's upserts
// are written in a single batch, so a failed pass leaves the store as it was.
func (idx *Indexer) Sync(ctx context.Context) (*SyncResult, error) {
	if !idx.tryStartSync() {
		return nil, ErrSyncInProgress
	}

	result, err := idx.runSync(ctx)
	idx.finishSync(err)
	if err != nil {
		metrics.SyncErrors.Inc()
		return nil, err
	}

	idx.updateLastKnownState()

	if idx.onSyncComplete != nil {
		idx.onSyncComplete(result)
	}
	return result, nil
}

func (idx *Indexer) runSync(ctx context.Context) (*SyncResult, error) {
	metrics.SyncIsRunning.Set(1)
	defer metrics.SyncIsRunning.Set(0)
	metrics.SyncRunsTotal.Inc()

	startTime := idx.now()
	logging.Info("Starting library sync...")

	idx.setPhase(PhaseEnumerating, startTime)
	observed, err := idx.enum.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	idx.filesFound.Store(int64(len(observed)))

	idx.setPhase(PhaseReconciling, startTime)
	existing, err := idx.store.AllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	thumbs, err := idx.store.ThumbnailIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load thumbnail index: %w", err)
	}

	plan := Reconcile(observed, existing, func(id string) bool { return thumbs[id] }, idx.newID, startTime)

	idx.setPhase(PhaseWriting, startTime)
	if err := idx.store.UpsertRecords(ctx, plan.Upserts); err != nil {
		return nil, fmt.Errorf("failed to write sync plan: %w", err)
	}

	elapsed := time.Since(startTime)
	metrics.SyncLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.SyncLastRunDuration.Set(elapsed.Seconds())
	metrics.SyncRecordChanges.WithLabelValues("added").Add(float64(plan.Added))
	metrics.SyncRecordChanges.WithLabelValues("changed").Add(float64(plan.Changed))
	metrics.SyncRecordChanges.WithLabelValues("restored").Add(float64(plan.Restored))
	metrics.SyncRecordChanges.WithLabelValues("missing").Add(float64(plan.Missing))

	logging.Info("Sync complete: %d files, %d added, %d changed, %d restored, %d missing, %d to regenerate in %v",
		len(observed), plan.Added, plan.Changed, plan.Restored, plan.Missing, len(plan.Regenerate), elapsed)

	return &SyncResult{
		Plan:      plan,
		Files:     len(observed),
		StartedAt: startTime,
		Elapsed:   elapsed,
	}, nil
}

// tryStartSync atomically checks if a sync is running and starts one if not.
func (idx *Indexer) tryStartSync() bool {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()
	if idx.isSyncing {
		return false
	}
	idx.isSyncing = true
	idx.filesFound.Store(0)
	return true
}

func (idx *Indexer) finishSync(err error) {
	idx.syncMu.Lock()
	idx.isSyncing = false
	idx.lastErr = err
	if err == nil {
		idx.lastSyncTime = time.Now()
	}
	idx.syncMu.Unlock()
	idx.progress.Store(SyncProgress{Phase: PhaseIdle, FilesFound: idx.filesFound.Load()})
}

func (idx *Indexer) setPhase(phase string, startedAt time.Time) {
	idx.progress.Store(SyncProgress{
		Phase:      phase,
		FilesFound: idx.filesFound.Load(),
		IsSyncing:  true,
		StartedAt:  startedAt,
	})
}

// IsSyncing reports whether a pass is running.
func (idx *Indexer) IsSyncing() bool {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()
	return idx.isSyncing
}

// LastSyncTime returns when the last successful pass finished.
func (idx *Indexer) LastSyncTime() time.Time {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()
	return idx.lastSyncTime
}

// LastError returns the error of the most recent pass, if it failed.
func (idx *Indexer) LastError() error {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()
	return idx.lastErr
}

// GetProgress returns the current sync progress.
func (idx *Indexer) GetProgress() SyncProgress {
	if p, ok := idx.progress.Load().(SyncProgress); ok {
		return p
	}
	return SyncProgress{Phase: PhaseIdle}
}

// Start begins polling-based change detection. Each detected change runs a
// sync pass with ctx.
func (idx *Indexer) Start(ctx context.Context) {
	idx.updateLastKnownState()
	go idx.pollForChanges(ctx)
}

// Stop stops the polling loop. It is safe to call more than once.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })
}

// pollForChanges periodically checks for file changes.
func (idx *Indexer) pollForChanges(ctx context.Context) {
	logging.Info("Starting change detection polling (interval: %v)", idx.pollInterval)

	ticker := time.NewTicker(idx.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := idx.detectChanges()
			if err != nil {
				logging.Error("Error detecting changes: %v", err)
				continue
			}
			if changed {
				logging.Info("Library changes detected, triggering sync")
				if _, err := idx.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
					logging.Error("Sync after change detection failed: %v", err)
				}
			}
		case <-ctx.Done():
			return
		case <-idx.stopChan:
			logging.Info("Change detection polling stopped")
			return
		}
	}
}

// detectChanges performs a lightweight check of the root directory's
// modification time, its entry count and the modification times of its
// immediate subdirectories, avoiding a full recursive walk.
func (idx *Indexer) detectChanges() (bool, error) {
	rootInfo, err := os.Stat(idx.mediaDir)
	if err != nil {
		return false, fmt.Errorf("failed to stat media directory: %w", err)
	}

	idx.stateMu.RLock()
	lastRootModTime := idx.lastRootModTime
	lastTopLevelCount := idx.lastTopLevelCount
	idx.stateMu.RUnlock()

	if rootInfo.ModTime().After(lastRootModTime) {
		logging.Debug("Root directory modified: %v > %v", rootInfo.ModTime(), lastRootModTime)
		return true, nil
	}

	entries, err := os.ReadDir(idx.mediaDir)
	if err != nil {
		return false, fmt.Errorf("failed to read media directory: %w", err)
	}

	if n := countVisible(entries); n != lastTopLevelCount {
		logging.Debug("Top-level count changed: %d -> %d", lastTopLevelCount, n)
		return true, nil
	}

	return idx.checkSubdirectories(entries), nil
}

// checkSubdirectories reports whether any top-level subdirectory is new or
// was modified since the last pass.
func (idx *Indexer) checkSubdirectories(entries []fs.DirEntry) bool {
	idx.stateMu.RLock()
	last := idx.lastSubdirModTimes
	idx.stateMu.RUnlock()

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := os.Stat(filepath.Join(idx.mediaDir, entry.Name()))
		if err != nil {
			continue
		}
		lastMod, exists := last[entry.Name()]
		if !exists {
			logging.Debug("New subdirectory detected: %s", entry.Name())
			return true
		}
		if info.ModTime().After(lastMod) {
			logging.Debug("Subdirectory %s modified: %v > %v", entry.Name(), info.ModTime(), lastMod)
			return true
		}
	}
	return false
}

// updateLastKnownState records the state detectChanges compares against.
func (idx *Indexer) updateLastKnownState() {
	if idx.mediaDir == "" {
		return
	}
	rootInfo, err := os.Stat(idx.mediaDir)
	if err != nil {
		logging.Warn("Failed to stat media directory for state update: %v", err)
		return
	}
	entries, err := os.ReadDir(idx.mediaDir)
	if err != nil {
		logging.Warn("Failed to read media directory for state update: %v", err)
		return
	}

	subdirModTimes := make(map[string]time.Time)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if info, err := os.Stat(filepath.Join(idx.mediaDir, entry.Name())); err == nil {
			subdirModTimes[entry.Name()] = info.ModTime()
		}
	}

	idx.stateMu.Lock()
	idx.lastRootModTime = rootInfo.ModTime()
	idx.lastTopLevelCount = countVisible(entries)
	idx.lastSubdirModTimes = subdirModTimes
	idx.stateMu.Unlock()
}

func countVisible(entries []fs.DirEntry) int {
	n := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), ".") {
			n++
		}
	}
	return n
}
