package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"media-library/internal/filesystem"
	"media-library/internal/logging"
)

// ErrEnumeration is returned when the library folder cannot be listed.
// Nothing is written when it occurs.
var ErrEnumeration = errors.New("library enumeration failed")

// ObservedFile is one regular file found under the library root.
type ObservedFile struct {
	RelPath      string // slash-separated, relative to the root
	Size         int64
	LastModified int64  // unix milliseconds
	Handle       string // absolute path used to open the file
}

// Enumerator lists the files currently in the library.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]ObservedFile, error)
}

// FSEnumerator walks a directory tree on the local filesystem.
type FSEnumerator struct {
	Root       string
	Workers    int  // concurrent directory reads, 0 means 3
	SkipHidden bool // skip names starting with "."
	Retry      filesystem.RetryConfig
}

// NewFSEnumerator returns an enumerator for root with default settings.
func NewFSEnumerator(root string) *FSEnumerator {
	return &FSEnumerator{
		Root:       root,
		Workers:    3,
		SkipHidden: true,
		Retry:      filesystem.DefaultRetryConfig(),
	}
}

// Enumerate returns every regular file under the root, sorted by path. Any
// directory that cannot be read fails the whole enumeration: a partial
// listing would make the unread subtree look deleted.
func (e *FSEnumerator) Enumerate(ctx context.Context) ([]ObservedFile, error) {
	info, err := filesystem.StatWithRetry(e.Root, e.Retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrEnumeration, e.Root)
	}

	workers := e.Workers
	if workers <= 0 {
		workers = 3
	}

	w := &walk{
		enum: e,
		ctx:  ctx,
		sem:  make(chan struct{}, workers),
	}
	w.wg.Add(1)
	go w.visit("")
	w.wg.Wait()

	if w.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, w.err)
	}

	sort.Slice(w.files, func(i, j int) bool { return w.files[i].RelPath < w.files[j].RelPath })
	logging.Debug("Enumerated %d files under %s", len(w.files), e.Root)
	return w.files, nil
}

type walk struct {
	enum *FSEnumerator
	ctx  context.Context
	sem  chan struct{}
	wg   sync.WaitGroup

	mu    sync.Mutex
	files []ObservedFile
	err   error
}

func (w *walk) fail(err error) {
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}

func (w *walk) failed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err != nil
}

func (w *walk) visit(rel string) {
	defer w.wg.Done()

	if err := w.ctx.Err(); err != nil {
		w.fail(err)
		return
	}
	if w.failed() {
		return
	}

	dir := filepath.Join(w.enum.Root, filepath.FromSlash(rel))

	w.sem <- struct{}{}
	entries, err := filesystem.ReadDirWithRetry(dir, w.enum.Retry)
	<-w.sem
	if err != nil {
		w.fail(err)
		return
	}

	var found []ObservedFile
	for _, entry := range entries {
		name := entry.Name()
		if w.enum.SkipHidden && strings.HasPrefix(name, ".") {
			continue
		}
		childRel := path.Join(rel, name)
		abs := filepath.Join(dir, name)

		if entry.IsDir() {
			w.wg.Add(1)
			go w.visit(childRel)
			continue
		}

		var info fs.FileInfo
		if entry.Type()&fs.ModeSymlink != 0 {
			// Follow links to files; linked directories are skipped to avoid cycles.
			info, err = os.Stat(abs)
		} else {
			info, err = entry.Info()
		}
		if err != nil {
			logging.Debug("Skipping %s: %v", abs, err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		found = append(found, ObservedFile{
			RelPath:      childRel,
			Size:         info.Size(),
			LastModified: info.ModTime().UnixMilli(),
			Handle:       abs,
		})
	}

	w.mu.Lock()
	w.files = append(w.files, found...)
	w.mu.Unlock()
}
