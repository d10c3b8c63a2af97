package media

import (
	"errors"
	"fmt"
	"sync"

	exif "github.com/barasher/go-exiftool"

	"media-library/internal/logging"
)

// exifReader wraps a long-lived exiftool process. It is started on first use;
// if exiftool is not installed the reader disables itself.
type exifReader struct {
	mu       sync.Mutex
	et       *exif.Exiftool
	started  bool
	startErr error
}

func newExifReader() *exifReader {
	return &exifReader{}
}

func (r *exifReader) tool() (*exif.Exiftool, error) {
	if !r.started {
		r.started = true
		r.et, r.startErr = exif.NewExiftool()
		if r.startErr != nil {
			logging.Warn("exiftool unavailable, duration fallback disabled: %v", r.startErr)
		}
	}
	return r.et, r.startErr
}

// Duration reads the Duration tag of path.
func (r *exifReader) Duration(path string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	et, err := r.tool()
	if err != nil {
		return 0, err
	}

	meta := et.ExtractMetadata(path)
	if len(meta) == 0 {
		return 0, errors.New("exiftool returned no metadata")
	}
	if meta[0].Err != nil {
		return 0, meta[0].Err
	}
	return exifDuration(meta[0].Fields)
}

// exifDuration interprets the Duration field, which exiftool reports either
// as a number or as formatted text.
func exifDuration(fields map[string]interface{}) (float64, error) {
	v, ok := fields["Duration"]
	if !ok {
		return 0, errors.New("no Duration tag")
	}
	switch d := v.(type) {
	case float64:
		if d < 0 {
			return 0, fmt.Errorf("negative duration %v", d)
		}
		return d, nil
	case string:
		return parseSeconds(d)
	default:
		return 0, fmt.Errorf("unexpected Duration type %T", v)
	}
}

func (r *exifReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.et == nil {
		return nil
	}
	err := r.et.Close()
	r.et = nil
	return err
}
