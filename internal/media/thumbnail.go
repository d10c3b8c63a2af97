package media

import (
	"bytes"
	"errors"
	"fmt"

	// Frame decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP frame support
	_ "golang.org/x/image/webp" // WebP frame support

	"media-library/internal/logging"
)

const thumbnailQuality = 85

// EncodeThumbnail decodes an image, scales it to fit within size x size
// keeping its aspect ratio, and returns it as JPEG. Frames already smaller
// than the box are not enlarged.
func EncodeThumbnail(raw []byte, size int) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty frame")
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %d", size)
	}

	if IsVipsAvailable() {
		out, err := thumbnailWithVips(raw, size)
		if err == nil {
			return out, nil
		}
		logging.Debug("vips thumbnail failed, using imaging: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	img = imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
