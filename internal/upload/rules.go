package upload

import (
	"errors"
	"fmt"
)

const (
	// DefaultMaxVideoSize is the ceiling for video uploads.
	DefaultMaxVideoSize int64 = 1 << 30
	// DefaultMaxThumbnailSize is the ceiling for thumbnail uploads.
	DefaultMaxThumbnailSize int64 = 10 << 20
)

// ErrTooLarge is wrapped by size rejections.
var ErrTooLarge = errors.New("upload exceeds max size")

// Rule is the size ceiling and media type allow-list of one asset class.
// Types maps each accepted media type to the extension files of that type
// are stored with.
type Rule struct {
	MaxBytes int64
	Types    map[string]string
}

// VideoRule accepts MP4 video up to maxBytes.
func VideoRule(maxBytes int64) Rule {
	return Rule{
		MaxBytes: maxBytes,
		Types:    map[string]string{"video/mp4": ".mp4"},
	}
}

// ThumbnailRule accepts JPEG and PNG images up to maxBytes.
func ThumbnailRule(maxBytes int64) Rule {
	return Rule{
		MaxBytes: maxBytes,
		Types: map[string]string{
			"image/jpeg": ".jpeg",
			"image/png":  ".png",
		},
	}
}

// Check validates the declared size and media type. The type must equal one
// of the accepted values byte for byte: case and parameters are not
// normalised. It returns the accepted media type and the extension files of
// that type are stored with. The content is never inspected.
func (r Rule) Check(size int64, contentType string) (mediaType, ext string, err error) {
	if size > r.MaxBytes {
		return "", "", clientError(fmt.Sprintf("File exceeds the maximum allowed size of %s", humanSize(r.MaxBytes)), ErrTooLarge)
	}
	if contentType == "" {
		return "", "", clientError("Missing media type", nil)
	}
	ext, ok := r.Types[contentType]
	if !ok {
		return "", "", clientError(fmt.Sprintf("Invalid media type %q", contentType), nil)
	}
	return contentType, ext, nil
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<30 && n%(1<<30) == 0:
		return fmt.Sprintf("%dGB", n>>30)
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
