package media

import "math"

// Geometry is the coarse orientation bucket a video is stored under.
type Geometry string

const (
	Landscape Geometry = "landscape"
	Portrait  Geometry = "portrait"
	Other     Geometry = "other"
)

// Encoders round pixel dimensions, so ratios are compared with an absolute
// tolerance instead of exact equality.
const ratioTolerance = 0.01

// Classify maps pixel dimensions to a Geometry. 16:9 is landscape, 9:16 is
// portrait and every other ratio is other.
func Classify(width, height int) Geometry {
	if width <= 0 || height <= 0 {
		return Other
	}
	ratio := float64(width) / float64(height)
	switch {
	case math.Abs(ratio-16.0/9.0) < ratioTolerance:
		return Landscape
	case math.Abs(ratio-9.0/16.0) < ratioTolerance:
		return Portrait
	default:
		return Other
	}
}
