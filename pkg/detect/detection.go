// Package detect reads the detection log written by the vision pipeline and
// picks targets from it.
package detect

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData means the detection log does not exist yet.
	ErrNoData = errors.New("no detection data")
	// ErrMalformed means the detection log could not be parsed, usually
	// because the writer was halfway through rewriting it.
	ErrMalformed = errors.New("malformed detection log")
	// ErrNoBox means a detection has no usable bounding box.
	ErrNoBox = errors.New("detection has no bounding box")
)

// Detection is a single labeled bounding box.
type Detection struct {
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"` // x1, y1, x2, y2 in pixels
}

// CenterX returns the horizontal center of the bounding box.
func (d Detection) CenterX() (float64, error) {
	if len(d.BBox) < 4 {
		return 0, fmt.Errorf("%w: %q has %d coordinates", ErrNoBox, d.ClassName, len(d.BBox))
	}
	return (d.BBox[0] + d.BBox[2]) / 2, nil
}

// Offset returns the horizontal position of the detection relative to the
// frame center, in [-1, 1]. Negative is left of center.
func (d Detection) Offset(frameWidth float64) (float64, error) {
	if frameWidth <= 0 {
		return 0, fmt.Errorf("invalid frame width %v", frameWidth)
	}
	cx, err := d.CenterX()
	if err != nil {
		return 0, err
	}
	half := frameWidth / 2
	off := (cx - half) / half
	if off < -1 {
		return -1, nil
	}
	if off > 1 {
		return 1, nil
	}
	return off, nil
}

// FrameRecord holds the detections for one processed camera frame.
type FrameRecord struct {
	Timestamp  string      `json:"timestamp"`
	ImageFile  string      `json:"image_file"`
	Detections []Detection `json:"detections"`
}

// Log is the ordered sequence of frame records, in the order the writer
// stored them.
type Log []FrameRecord

// Match is a selected detection together with the frame it came from.
type Match struct {
	Detection Detection
	ImageFile string
}

// FindBestInFrame returns the detection of the requested class with the
// highest confidence. Ties go to the first one encountered.
func FindBestInFrame(frame FrameRecord, className string) (Detection, bool) {
	var (
		best  Detection
		found bool
	)
	for _, d := range frame.Detections {
		if d.ClassName != className {
			continue
		}
		if !found || d.Confidence > best.Confidence {
			best = d
			found = true
		}
	}
	return best, found
}

// FindBestMatch scans the log in order and returns the best detection of the
// first frame holding one of the requested class at or above minConfidence.
func FindBestMatch(log Log, className string, minConfidence float64) (Match, bool) {
	for _, frame := range log {
		if m, ok := matchFrame(frame, className, minConfidence); ok {
			return m, true
		}
	}
	return Match{}, false
}

// FindLatestMatch is FindBestMatch scanning from the end of the log.
func FindLatestMatch(log Log, className string, minConfidence float64) (Match, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		if m, ok := matchFrame(log[i], className, minConfidence); ok {
			return m, true
		}
	}
	return Match{}, false
}

func matchFrame(frame FrameRecord, className string, minConfidence float64) (Match, bool) {
	best, ok := FindBestInFrame(frame, className)
	if !ok || best.Confidence < minConfidence {
		return Match{}, false
	}
	return Match{Detection: best, ImageFile: frame.ImageFile}, true
}
