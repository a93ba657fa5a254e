package types

// Box represents a normalized bounding box with coordinates in [0,1] range.
// The origin is at the bottom-left of the image, matching the coordinate
// system the detection models report in.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// MaxY returns the top edge of the box in normalized coordinates.
func (b Box) MaxY() float64 {
	return b.Y + b.H
}

// MaxX returns the right edge of the box in normalized coordinates.
func (b Box) MaxX() float64 {
	return b.X + b.W
}

// DetectedObject is a single labeled detection produced per inference call.
// Detections are transient; they are never persisted.
type DetectedObject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Orientation mirrors the eight EXIF orientation values a captured photo
// can carry. OrientationUp is the canonical orientation all downstream
// geometry assumes.
type Orientation int

const (
	OrientationUp Orientation = iota + 1
	OrientationUpMirrored
	OrientationDown
	OrientationDownMirrored
	OrientationLeftMirrored
	OrientationRight
	OrientationRightMirrored
	OrientationLeft
)

// String returns the EXIF name for the orientation.
func (o Orientation) String() string {
	switch o {
	case OrientationUp:
		return "up"
	case OrientationUpMirrored:
		return "up-mirrored"
	case OrientationDown:
		return "down"
	case OrientationDownMirrored:
		return "down-mirrored"
	case OrientationLeftMirrored:
		return "left-mirrored"
	case OrientationRight:
		return "right"
	case OrientationRightMirrored:
		return "right-mirrored"
	case OrientationLeft:
		return "left"
	default:
		return "unknown"
	}
}
