// Package detect provides on-device object detection over captured garment
// photos. Detection is a replaceable capability: the pipeline works without
// it, and zero detections is a valid, non-error outcome.
package detect

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/mishal9/glasscloset/pkg/types"
)

// DefaultConfidenceThreshold is deliberately permissive: over-filtering
// silently hides valid detections. Calibration is provisional, so the value
// is always carried through config rather than hardcoded at call sites.
const DefaultConfidenceThreshold = 0.1

// Detector produces labeled bounding boxes for an image. Implementations
// may run inference on a background compute context; detections are
// returned in the model's native order.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]types.DetectedObject, error)
}

// FilterByConfidence keeps detections at or above the threshold, preserving
// order. An empty result is valid; callers fall back to the unannotated
// image.
func FilterByConfidence(objects []types.DetectedObject, threshold float64) []types.DetectedObject {
	out := make([]types.DetectedObject, 0, len(objects))
	for _, obj := range objects {
		if obj.Confidence >= threshold {
			out = append(out, obj)
		}
	}
	return out
}

// PixelRect maps a normalized bottom-left box onto a top-left pixel
// coordinate system: x = box.X * width, y = (1 - box.MaxY()) * height,
// with width and height scaled directly. Coordinates are rounded, not
// truncated: MaxY accumulates float error, and a truncated 399.999 would
// place the box one pixel off.
func PixelRect(b types.Box, imgWidth, imgHeight int) image.Rectangle {
	x := int(b.X*float64(imgWidth) + 0.5)
	y := int((1-b.MaxY())*float64(imgHeight) + 0.5)
	w := int(b.W*float64(imgWidth) + 0.5)
	h := int(b.H*float64(imgHeight) + 0.5)
	return image.Rect(x, y, x+w, y+h)
}

// CropToObject crops the image to a detection's box. An empty intersection
// returns the original image unchanged.
func CropToObject(img image.Image, b types.Box) image.Image {
	rect := PixelRect(b, img.Bounds().Dx(), img.Bounds().Dy()).Intersect(img.Bounds())
	if rect.Empty() {
		return img
	}
	return imaging.Crop(img, rect)
}
