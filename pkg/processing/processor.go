// Package processing normalizes captured images into the canonical upright
// orientation, encodes them for upload, and renders diagnostic detection
// overlays.
package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/mishal9/glasscloset/pkg/types"
)

// ErrImageProcessing is returned when a pixel buffer cannot be rendered into
// a new canonical buffer. Callers fall back to the original image rather
// than aborting the pipeline.
var ErrImageProcessing = errors.New("image processing failed")

// ErrImageConversion is returned when an image cannot be encoded for upload.
var ErrImageConversion = errors.New("failed to convert image to data")

// RawImage is a captured pixel buffer together with its orientation tag and
// declared scale. After Normalize the orientation is OrientationUp and all
// downstream consumers assume it.
type RawImage struct {
	Image       image.Image
	Orientation types.Orientation
	Scale       float64
}

// Processor handles image normalization and encoding.
type Processor struct{}

// NewProcessor creates a new image processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Normalize renders a raw image into canonical upright orientation. It is
// pure and idempotent: an already-upright image is returned unchanged. A nil
// or empty buffer fails with ErrImageProcessing.
func (p *Processor) Normalize(raw RawImage) (RawImage, error) {
	if raw.Image == nil || raw.Image.Bounds().Empty() {
		return RawImage{}, fmt.Errorf("%w: empty pixel buffer", ErrImageProcessing)
	}
	if raw.Orientation == types.OrientationUp {
		return raw, nil
	}

	var out image.Image
	switch raw.Orientation {
	case types.OrientationUpMirrored:
		out = imaging.FlipH(raw.Image)
	case types.OrientationDown:
		out = imaging.Rotate180(raw.Image)
	case types.OrientationDownMirrored:
		out = imaging.FlipV(raw.Image)
	case types.OrientationLeftMirrored:
		out = imaging.Transpose(raw.Image)
	case types.OrientationRight:
		out = imaging.Rotate270(raw.Image)
	case types.OrientationRightMirrored:
		out = imaging.Transverse(raw.Image)
	case types.OrientationLeft:
		out = imaging.Rotate90(raw.Image)
	default:
		return RawImage{}, fmt.Errorf("%w: unknown orientation %d", ErrImageProcessing, raw.Orientation)
	}

	return RawImage{Image: out, Orientation: types.OrientationUp, Scale: raw.Scale}, nil
}

// EncodeJPEG encodes an image as JPEG for upload. When maxDim is positive
// the long side is downscaled to it first.
func (p *Processor) EncodeJPEG(img image.Image, maxDim, quality int) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrImageConversion)
	}
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageConversion, err)
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes an image from byte data with WebP fallback.
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// LoadImage loads an image from a file path with WebP support.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// SaveImage saves an image to a file with the specified format and quality.
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return png.Encode(f, img)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// DrawDetections renders labeled bounding boxes onto a copy of the image.
// Boxes arrive in normalized bottom-left coordinates; the overlay converts
// them to top-left pixel space. When detections share a box, only the
// highest-confidence one is drawn.
func (p *Processor) DrawDetections(img image.Image, objects []types.DetectedObject) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}
	stroke := int(math.Max(2, 0.004*float64(minInt(w, h))))

	for _, obj := range bestPerBox(objects) {
		rect := pixelRect(obj.Box, w, h)
		drawRect(nrgba, rect, green, stroke)
	}

	return nrgba
}

// bestPerBox keeps the highest-confidence detection for each distinct box,
// preserving the model's native order otherwise.
func bestPerBox(objects []types.DetectedObject) []types.DetectedObject {
	best := map[types.Box]int{}
	out := make([]types.DetectedObject, 0, len(objects))
	for _, obj := range objects {
		if i, ok := best[obj.Box]; ok {
			if obj.Confidence > out[i].Confidence {
				out[i] = obj
			}
			continue
		}
		best[obj.Box] = len(out)
		out = append(out, obj)
	}
	return out
}

// pixelRect converts a normalized bottom-left box into a top-left pixel
// rectangle: y = (1 - maxY) * height. Mis-mapped boxes are a correctness
// bug, not a cosmetic one.
func pixelRect(b types.Box, w, h int) image.Rectangle {
	x0 := int(clamp(b.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(1-b.MaxY(), 0, 1)*float64(h) + 0.5)
	x1 := x0 + int(clamp(b.W, 0, 1)*float64(w)+0.5)
	y1 := y0 + int(clamp(b.H, 0, 1)*float64(h)+0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
