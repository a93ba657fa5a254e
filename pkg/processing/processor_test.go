package processing

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/mishal9/glasscloset/pkg/types"
)

// createTestImage creates a small asymmetric test image so orientation
// transforms are observable.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 64, 255})
		}
	}
	// Distinct corner marker at the top-left
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	return img
}

func TestNormalizeUprightIsIdentity(t *testing.T) {
	p := NewProcessor()
	raw := RawImage{Image: createTestImage(40, 30), Orientation: types.OrientationUp, Scale: 1}

	got, err := p.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.Image != raw.Image {
		t.Error("an already-upright image must be returned unchanged")
	}
	if got.Orientation != types.OrientationUp {
		t.Errorf("expected canonical orientation, got %v", got.Orientation)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	p := NewProcessor()

	for o := types.OrientationUp; o <= types.OrientationLeft; o++ {
		raw := RawImage{Image: createTestImage(40, 30), Orientation: o, Scale: 1}

		once, err := p.Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%v) failed: %v", o, err)
		}
		if once.Orientation != types.OrientationUp {
			t.Errorf("Normalize(%v) did not yield canonical orientation", o)
		}

		twice, err := p.Normalize(once)
		if err != nil {
			t.Fatalf("second Normalize(%v) failed: %v", o, err)
		}
		if twice.Image != once.Image {
			t.Errorf("Normalize(Normalize(x)) must return the canonical image unchanged for %v", o)
		}
	}
}

func TestNormalizeRotationSwapsDimensions(t *testing.T) {
	p := NewProcessor()
	raw := RawImage{Image: createTestImage(40, 30), Orientation: types.OrientationRight, Scale: 1}

	got, err := p.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	b := got.Image.Bounds()
	if b.Dx() != 30 || b.Dy() != 40 {
		t.Errorf("expected 30x40 after 90° rotation, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestNormalizeEmptyBufferFails(t *testing.T) {
	p := NewProcessor()

	_, err := p.Normalize(RawImage{Orientation: types.OrientationDown})
	if err == nil {
		t.Fatal("expected an error for a nil buffer")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("image processing failed")) {
		t.Errorf("expected ErrImageProcessing, got %v", err)
	}
}

func TestEncodeJPEG(t *testing.T) {
	p := NewProcessor()

	data, err := p.EncodeJPEG(createTestImage(40, 30), 0, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("output is not a JPEG stream")
	}

	img, err := p.DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if img.Bounds().Dx() != 40 {
		t.Errorf("expected width 40, got %d", img.Bounds().Dx())
	}
}

func TestEncodeJPEGDownscalesLongSide(t *testing.T) {
	p := NewProcessor()

	data, err := p.EncodeJPEG(createTestImage(400, 200), 100, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	img, err := p.DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Errorf("expected 100x50, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestEncodeJPEGNilImageFails(t *testing.T) {
	p := NewProcessor()
	if _, err := p.EncodeJPEG(nil, 0, 80); err == nil {
		t.Fatal("expected an error for a nil image")
	}
}

func TestDrawDetectionsBoxPlacement(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(100, 100)

	// Bottom-left box covering the lower-left quarter should paint near the
	// image bottom in top-left pixel space.
	objects := []types.DetectedObject{{
		Label:      "hoodie",
		Confidence: 0.9,
		Box:        types.Box{X: 0, Y: 0, W: 0.5, H: 0.5},
	}}
	overlay := p.DrawDetections(img, objects).(*image.NRGBA)

	found := false
	for x := 0; x < 50 && !found; x++ {
		r, g, b, _ := overlay.At(x, 99).RGBA()
		if r>>8 == 0 && g>>8 == 255 && b>>8 == 0 {
			found = true
		}
	}
	if !found {
		t.Error("expected box stroke along the bottom edge of the image")
	}

	// Nothing should be painted in the top-right quarter
	for y := 0; y < 40; y++ {
		r, g, b, _ := overlay.At(80, y).RGBA()
		if r>>8 == 0 && g>>8 == 255 && b>>8 == 0 {
			t.Fatal("box stroke leaked outside the mapped rectangle")
		}
	}
}

func TestDrawDetectionsKeepsHighestConfidencePerBox(t *testing.T) {
	box := types.Box{X: 0.1, Y: 0.1, W: 0.5, H: 0.5}
	objects := []types.DetectedObject{
		{Label: "shirt", Confidence: 0.3, Box: box},
		{Label: "hoodie", Confidence: 0.8, Box: box},
	}

	best := bestPerBox(objects)
	if len(best) != 1 {
		t.Fatalf("expected one detection per distinct box, got %d", len(best))
	}
	if best[0].Label != "hoodie" {
		t.Errorf("expected the higher-confidence label, got %q", best[0].Label)
	}
}
