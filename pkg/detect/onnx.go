package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/mishal9/glasscloset/pkg/types"
)

// Metadata describes an exported detection model: tensor shapes, the class
// labels the output indexes into, and the square input size.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// ONNXDetector runs a detection model through onnxruntime. The session and
// its tensors are reused across calls; Run is serialized by a mutex because
// the tensors are shared state.
type ONNXDetector struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXDetector loads the model and its metadata and prepares a reusable
// session. Failure here is non-fatal to the application: the capture
// pipeline treats the detector as optional.
func NewONNXDetector(modelPath, metadataPath string) (*ONNXDetector, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	metaFile, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXDetector{
		session:      session,
		metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Detect runs inference and decodes the output rows into detections in the
// model's native order. Boxes are normalized with origin at bottom-left.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]types.DetectedObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := d.preprocess(img)

	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.inputTensor.GetData(), input)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return d.decodeOutput(d.outputTensor.GetData()), nil
}

// preprocess resizes the image to the model's square input and lays it out
// as planar RGB float32 in [0,1].
func (d *ONNXDetector) preprocess(img image.Image) []float32 {
	size := uint(d.metadata.ImageSize)
	scaled := resize.Resize(size, size, img, resize.Bilinear)

	n := d.metadata.ImageSize * d.metadata.ImageSize
	data := make([]float32, 3*n)
	bounds := scaled.Bounds()
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := scaled.At(x, y).RGBA()
			data[i] = float32(r) / 65535.0
			data[n+i] = float32(g) / 65535.0
			data[2*n+i] = float32(b) / 65535.0
			i++
		}
	}
	return data
}

// decodeOutput reads fixed-width rows of (x, y, w, h, confidence, class)
// from the flat output tensor. Rows with zero confidence are padding.
func (d *ONNXDetector) decodeOutput(out []float32) []types.DetectedObject {
	const rowLen = 6
	objects := make([]types.DetectedObject, 0, len(out)/rowLen)
	for i := 0; i+rowLen <= len(out); i += rowLen {
		conf := float64(out[i+4])
		if conf <= 0 {
			continue
		}
		classIdx := int(out[i+5])
		label := "object"
		if classIdx >= 0 && classIdx < len(d.metadata.Classes) {
			label = d.metadata.Classes[classIdx]
		}
		objects = append(objects, types.DetectedObject{
			Label:      label,
			Confidence: conf,
			Box: types.Box{
				X: float64(out[i]),
				Y: float64(out[i+1]),
				W: float64(out[i+2]),
				H: float64(out[i+3]),
			},
		})
	}
	return objects
}

// Close releases the session and tensors.
func (d *ONNXDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
	if d.session != nil {
		d.session.Destroy()
	}
	ort.DestroyEnvironment()
}
