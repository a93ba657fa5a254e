// Package pipeline sequences a capture from raw photo to displayed
// attribute record: normalize, optionally detect, upload, decode. The
// pipeline owns the single source of truth about the in-flight capture and
// publishes immutable snapshots to observers.
package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mishal9/glasscloset/pkg/api"
	"github.com/mishal9/glasscloset/pkg/closet"
	"github.com/mishal9/glasscloset/pkg/detect"
	"github.com/mishal9/glasscloset/pkg/processing"
	"github.com/mishal9/glasscloset/pkg/types"
)

// State is the phase of the current capture cycle. Exactly one holds at a
// time.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateUploading
	StateDecoding
	StateSucceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateUploading:
		return "uploading"
	case StateDecoding:
		return "decoding"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrCaptureInFlight is returned when a capture starts while another is
// active. Overlapping uploads are not a supported state; callers retry once
// the cycle reaches Succeeded or Failed.
var ErrCaptureInFlight = errors.New("a capture is already in flight")

// Analyzer produces an attribute record from an encoded JPEG. Both the
// remote api.Client and the local ollama.Client satisfy it.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, jpegData []byte) (closet.ClothingAttributes, error)
}

// Snapshot is the immutable view of the current cycle that observers
// receive. It only ever describes the cycle it was committed by; entering
// Capturing clears everything from the previous one.
type Snapshot struct {
	State      State
	Image      image.Image
	Detections []types.DetectedObject
	Attributes closet.ClothingAttributes
	Err        error
	NeedsAuth  bool
}

// Config carries the tunables of a capture run.
type Config struct {
	// ConfidenceThreshold filters detections. The default is deliberately
	// permissive; see detect.DefaultConfidenceThreshold.
	ConfidenceThreshold float64
	// JPEGQuality for the upload encoding.
	JPEGQuality int
	// MaxUploadDim caps the long side of the uploaded image; 0 keeps the
	// original size.
	MaxUploadDim int
}

// DefaultConfig returns the standard capture tunables.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: detect.DefaultConfidenceThreshold,
		JPEGQuality:         80,
		MaxUploadDim:        0,
	}
}

// Pipeline runs at most one capture cycle at a time. All state mutation
// happens under the mutex; observers never see torn intermediate state.
type Pipeline struct {
	processor *processing.Processor
	detector  detect.Detector
	analyzer  Analyzer
	cfg       Config
	log       *logrus.Entry

	mu       sync.Mutex
	running  bool
	snapshot Snapshot
	subs     []chan Snapshot
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDetector installs an optional object detector. The pipeline is
// correct without one.
func WithDetector(d detect.Detector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// WithConfig overrides the default tunables.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithLogger overrides the default logger.
func WithLogger(log *logrus.Logger) Option {
	return func(p *Pipeline) { p.log = log.WithField("component", "pipeline") }
}

// New creates a pipeline over an image processor and an analyzer.
func New(processor *processing.Processor, analyzer Analyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		processor: processor,
		analyzer:  analyzer,
		cfg:       DefaultConfig(),
		log:       logrus.StandardLogger().WithField("component", "pipeline"),
		snapshot:  Snapshot{State: StateIdle},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot returns the current state of the pipeline.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Subscribe returns a channel that receives every committed snapshot. A
// slow subscriber drops intermediate snapshots rather than blocking the
// pipeline. Callers that outlive their interest in updates release the
// channel with Unsubscribe.
func (p *Pipeline) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel returned by Subscribe. Snapshots committed
// after it returns are no longer delivered. The channel is not closed: a
// commit in flight may still hold a reference to it.
func (p *Pipeline) Unsubscribe(ch <-chan Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := make([]chan Snapshot, 0, len(p.subs))
	for _, sub := range p.subs {
		if sub != ch {
			subs = append(subs, sub)
		}
	}
	p.subs = subs
}

// commit replaces the snapshot and fans it out to subscribers.
func (p *Pipeline) commit(snap Snapshot, terminal bool) {
	p.mu.Lock()
	p.snapshot = snap
	if terminal {
		p.running = false
	}
	subs := p.subs
	p.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Capture starts a new cycle for the raw image. It rejects with
// ErrCaptureInFlight while a previous cycle is still active; Succeeded and
// Failed both accept a new capture. The run proceeds on a background
// goroutine and reaches exactly one terminal state.
func (p *Pipeline) Capture(ctx context.Context, raw processing.RawImage) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrCaptureInFlight
	}
	p.running = true
	p.mu.Unlock()

	// Entering Capturing clears any stale image or attributes from the
	// previous cycle before anything else is committed.
	p.commit(Snapshot{State: StateCapturing}, false)

	go p.run(ctx, raw)
	return nil
}

func (p *Pipeline) run(ctx context.Context, raw processing.RawImage) {
	normalized, err := p.processor.Normalize(raw)
	if err != nil {
		// A buffer that cannot be re-rendered is not fatal: continue with
		// the original, possibly mis-oriented image.
		p.log.WithError(err).Warn("orientation fix failed, using original image")
		normalized = raw
	}
	img := normalized.Image

	var detections []types.DetectedObject
	if p.detector != nil {
		objects, err := p.detector.Detect(ctx, img)
		if err != nil {
			p.log.WithError(err).Warn("detection failed, continuing without boxes")
		} else {
			detections = detect.FilterByConfidence(objects, p.cfg.ConfidenceThreshold)
		}
		// Zero detections after filtering is a valid outcome; the
		// unannotated image is shown as-is.
	}

	p.commit(Snapshot{State: StateUploading, Image: img, Detections: detections}, false)

	jpegData, err := p.processor.EncodeJPEG(img, p.cfg.MaxUploadDim, p.cfg.JPEGQuality)
	if err != nil {
		p.fail(img, detections, err)
		return
	}

	attrs, err := p.analyzer.AnalyzeImage(ctx, jpegData)
	if err != nil {
		p.fail(img, detections, err)
		return
	}

	p.commit(Snapshot{State: StateDecoding, Image: img, Detections: detections}, false)

	p.log.WithFields(logrus.Fields{
		"item_id": attrs.ID,
		"empty":   attrs.IsEmpty(),
	}).Info("capture succeeded")
	p.commit(Snapshot{
		State:      StateSucceeded,
		Image:      img,
		Detections: detections,
		Attributes: attrs,
	}, true)
}

// fail commits the terminal Failed snapshot for this cycle. Authentication
// failures additionally flag that a re-login is needed; no silent token
// refresh is attempted.
func (p *Pipeline) fail(img image.Image, detections []types.DetectedObject, err error) {
	p.log.WithError(err).Warn("capture failed")
	p.commit(Snapshot{
		State:      StateFailed,
		Image:      img,
		Detections: detections,
		Err:        err,
		NeedsAuth:  errors.Is(err, api.ErrAuthenticationRequired),
	}, true)
}
