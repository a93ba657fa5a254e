// Package glasscloset turns a captured photograph of a garment into a
// structured, displayable attribute record, and maintains a searchable
// index over the resulting collection.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/mishal9/glasscloset"
//	)
//
//	func main() {
//		scanner, err := glasscloset.New(glasscloset.Config{
//			BaseURL: "https://glasscloset-backend.onrender.com",
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if err := scanner.Login(context.Background(), "me@example.com", "secret"); err != nil {
//			log.Fatal(err)
//		}
//
//		snap, err := scanner.ScanFile(context.Background(), "photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(snap.Attributes.FormattedString())
//	}
//
// The package consists of these main components:
//
//  1. Processing (pkg/processing): orientation normalization and encoding
//  2. Detect (pkg/detect): optional on-device object detection
//  3. API (pkg/api): the authenticated backend client
//  4. Pipeline (pkg/pipeline): the capture state machine
//  5. Closet (pkg/closet): the item model, wire decoder, and index
//
// Analysis can run against the remote backend or a local vision model
// served by Ollama or llama.cpp; all three satisfy the same Analyzer
// contract, so the pipeline does not care which is wired in.
package glasscloset

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mishal9/glasscloset/pkg/api"
	"github.com/mishal9/glasscloset/pkg/auth"
	"github.com/mishal9/glasscloset/pkg/closet"
	"github.com/mishal9/glasscloset/pkg/detect"
	"github.com/mishal9/glasscloset/pkg/llamacpp"
	"github.com/mishal9/glasscloset/pkg/netmon"
	"github.com/mishal9/glasscloset/pkg/ollama"
	"github.com/mishal9/glasscloset/pkg/pipeline"
	"github.com/mishal9/glasscloset/pkg/processing"
	"github.com/mishal9/glasscloset/pkg/types"
)

// Version of the glasscloset library
const Version = "1.0.0"

// Config wires a Scanner. Zero values fall back to sensible defaults; only
// BaseURL is required when the remote backend is used.
type Config struct {
	// BaseURL of the GlassCloset backend.
	BaseURL string
	// TokenPath overrides where the bearer token is persisted.
	TokenPath string
	// Monitor reports connectivity before requests; nil skips the check.
	Monitor netmon.Monitor

	// Backend selects the analyzer: "remote" (default), "ollama", or
	// "llamacpp".
	Backend string
	// ModelURL and Model configure the local backends.
	ModelURL string
	Model    string

	// DetectorModelPath and DetectorMetadataPath enable on-device
	// detection when set.
	DetectorModelPath    string
	DetectorMetadataPath string
	// ConfidenceThreshold filters detections; 0 means the permissive
	// default.
	ConfidenceThreshold float64

	// JPEGQuality and MaxUploadDim control the upload encoding.
	JPEGQuality  int
	MaxUploadDim int

	// Logger overrides the default logrus logger.
	Logger *logrus.Logger
}

// Scanner wires the capture pipeline, the backend client, and the closet
// index into one explicitly constructed, injectable unit. There are no
// package-level singletons; application code owns the instance lifetime.
type Scanner struct {
	Processor *processing.Processor
	Client    *api.Client
	Pipeline  *pipeline.Pipeline
	Index     *closet.Index
	Tokens    *auth.Store

	detector detect.Detector
	log      *logrus.Entry
}

// New builds a Scanner from configuration.
func New(cfg Config) (*Scanner, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.Backend == "" {
		cfg.Backend = "remote"
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = detect.DefaultConfidenceThreshold
	}
	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = 80
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		tokenPath = auth.DefaultPath()
	}
	tokens := auth.NewStore(tokenPath)

	clientOpts := []api.Option{api.WithLogger(logger)}
	if cfg.Monitor != nil {
		clientOpts = append(clientOpts, api.WithMonitor(cfg.Monitor))
	}
	client, err := api.NewClient(cfg.BaseURL, tokens, clientOpts...)
	if err != nil {
		return nil, err
	}

	var analyzer pipeline.Analyzer
	switch cfg.Backend {
	case "remote":
		analyzer = client
	case "ollama":
		analyzer, err = ollama.NewClient(cfg.ModelURL, cfg.Model)
	case "llamacpp":
		analyzer, err = llamacpp.NewClient(cfg.ModelURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'remote', 'ollama' or 'llamacpp')", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Backend, err)
	}

	processor := processing.NewProcessor()

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithConfig(pipeline.Config{
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			JPEGQuality:         cfg.JPEGQuality,
			MaxUploadDim:        cfg.MaxUploadDim,
		}),
	}

	var detector detect.Detector
	if cfg.DetectorModelPath != "" {
		d, err := detect.NewONNXDetector(cfg.DetectorModelPath, cfg.DetectorMetadataPath)
		if err != nil {
			// The detector is optional; the pipeline is correct without it.
			logger.WithError(err).Warn("detector unavailable, continuing without detection")
		} else {
			detector = d
			opts = append(opts, pipeline.WithDetector(d))
		}
	}

	return &Scanner{
		Processor: processor,
		Client:    client,
		Pipeline:  pipeline.New(processor, analyzer, opts...),
		Index:     closet.NewIndex(nil),
		Tokens:    tokens,
		detector:  detector,
		log:       logger.WithField("component", "scanner"),
	}, nil
}

// ScanFile captures an image file through the full pipeline and blocks
// until the cycle reaches a terminal state.
func (s *Scanner) ScanFile(ctx context.Context, path string) (pipeline.Snapshot, error) {
	img, err := s.Processor.LoadImage(path)
	if err != nil {
		return pipeline.Snapshot{}, err
	}

	updates := s.Pipeline.Subscribe()
	defer s.Pipeline.Unsubscribe(updates)
	raw := processing.RawImage{Image: img, Orientation: types.OrientationUp, Scale: 1}
	if err := s.Pipeline.Capture(ctx, raw); err != nil {
		return pipeline.Snapshot{}, err
	}

	for {
		select {
		case snap := <-updates:
			if snap.State == pipeline.StateSucceeded || snap.State == pipeline.StateFailed {
				return snap, nil
			}
		case <-ctx.Done():
			return pipeline.Snapshot{}, ctx.Err()
		}
	}
}

// RefreshCloset fetches the caller's items and replaces the index contents.
func (s *Scanner) RefreshCloset(ctx context.Context) error {
	items, err := s.Client.FetchItems(ctx)
	if err != nil {
		return err
	}
	s.Index.SetItems(items)
	return nil
}

// DeleteItem removes an item on the server and, on success, from the local
// index.
func (s *Scanner) DeleteItem(ctx context.Context, id string) (bool, error) {
	ok, err := s.Client.DeleteItem(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.Index.Delete(id)
	}
	return ok, nil
}

// Login authenticates and stores the bearer token.
func (s *Scanner) Login(ctx context.Context, email, password string) error {
	token, err := s.Client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.Tokens.Set(token)
}

// Signup registers a new account.
func (s *Scanner) Signup(ctx context.Context, email, password string) (string, error) {
	return s.Client.Signup(ctx, email, password)
}

// Logout clears the stored token.
func (s *Scanner) Logout() error {
	return s.Tokens.Clear()
}

// Close releases detector resources, if any.
func (s *Scanner) Close() {
	if d, ok := s.detector.(*detect.ONNXDetector); ok {
		d.Close()
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
