package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mishal9/glasscloset"
	"github.com/mishal9/glasscloset/internal/config"
	"github.com/mishal9/glasscloset/internal/utils"
	"github.com/mishal9/glasscloset/pkg/netmon"
	"github.com/mishal9/glasscloset/pkg/pipeline"
)

func main() {
	var cfgPath, baseURL, backend, modelURL, model string
	var email, password string
	var in, outDir, dbgext string
	var category, search, deleteID string
	var listCloset, debug, logout bool
	var doLogin, doSignup bool
	var threshold float64

	flag.StringVar(&cfgPath, "config", config.GetConfigPath(), "config file path")
	flag.StringVar(&baseURL, "url", "", "backend base URL (overrides config)")
	flag.StringVar(&backend, "backend", "", "analyzer backend: remote, ollama or llamacpp")
	flag.StringVar(&modelURL, "modelurl", "", "local model server URL")
	flag.StringVar(&model, "model", "", "local model name")
	flag.Float64Var(&threshold, "threshold", -1, "detection confidence threshold (0..1)")

	flag.BoolVar(&doLogin, "login", false, "log in with -email/-password")
	flag.BoolVar(&doSignup, "signup", false, "sign up with -email/-password")
	flag.BoolVar(&logout, "logout", false, "clear the stored token")
	flag.StringVar(&email, "email", "", "account email")
	flag.StringVar(&password, "password", "", "account password")

	flag.StringVar(&in, "in", "", "garment photo to scan (jpg/png/webp)")
	flag.StringVar(&outDir, "out", "out", "output directory for debug overlays")
	flag.BoolVar(&debug, "debug", false, "save a detection overlay next to the scan result")
	flag.StringVar(&dbgext, "dbgext", "png", "debug overlay format: png|jpg|webp")

	flag.BoolVar(&listCloset, "closet", false, "list the closet collection")
	flag.StringVar(&category, "category", "All", "closet category filter")
	flag.StringVar(&search, "search", "", "closet free-text search")
	flag.StringVar(&deleteID, "delete", "", "delete a closet item by id")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if backend != "" {
		cfg.Local.Backend = backend
	}
	if modelURL != "" {
		cfg.Local.URL = modelURL
	}
	if model != "" {
		cfg.Local.Model = model
	}
	if threshold >= 0 {
		cfg.Detector.ConfidenceThreshold = threshold
	}

	scanner, err := glasscloset.New(glasscloset.Config{
		BaseURL:              cfg.API.BaseURL,
		TokenPath:            cfg.API.TokenPath,
		Monitor:              monitorFor(cfg.API.BaseURL),
		Backend:              cfg.Local.Backend,
		ModelURL:             cfg.Local.URL,
		Model:                cfg.Local.Model,
		DetectorModelPath:    cfg.Detector.ModelPath,
		DetectorMetadataPath: cfg.Detector.MetadataPath,
		ConfidenceThreshold:  cfg.Detector.ConfidenceThreshold,
		JPEGQuality:          cfg.Image.JPEGQuality,
		MaxUploadDim:         cfg.Image.MaxUploadDim,
	})
	if err != nil {
		log.Fatalf("setup failed: %v", err)
	}
	defer scanner.Close()

	ctx := context.Background()

	switch {
	case doSignup:
		requireCredentials(email, password)
		userID, err := scanner.Signup(ctx, email, password)
		if err != nil {
			log.Fatalf("signup failed: %v", err)
		}
		log.Printf("signed up, user id %s", userID)

	case doLogin:
		requireCredentials(email, password)
		if err := scanner.Login(ctx, email, password); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		log.Printf("logged in")

	case logout:
		if err := scanner.Logout(); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		log.Printf("logged out")

	case in != "":
		scan(ctx, scanner, in, outDir, dbgext, debug)

	case deleteID != "":
		ok, err := scanner.DeleteItem(ctx, deleteID)
		if err != nil {
			log.Fatalf("delete failed: %v", err)
		}
		if !ok {
			log.Fatalf("server declined to delete %s", deleteID)
		}
		log.Printf("deleted %s", deleteID)

	case listCloset:
		if err := scanner.RefreshCloset(ctx); err != nil {
			log.Fatalf("fetch failed: %v", err)
		}
		items := scanner.Index.Query(category, search)
		if len(items) == 0 {
			fmt.Println("no items")
			return
		}
		for _, item := range items {
			fmt.Printf("%s  %-30s  %s\n", item.DateAdded.Format("2006-01-02"), item.Name(), item.ID)
		}

	default:
		log.Fatalf("usage: %s -login|-signup|-logout|-in photo.jpg|-closet|-delete id", filepath.Base(os.Args[0]))
	}
}

func requireCredentials(email, password string) {
	if email == "" || password == "" {
		log.Fatalf("both -email and -password are required")
	}
}

func scan(ctx context.Context, scanner *glasscloset.Scanner, in, outDir, dbgext string, debug bool) {
	if !utils.FileExists(in) {
		log.Fatalf("no such file: %s", in)
	}
	if !utils.IsImageFile(in) {
		log.Fatalf("not an image file: %s", in)
	}

	snap, err := scanner.ScanFile(ctx, in)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	if snap.State == pipeline.StateFailed {
		if snap.NeedsAuth {
			log.Fatalf("scan failed: %v (log in with -login)", snap.Err)
		}
		log.Fatalf("scan failed: %v", snap.Err)
	}

	fmt.Print(snap.Attributes.FormattedString())
	if snap.Attributes.ID != "" {
		fmt.Printf("Saved as item %s\n", snap.Attributes.ID)
	}

	if debug && snap.Image != nil && len(snap.Detections) > 0 {
		if err := utils.EnsureDir(outDir); err != nil {
			log.Fatal(err)
		}
		overlay := scanner.Processor.DrawDetections(snap.Image, snap.Detections)
		path := utils.OverlayFilename(in, outDir, strings.ToLower(dbgext))
		if err := scanner.Processor.SaveImage(overlay, path, dbgext, 92, false); err != nil {
			log.Printf("debug overlay save failed: %v", err)
		} else {
			log.Printf("wrote %s", path)
		}
	}

	// Raw record for scripting
	if js, err := json.MarshalIndent(snap.Attributes, "", "  "); err == nil && debug {
		_ = os.WriteFile(filepath.Join(outDir, "attributes.json"), js, 0o644)
	}
}

// monitorFor derives a connectivity probe target from the backend URL.
func monitorFor(baseURL string) netmon.Monitor {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	return netmon.NewDialMonitor(host)
}
