package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/docuglot/docuglot/internal/ocr"
)

// runocr extracts text blocks from a local file and prints them. Useful for
// checking an OCR engine setup without a database or job queue.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	engine := flag.String("engine", "mock", "ocr engine: mock | tesseract")
	lang := flag.String("lang", "eng", "tesseract language")
	flag.Parse()

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-engine mock|tesseract] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "text/plain"
	}

	var extractor ocr.Extractor
	switch *engine {
	case "tesseract":
		extractor = ocr.NewTesseractExtractor(ocr.TesseractConfig{Language: *lang}, logger)
	default:
		extractor = ocr.NewMockExtractor(logger)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	res, err := extractor.Extract(ctx, ocr.Input{
		Data:     data,
		MIMEType: mimeType,
		Filename: filepath.Base(path),
	})
	if err != nil {
		logger.Error("extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	logger.Info("extraction OK",
		"engine", res.Engine,
		"pages", res.Pages,
		"blocks", len(res.Blocks),
		"language", res.Language,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for _, b := range res.Blocks {
		fmt.Printf("%s\t(%.2f)\t[%d,%d %dx%d]\t%s\n",
			b.ID, b.Confidence, b.X, b.Y, b.Width, b.Height, b.Text)
	}
}
