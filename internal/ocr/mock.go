package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/docuglot/docuglot/internal/common"
)

// MockExtractor is a credential-free extractor for development and tests.
// It treats UTF-8 input as already-recognized text: each non-empty line
// becomes one block with a synthetic bounding box. Binary input it cannot
// decode is an extraction failure, never an empty success.
type MockExtractor struct {
	logger *slog.Logger
}

func NewMockExtractor(logger *slog.Logger) *MockExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockExtractor{logger: logger}
}

// Synthetic geometry: blocks are laid out top to bottom on a letter-ish page.
const (
	mockPageWidth  = 1240
	mockLineHeight = 48
	mockMarginX    = 80
	mockMarginY    = 120
	mockCharWidth  = 18
	mockLinesPerPg = 40
	mockConfidence = 0.92
)

func (m *MockExtractor) Extract(ctx context.Context, in Input) (Result, error) {
	start := time.Now()
	if _, err := checkInput(in); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !utf8.Valid(in.Data) {
		return Result{}, common.WrapError(common.ErrOCRFailure, "mock extractor cannot decode binary content")
	}

	var blocks []TextBlock
	for i, line := range strings.Split(string(in.Data), "\n") {
		text := Normalize(line)
		if text == "" {
			continue
		}
		n := len(blocks)
		width := mockCharWidth * len([]rune(text))
		if max := mockPageWidth - 2*mockMarginX; width > max {
			width = max
		}
		blocks = append(blocks, TextBlock{
			ID:         fmt.Sprintf("block-%d", n+1),
			Text:       text,
			Confidence: mockConfidence,
			X:          mockMarginX,
			Y:          mockMarginY + i*mockLineHeight,
			Width:      width,
			Height:     mockLineHeight - 8,
		})
	}
	if err := checkBlocks(blocks); err != nil {
		return Result{}, err
	}

	pages := (len(blocks)-1)/mockLinesPerPg + 1
	res := Result{
		Blocks:   blocks,
		Pages:    pages,
		Language: DetectLanguage(blocks),
		Engine:   "mock",
		Duration: time.Since(start),
	}
	m.logger.Debug("mock extraction complete",
		"filename", in.Filename, "blocks", len(blocks), "pages", pages, "language", res.Language)
	return res, nil
}
