package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/abadojack/whatlanggo"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/common"
)

// Input is a file to extract text from.
type Input struct {
	Data     []byte
	MIMEType string
	Filename string
}

// TextBlock is one extracted text region. Confidence is in [0,1]; box
// dimensions are pixels and always positive.
type TextBlock struct {
	ID         string
	Text       string
	Confidence float32
	X          int
	Y          int
	Width      int
	Height     int
}

// Result is the output of one extraction.
type Result struct {
	Blocks   []TextBlock
	Pages    int
	Language string // ISO 639-1, "" when detection failed
	Engine   string
	Duration time.Duration
}

// Extractor converts file bytes into ordered text blocks. Implementations
// must fail on empty or unsupported input rather than return an empty result.
type Extractor interface {
	Extract(ctx context.Context, in Input) (Result, error)
}

// checkInput enforces the adapter's input contract and returns the document type.
func checkInput(in Input) (string, error) {
	if len(in.Data) == 0 {
		return "", common.WrapError(common.ErrOCRFailure, "empty input")
	}
	docType := constants.MapMIMEToDocumentType(in.MIMEType)
	if docType == "" {
		return "", fmt.Errorf("%w: unsupported mime type %q", common.ErrOCRFailure, in.MIMEType)
	}
	return docType, nil
}

// checkBlocks rejects malformed extraction output. An extraction that found
// no text at all is an error, not an empty success.
func checkBlocks(blocks []TextBlock) error {
	if len(blocks) == 0 {
		return common.WrapError(common.ErrOCRFailure, "no text recognized")
	}
	for _, b := range blocks {
		if b.Confidence < 0 || b.Confidence > 1 {
			return fmt.Errorf("%w: block %s confidence %v out of range", common.ErrOCRFailure, b.ID, b.Confidence)
		}
		if b.Width <= 0 || b.Height <= 0 || b.X < 0 || b.Y < 0 {
			return fmt.Errorf("%w: block %s has invalid bounding box", common.ErrOCRFailure, b.ID)
		}
	}
	return nil
}

// DetectLanguage returns the ISO 639-1 code of the dominant language in the
// blocks, or "" when nothing usable was detected.
func DetectLanguage(blocks []TextBlock) string {
	counts := make(map[string]int)
	for _, b := range blocks {
		lang := whatlanggo.DetectLang(b.Text).Iso6391()
		if lang == "" {
			continue
		}
		counts[lang]++
	}
	var top string
	var topCount int
	for lang, n := range counts {
		if n > topCount {
			top = lang
			topCount = n
		}
	}
	return top
}
