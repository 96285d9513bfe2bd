package analysis

import (
	"strings"
	"time"

	"github.com/docuglot/docuglot/internal/entity"
	"github.com/docuglot/docuglot/internal/ocr"
	"github.com/docuglot/docuglot/internal/translate"
)

// AssembleInput carries everything needed to build one AnalysisResult.
type AssembleInput struct {
	Job          *entity.Job
	Config       entity.JobConfig
	OCR          ocr.Result
	Translations []translate.Result // index-aligned with OCR.Blocks
	Engine       string             // translation engine name
	DocumentType string
	Filename     string
	Elapsed      time.Duration
}

// Assemble builds the AnalysisResult for a job. Overall confidence is the
// arithmetic mean of per-block translation confidences; the zero-block case
// yields confidence 0 and is rejected by schema validation downstream.
func Assemble(in AssembleInput) *entity.AnalysisResult {
	blocks := make([]entity.BlockTranslation, 0, len(in.OCR.Blocks))
	var origParts, transParts []string
	sourceLang := in.Config.SourceLanguage
	for i, b := range in.OCR.Blocks {
		tr := in.Translations[i]
		blocks = append(blocks, entity.BlockTranslation{
			ID:             b.ID,
			OriginalText:   b.Text,
			TranslatedText: tr.TranslatedText,
			Confidence:     tr.Confidence,
			Box: entity.BoundingBox{
				X:      b.X,
				Y:      b.Y,
				Width:  b.Width,
				Height: b.Height,
			},
		})
		origParts = append(origParts, b.Text)
		transParts = append(transParts, tr.TranslatedText)
		if tr.SourceLanguage != "" {
			sourceLang = tr.SourceLanguage
		}
	}

	return &entity.AnalysisResult{
		JobID:            in.Job.ID,
		OriginalText:     strings.Join(origParts, "\n"),
		TranslatedText:   strings.Join(transParts, "\n"),
		SourceLanguage:   sourceLang,
		TargetLanguage:   in.Config.TargetLanguage,
		Confidence:       MeanConfidence(blocks),
		DetectedLanguage: in.OCR.Language,
		Blocks:           blocks,
		Meta: entity.ProcessingMeta{
			OCREngine:         in.OCR.Engine,
			TranslationEngine: in.Engine,
			ElapsedMS:         in.Elapsed.Milliseconds(),
			PageCount:         in.OCR.Pages,
			BlockCount:        len(blocks),
			DocumentType:      in.DocumentType,
			Filename:          in.Filename,
		},
	}
}

// MeanConfidence is the arithmetic mean of per-block confidences.
// Returns 0 for an empty slice rather than dividing by zero.
func MeanConfidence(blocks []entity.BlockTranslation) float32 {
	if len(blocks) == 0 {
		return 0
	}
	var sum float64
	for _, b := range blocks {
		sum += float64(b.Confidence)
	}
	return float32(sum / float64(len(blocks)))
}
