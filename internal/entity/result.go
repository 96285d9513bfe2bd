package entity

import (
	"time"

	"github.com/google/uuid"
)

// BoundingBox is a text region's position in pixel units.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BlockTranslation is one OCR block together with its translation.
type BlockTranslation struct {
	ID             string      `json:"id"`
	OriginalText   string      `json:"original_text"`
	TranslatedText string      `json:"translated_text"`
	Confidence     float32     `json:"confidence"`
	Box            BoundingBox `json:"box"`
}

// ProcessingMeta describes how a result was produced.
type ProcessingMeta struct {
	OCREngine         string `json:"ocr_engine"`
	TranslationEngine string `json:"translation_engine"`
	ElapsedMS         int64  `json:"elapsed_ms"`
	PageCount         int    `json:"page_count"`
	BlockCount        int    `json:"block_count"`
	DocumentType      string `json:"document_type"`
	Filename          string `json:"filename,omitempty"`
}

// AnalysisResult is the final structured translation output for a job.
// Exactly one exists per completed job; it is written once and never updated.
type AnalysisResult struct {
	ID               uuid.UUID          `json:"id"`
	JobID            uuid.UUID          `json:"job_id"`
	OriginalText     string             `json:"original_text"`
	TranslatedText   string             `json:"translated_text"`
	SourceLanguage   string             `json:"source_language"`
	TargetLanguage   string             `json:"target_language"`
	Confidence       float32            `json:"confidence"`
	DetectedLanguage string             `json:"detected_language,omitempty"`
	Blocks           []BlockTranslation `json:"text_blocks"`
	Meta             ProcessingMeta     `json:"metadata"`
	CreatedAt        time.Time          `json:"created_at"`
}
