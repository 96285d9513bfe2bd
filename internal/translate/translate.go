package translate

import (
	"context"
	"fmt"

	"github.com/docuglot/docuglot/internal/common"
)

// Request is one text to translate. SourceLanguage may be "auto", in which
// case the provider resolves the language itself.
type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	Context        string // optional surrounding text or document hint
}

// Result carries translated text with the resolved language pair.
type Result struct {
	TranslatedText string
	Confidence     float32
	SourceLanguage string
	TargetLanguage string
}

// Translator is the interface the orchestrator depends on.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
	Name() string
}

// UpstreamError is a non-2xx reply from the backing provider. It wraps
// ErrTranslationFailure and keeps enough detail to log and propagate.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider status %d: %s", e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return common.ErrTranslationFailure
}

// CheckRequest enforces the adapter input contract.
func CheckRequest(req Request) error {
	if req.Text == "" {
		return common.WrapError(common.ErrTranslationFailure, "empty input text")
	}
	if req.TargetLanguage == "" {
		return common.WrapError(common.ErrTranslationFailure, "target language is required")
	}
	return nil
}
