package translate

import (
	"context"

	"github.com/abadojack/whatlanggo"

	"github.com/docuglot/docuglot/constants"
)

// Noop is a pass-through provider for environments without credentials.
// It returns the input text unchanged but still resolves "auto" sources.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Name() string { return "noop" }

func (Noop) Translate(ctx context.Context, req Request) (Result, error) {
	if err := CheckRequest(req); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	source := req.SourceLanguage
	if source == "" || source == constants.LanguageAuto {
		source = whatlanggo.DetectLang(req.Text).Iso6391()
		if source == "" {
			source = constants.DefaultSourceLanguage
		}
	}
	return Result{
		TranslatedText: req.Text,
		Confidence:     1.0,
		SourceLanguage: source,
		TargetLanguage: req.TargetLanguage,
	}, nil
}
