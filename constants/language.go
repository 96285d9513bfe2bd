package constants

import "strings"

// LanguageAuto asks the pipeline to detect the source language.
const LanguageAuto = "auto"

// DefaultSourceLanguage is used when detection fails for an "auto" job.
const DefaultSourceLanguage = "en"

// supportedLanguages holds the ISO 639-1 codes the translation stage accepts
// as a target. Source languages are unconstrained ("auto" is resolved upstream).
var supportedLanguages = map[string]struct{}{
	"ar": {}, "de": {}, "en": {}, "es": {}, "fr": {}, "hi": {}, "id": {},
	"it": {}, "ja": {}, "ko": {}, "nl": {}, "pl": {}, "pt": {}, "ru": {},
	"sv": {}, "th": {}, "tr": {}, "uk": {}, "vi": {}, "zh": {},
}

// IsSupportedLanguage reports whether code is a valid translation target.
func IsSupportedLanguage(code string) bool {
	_, ok := supportedLanguages[strings.ToLower(strings.TrimSpace(code))]
	return ok
}
