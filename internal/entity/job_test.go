package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuglot/docuglot/internal/common"
)

func TestParseJobConfig_Valid(t *testing.T) {
	cfg, err := ParseJobConfig(json.RawMessage(`{"source_language":"en","target_language":"es","filename":"doc.pdf"}`))
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.SourceLanguage)
	assert.Equal(t, "es", cfg.TargetLanguage)
	assert.Equal(t, "doc.pdf", cfg.Filename)
}

func TestParseJobConfig_DefaultsSourceToAuto(t *testing.T) {
	cfg, err := ParseJobConfig(json.RawMessage(`{"target_language":"de"}`))
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.SourceLanguage)
}

func TestParseJobConfig_NormalizesCase(t *testing.T) {
	cfg, err := ParseJobConfig(json.RawMessage(`{"source_language":" EN ","target_language":"ES"}`))
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.SourceLanguage)
	assert.Equal(t, "es", cfg.TargetLanguage)
}

func TestParseJobConfig_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty blob", ""},
		{"not json", "not-json"},
		{"missing target", `{"source_language":"en"}`},
		{"unsupported target", `{"target_language":"xx"}`},
		{"unknown field", `{"target_language":"es","retries":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJobConfig(json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrConfiguration)
		})
	}
}
