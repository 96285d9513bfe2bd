package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/common"
)

// Job represents a translation job for data transfer between layers.
// Rows are created by the upload API in state "pending"; only the worker
// mutates them afterwards, and only forward: pending -> processing ->
// completed|failed.
type Job struct {
	ID           uuid.UUID           `json:"id"`
	UserID       uuid.UUID           `json:"user_id"`
	AssetID      uuid.UUID           `json:"asset_id"`
	Kind         constants.JobKind   `json:"kind"`
	Status       constants.JobStatus `json:"status"`
	Config       json.RawMessage     `json:"config"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// JobConfig is the typed shape of the job's config blob. It is parsed once,
// at admission, before the pipeline performs any side effect.
type JobConfig struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	AssetType      string `json:"asset_type,omitempty"`
	Filename       string `json:"filename,omitempty"`
}

// ParseJobConfig decodes and validates a job config blob.
func ParseJobConfig(raw json.RawMessage) (JobConfig, error) {
	var cfg JobConfig
	if len(raw) == 0 {
		return cfg, common.WrapError(common.ErrConfiguration, "empty job config")
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode job config: %w: %v", common.ErrConfiguration, err)
	}
	cfg.SourceLanguage = strings.ToLower(strings.TrimSpace(cfg.SourceLanguage))
	cfg.TargetLanguage = strings.ToLower(strings.TrimSpace(cfg.TargetLanguage))
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = constants.LanguageAuto
	}
	if cfg.TargetLanguage == "" {
		return cfg, common.WrapError(common.ErrConfiguration, "target_language is required")
	}
	if !constants.IsSupportedLanguage(cfg.TargetLanguage) {
		return cfg, fmt.Errorf("unsupported target_language %q: %w", cfg.TargetLanguage, common.ErrConfiguration)
	}
	return cfg, nil
}
