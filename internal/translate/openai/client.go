package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/translate"
)

// Translate implements translate.Translator using JSON-mode chat/completions.
// The model is asked for a single object matching the translation schema; the
// reply is validated against that schema before it is trusted.
func (c *Client) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	if err := translate.CheckRequest(req); err != nil {
		return translate.Result{}, err
	}
	rid := uuid.New().String()
	start := time.Now()

	c.log.Debug("translate.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"source", req.SourceLanguage,
		"target", req.TargetLanguage,
		"text_len", len(req.Text),
	)

	schema := translate.BuildTranslationJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt(req)},
			{"role": "user", "content": req.Text},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("translate.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return translate.Result{}, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("translate.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return translate.Result{}, fmt.Errorf("%w: decode provider response: %v", common.ErrTranslationFailure, err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("translate.no_choices", "req_id", rid, "raw", string(raw))
		return translate.Result{}, common.WrapError(common.ErrTranslationFailure, "no choices in provider response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := translate.ValidateJSONAgainstSchema(schema, content); err != nil {
		c.log.Error("translate.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return translate.Result{}, fmt.Errorf("%w: %v", common.ErrTranslationFailure, err)
	}

	var out struct {
		TranslatedText string  `json:"translated_text"`
		DetectedSource string  `json:"detected_source_language"`
		Confidence     float32 `json:"confidence"`
	}
	if err := json.Unmarshal(content, &out); err != nil {
		return translate.Result{}, fmt.Errorf("%w: unmarshal translation: %v", common.ErrTranslationFailure, err)
	}

	source := strings.ToLower(out.DetectedSource)
	if req.SourceLanguage != "" && req.SourceLanguage != constants.LanguageAuto {
		source = req.SourceLanguage
	}

	c.log.Debug("translate.ok",
		"req_id", rid,
		"source", source,
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return translate.Result{
		TranslatedText: out.TranslatedText,
		Confidence:     out.Confidence,
		SourceLanguage: source,
		TargetLanguage: req.TargetLanguage,
	}, nil
}

func (c *Client) Name() string { return "openai/" + c.cfg.Model }

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: transport: %v", common.ErrTranslationFailure, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("provider response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &translate.UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

func buildSystemPrompt(req translate.Request) string {
	source := req.SourceLanguage
	if source == "" || source == constants.LanguageAuto {
		source = "the detected source language"
	}
	parts := []string{
		"You are a document translator. Return ONLY JSON that matches the JSON Schema provided.",
		fmt.Sprintf("Translate the user's text from %s to %s.", source, req.TargetLanguage),
		"Set detected_source_language to the ISO 639-1 code of the input text.",
		"Set confidence to your estimate in [0,1] of translation quality.",
		"Preserve numbers, names, and formatting. Never output null.",
	}
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		parts = append(parts, "Document context: "+ctx)
	}
	return strings.Join(parts, " ")
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
