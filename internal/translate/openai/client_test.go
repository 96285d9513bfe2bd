package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/translate"
)

func chatReply(t *testing.T, content string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return b
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini"}, nil)
}

func TestTranslate_Success(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		_, _ = w.Write(chatReply(t, `{"translated_text":"Hola mundo","detected_source_language":"en","confidence":0.97}`))
	})

	res, err := c.Translate(context.Background(), translate.Request{
		Text:           "Hello world",
		SourceLanguage: "auto",
		TargetLanguage: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "Hola mundo", res.TranslatedText)
	assert.Equal(t, "en", res.SourceLanguage, "auto source resolves to the detected language")
	assert.Equal(t, "es", res.TargetLanguage)
	assert.Equal(t, float32(0.97), res.Confidence)
}

func TestTranslate_ExplicitSourceWins(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatReply(t, `{"translated_text":"Hallo","detected_source_language":"nl","confidence":0.8}`))
	})

	res, err := c.Translate(context.Background(), translate.Request{
		Text:           "Hello",
		SourceLanguage: "en",
		TargetLanguage: "de",
	})
	require.NoError(t, err)
	assert.Equal(t, "en", res.SourceLanguage)
}

func TestTranslate_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	_, err := c.Translate(context.Background(), translate.Request{Text: "Hello", TargetLanguage: "es"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTranslationFailure)

	var upErr *translate.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusTooManyRequests, upErr.StatusCode)
	assert.Contains(t, upErr.Body, "rate limited")
}

func TestTranslate_NoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Translate(context.Background(), translate.Request{Text: "Hello", TargetLanguage: "es"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTranslationFailure)
}

func TestTranslate_SchemaViolationRejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "sure, here is the translation"},
		{"missing translated_text", `{"detected_source_language":"en","confidence":0.9}`},
		{"confidence out of range", `{"translated_text":"Hola","detected_source_language":"en","confidence":3.5}`},
		{"extra field", `{"translated_text":"Hola","detected_source_language":"en","confidence":0.9,"notes":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(chatReply(t, tt.content))
			})
			_, err := c.Translate(context.Background(), translate.Request{Text: "Hello", TargetLanguage: "es"})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrTranslationFailure)
		})
	}
}

func TestTranslate_EmptyText(t *testing.T) {
	c := NewClient(Config{APIKey: "k"}, nil)
	_, err := c.Translate(context.Background(), translate.Request{TargetLanguage: "es"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTranslationFailure)
}

func TestName(t *testing.T) {
	c := NewClient(Config{APIKey: "k", Model: "gpt-4o"}, nil)
	assert.Equal(t, "openai/gpt-4o", c.Name())
}
