package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuglot/docuglot/internal/common"
)

func TestMockExtractor_SplitsLinesIntoBlocks(t *testing.T) {
	m := NewMockExtractor(nil)
	doc := "The quick brown fox jumps over the lazy dog.\n\nPlease review the attached invoice before Friday.\nThank you for your continued business.\n"

	res, err := m.Extract(context.Background(), Input{
		Data:     []byte(doc),
		MIMEType: "text/plain",
		Filename: "letter.txt",
	})
	require.NoError(t, err)

	require.Len(t, res.Blocks, 3, "blank lines produce no blocks")
	assert.Equal(t, "mock", res.Engine)
	assert.Equal(t, 1, res.Pages)
	assert.NotEmpty(t, res.Language)
	for i, b := range res.Blocks {
		assert.NotEmpty(t, b.ID)
		assert.NotEmpty(t, b.Text)
		assert.GreaterOrEqual(t, b.Confidence, float32(0))
		assert.LessOrEqual(t, b.Confidence, float32(1))
		assert.Positive(t, b.Width, "block %d", i)
		assert.Positive(t, b.Height, "block %d", i)
		if i > 0 {
			assert.Greater(t, b.Y, res.Blocks[i-1].Y, "blocks are laid out top to bottom")
		}
	}
}

func TestMockExtractor_EmptyInput(t *testing.T) {
	m := NewMockExtractor(nil)
	_, err := m.Extract(context.Background(), Input{MIMEType: "text/plain"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrOCRFailure)
}

func TestMockExtractor_UnsupportedMIME(t *testing.T) {
	m := NewMockExtractor(nil)
	_, err := m.Extract(context.Background(), Input{Data: []byte("hello"), MIMEType: "video/mp4"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrOCRFailure)
}

func TestMockExtractor_BinaryInput(t *testing.T) {
	m := NewMockExtractor(nil)
	_, err := m.Extract(context.Background(), Input{
		Data:     []byte{0xff, 0xfe, 0x00, 0x89, 0x50},
		MIMEType: "text/plain",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrOCRFailure)
}

func TestMockExtractor_WhitespaceOnlyInput(t *testing.T) {
	m := NewMockExtractor(nil)
	_, err := m.Extract(context.Background(), Input{Data: []byte("  \n\t\n  "), MIMEType: "text/plain"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrOCRFailure, "no text recognized is a failure, not an empty success")
}
