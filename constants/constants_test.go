package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapMIMEToDocumentType(t *testing.T) {
	assert.Equal(t, PDF, MapMIMEToDocumentType("application/pdf"))
	assert.Equal(t, IMAGE, MapMIMEToDocumentType("image/png"))
	assert.Equal(t, TXT, MapMIMEToDocumentType("text/plain; charset=utf-8"))
	assert.Equal(t, TXT, MapMIMEToDocumentType(" TEXT/PLAIN "))
	assert.Empty(t, MapMIMEToDocumentType("video/mp4"))
	assert.Empty(t, MapMIMEToDocumentType(""))
}

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, "pdf", NormalizeExt(".PDF"))
	assert.Equal(t, "png", NormalizeExt("png"))
}

func TestIsSupportedLanguage(t *testing.T) {
	assert.True(t, IsSupportedLanguage("es"))
	assert.True(t, IsSupportedLanguage(" EN "))
	assert.False(t, IsSupportedLanguage("xx"))
	assert.False(t, IsSupportedLanguage("auto"))
	assert.False(t, IsSupportedLanguage(""))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}
