package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuglot/docuglot/internal/common"
)

func TestFileStore_WriteThenDownload(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	key, err := s.Write(context.Background(), "user-1/doc.txt", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "user-1/doc.txt", key)

	data, err := s.Download(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestFileStore_DownloadMissingKey(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Download(context.Background(), "nope/missing.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDownloadFailure)
}

func TestFileStore_RequiresBasePath(t *testing.T) {
	_, err := NewFileStore("   ")
	require.Error(t, err)
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{"plain", "a/b.txt", "a/b.txt", false},
		{"leading slash stripped", "/a/b.txt", "a/b.txt", false},
		{"dot prefix stripped", "./a.txt", "a.txt", false},
		{"backslashes normalized", `a\b.txt`, "a/b.txt", false},
		{"inner traversal collapsed", "a/../b.txt", "b.txt", false},
		{"escape rejected", "../../etc/passwd", "", true},
		{"empty rejected", "  ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeKey(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
