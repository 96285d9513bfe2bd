package constants

import "strings"

// DocumentTypes holds the allowed values for the asset_type field in a job config.
var DocumentTypes = []string{"PDF", "IMAGE", "TXT"}

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TXT   = "TXT"
)

// SupportedMIMETypes maps the MIME types the OCR stage accepts to their document type.
var SupportedMIMETypes = map[string]string{
	"application/pdf": PDF,
	"image/png":       IMAGE,
	"image/jpeg":      IMAGE,
	"image/tiff":      IMAGE,
	"image/webp":      IMAGE,
	"text/plain":      TXT,
}

// MapMIMEToDocumentType returns the document type for a MIME type, or "" if unsupported.
// Parameters after ";" (charset etc.) are ignored.
func MapMIMEToDocumentType(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return SupportedMIMETypes[mime]
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
