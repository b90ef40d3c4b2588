package constants

import "strings"

// FileFormats holds the recognized statement file formats.
// PDF is recognized but not processable; the parser rejects it with a
// typed error instead of silently skipping the file.
var FileFormats = []string{"CSV", "XLSX", "PDF"}

// AllowedExtensions holds the file extensions the ingestion pipeline accepts.
var AllowedExtensions = map[string]struct{}{
	"csv":  {},
	"xlsx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
