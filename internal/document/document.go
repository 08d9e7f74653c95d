// Package document defines the document type handed to the index by the
// upstream decoding collaborator, together with the file-type enumeration
// used for filtering and aggregate statistics.
package document

import (
	"path/filepath"
	"strings"
	"time"
)

// FileType identifies the source format a document's text was extracted from.
type FileType string

const (
	FileTypePDF     FileType = "PDF"
	FileTypeWord    FileType = "WORD"
	FileTypeText    FileType = "TEXT"
	FileTypeUnknown FileType = ""
)

var extensions = map[string]FileType{
	".pdf":  FileTypePDF,
	".doc":  FileTypeWord,
	".docx": FileTypeWord,
	".txt":  FileTypeText,
}

// ParseFileType maps a case-insensitive name ("pdf", "Word") to a FileType.
// Any non-empty value is accepted so new formats need no code change.
func ParseFileType(s string) FileType {
	return FileType(strings.ToUpper(strings.TrimSpace(s)))
}

// FileTypeFromName derives the file type from a display name's extension.
func FileTypeFromName(name string) FileType {
	if ft, ok := extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return ft
	}
	return FileTypeUnknown
}

// Document is a unit of already-extracted plain text plus its metadata.
// A document is immutable once indexed; re-indexing replaces it wholesale.
type Document struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         FileType  `json:"file_type"`
	LastModified time.Time `json:"last_modified"`
	Text         string    `json:"text"`
}

// Metadata is a Document without its body, as returned to result consumers
// and used when the body lives in an external text source.
type Metadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         FileType  `json:"file_type"`
	LastModified time.Time `json:"last_modified"`
}

// Meta returns the document's metadata.
func (d Document) Meta() Metadata {
	return Metadata{
		ID:           d.ID,
		Name:         d.Name,
		Type:         d.Type,
		LastModified: d.LastModified,
	}
}

// WithText builds a full Document from metadata and extracted text.
func (m Metadata) WithText(text string) Document {
	return Document{
		ID:           m.ID,
		Name:         m.Name,
		Type:         m.Type,
		LastModified: m.LastModified,
		Text:         text,
	}
}
