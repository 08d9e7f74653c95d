// Package validator checks documents handed over by the decoding
// collaborator before they reach the index builder. It returns per-field
// error details.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/errors"
)

const (
	maxIDLength   = 255
	maxNameLength = 1024
	maxTextLength = 64 << 20
)

// ValidationError holds per-field validation failure messages. It matches
// ErrInvalidInput with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateDocument checks identity, metadata and text constraints. An empty
// text is valid: the document is indexed without terms.
func ValidateDocument(doc document.Document) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(doc.ID)
	switch {
	case id == "":
		errs["id"] = "id is required"
	case id != doc.ID:
		errs["id"] = "id must not have leading or trailing whitespace"
	case len(doc.ID) > maxIDLength:
		errs["id"] = fmt.Sprintf("id must be at most %d bytes", maxIDLength)
	}
	if strings.TrimSpace(doc.Name) == "" {
		errs["name"] = "name is required"
	} else if len(doc.Name) > maxNameLength {
		errs["name"] = fmt.Sprintf("name must be at most %d bytes", maxNameLength)
	}
	if doc.Type == document.FileTypeUnknown {
		errs["file_type"] = "file type is required"
	}
	if len(doc.Text) > maxTextLength {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
	} else if !utf8.ValidString(doc.Text) {
		errs["text"] = "text must be valid UTF-8"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
