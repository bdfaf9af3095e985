package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Format is the declared format of an uploaded file.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOC      Format = "doc"
	FormatDOCX     Format = "docx"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
)

var supportedFormats = map[Format]bool{
	FormatPDF:      true,
	FormatDOC:      true,
	FormatDOCX:     true,
	FormatText:     true,
	FormatMarkdown: true,
}

// Supported reports whether f is one of the enumerated formats.
func (f Format) Supported() bool {
	return supportedFormats[f]
}

// FormatFromFilename derives the declared format from the file extension.
func FormatFromFilename(filename string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	f := Format(ext)
	if !f.Supported() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	return f, nil
}

// AllowedExtensions lists the upload allowlist with leading dots.
func AllowedExtensions() []string {
	return []string{".pdf", ".txt", ".doc", ".docx", ".md"}
}

// ValidateOwnerID rejects owner ids that are empty or could not be used as
// part of a stored file name.
func ValidateOwnerID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	case strings.ContainsAny(id, "/\\\x00") || id == "." || id == "..":
		return fmt.Errorf("%w: owner id %q contains path characters", ErrValidation, id)
	}
	return nil
}

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded file owned by a single user.
type Document struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Filename    string         `json:"filename"`
	Format      Format         `json:"format"`
	Size        int64          `json:"size"`
	StoragePath string         `json:"path"`
	Title       string         `json:"title,omitempty"`
	Status      DocumentStatus `json:"status"`
	TotalChunks int            `json:"total_chunks"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IngestResult reports the outcome of one uploaded file.
type IngestResult struct {
	Filename      string         `json:"filename"`
	Document      *Document      `json:"document,omitempty"`
	Status        DocumentStatus `json:"status"`
	ChunksIndexed int            `json:"chunks_indexed"`
	Error         string         `json:"error,omitempty"`
	Err           error          `json:"-"`
}
