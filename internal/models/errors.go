package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrExtraction         = errors.New("extraction failed")
	ErrInvalidChunkConfig = errors.New("invalid chunk config")
	ErrIndexing           = errors.New("indexing failed")
	ErrRetrieval          = errors.New("retrieval failed")
	ErrGeneration         = errors.New("generation failed")
	ErrValidation         = errors.New("validation failed")

	// ErrCancelled marks a query abandoned by its client mid-stream.
	ErrCancelled = errors.New("client cancelled")

	ErrNotFound = errors.New("not found")
)

// IndexingError reports how far an indexing call got before it failed.
type IndexingError struct {
	DocumentID string
	Attempted  int
	Indexed    int
	Err        error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing document %s: %d of %d chunks indexed: %v", e.DocumentID, e.Indexed, e.Attempted, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

func (e *IndexingError) Is(target error) bool { return target == ErrIndexing }
