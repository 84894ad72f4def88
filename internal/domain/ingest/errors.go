package ingest

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers branch on these with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrRemoteStorage = errors.New("remote storage error")
	ErrParse         = errors.New("parse error")
	ErrPersistence   = errors.New("persistence error")
)

var (
	ErrProducerNotFound = fmt.Errorf("producer %w", ErrNotFound)
	ErrFileTypeNotFound = fmt.Errorf("file type %w", ErrNotFound)
	ErrFileNotFound     = fmt.Errorf("file %w", ErrNotFound)
	ErrKMLNotFound      = fmt.Errorf("kml %w", ErrNotFound)

	ErrMissingFilename = fmt.Errorf("%w: no file selected", ErrValidation)
	ErrEmptyFile       = fmt.Errorf("%w: file is empty", ErrValidation)
	ErrFileTooLarge    = fmt.Errorf("%w: file exceeds maximum allowed size", ErrValidation)
	ErrNotKML          = fmt.Errorf("%w: file is not a KML document", ErrValidation)
	ErrMissingCode     = fmt.Errorf("%w: producer code is required", ErrValidation)
	ErrMissingName     = fmt.Errorf("%w: file name is required", ErrValidation)
)
