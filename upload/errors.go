package upload

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrDuplicate is a skip outcome: the file is already stored, nothing was written
	ErrDuplicate = errors.New("file already uploaded")
	ErrWrite     = errors.New("could not store file")
	ErrTracking  = errors.New("could not record upload ownership")
	ErrTimeout   = errors.New("file processing timed out")
	ErrInvalid   = errors.New("invalid file")
	ErrNotOwned  = errors.New("media not owned by caller")
)

// Machine readable codes returned with per-file results
const (
	CodeUnsupportedType = "unsupported_type"
	CodeDuplicate       = "duplicate"
	CodeWriteError      = "write_error"
	CodeTrackingError   = "tracking_error"
	CodeTimeout         = "timeout"
	CodeInvalid         = "invalid"
	CodeInternal        = "internal"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrDuplicate):
		return CodeDuplicate
	case errors.Is(err, ErrUnsupportedContentType):
		return CodeUnsupportedType
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrTracking):
		return CodeTrackingError
	case errors.Is(err, ErrWrite):
		return CodeWriteError
	case errors.Is(err, ErrInvalid):
		return CodeInvalid
	}
	return CodeInternal
}
