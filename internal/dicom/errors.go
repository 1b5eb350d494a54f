package dicom

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the CLI can map it to an exit code and message.
type Kind int

const (
	// KindUnknown is used for errors that did not originate in this module.
	KindUnknown Kind = iota
	// KindInvalidArguments covers bad argument counts, blank arguments, a
	// missing input file or a pre-existing output directory.
	KindInvalidArguments
	// KindIOFailure covers open, read, write, rename and close failures.
	KindIOFailure
	// KindDicomParseFailure covers byte streams that do not decode as DICOM.
	KindDicomParseFailure
	// KindSerializationFailure covers XML that could not be produced.
	KindSerializationFailure
	// KindFrameExtractionFailure covers a single image frame that could not be
	// decoded or re-encoded.
	KindFrameExtractionFailure
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidArguments:
		return "InvalidArguments"
	case KindIOFailure:
		return "IOFailure"
	case KindDicomParseFailure:
		return "DicomParseFailure"
	case KindSerializationFailure:
		return "SerializationFailure"
	case KindFrameExtractionFailure:
		return "FrameExtractionFailure"
	default:
		return "Unknown"
	}
}

// Error is a classified failure raised by one stage of an extraction run.
type Error struct {
	Kind  Kind
	Stage string // "arguments", "output directory", "metadata", "xml", "images", "document"
	Path  string // offending file or directory, if any
	Err   error
}

func (e *Error) Error() string {
	msg := e.Stage + ": " + e.Kind.String()
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FrameError reports a frame that was skipped during image export.
// Index is 0-based; the matching output file would have been {prefix}_{Index+1}.jpeg.
type FrameError struct {
	Index int
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Index+1, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// NewError builds a classified error for the given stage.
func NewError(kind Kind, stage, path string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Path: path, Err: err}
}

// InvalidArguments builds a KindInvalidArguments error.
func InvalidArguments(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArguments, Stage: "arguments", Err: fmt.Errorf(format, args...)}
}

// FrameFailure wraps a per-frame failure as a KindFrameExtractionFailure error.
func FrameFailure(path string, index int, err error) *Error {
	return &Error{
		Kind:  KindFrameExtractionFailure,
		Stage: "images",
		Path:  path,
		Err:   &FrameError{Index: index, Err: err},
	}
}

// KindOf returns the Kind of the first classified error in err's tree.
// Joined errors are searched in order.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HasKind reports whether any classified error in err's tree has the given kind.
func HasKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Kind == kind {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if HasKind(inner, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return HasKind(x.Unwrap(), kind)
	}
	return false
}
