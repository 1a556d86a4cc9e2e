// Package xerrors defines the engine's error-kind taxonomy and wraps
// them with github.com/pkg/errors so callers retain a stack trace at the
// point of failure, matching tidbyt-gtfs's error-wrapping idiom.
package xerrors

import "github.com/pkg/errors"

// Kind identifies which of the engine's error categories an error
// belongs to.
type Kind int

const (
	// Unknown is the zero value: an error not produced by this package.
	Unknown Kind = iota
	// InvalidFeed marks a feed that is missing required fields (lat/lng,
	// agencies, an unparseable timezone). Fatal for that feed only; the
	// builder logs and skips it.
	InvalidFeed
	// IoError marks a filesystem or network failure. Fatal, surfaces to
	// the caller.
	IoError
	// NoRoute is an ordinary routing outcome: no itinerary exists.
	NoRoute
	// MatrixUnavailable marks an external pedestrian-matrix service that
	// failed after retries.
	MatrixUnavailable
	// InconsistentImage marks a violated on-disk invariant detected at
	// open time. Fatal.
	InconsistentImage
	// TooEarly marks a query start time before the expanded service
	// horizon.
	TooEarly
	// TooLate marks a query start time after the expanded service
	// horizon.
	TooLate
)

func (k Kind) String() string {
	switch k {
	case InvalidFeed:
		return "InvalidFeed"
	case IoError:
		return "IoError"
	case NoRoute:
		return "NoRoute"
	case MatrixUnavailable:
		return "MatrixUnavailable"
	case InconsistentImage:
		return "InconsistentImage"
	case TooEarly:
		return "TooEarly"
	case TooLate:
		return "TooLate"
	default:
		return "Unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New creates a new error of the given kind with the given message,
// carrying a stack trace from the call site.
func New(kind Kind, message string) error {
	return &kindError{kind: kind, err: errors.New(message)}
}

// Wrap annotates err with message and tags it with kind. If err is nil,
// Wrap returns nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, message)}
}

// Wrapf is Wrap with a format string.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// KindOf unwraps err looking for a Kind tag, returning Unknown if none is
// present.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return Unknown
}

// Is reports whether err is tagged with kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
