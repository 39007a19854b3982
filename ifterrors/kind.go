// Package ifterrors defines the error taxonomy shared by the IFT patch-map
// codec, the glyph-keyed patch applier, and the segmentation planner.
//
// Every public operation in this module that can fail returns an error whose
// errors.As target is *ifterrors.Error, carrying one of the Kind values
// below. Callers that need to branch on failure mode should use errors.As
// rather than string-matching Error().
package ifterrors

import "fmt"

// Kind identifies the category of failure reported by an Error.
type Kind int

const (
	// NotFound indicates a table, glyph id, or patch-map entry that should
	// be present in a font or patch is absent.
	NotFound Kind = iota + 1
	// NotEnoughInput indicates a binary decode ran out of bytes before it
	// finished parsing a field.
	NotEnoughInput
	// InvalidFormat indicates a wrong format number or a field that
	// violates the expected on-disk layout.
	InvalidFormat
	// UnknownEncoding indicates a patch encoding byte outside {0, 1, 2}.
	UnknownEncoding
	// LimitExceeded indicates an entry count or URI template length that
	// exceeds the 0xFFFF wire limit.
	LimitExceeded
	// IDMismatch indicates a patch's id[4] does not match the font's id[4].
	IDMismatch
	// OverlappingPatches indicates two patches in one batch claim the same
	// glyph id.
	OverlappingPatches
	// ClosureFailed indicates the shaping-closure collaborator returned an
	// error.
	ClosureFailed
	// Unmappable indicates the segmentation planner could not place too
	// many glyphs into patches.
	Unmappable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NOT_FOUND"
	case NotEnoughInput:
		return "NOT_ENOUGH_INPUT"
	case InvalidFormat:
		return "INVALID_FORMAT"
	case UnknownEncoding:
		return "UNKNOWN_ENCODING"
	case LimitExceeded:
		return "LIMIT_EXCEEDED"
	case IDMismatch:
		return "ID_MISMATCH"
	case OverlappingPatches:
		return "OVERLAPPING_PATCHES"
	case ClosureFailed:
		return "CLOSURE_FAILED"
	case Unmappable:
		return "UNMAPPABLE"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type returned across the public API boundary.
// It pairs a Kind with a human-readable context string and, where
// applicable, the underlying error that triggered it.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an *Error with the given kind and context message.
func New(kind Kind, context string) error {
	return &Error{Kind: kind, Context: context}
}

// Wrap constructs an *Error with the given kind and context message,
// wrapping the underlying error so that errors.Is/errors.As still see it.
func Wrap(kind Kind, context string, err error) error {
	return &Error{Kind: kind, Context: context, Err: err}
}
