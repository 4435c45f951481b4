package tilekernel

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories a caller can act on.
// Every error surfaced across the read/write/query paths carries a Kind so
// that CLI exit codes and retry policy can be derived without string
// matching.
type Kind int

const (
	// KindInternal is the catch-all for defects that should never surface
	// to a well-formed caller.
	KindInternal Kind = iota
	KindInvalidRange
	KindOOB
	KindInvalidLayout
	KindBounds
	KindUnknownName
	KindBufferOverflow
	KindUnsplittableOverflow
	KindIO
	KindCodec
	KindFormat
	KindMetadata
	KindIncompleteWrite
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRange:
		return "InvalidRange"
	case KindOOB:
		return "OOBError"
	case KindInvalidLayout:
		return "InvalidLayout"
	case KindBounds:
		return "BoundsError"
	case KindUnknownName:
		return "UnknownName"
	case KindBufferOverflow:
		return "BufferOverflow"
	case KindUnsplittableOverflow:
		return "UnsplittableOverflow"
	case KindIO:
		return "IOError"
	case KindCodec:
		return "CodecError"
	case KindFormat:
		return "FormatError"
	case KindMetadata:
		return "MetadataError"
	case KindIncompleteWrite:
		return "IncompleteWrite"
	default:
		return "InternalError"
	}
}

// KernelError is the concrete error type returned from the engine. Wrap
// third-party errors (VFS, filter pipeline) with Fail so the Kind survives
// across errors.Join boundaries and errors.Is/As still works.
type KernelError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *KernelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *KernelError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrOOB) style sentinel checks work against the
// Kind rather than pointer identity.
func (e *KernelError) Is(target error) bool {
	t, ok := target.(*KernelError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Fail constructs a KernelError of the given kind, keeping any underlying
// cause as Err so it stays reachable through Unwrap.
func Fail(kind Kind, msg string, cause error) error {
	return &KernelError{Kind: kind, Msg: msg, Err: cause}
}

// sentinels for errors.Is comparisons; these carry a generic message and no
// cause, and errors.Is matches them by Kind.
var (
	ErrInvalidRange        = &KernelError{Kind: KindInvalidRange, Msg: "invalid range"}
	ErrOOB                 = &KernelError{Kind: KindOOB, Msg: "range outside domain"}
	ErrInvalidLayout       = &KernelError{Kind: KindInvalidLayout, Msg: "invalid layout"}
	ErrBounds              = &KernelError{Kind: KindBounds, Msg: "coordinate outside domain"}
	ErrUnknownName         = &KernelError{Kind: KindUnknownName, Msg: "unknown attribute or dimension"}
	ErrBufferOverflow      = &KernelError{Kind: KindBufferOverflow, Msg: "caller buffer too small"}
	ErrUnsplittableOverflow = &KernelError{Kind: KindUnsplittableOverflow, Msg: "partition cannot be split further"}
	ErrIO                  = &KernelError{Kind: KindIO, Msg: "vfs io failure"}
	ErrCodec               = &KernelError{Kind: KindCodec, Msg: "filter pipeline failure"}
	ErrFormat              = &KernelError{Kind: KindFormat, Msg: "on-disk format mismatch"}
	ErrMetadata            = &KernelError{Kind: KindMetadata, Msg: "corrupt fragment metadata"}
	ErrIncompleteWrite     = &KernelError{Kind: KindIncompleteWrite, Msg: "misaligned global-order write"}
)

// ExitCode maps a Kind to the CLI exit code from the CLI's error-reporting contract.
func (k Kind) ExitCode() int {
	switch k {
	case KindInvalidRange, KindBounds, KindUnknownName:
		return 1
	case KindIO:
		return 2
	case KindFormat, KindCodec:
		return 3
	case KindOOB:
		return 4
	case KindUnsplittableOverflow:
		return 5
	case KindInvalidLayout, KindBufferOverflow, KindMetadata, KindIncompleteWrite:
		return 64
	default:
		return 64
	}
}

// AsKernelError recovers the *KernelError behind err, if any, for callers
// (e.g. the CLI's top-level error handler) that need the Kind without
// importing errors.As boilerplate at every call site.
func AsKernelError(err error) (*KernelError, bool) {
	var ke *KernelError
	ok := errors.As(err, &ke)
	return ke, ok
}

// errAs recovers the Kind of an arbitrary error, defaulting to
// KindInternal when it wasn't produced by this package.
func errAs(err error) Kind {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindInternal
}
