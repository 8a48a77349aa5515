// Package szerr defines the error kinds surfaced by the compression core.
//
// Every stage of the pipeline (predictor, outlier gatherer, Huffman codec,
// archive orchestrator) fails, when it fails at all, with one of a small set
// of kinds. Callers that need to distinguish a recoverable condition (the
// Huffman codec's width fallback handles CapacityExceeded internally and
// never surfaces it) from a fatal one can test with errors.Is against the
// sentinel Kind values below.
package szerr

import "fmt"

// Kind classifies a failure from the compression core.
type Kind int

// Error kinds, as enumerated by the core's error handling design.
const (
	// ConfigInvalid reports a malformed configuration: radius <= 0,
	// pardeg <= 0, error bound <= 0, a zero dimension, or an input length
	// that does not match the shape.
	ConfigInvalid Kind = iota
	// CapacityExceeded reports that a fixed-size buffer could not hold its
	// output: too many outliers for the configured density factor, or a
	// Huffman code word that does not fit in the attempted symbol width.
	CapacityExceeded
	// OutputInflation reports that a compressed result exceeded the
	// reserved output buffer; the caller's configuration is treated as a
	// usage error rather than retried automatically.
	OutputInflation
	// DeviceFailure reports a failure from a pipeline stage unrelated to
	// the data itself (in the reference implementation, an asynchronous
	// device error; here, any stage that cannot make progress).
	DeviceFailure
	// HeaderInvalid reports that an archive's header failed structural
	// validation on decompress: bad magic, non-monotonic entry table, or an
	// entry table whose end does not match the blob length.
	HeaderInvalid
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "config invalid"
	case CapacityExceeded:
		return "capacity exceeded"
	case OutputInflation:
		return "output inflation"
	case DeviceFailure:
		return "device failure"
	case HeaderInvalid:
		return "header invalid"
	default:
		return fmt.Sprintf("szerr.Kind(%d)", int(k))
	}
}

// E wraps an underlying error with the Kind of failure it represents and a
// short stage-local message, matching the detail level of the teacher's
// errutil.Newf call sites: enough to locate the failing stage without
// duplicating the wrapped error's own text.
type E struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *E) Unwrap() error {
	return e.Err
}

// Is reports whether e was produced with the given Kind, for use with
// errors.Is(err, szerr.CapacityExceeded) style checks by callers that only
// care about the kind, not the wrapped error value. Kind itself implements
// error so it can be passed as the target of errors.Is.
func (e *E) Is(target error) bool {
	k, ok := target.(Kind)
	if !ok {
		return false
	}
	return e.Kind == k
}

func (k Kind) Error() string { return k.String() }

// New returns a new *E of the given kind with no wrapped error.
func New(kind Kind, msg string) error {
	return &E{Kind: kind, Msg: msg}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &E{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and a stage-local message to an existing error. Wrap
// returns nil if err is nil, so call sites can write
// `return szerr.Wrap(szerr.DeviceFailure, "predictor", err)` unconditionally
// after an `if err != nil` guard without a second nil check.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &E{Kind: kind, Msg: msg, Err: err}
}
