package analyzer

import (
	"errors"
	"fmt"
	"time"
)

// ErrDecode wraps failures to decode the uploaded bytes as an image.
var ErrDecode = errors.New("cannot identify image file")

// ErrClosed is returned by Predict after Close.
var ErrClosed = errors.New("analyzer closed")

// tooBusyError signals that no session became free within the queue timeout.
type tooBusyError struct{ wait time.Duration }

func (e tooBusyError) Error() string { return "too busy: no inference session free after " + e.wait.String() }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// dependencyUnavailableError signals a missing runtime dependency (e.g. the
// onnxruntime shared library or a CUDA provider).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}

// unsupportedOperatorError is returned when the pure-Go runtime lacks an
// operator the model graph uses.
type unsupportedOperatorError struct{ op, detail string }

func (e unsupportedOperatorError) Error() string {
	msg := fmt.Sprintf("gorgonia target does not implement ONNX operator %s", e.op)
	if e.detail != "" {
		msg += " (" + e.detail + ")"
	}
	return msg + "; use target cpu or cuda for this model"
}

// IsUnsupportedOperator reports whether err names an operator the gorgonia
// target cannot run.
func IsUnsupportedOperator(err error) bool {
	var uo unsupportedOperatorError
	return errors.As(err, &uo)
}
