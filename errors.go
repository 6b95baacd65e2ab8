package loadorder

import (
	"errors"
	"fmt"

	goerrors "github.com/agilira/go-errors"
)

// Code identifies the kind of failure or warning a call can produce. The
// set is closed: callers can safely switch on it without a default case
// swallowing future additions silently, since any addition here is a
// breaking change to the module.
type Code string

const (
	// CodeBadFilename: a plugin or master name could not be represented in
	// Windows-1252 while writing an active-list or load-order file.
	// Warning severity: the offending name is skipped, the rest is written.
	CodeBadFilename Code = "LO-1000"

	// CodeLoMismatch: the load order and active-plugins files disagree on
	// relative ordering (Textfile games only). Warning severity.
	CodeLoMismatch Code = "LO-1001"

	// CodeInvalidList: an active-plugins or load-order file line could not
	// be parsed and was skipped. Warning severity.
	CodeInvalidList Code = "LO-1002"

	// CodeFileNotFound: a plugin file named in a mutation call does not
	// exist in the plugins folder, with or without a .ghost suffix.
	CodeFileNotFound Code = "LO-2000"

	// CodeFileReadFail: a plugin header could not be parsed.
	CodeFileReadFail Code = "LO-2001"

	// CodeFileWriteFail: an active-list or load-order file could not be
	// written.
	CodeFileWriteFail Code = "LO-2002"

	// CodeFileRenameFail: un-ghosting a plugin (dropping its .ghost suffix)
	// failed.
	CodeFileRenameFail Code = "LO-2003"

	// CodeTimestampReadFail: a plugin's modification time could not be read.
	CodeTimestampReadFail Code = "LO-2004"

	// CodeTimestampWriteFail: a plugin's modification time could not be set
	// (Timestamp-method games only).
	CodeTimestampWriteFail Code = "LO-2005"

	// CodeInvalidArgs: a caller passed an argument that is structurally
	// invalid for the operation (unknown plugin name, out-of-range position,
	// unsupported game/method combination, more than 255 active plugins).
	CodeInvalidArgs Code = "LO-3000"
)

var warningCodes = map[Code]bool{
	CodeBadFilename: true,
	CodeLoMismatch:  true,
	CodeInvalidList: true,
}

// IsWarning reports whether code represents a recoverable condition that a
// call can surface without failing outright.
func (c Code) IsWarning() bool {
	return warningCodes[c]
}

// Error is the error type returned by every exported operation in this
// package. It wraps a go-errors.Error so callers that already know the
// go-errors idiom (WithContext, severity, Unwrap) get it for free.
type Error struct {
	inner *goerrors.Error
	code  Code
}

func newError(code Code, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	severity := "error"
	if code.IsWarning() {
		severity = "warning"
	}
	return &Error{
		code:  code,
		inner: goerrors.New(goerrors.ErrorCode(code), msg).WithSeverity(severity),
	}
}

func wrapError(code Code, cause error, format string, args ...interface{}) *Error {
	e := newError(code, format, args...)
	if cause != nil {
		e.inner = e.inner.WithContext("cause", cause.Error())
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.inner.Error()
}

// Code returns the closed error code identifying the failure.
func (e *Error) Code() Code {
	return e.code
}

// IsWarning reports whether this error is a recoverable warning rather than
// a call-aborting failure.
func (e *Error) IsWarning() bool {
	return e.code.IsWarning()
}

// Unwrap exposes the underlying go-errors.Error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.inner
}

// HasCode reports whether err, or any error it wraps, carries code.
func HasCode(err error, code Code) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.code == code
	}
	return false
}

// Warning is a non-fatal condition recorded by the most recently completed
// Handle call. Unlike the C API this module is distilled from, which stores
// a single process-global error string, each Handle keeps its own slice of
// warnings so that concurrent Handles for different games never interfere.
type Warning struct {
	Code    Code
	Message string
}

func warningFromError(err *Error) Warning {
	return Warning{Code: err.code, Message: err.inner.Error()}
}
