// Package titaniumerr defines Titanium's structured error taxonomy. Every
// error the storage engine returns carries a Kind so callers — and the
// recovery scanner's corruption/fatal split — can classify failures with
// errors.As instead of string matching.
package titaniumerr

import (
	"errors"
	"fmt"
)

// Kind identifies which class of failure an Error represents.
type Kind int

const (
	// IO covers filesystem failures with no more specific classification.
	IO Kind = iota
	// CRCMismatch means a header or body CRC check failed.
	CRCMismatch
	// VarintDecode means a varint exceeded its shift ceiling before
	// terminating.
	VarintDecode
	// InvalidData means a decoded length field exceeded a configured
	// maximum, or a key failed UTF-8 validation.
	InvalidData
	// ConfigError means a configuration snapshot failed validation.
	ConfigError
	// UnexpectedEOF means a read came up short inside a record.
	UnexpectedEOF
	// Overflow means the sequence-number counter would wrap past its
	// 64-bit range.
	Overflow
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "io"
	case CRCMismatch:
		return "crc_mismatch"
	case VarintDecode:
		return "varint_decode"
	case InvalidData:
		return "invalid_data"
	case ConfigError:
		return "config_error"
	case UnexpectedEOF:
		return "unexpected_eof"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Error is the structured error type returned across Titanium's packages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("titanium: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("titanium: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error of the given kind with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsCorruption reports whether err belongs to the "corruption-class" set
// that the recovery scanner recovers from by truncating a file: CRC
// mismatch, varint decode failure, unexpected EOF, or invalid data.
func IsCorruption(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case CRCMismatch, VarintDecode, UnexpectedEOF, InvalidData:
		return true
	default:
		return false
	}
}
