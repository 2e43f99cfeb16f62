package catalog

import "errors"

// Kind is a stable error category. Callers branch on Kind, never on messages.
type Kind string

const (
	KindSourceUnavailable    Kind = "SourceUnavailable"
	KindSourceMalformed      Kind = "SourceMalformed"
	KindUnknownChainAlias    Kind = "UnknownChainAlias"
	KindInvalidAddress       Kind = "InvalidAddress"
	KindUnknownProtocol      Kind = "UnknownProtocol"
	KindInvalidContractName  Kind = "InvalidContractName"
	KindConflict             Kind = "Conflict"
	KindWriteError           Kind = "WriteError"
	KindAllowlistUnavailable Kind = "AllowlistUnavailable"
)

// Error is the structured error used across the pipeline.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError builds a structured error without a cause.
func NewError(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError builds a structured error around cause.
func WrapError(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
