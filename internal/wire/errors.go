// errors.go — the §7 error taxonomy as self-describing snake_case wire
// strings paired with Go sentinel-style error values, the same "every code
// tells the caller what to do next, no lookup table" shape the reference
// corpus uses for its own structured tool-call errors.
package wire

import "fmt"

// Kind is one error kind from the §7 taxonomy.
type Kind string

const (
	KindParseError      Kind = "parse_error"
	KindInvalidArgument Kind = "invalid_argument"
	KindPolicyDenied    Kind = "policy_denied"
	KindStaleRef        Kind = "stale_ref"
	KindNotFound        Kind = "not_found"
	KindTimeout         Kind = "timeout"
	KindDriverError     Kind = "driver_error"
	KindAuthError       Kind = "auth_error"
	KindKeyMissing      Kind = "key_missing"
	KindInvalidName     Kind = "invalid_name"
	KindNotLaunched     Kind = "not_launched"
)

// Error is a typed daemon error carrying its wire Kind alongside a
// human-readable message. Response payloads surface only Error() — Kind is
// for callers (the gate, tests) that need to branch on taxonomy rather than
// string-match a message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind, wrapping an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns KindDriverError, the catch-all for errors
// the daemon didn't classify itself (e.g. surfaced from a BrowserBackend).
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return KindDriverError
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
