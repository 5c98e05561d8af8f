package prompttypes

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures reported by the composition engine.
type ErrorKind int

// Error kinds surfaced by registries, the template parser and the async worker.
const (
	KindInvalidParameter ErrorKind = iota + 1
	KindNotInitialized
	KindThemeNotFound
	KindSegmentNotFound
	KindTemplateParseError
	KindInheritanceCycle
	KindDuplicateName
	KindAsyncTimeout
	KindRenderFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidParameter:
		return "invalid parameter"
	case KindNotInitialized:
		return "not initialized"
	case KindThemeNotFound:
		return "theme not found"
	case KindSegmentNotFound:
		return "segment not found"
	case KindTemplateParseError:
		return "template parse error"
	case KindInheritanceCycle:
		return "inheritance cycle"
	case KindDuplicateName:
		return "duplicate name"
	case KindAsyncTimeout:
		return "async timeout"
	case KindRenderFailed:
		return "render failed"
	default:
		return "unknown error"
	}
}

// Error is the typed error returned by lumen components.
// Op names the failing operation and Name the theme, segment or template involved.
type Error struct {
	Kind ErrorKind
	Op   string
	Name string
	Err  error
}

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrInvalidParameter = &Error{Kind: KindInvalidParameter}
	ErrNotInitialized   = &Error{Kind: KindNotInitialized}
	ErrThemeNotFound    = &Error{Kind: KindThemeNotFound}
	ErrSegmentNotFound  = &Error{Kind: KindSegmentNotFound}
	ErrTemplateParse    = &Error{Kind: KindTemplateParseError}
	ErrInheritanceCycle = &Error{Kind: KindInheritanceCycle}
	ErrDuplicateName    = &Error{Kind: KindDuplicateName}
	ErrAsyncTimeout     = &Error{Kind: KindAsyncTimeout}
	ErrRenderFailed     = &Error{Kind: KindRenderFailed}
)

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, op, name string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Name)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
