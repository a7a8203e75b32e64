// Package docerr defines the error taxonomy surfaced by the engine.
//
// Every failure that leaves a tool adapter is mapped onto exactly one Kind.
// Packages that know what went wrong wrap with New/Wrap; everything else is
// classified by KindOf at the engine boundary.
package docerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	// ProcessingFault is the zero value so unknown failures never masquerade
	// as something more specific.
	ProcessingFault Kind = iota
	Validation
	CorruptDocument
	WrongPassword
	UnsupportedContent
	Canceled
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case CorruptDocument:
		return "corrupt_document"
	case WrongPassword:
		return "wrong_password"
	case UnsupportedContent:
		return "unsupported_content"
	case Canceled:
		return "canceled"
	default:
		return "processing_fault"
	}
}

// UserMessage is the human readable text shown for a failure of kind k.
func (k Kind) UserMessage() string {
	switch k {
	case Validation:
		return "The selected files do not match what this tool expects."
	case CorruptDocument:
		return "The file could not be read. It may be damaged or in an unsupported format."
	case WrongPassword:
		return "The password is incorrect."
	case UnsupportedContent:
		return "The file does not contain anything this tool can convert."
	case Canceled:
		return "The operation was canceled."
	default:
		return "Something went wrong while processing the file."
	}
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, docerr.ErrWrongPassword)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation         = &Error{Kind: Validation}
	ErrCorruptDocument    = &Error{Kind: CorruptDocument}
	ErrWrongPassword      = &Error{Kind: WrongPassword}
	ErrUnsupportedContent = &Error{Kind: UnsupportedContent}
	ErrProcessingFault    = &Error{Kind: ProcessingFault}
	ErrCanceled           = &Error{Kind: Canceled}
)

// New returns a classified error with a formatted message.
func New(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. An err that is already classified keeps its kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are ProcessingFault,
// except context cancellation and deadline errors, which are Canceled.
func KindOf(err error) Kind {
	if err == nil {
		return ProcessingFault
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Canceled
	}
	return ProcessingFault
}

// Classify returns err as an *Error, classifying it with KindOf if needed.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return &Error{Kind: KindOf(err), Op: op, Err: err}
}
