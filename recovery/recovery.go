package recovery

import (
	"fmt"
	"runtime/debug"

	"github.com/wudi/docxform/docerr"
)

// Strategy decides what happens when a recoverable problem is found while
// interpreting document content.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

type Location struct {
	Page      int
	Operator  string
	Offset    int64
	Component string
}

func (l Location) String() string {
	if l.Operator != "" {
		return fmt.Sprintf("%s page %d op %q at %d", l.Component, l.Page, l.Operator, l.Offset)
	}
	return fmt.Sprintf("%s page %d at %d", l.Component, l.Page, l.Offset)
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionWarn
)

type Context interface{ Done() <-chan struct{} }

// Guard runs fn and converts a panic into a ProcessingFault.
func Guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &docerr.Error{
				Kind: docerr.ProcessingFault,
				Op:   op,
				Msg:  fmt.Sprintf("panic: %v", r),
				Err:  &PanicError{Value: r, Stack: debug.Stack()},
			}
		}
	}()
	return fn()
}

// PanicError carries a recovered panic value and the stack where it happened.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic: %v", p.Value) }
