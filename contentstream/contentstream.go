// Package contentstream reads and writes PDF page content streams.
package contentstream

import (
	"context"
	"fmt"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/recovery"
)

// HandlerFunc executes one operation.
type HandlerFunc func(op Operation) error

// Processor dispatches operations to registered handlers. Operators without
// a handler are ignored. Handler failures go through the recovery strategy.
type Processor struct {
	handlers  map[string]HandlerFunc
	strategy  recovery.Strategy
	Page      int
	Component string
}

func NewProcessor(strategy recovery.Strategy) *Processor {
	if strategy == nil {
		strategy = recovery.NewStrictStrategy()
	}
	return &Processor{handlers: make(map[string]HandlerFunc), strategy: strategy, Component: "contentstream"}
}

func (p *Processor) RegisterHandler(op string, h HandlerFunc) { p.handlers[op] = h }

// Process parses data and runs the resulting operations.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	ops, err := Parse(data)
	if err != nil {
		if p.strategy.OnError(ctx, err, recovery.Location{Page: p.Page, Component: p.Component}) == recovery.ActionFail {
			return docerr.Wrap(docerr.CorruptDocument, p.Component, err)
		}
	}
	return p.Run(ctx, ops)
}

// Run executes already parsed operations.
func (p *Processor) Run(ctx context.Context, ops []Operation) error {
	for i, op := range ops {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		h, ok := p.handlers[op.Operator]
		if !ok {
			continue
		}
		if err := h(op); err != nil {
			loc := recovery.Location{Page: p.Page, Operator: op.Operator, Offset: op.Offset, Component: p.Component}
			if p.strategy.OnError(ctx, err, loc) == recovery.ActionFail {
				return docerr.Wrap(docerr.CorruptDocument, p.Component, fmt.Errorf("%s: %w", loc, err))
			}
		}
	}
	return nil
}
