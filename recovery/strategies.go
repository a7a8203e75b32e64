package recovery

import (
	"fmt"
	"sync"

	"github.com/wudi/docxform/observability"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy skips broken operators and keeps rendering. Problems are
// collected and logged.
type LenientStrategy struct {
	Logger observability.Logger

	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	return &LenientStrategy{Logger: observability.OrNop(logger)}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ActionFail
		default:
		}
	}
	s.mu.Lock()
	s.errors = append(s.errors, fmt.Errorf("%s: %w", location, err))
	s.mu.Unlock()
	observability.OrNop(s.Logger).Warn("skipping broken content",
		observability.String("component", location.Component),
		observability.Int("page", location.Page),
		observability.String("operator", location.Operator),
		observability.Error("error", err),
	)
	return ActionSkip
}

// Errors returns the problems seen so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}
