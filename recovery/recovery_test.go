package recovery_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/observability"
	"github.com/wudi/docxform/recovery"
)

func TestRecoveryStrategies(t *testing.T) {
	loc := recovery.Location{Page: 2, Operator: "Tj", Offset: 120, Component: "render"}
	broken := errors.New("missing operand")

	t.Run("StrictStrategy", func(t *testing.T) {
		if got := recovery.NewStrictStrategy().OnError(context.Background(), broken, loc); got != recovery.ActionFail {
			t.Fatalf("strict action = %v, want fail", got)
		}
	})

	t.Run("LenientStrategy", func(t *testing.T) {
		log := observability.NewRecordingLogger()
		rec := recovery.NewLenientStrategy(log)
		if got := rec.OnError(context.Background(), broken, loc); got != recovery.ActionSkip {
			t.Fatalf("lenient action = %v, want skip", got)
		}
		errs := rec.Errors()
		if len(errs) != 1 || !errors.Is(errs[0], broken) {
			t.Fatalf("unexpected errors %v", errs)
		}
		if !strings.Contains(errs[0].Error(), `op "Tj"`) {
			t.Fatalf("location missing from %q", errs[0])
		}
		if len(log.Entries()) != 1 || log.Entries()[0].Level != "warn" {
			t.Fatalf("expected one warning, got %#v", log.Entries())
		}
	})

	t.Run("LenientStrategyCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if got := recovery.NewLenientStrategy(nil).OnError(ctx, broken, loc); got != recovery.ActionFail {
			t.Fatalf("canceled action = %v, want fail", got)
		}
	})
}

func TestGuard(t *testing.T) {
	err := recovery.Guard("filter", func() error {
		var m map[string]int
		m["x"]++
		return nil
	})
	if docerr.KindOf(err) != docerr.ProcessingFault {
		t.Fatalf("kind = %v", docerr.KindOf(err))
	}
	var pe *recovery.PanicError
	if !errors.As(err, &pe) || len(pe.Stack) == 0 {
		t.Fatalf("expected panic error with stack, got %v", err)
	}

	want := errors.New("plain")
	if got := recovery.Guard("filter", func() error { return want }); got != want {
		t.Fatalf("Guard changed returned error: %v", got)
	}
}
