package docerr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"classified", New(WrongPassword, "unlock", "bad password"), WrongPassword},
		{"wrapped classified", fmt.Errorf("outer: %w", New(Validation, "merge", "need 2 files")), Validation},
		{"canceled", context.Canceled, Canceled},
		{"deadline", fmt.Errorf("step: %w", context.DeadlineExceeded), Canceled},
		{"plain", errors.New("boom"), ProcessingFault},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("%s: KindOf = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsMatchesSentinelByKind(t *testing.T) {
	err := Wrap(CorruptDocument, "load", errors.New("xref missing"))
	if !errors.Is(err, ErrCorruptDocument) {
		t.Fatalf("expected corrupt document match")
	}
	if errors.Is(err, ErrWrongPassword) {
		t.Fatalf("unexpected wrong password match")
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := New(WrongPassword, "decrypt", "rejected")
	err := Wrap(CorruptDocument, "load", fmt.Errorf("read: %w", inner))
	if KindOf(err) != WrongPassword {
		t.Fatalf("kind = %v, want wrong_password", KindOf(err))
	}
	if Wrap(ProcessingFault, "x", nil) != nil {
		t.Fatalf("wrapping nil should return nil")
	}
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: UnsupportedContent, Op: "pptx", Msg: "no slide images"}
	if got, want := err.Error(), "pptx: unsupported_content: no slide images"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if Canceled.UserMessage() == ProcessingFault.UserMessage() {
		t.Fatalf("expected distinct user messages")
	}
}
