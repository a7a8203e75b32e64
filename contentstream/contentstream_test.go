package contentstream

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/docxform/coords"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/recovery"
)

func TestProcessorDispatchesOperators(t *testing.T) {
	p := NewProcessor(nil)
	var calls int
	var last []Operand
	p.RegisterHandler("Tj", func(op Operation) error {
		calls++
		last = op.Operands
		return nil
	})

	if err := p.Process(context.Background(), []byte("BT /F1 12 Tf (Hello) Tj ET")); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected handler to be called once, got %d", calls)
	}
	if diff := cmp.Diff([]Operand{String{Value: []byte("Hello")}}, last); diff != "" {
		t.Fatalf("operands (-want +got):\n%s", diff)
	}
}

func TestParse(t *testing.T) {
	src := `q 1 0 0 1 72.5 -3 cm % comment
/GS0 gs [(A) -120 <4142>] TJ
/Name#20X Do
<< /Key [1 true null] >> BDC EMC
0.5 g Q`
	ops, err := Parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, op := range ops {
		names = append(names, op.Operator)
	}
	if got := strings.Join(names, " "); got != "q cm gs TJ Do BDC EMC g Q" {
		t.Fatalf("operators = %q", got)
	}
	cm, err := ops[1].Floats(6)
	if err != nil || cm[4] != 72.5 || cm[5] != -3 {
		t.Fatalf("cm operands = %v, %v", cm, err)
	}
	want := Array{String{Value: []byte("A")}, Number(-120), String{Value: []byte("AB"), Hex: true}}
	if diff := cmp.Diff(want, ops[3].Operands[0]); diff != "" {
		t.Fatalf("TJ array (-want +got):\n%s", diff)
	}
	if n, _ := ops[4].Name(0); n != "Name X" {
		t.Fatalf("escaped name = %q", n)
	}
	d := ops[5].Operands[0].(Dict)
	if diff := cmp.Diff(Array{Number(1), Bool(true), Null{}}, d["Key"]); diff != "" {
		t.Fatalf("dict value (-want +got):\n%s", diff)
	}
}

func TestParseLiteralStringEscapes(t *testing.T) {
	ops, err := Parse([]byte(`(a\(b\)c \101 (nested) \\) Tj`))
	if err != nil {
		t.Fatal(err)
	}
	got := string(ops[0].Operands[0].(String).Value)
	if got != `a(b)c A (nested) \` {
		t.Fatalf("string = %q", got)
	}
}

func TestParseInlineImage(t *testing.T) {
	ops, err := Parse([]byte("q BI /W 2 /H 1 /BPC 8 /CS /G ID \x00\xff\nEI Q"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 || ops[1].Operator != "BI" {
		t.Fatalf("ops = %+v", ops)
	}
	if string(ops[1].InlineData) != "\x00\xff" {
		t.Fatalf("inline data = %q", ops[1].InlineData)
	}
	if ops[1].Operands[0].(Dict)["W"] != Number(2) {
		t.Fatalf("inline dict = %v", ops[1].Operands[0])
	}
}

func TestParseErrors(t *testing.T) {
	ops, err := Parse([]byte("1 g (unterminated"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(ops) != 1 || ops[0].Operator != "g" {
		t.Fatalf("expected partial ops, got %+v", ops)
	}
}

func TestProcessorRecovery(t *testing.T) {
	failing := func(op Operation) error { return errors.New("bad operand") }

	strict := NewProcessor(recovery.NewStrictStrategy())
	strict.RegisterHandler("re", failing)
	err := strict.Process(context.Background(), []byte("0 0 re f"))
	if docerr.KindOf(err) != docerr.CorruptDocument {
		t.Fatalf("strict kind = %v (%v)", docerr.KindOf(err), err)
	}

	lenient := NewProcessor(recovery.NewLenientStrategy(nil))
	lenient.RegisterHandler("re", failing)
	var filled bool
	lenient.RegisterHandler("f", func(Operation) error { filled = true; return nil })
	if err := lenient.Process(context.Background(), []byte("0 0 re f")); err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if !filled {
		t.Fatalf("lenient processor should continue after a failure")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := lenient.Run(ctx, []Operation{{Operator: "f"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.Save().
		Concat(coords.Translate(10, 20.25)).
		ExtGState("GS0").
		BeginText().
		Font("F1", 12).
		RenderMode(TextInvisible).
		HorizontalScaling(87.5).
		TextMatrix(coords.Identity()).
		ShowText("Café (x)").
		EndText().
		Rect(0, 0, 5, 5).Fill().
		Restore()

	ops, err := Parse(w.Bytes())
	if err != nil {
		t.Fatalf("parse written stream: %v\n%s", err, w.Bytes())
	}
	var tj Operation
	for _, op := range ops {
		if op.Operator == "Tj" {
			tj = op
		}
	}
	if got := DecodeWinAnsi(tj.Operands[0].(String).Value); got != "Café (x)" {
		t.Fatalf("text = %q", got)
	}
	again := NewWriter().Ops(ops)
	if string(again.Bytes()) != string(w.Bytes()) {
		t.Fatalf("rewrite differs:\n%s\nvs\n%s", again.Bytes(), w.Bytes())
	}
}

func TestEncodeWinAnsi(t *testing.T) {
	if got := EncodeWinAnsi("€é✓"); string(got) != "\x80\xe9?" {
		t.Fatalf("encoded = %q", got)
	}
	if !TextFill.Paints() || TextInvisible.Paints() || TextClip.Paints() {
		t.Fatalf("unexpected Paints results")
	}
	if !TextFillStrokeClip.Fills() || !TextFillStrokeClip.Strokes() || TextStroke.Fills() {
		t.Fatalf("unexpected fill/stroke results")
	}
}
