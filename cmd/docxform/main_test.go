package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/docxform/builder"
	"github.com/wudi/docxform/editor"
	"github.com/wudi/docxform/engine"
)

func TestParseArgs(t *testing.T) {
	o, err := parseArgs([]string{"-tool", "split", "-mode", "ranges", "-ranges", "1,3-4", "a.pdf"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	opts, err := o.toolOptions()
	if err != nil {
		t.Fatalf("toolOptions: %v", err)
	}
	want := engine.SplitOptions{SplitOptions: editor.SplitOptions{Mode: editor.SplitRanges, Ranges: "1,3-4", FixedSize: 1}}
	if diff := cmp.Diff(engine.Options(want), opts); diff != "" {
		t.Fatalf("options (-want +got):\n%s", diff)
	}
	if _, err := parseArgs([]string{"a.pdf"}); err == nil {
		t.Fatalf("missing -tool accepted")
	}
	if _, err := parseArgs([]string{"-tool", "merge"}); err == nil {
		t.Fatalf("missing inputs accepted")
	}
}

func TestParsePageSpecs(t *testing.T) {
	got, err := parsePageSpecs("3, 1:90,2")
	if err != nil {
		t.Fatalf("parsePageSpecs: %v", err)
	}
	want := []editor.PageSpec{{Source: 2}, {Source: 0, Rotate: 90}, {Source: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("specs (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"0", "x", "2:y"} {
		if _, err := parsePageSpecs(bad); err == nil {
			t.Errorf("parsePageSpecs(%q) succeeded", bad)
		}
	}
}

func TestParseMarginsAndAreas(t *testing.T) {
	m, err := parseMargins("10, 20,30,40")
	if err != nil || m != (editor.Margins{Top: 10, Right: 20, Bottom: 30, Left: 40}) {
		t.Fatalf("margins = %+v, %v", m, err)
	}
	if _, err := parseMargins("1,2,3"); err == nil {
		t.Fatalf("three margins accepted")
	}
	areas, err := parseAreas("1,2,3,4;5,6,7,8")
	if err != nil || len(areas) != 2 || areas[1].X != 5 || areas[1].Height != 8 {
		t.Fatalf("areas = %+v, %v", areas, err)
	}
}

func TestParsePaper(t *testing.T) {
	p, err := parsePaper("Letter-landscape")
	if err != nil || p.Width != 792 || p.Height != 612 {
		t.Fatalf("paper = %+v, %v", p, err)
	}
	if _, err := parsePaper("b5"); err == nil {
		t.Fatalf("unknown paper accepted")
	}
}

func TestRunWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.pdf", "b.pdf"} {
		b := builder.NewBuilder()
		b.NewPage(100, 100).Finish()
		data, err := b.Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		paths = append(paths, p)
	}
	o, err := parseArgs(append([]string{"-tool", "merge", "-o", dir}, paths...))
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if err := run(context.Background(), o); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "merged.pdf")); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}
