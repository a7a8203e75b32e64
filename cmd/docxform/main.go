// Command docxform runs one document tool over files on disk:
//
//	docxform -tool merge -o merged.pdf a.pdf b.pdf
//	docxform -tool split -mode ranges -ranges 1,3-4 report.pdf
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/engine"
	"github.com/wudi/docxform/observability"
	_ "github.com/wudi/docxform/ocr/tesseract"
)

func main() {
	opts, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "docxform: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "docxform: %v\n", err)
		if de := docerr.Classify("docxform", err); de != nil {
			fmt.Fprintln(os.Stderr, de.Kind.UserMessage())
		}
		os.Exit(1)
	}
}

func newLogger(level, format string) (observability.Logger, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	ho := &slog.HandlerOptions{Level: lv}
	switch format {
	case "text":
		return observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, ho))), nil
	case "json":
		return observability.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stderr, ho))), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
}

func run(ctx context.Context, opts options) error {
	logger, err := newLogger(opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	inputs := make([]engine.Input, 0, len(opts.paths))
	for _, p := range opts.paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		inputs = append(inputs, engine.Input{Name: filepath.Base(p), Data: data, Password: opts.password})
	}
	req, err := opts.request(inputs)
	if err != nil {
		return err
	}

	sess := engine.NewSession(
		engine.WithLogger(logger),
		engine.WithOCRLanguage(opts.ocrLang),
		engine.WithJPEGQuality(opts.jpegQuality),
		engine.WithExportScale(opts.scale),
		engine.WithDiffThreshold(opts.diffThreshold),
	)
	var progress func(engine.Progress)
	if opts.progress {
		progress = func(p engine.Progress) {
			fmt.Fprintf(os.Stderr, "%3d%% %s\n", p.Percentage, p.Status)
		}
	}
	art, err := sess.Submit(ctx, req, progress)
	if err != nil {
		return err
	}

	out := opts.output
	if out == "" {
		out = art.Name
	} else if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		out = filepath.Join(out, art.Name)
	}
	if err := os.WriteFile(out, art.Data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Println(out)
	return nil
}
