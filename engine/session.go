// Package engine runs document tools. A Session accepts one Request at a
// time, reports progress while the tool works and keeps the artifact or
// the classified failure until the next request or Reset.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/wudi/docxform/convert"
	"github.com/wudi/docxform/diff"
	"github.com/wudi/docxform/docerr"
	"github.com/wudi/docxform/document"
	"github.com/wudi/docxform/observability"
	"github.com/wudi/docxform/recovery"
	"github.com/wudi/docxform/render"
	"github.com/wudi/docxform/workspace"
)

type State int

const (
	Idle State = iota
	Processing
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Processing:
		return "processing"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Progress is one step of a running request.
type Progress struct {
	Percentage int
	Status     string
}

// Session is the state machine Idle → Processing → Success | Error. It is
// safe for concurrent use; requests run one at a time.
type Session struct {
	cfg      Config
	renderer *render.Renderer
	arena    *document.Arena
	ws       *workspace.Workspace

	mu         sync.Mutex
	state      State
	gen        uint64
	draining   bool // a reset request is still running
	artifact   Artifact
	failure    *docerr.Error
	comparison []diff.PageResult
}

// workspaceSlot is the arena slot of the document opened for annotation.
const workspaceSlot = 0

// NewSession returns an idle session configured by opts on top of
// DefaultConfig.
func NewSession(opts ...Option) *Session {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	cfg = cfg.normalized()
	arena := document.NewArena()
	return &Session{
		cfg:      cfg,
		renderer: render.New(render.WithStrategy(cfg.Strategy), render.WithLogger(cfg.Logger), render.WithTracer(cfg.Tracer)),
		arena:    arena,
		ws:       workspace.New(arena, workspaceSlot, cfg.Logger),
	}
}

// Config returns the session settings.
func (s *Session) Config() Config { return s.cfg }

// Renderer returns the renderer used for previews and tools.
func (s *Session) Renderer() *render.Renderer { return s.renderer }

// Workspace holds the annotations of the document loaded by Open.
func (s *Session) Workspace() *workspace.Workspace { return s.ws }

// Documents returns the documents of the open file or the current request.
func (s *Session) Documents() []*document.Document { return s.arena.Documents() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Artifact returns the result of the last successful request.
func (s *Session) Artifact() (Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact, s.state == Success
}

// Err returns the failure of the last request, or nil.
func (s *Session) Err() *docerr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Comparison returns the page results of the last compare request.
func (s *Session) Comparison() []diff.PageResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comparison
}

// Open loads a PDF for annotation. The workspace is cleared and its layout
// set to the pages stacked at the preview scale.
func (s *Session) Open(ctx context.Context, in Input) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Processing || s.draining {
		return nil, docerr.New(docerr.Validation, "engine.open", "a request is processing")
	}
	if !pdfInput.accepts(in) {
		return nil, docerr.New(docerr.Validation, "engine.open", "%s is not a PDF", displayName(in))
	}
	if err := ctx.Err(); err != nil {
		return nil, docerr.Wrap(docerr.Canceled, "engine.open", err)
	}
	doc, err := document.Load(in.Name, in.Data, in.Password)
	if err != nil {
		return nil, err
	}
	s.arena.Clear()
	s.arena.Add(doc)
	s.ws.SetLayout(workspace.StackDocument(doc, s.cfg.PreviewScale, s.cfg.PageGap))
	s.cfg.Logger.Info("document opened",
		observability.String("name", doc.Name),
		observability.String("fingerprint", doc.Fingerprint()),
		observability.Int("pages", doc.PageCount()))
	return doc, nil
}

// Reset drops documents, annotations, comparison results and the last
// artifact, and returns to Idle. A request still running is abandoned: its
// result is discarded when it finishes, and new requests are rejected until
// then since it still holds the arena.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.state == Processing {
		s.draining = true
	}
	s.gen++
	s.state = Idle
	s.clearResultLocked()
	s.mu.Unlock()
	s.arena.Clear()
	s.ws.Reset()
}

func (s *Session) clearResultLocked() {
	s.artifact = Artifact{}
	s.failure = nil
	s.comparison = nil
}

// outcome is what a tool leaves behind.
type outcome struct {
	artifact   Artifact
	comparison []diff.PageResult
}

// Submit runs req. It is rejected while another request is processing. A
// finished previous result is discarded first. Requests that fail
// validation leave the session Idle and report nothing to onProgress;
// accepted ones end in Success or Error.
func (s *Session) Submit(ctx context.Context, req Request, onProgress func(Progress)) (Artifact, error) {
	s.mu.Lock()
	if s.state == Processing {
		s.mu.Unlock()
		return Artifact{}, docerr.New(docerr.Validation, "engine.submit", "a request is already processing")
	}
	if s.draining {
		s.mu.Unlock()
		return Artifact{}, docerr.New(docerr.Validation, "engine.submit", "a reset request is still finishing")
	}
	if s.state != Idle {
		s.state = Idle
		s.clearResultLocked()
	}
	c, err := req.validate(s.cfg)
	if err != nil {
		s.mu.Unlock()
		s.cfg.Logger.Warn("request rejected",
			observability.String("tool", string(req.Tool)),
			observability.Error("error", err))
		return Artifact{}, err
	}
	s.state = Processing
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	op := "engine." + string(req.Tool)
	logger := s.cfg.Logger.With(observability.String("tool", string(req.Tool)))
	ctx, span := s.cfg.Tracer.StartSpan(ctx, observability.SpanSubmit)
	defer span.Finish()
	span.SetTag("tool", string(req.Tool))
	span.SetTag("inputs", len(req.Inputs))
	logger.Info("request accepted", observability.Int("inputs", len(req.Inputs)))

	start := time.Now()
	rel := &relay{fn: onProgress}
	rel.emit(0, "Starting")

	var out outcome
	err = recovery.Guard(op, func() error {
		docs, err := s.ingest(ctx, req, c, rel)
		if err != nil {
			return err
		}
		out, err = s.dispatch(ctx, req.Options, req.Inputs, docs, rel)
		return err
	})

	s.mu.Lock()
	if gen != s.gen {
		// Whatever the abandoned run loaded is dropped before new requests
		// are let in.
		s.arena.Clear()
		s.ws.Reset()
		s.draining = false
		s.mu.Unlock()
		logger.Info("request abandoned by reset")
		return Artifact{}, docerr.New(docerr.Canceled, op, "session was reset")
	}
	if err != nil {
		failure := docerr.Classify(op, err)
		s.state = Error
		s.failure = failure
		s.mu.Unlock()
		span.SetError(failure)
		logger.Error("request failed",
			observability.String("kind", failure.Kind.String()),
			observability.Duration(observability.MetricRunTime, time.Since(start)),
			observability.Error("error", failure))
		return Artifact{}, failure
	}
	s.state = Success
	s.artifact = out.artifact
	s.comparison = out.comparison
	s.mu.Unlock()

	span.SetTag(observability.MetricOutputBytes, len(out.artifact.Data))
	logger.Info("request succeeded",
		observability.String("artifact", out.artifact.Name),
		observability.Int(observability.MetricOutputBytes, len(out.artifact.Data)),
		observability.Duration(observability.MetricRunTime, time.Since(start)))
	rel.emit(100, "Complete")
	return out.artifact, nil
}

// ingest parses the PDF inputs of req into the arena, replacing whatever
// the arena held before. Other inputs are passed to the tools as files.
func (s *Session) ingest(ctx context.Context, req Request, c contract, rel *relay) ([]*document.Document, error) {
	s.arena.Clear()
	if c.kind != pdfInput {
		return nil, nil
	}
	docs := make([]*document.Document, 0, len(req.Inputs))
	for i, in := range req.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		password := in.Password
		if o, ok := req.Options.(UnlockOptions); ok {
			password = o.Password
		}
		doc, err := document.Load(in.Name, in.Data, password)
		if err != nil {
			return nil, err
		}
		s.arena.Add(doc)
		docs = append(docs, doc)
		s.cfg.Logger.Debug("document loaded",
			observability.String("name", doc.Name),
			observability.String("fingerprint", doc.Fingerprint()),
			observability.Int(observability.MetricPageCount, doc.PageCount()),
			observability.Bool("encrypted", doc.Encrypted()))
		rel.emit(loadShare*(i+1)/len(req.Inputs), fmt.Sprintf("Loaded %d of %d", i+1, len(req.Inputs)))
	}
	return docs, nil
}

// Progress shares: loading takes the first 10%, the tool runs up to 95%
// and packaging the result fills the rest.
const (
	loadShare = 10
	workShare = 95
)

// relay forwards progress to the caller. Percentages are clamped to
// 0..100 and never go down. Every event yields the processor.
type relay struct {
	fn      func(Progress)
	last    int
	started bool
}

func (r *relay) emit(pct int, status string) {
	pct = min(max(pct, 0), 100)
	if r.started && pct < r.last {
		pct = r.last
	}
	r.started, r.last = true, pct
	if r.fn != nil {
		r.fn(Progress{Percentage: pct, Status: status})
	}
	runtime.Gosched()
}

// steps returns an adapter callback that spreads done/total over the tool
// share of the progress bar.
func (r *relay) steps(noun string) convert.Progress {
	return func(done, total int) {
		pct := loadShare + (workShare-loadShare)*convert.Percent(done, total)/100
		r.emit(pct, fmt.Sprintf("Processing %s %d of %d", noun, done, total))
	}
}
