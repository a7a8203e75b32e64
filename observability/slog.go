package observability

import (
	"log/slog"
	"sync"
)

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps sl. A nil sl discards all output.
func NewSlogLogger(sl *slog.Logger) *SlogLogger {
	if sl == nil {
		sl = slog.New(slog.DiscardHandler)
	}
	return &SlogLogger{l: sl}
}

func (s *SlogLogger) Debug(msg string, fields ...Field) { s.l.Debug(msg, attrs(fields)...) }
func (s *SlogLogger) Info(msg string, fields ...Field)  { s.l.Info(msg, attrs(fields)...) }
func (s *SlogLogger) Warn(msg string, fields ...Field)  { s.l.Warn(msg, attrs(fields)...) }
func (s *SlogLogger) Error(msg string, fields ...Field) { s.l.Error(msg, attrs(fields)...) }

func (s *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{l: s.l.With(attrs(fields)...)}
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			continue
		}
		v := f.Value()
		if err, ok := v.(error); ok {
			if err == nil {
				continue
			}
			v = err.Error()
		}
		out = append(out, slog.Any(f.Key(), v))
	}
	return out
}

// Entry is a log record captured by a RecordingLogger.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// RecordingLogger keeps every entry in memory. Useful in tests.
type RecordingLogger struct {
	mu      *sync.Mutex
	entries *[]Entry
	base    []Field
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (r *RecordingLogger) Debug(msg string, fields ...Field) { r.add("debug", msg, fields) }
func (r *RecordingLogger) Info(msg string, fields ...Field)  { r.add("info", msg, fields) }
func (r *RecordingLogger) Warn(msg string, fields ...Field)  { r.add("warn", msg, fields) }
func (r *RecordingLogger) Error(msg string, fields ...Field) { r.add("error", msg, fields) }

func (r *RecordingLogger) With(fields ...Field) Logger {
	base := append(append([]Field(nil), r.base...), fields...)
	return &RecordingLogger{mu: r.mu, entries: r.entries, base: base}
}

func (r *RecordingLogger) add(level, msg string, fields []Field) {
	e := Entry{Level: level, Message: msg, Fields: make(map[string]interface{}, len(r.base)+len(fields))}
	for _, f := range r.base {
		e.Fields[f.Key()] = f.Value()
	}
	for _, f := range fields {
		e.Fields[f.Key()] = f.Value()
	}
	r.mu.Lock()
	*r.entries = append(*r.entries, e)
	r.mu.Unlock()
}

// Entries returns a copy of the captured entries.
func (r *RecordingLogger) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), (*r.entries)...)
}

// Messages returns the captured messages in order.
func (r *RecordingLogger) Messages() []string {
	var out []string
	for _, e := range r.Entries() {
		out = append(out, e.Message)
	}
	return out
}
