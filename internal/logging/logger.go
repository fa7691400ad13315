package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"nightfeed/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Paths lists destinations: "stdout", "stderr", or file paths opened in
	// append mode. Duplicates are collapsed; empty means stdout.
	Paths []string
}

// New constructs a slog logger for the requested format.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))

	out, err := combineWriters(opts.Paths)
	if err != nil {
		return nil, err
	}
	addSource := level.Level() <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		return slog.New(newJSONHandler(out, level, addSource)), nil
	case "console", "":
		return slog.New(newConsoleHandler(out, level, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig builds the process logger: the configured format on stdout
// plus an append-mode file under the log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	opts := Options{Level: "info", Format: "console", Paths: []string{"stdout"}}
	if cfg == nil {
		return New(opts)
	}

	opts.Level = cfg.Logging.Level
	opts.Format = cfg.Logging.Format
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		opts.Paths = append(opts.Paths, filepath.Join(cfg.Paths.LogDir, "nightfeed.log"))
	}
	return New(opts)
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func combineWriters(paths []string) (io.Writer, error) {
	seen := make(map[string]struct{}, len(paths))
	writers := make([]io.Writer, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}

		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if dir := filepath.Dir(path); dir != "" && dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, err
				}
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", path, err)
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func newJSONHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(filepath.Base(src.File) + ":" + strconv.Itoa(src.Line))
				}
			}
			return attr
		},
	})
}

// consoleHandler renders one line per record:
//
//	2026-08-17T21:30:05Z INFO pipeline: run started run_date=2026-08-17 adapters=3
//
// The component attr moves into the message prefix; everything else renders
// as key=value pairs, values quoted only when they contain spaces, quotes,
// or '='. Attrs bound via WithAttrs are rendered once and cached.
type consoleHandler struct {
	out       io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool

	component string
	prefix    string // open group path, "a.b."
	bound     string // pre-rendered WithAttrs pairs, leading space included
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{out: w, mu: new(sync.Mutex), level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	var sb strings.Builder
	sb.WriteString(h.bound)
	for _, attr := range attrs {
		attr.Value = attr.Value.Resolve()
		if h.prefix == "" && attr.Key == FieldComponent && clone.component == "" {
			clone.component = attr.Value.String()
			continue
		}
		appendAttr(&sb, h.prefix, attr)
	}
	clone.bound = sb.String()
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	component := h.component
	if component == "" && h.prefix == "" {
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == FieldComponent {
				component = attr.Value.Resolve().String()
				return false
			}
			return true
		})
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var sb strings.Builder
	sb.WriteString(ts.UTC().Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(levelLabel(record.Level))
	sb.WriteByte(' ')
	if component != "" {
		sb.WriteString(component)
		sb.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		sb.WriteString(msg)
	} else {
		sb.WriteString("(no message)")
	}
	if h.addSource {
		if src := recordSource(record); src != nil {
			sb.WriteString(" [")
			sb.WriteString(filepath.Base(src.File))
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(src.Line))
			sb.WriteByte(']')
		}
	}

	sb.WriteString(h.bound)
	record.Attrs(func(attr slog.Attr) bool {
		attr.Value = attr.Value.Resolve()
		if h.prefix == "" && attr.Key == FieldComponent {
			return true
		}
		appendAttr(&sb, h.prefix, attr)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

// recordSource resolves the record's PC into a slog.Source, matching the
// behavior of slog.Record.Source on newer Go versions.
func recordSource(record slog.Record) *slog.Source {
	if record.PC == 0 {
		return nil
	}
	frames := runtime.CallersFrames([]uintptr{record.PC})
	frame, _ := frames.Next()
	return &slog.Source{Function: frame.Function, File: frame.File, Line: frame.Line}
}

// appendAttr writes " key=value", expanding groups into dotted keys. The
// value must already be resolved.
func appendAttr(sb *strings.Builder, prefix string, attr slog.Attr) {
	if attr.Value.Kind() == slog.KindGroup {
		next := prefix
		if attr.Key != "" {
			next = prefix + attr.Key + "."
		}
		for _, member := range attr.Value.Group() {
			member.Value = member.Value.Resolve()
			appendAttr(sb, next, member)
		}
		return
	}
	if attr.Key == "" {
		return
	}
	sb.WriteByte(' ')
	sb.WriteString(prefix)
	sb.WriteString(attr.Key)
	sb.WriteByte('=')
	sb.WriteString(renderValue(attr.Value))
}

func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		s = v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = v.String()
		}
	default:
		// Numbers, bools and durations never need quoting.
		return v.String()
	}
	if s == "" || strings.IndexFunc(s, unsafeInValue) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func unsafeInValue(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
