// Package interp is the persistent Go interpreter that executed code runs
// in. It wraps a single yaegi REPL whose globals, imports and declarations
// accumulate across cells for the life of the process.
package interp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	yaegi "github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/sakif/mapchat/internal/executor"
)

// Session evaluates cells against accumulated interpreter state.
// It implements executor.Session.
type Session struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	interp *yaegi.Interpreter
	sink   *switchWriter
	stdio  *stdio
	// imported maps local package names to import paths.
	imported map[string]string
}

var _ executor.Session = (*Session)(nil)

var (
	sharedMu sync.Mutex
	shared   *Session
)

// Shared returns the process-wide session, creating it with cfg on first
// use. Later calls ignore cfg.
func Shared(cfg Config, logger *slog.Logger) (*Session, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != nil {
		return shared, nil
	}
	s, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	shared = s
	return shared, nil
}

// New creates an independent session.
func New(cfg Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:    cfg,
		logger: logger,
		sink:   &switchWriter{},
	}
	p, err := newStdio(s.sink)
	if err != nil {
		return nil, err
	}
	s.stdio = p
	if err := s.build(); err != nil {
		p.close()
		return nil, err
	}
	return s, nil
}

// build replaces the interpreter with a fresh one. Callers hold s.mu or
// own s exclusively.
func (s *Session) build() error {
	i := yaegi.New(yaegi.Options{
		Stdout: s.stdio.w,
		Stderr: s.stdio.w,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("interp: loading stdlib symbols: %w", err)
	}
	if err := i.Use(hostSymbols(s.cfg.Artifacts)); err != nil {
		return fmt.Errorf("interp: loading host symbols: %w", err)
	}
	imported := make(map[string]string, len(s.cfg.PreImports))
	for _, pkg := range s.cfg.PreImports {
		im := importSpec{path: pkg}
		if _, err := i.Eval(im.decl()); err != nil {
			return fmt.Errorf("interp: pre-importing %s: %w", pkg, err)
		}
		imported[im.localName()] = pkg
	}

	s.interp = i
	s.imported = imported
	s.logger.Debug("interpreter session ready", slog.Int("pre_imports", len(s.cfg.PreImports)))
	return nil
}

// Run evaluates code. Everything the code writes to os.Stdout, os.Stderr,
// fmt.Print* or the log package while Run is active goes to out.
//
// Whole-file answers (package clause, imports, func main) are accepted too;
// see parseCell.
//
// On a compile error or runtime panic the diagnostic is written to out and
// the outcome is unsuccessful. Bindings made before the failing statement
// stay in the session.
func (s *Session) Run(code string, out io.Writer) executor.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sink.set(out)
	defer s.sink.set(nil)

	err := s.evalCell(parseCell(code))
	if ferr := s.stdio.flush(); ferr != nil {
		s.logger.Warn("output may be incomplete", slog.String("error", ferr.Error()))
	}
	if err != nil {
		writeDiagnostic(out, err)
		return executor.Outcome{Err: err}
	}
	return executor.Outcome{Success: true}
}

// evalCell imports what the cell needs, evaluates its body and calls its
// entry function.
func (s *Session) evalCell(c cell) error {
	for _, im := range c.imports {
		if s.imported[im.localName()] == im.path || im.name == "_" {
			continue
		}
		if err := s.eval(im.decl()); err != nil {
			return err
		}
		s.imported[im.localName()] = im.path
	}
	if strings.TrimSpace(c.body) != "" {
		if err := s.eval(c.body); err != nil {
			return err
		}
	}
	if c.entry {
		return s.eval(entryFunc + "()")
	}
	return nil
}

func (s *Session) eval(code string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = yaegi.Panic{Value: r, Stack: debug.Stack()}
		}
	}()
	_, err = s.interp.Eval(code)
	return err
}

// writeDiagnostic writes the error message, plus the stack for panics.
func writeDiagnostic(out io.Writer, err error) {
	var p yaegi.Panic
	if errors.As(err, &p) {
		fmt.Fprintf(out, "panic: %v\n\n", p.Value)
		out.Write(p.Stack)
		return
	}
	fmt.Fprintf(out, "%v\n", err)
}

// Reset discards all accumulated state and starts a fresh interpreter with
// the same configuration.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("resetting interpreter session")
	return s.build()
}

// Close releases the session's output pipe. The session must not be used
// afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stdio.close()
}

// Lookup returns the current value of a binding in the session.
func (s *Session) Lookup(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v any
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("interp: lookup %s: %v", name, r)
			}
		}()
		rv, err := s.interp.Eval(name)
		if err != nil {
			return fmt.Errorf("interp: lookup %s: %w", name, err)
		}
		if rv.IsValid() && rv.CanInterface() {
			v = rv.Interface()
		}
		return nil
	}()
	return v, err
}

// switchWriter forwards writes to the writer of the Run in progress and
// drops them otherwise. Goroutines started by earlier cells may still print.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *switchWriter) set(w io.Writer) {
	sw.mu.Lock()
	sw.w = w
	sw.mu.Unlock()
}

func (sw *switchWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.w == nil {
		return len(p), nil
	}
	return sw.w.Write(p)
}
