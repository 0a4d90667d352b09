// Package diag implements the diagnostic sink described in spec.md §6/§7:
// the opaque collaborator that every other stage reports errors and
// warnings to, without aborting the compilation itself.
//
// Grounded on the teacher's own accumulate-and-continue error handling
// in ysem/analyzer.go (Analyzer.errors []string, errorAt) and
// yparse/symtab.go (SymbolTable.Errors, AddError) — generalized here to
// carry a source.Loc and a severity instead of a pre-formatted string,
// and to centralize the one place that decides when a compilation must
// stop (ErrorCount() > 0 at a phase boundary, per spec §5/§7).
package diag

import (
	"fmt"
	"io"

	"retargetc/internal/source"
)

// Severity classifies a diagnostic.
type Severity int

const (
	Warning Severity = iota
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal error"
	default:
		return "diagnostic"
	}
}

// Diagnostic is one reported message.
type Diagnostic struct {
	Loc      source.Loc
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Loc, d.Severity, d.Message)
}

// FatalError is the panic value used by Sink.Fatal. It signals an
// internal invariant violation (a pass called with state it requires
// and doesn't have, e.g. internal/symtab's label bookkeeping outside a
// function scope) rather than a condition a source file can trigger —
// an unreadable input file or any other user-facing failure is reported
// through ErrorAt/WarningAt and handled by the caller returning
// cleanly, not through Fatal.
type FatalError struct {
	Diagnostic Diagnostic
}

func (f *FatalError) Error() string { return f.Diagnostic.String() }

// Sink collects diagnostics for one compilation. It is owned by the
// compilation context (spec §3 "Lifecycle") and is safe to pass by
// pointer into every pass.
type Sink struct {
	diags      []Diagnostic
	werror     bool
	errorCount int
	warnCount  int
}

// New creates an empty sink. werror, when true, promotes every warning
// recorded after this point to an error at FinalCheck time (spec §7:
// "Warnings do not block progression unless -Werror is set").
func New(werror bool) *Sink {
	return &Sink{werror: werror}
}

func (s *Sink) ErrorAt(loc source.Loc, format string, args ...interface{}) {
	s.record(loc, Error, fmt.Sprintf(format, args...))
}

func (s *Sink) WarningAt(loc source.Loc, format string, args ...interface{}) {
	s.record(loc, Warning, fmt.Sprintf(format, args...))
}

// Fatal records a Fatal diagnostic and panics with *FatalError. This is
// for programmer-error invariant violations inside the compiler itself,
// not for reporting bad input (spec §7's "fatal" severity, reserved for
// conditions no later diagnostic can meaningfully follow); callers that
// can fail on ordinary bad input use ErrorAt and return instead.
func (s *Sink) Fatal(format string, args ...interface{}) {
	d := Diagnostic{Loc: source.None, Severity: Fatal, Message: fmt.Sprintf(format, args...)}
	s.diags = append(s.diags, d)
	panic(&FatalError{Diagnostic: d})
}

func (s *Sink) record(loc source.Loc, sev Severity, msg string) {
	d := Diagnostic{Loc: loc, Severity: sev, Message: msg}
	s.diags = append(s.diags, d)
	switch sev {
	case Error:
		s.errorCount++
	case Warning:
		s.warnCount++
	}
}

// ErrorCount returns the number of Error (not Warning) diagnostics
// recorded so far, plus warnings promoted by -Werror at FinalCheck.
func (s *Sink) ErrorCount() int { return s.errorCount }

func (s *Sink) WarningCount() int { return s.warnCount }

// HasErrors reports whether any phase boundary should stop the pipeline
// (spec §5 "Ordering guarantees" / §7 "Propagation").
func (s *Sink) HasErrors() bool { return s.errorCount > 0 }

// FinalCheck promotes warnings to errors under -Werror and returns the
// final error count, mirroring spec §7's end-of-compilation summary
// check.
func (s *Sink) FinalCheck() int {
	if s.werror && s.warnCount > 0 {
		s.errorCount += s.warnCount
	}
	return s.errorCount
}

// Diagnostics returns every recorded diagnostic in report order.
func (s *Sink) Diagnostics() []Diagnostic { return s.diags }

// WriteSummary writes "N error(s), M warning(s)" per spec §7.
func (s *Sink) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "%d error(s), %d warning(s)\n", s.errorCount, s.warnCount)
}

// WriteAll writes every diagnostic, one per line, in "file:line:col: kind:
// message" form, followed by the summary line.
func (s *Sink) WriteAll(w io.Writer) {
	for _, d := range s.diags {
		fmt.Fprintln(w, d.String())
	}
	s.WriteSummary(w)
}
