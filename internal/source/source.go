// Package source holds the one type shared by every later stage of the
// pipeline: a source location. It exists as its own package so that
// lexer, ast, symtab, ir, and diag can all depend on it without forming
// an import cycle among themselves.
package source

import "fmt"

// Loc is a (filename, line, column) triple. It is immutable once
// produced and is attached to every token, AST node, symbol, and
// diagnostic (spec §3 "Source location").
type Loc struct {
	File   string
	Line   int
	Column int
}

// String renders "filename:line:column", the prefix every diagnostic
// line uses (spec §7).
func (l Loc) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// None is the zero location, used for synthetic nodes that carry no
// real source position (e.g. a fatal diagnostic, or the report that an
// input file could not be opened).
var None = Loc{File: "<none>"}
