// Command cc is the thin driver that wires the compiler core together
// (spec.md §6 "External interfaces"): it is deliberately NOT part of
// the core itself (CLI parsing, file I/O, and pass sequencing across
// translation units are named out of scope in spec.md §1), but the
// repository still needs a runnable entry point to exercise the core
// end to end.
//
// Grounded on ya/main.go's flag validation and pipeline-running shape
// (parse flags, validate incompatible combinations, run one pass per
// translation unit, stop at the first phase with errors), generalized
// from ya's exec-a-separate-binary-per-pass design to direct in-process
// calls into the core's packages, and from stdlib flag to
// github.com/spf13/cobra/pflag per SPEC_FULL.md's ambient stack.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"retargetc/internal/ast"
	"retargetc/internal/backend"
	"retargetc/internal/backend/arm64r"
	"retargetc/internal/backend/s390m"
	"retargetc/internal/clog"
	"retargetc/internal/diag"
	"retargetc/internal/ir"
	"retargetc/internal/irgen"
	"retargetc/internal/parser"
	"retargetc/internal/preproc"
	"retargetc/internal/sema"
	"retargetc/internal/stdset"
	"retargetc/internal/symtab"
	"retargetc/internal/types"
)

var version = "dev"

type options struct {
	output      string
	std         string
	arch        string
	optLevel    string
	preprocOnly bool
	syntaxOnly  bool
	dumpAST     bool
	dumpSema    bool
	dumpIR      bool
	includes    []string
	defines     []string
	wall        bool
	wextra      bool
	werror      bool
	verbose     bool
}

// archRegistry enumerates the backend tags the -arch= flag accepts
// (spec §4.8/§9 "Dispatch": "the framework holds one implementation at
// a time selected by -arch=").
var archRegistry = map[string]func() backend.Backend{
	"arm64r": func() backend.Backend { return arm64r.New() },
	"s390m":  func() backend.Backend { return s390m.New() },
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:           "cc [flags] file...",
		Short:         "retargetable C compiler core driver",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output path (all inputs compiled to one file)")
	flags.StringVar(&opts.std, "std", "gnu99", "language mode: c89|c90|c99|gnu89|gnu99")
	flags.StringVar(&opts.arch, "arch", "", "target architecture tag: arm64r|s390m")
	flags.StringVarP(&opts.optLevel, "O", "O", "0", "optimization level: 0|g|1|2|3")
	flags.BoolVarP(&opts.preprocOnly, "E", "E", false, "preprocess only; emit preprocessed tokens")
	flags.BoolVar(&opts.syntaxOnly, "fsyntax-only", false, "parse and analyze; emit nothing")
	flags.BoolVar(&opts.dumpAST, "dump-ast", false, "dump the parsed AST")
	flags.BoolVar(&opts.dumpSema, "dump-sema", false, "dump resolved top-level declarations after analysis")
	flags.BoolVar(&opts.dumpIR, "dump-ir", false, "dump the lowered IR")
	flags.StringArrayVarP(&opts.includes, "I", "I", nil, "add a directory to the include search path")
	flags.StringArrayVarP(&opts.defines, "D", "D", nil, "define a preprocessor macro, name[=value]")
	flags.BoolVar(&opts.wall, "Wall", false, "enable common warnings")
	flags.BoolVar(&opts.wextra, "Wextra", false, "enable extra warnings")
	flags.BoolVar(&opts.werror, "Werror", false, "treat warnings as errors")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose pass tracing")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cc: %v\n", err)
		os.Exit(1)
	}
}

func run(opts *options, inputs []string) error {
	log := clog.Nop()
	if opts.verbose {
		log = clog.NewDevelopment()
	}
	defer log.Sync()

	std, ok := stdset.ParseStandard(opts.std)
	if !ok {
		return fmt.Errorf("unrecognized -std= value %q", opts.std)
	}

	var be backend.Backend
	if !opts.preprocOnly && !opts.syntaxOnly {
		newBackend, ok := archRegistry[opts.arch]
		if !ok {
			return fmt.Errorf("unrecognized -arch= tag %q (want one of: arm64r, s390m)", opts.arch)
		}
		be = newBackend()
	}

	dataModel := types.LP64
	if be != nil {
		dataModel = be.Info().DataModel
	}
	ctx := types.NewContext(dataModel)

	var asmOut strings.Builder
	exitCode := 0

	for _, input := range inputs {
		log.Pass("compile", clog.String("file", input))

		d := diag.New(opts.werror)
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))

		pp := preproc.New(std, d)
		for _, inc := range opts.includes {
			pp.AddIncludePath(inc)
		}
		for _, def := range opts.defines {
			pp.Define(def)
		}
		toks := pp.Run(input)
		if d.HasErrors() {
			writeSummary(d)
			exitCode = 1
			continue
		}

		if opts.preprocOnly {
			for _, tok := range toks {
				fmt.Fprintf(&asmOut, "%s ", tok.Spelling)
			}
			asmOut.WriteByte('\n')
			d.FinalCheck()
			writeSummary(d)
			if d.HasErrors() {
				exitCode = 1
			}
			continue
		}

		p := parser.New(toks, ctx, d)
		tu := p.Parse()
		if opts.dumpAST {
			dumpAST(tu)
		}
		if d.HasErrors() {
			writeSummary(d)
			exitCode = 1
			continue
		}

		sym := symtab.New(ctx, d)
		sema.New(ctx, sym, d, std).Check(tu)
		if opts.dumpSema {
			dumpSema(tu)
		}
		d.FinalCheck()
		if d.HasErrors() {
			writeSummary(d)
			exitCode = 1
			continue
		}

		if opts.syntaxOnly {
			writeSummary(d)
			continue
		}

		mod := irgen.New(ctx, d).Lower(tu, base)
		if opts.dumpIR {
			dumpIR(mod)
		}
		if d.HasErrors() {
			writeSummary(d)
			exitCode = 1
			continue
		}

		asmOut.WriteString(backend.Generate(be, ctx, mod))
		writeSummary(d)
	}

	if exitCode != 0 {
		return fmt.Errorf("compilation failed")
	}

	if opts.preprocOnly || !opts.syntaxOnly {
		return writeOutput(opts.output, asmOut.String())
	}
	return nil
}

func writeOutput(path, text string) error {
	if path == "" || path == "-" {
		_, err := fmt.Print(text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// writeSummary prints every recorded diagnostic plus the "N error(s), M
// warning(s)" line (spec §7). Callers that need -Werror's warning
// promotion reflected in HasErrors() must call d.FinalCheck() first;
// FinalCheck is not idempotent, so it is not called here.
func writeSummary(d *diag.Sink) {
	d.WriteAll(os.Stderr)
}

// dumpAST prints one line per top-level declaration (spec §6
// "-dump-ast"); this is driver glue, not a core service, so it stays a
// shallow summary rather than a full tree-printer.
func dumpAST(tu *ast.TranslationUnit) {
	for _, d := range tu.Decls {
		fmt.Fprintln(os.Stderr, declSummary(d))
	}
}

// dumpSema re-walks the same declarations after internal/sema has run
// (spec §6 "-dump-sema"): the types printed here are the analyzer's
// resolved types, since sema mutates the AST's *types.Type fields in
// place rather than building a separate tree.
func dumpSema(tu *ast.TranslationUnit) {
	for _, d := range tu.Decls {
		fmt.Fprintln(os.Stderr, declSummary(d))
	}
}

func declSummary(d ast.Decl) string {
	switch n := d.(type) {
	case *ast.FuncDecl:
		kind := "declare"
		if n.Body != nil {
			kind = "define"
		}
		return fmt.Sprintf("%s func %s: %s", kind, n.Name, n.Type)
	case *ast.VarDecl:
		return fmt.Sprintf("var %s: %s", n.Name, n.Type)
	case *ast.RecordDecl:
		return fmt.Sprintf("record %s", n.Tag)
	case *ast.EnumDecl:
		return fmt.Sprintf("enum %s", n.Tag)
	case *ast.TypedefDecl:
		return fmt.Sprintf("typedef %s: %s", n.Name, n.Type)
	default:
		return fmt.Sprintf("decl %T", d)
	}
}

func dumpIR(mod *ir.Module) {
	for _, g := range mod.Globals {
		fmt.Fprintf(os.Stderr, "global %s: %s\n", g.Name, g.Type)
	}
	for _, fn := range mod.Functions {
		if !fn.Defined {
			fmt.Fprintf(os.Stderr, "declare %s\n", fn.Name)
			continue
		}
		fmt.Fprintf(os.Stderr, "func %s:\n", fn.Name)
		for _, b := range fn.Blocks {
			fmt.Fprintf(os.Stderr, "%s:\n", b.Name)
			for _, insn := range b.Insns {
				fmt.Fprintf(os.Stderr, "  %s\n", insn.Op)
			}
		}
	}
}
