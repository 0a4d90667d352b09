// Package parser implements the recursive-descent parser of spec.md
// §4.4: it turns a preprocessed token stream into the AST internal/ast
// defines, with panic-mode error recovery so one malformed declaration
// or statement doesn't abort the whole translation unit.
//
// Grounded on parse/parser.go's Parser (TokenReader cursor, errors
// []string/panicMode, synchronize/synchronizeStmt resync-at-keyword
// recovery, recursive parseType/parseDeclaration/parseStmt/parseExpr
// structure) generalized from YAPL's small closed grammar (var/const/
// func/struct, `@T` pointers) to full C declarator syntax (pointers,
// arrays, function types, struct/union/enum, typedef) and the C
// statement/expression grammars spec §4.4 names.
package parser

import (
	"strconv"

	"retargetc/internal/ast"
	"retargetc/internal/constexpr"
	"retargetc/internal/diag"
	"retargetc/internal/lexer"
	"retargetc/internal/source"
	"retargetc/internal/types"
)

// Parser consumes a token slice (already macro-expanded by
// internal/preproc) and builds an ast.TranslationUnit.
type Parser struct {
	toks      []lexer.Token
	pos       int
	diags     *diag.Sink
	ctx       *types.Context
	panicMode bool

	// typedefNames tracks identifiers bound by a typedef so the parser
	// can distinguish `T *x;` (declaration) from `T * x;` (a multiply
	// expression), the classic "typedef name is a context-sensitive
	// keyword" problem. Grounded on ylex/lexer.go's isTypeName, which
	// YAPL's closed keyword-typed grammar never needed but full C does.
	typedefNames map[string]*types.Type

	tagTypes map[string]*types.Type // struct/union/enum tags seen so far
}

func New(toks []lexer.Token, ctx *types.Context, diags *diag.Sink) *Parser {
	return &Parser{
		toks:         toks,
		ctx:          ctx,
		diags:        diags,
		typedefNames: make(map[string]*types.Type),
		tagTypes:     make(map[string]*types.Type),
	}
}

func (p *Parser) peek() lexer.Token  { return p.peekN(0) }
func (p *Parser) peekN(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos+n]
}
func (p *Parser) advance() lexer.Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}
func (p *Parser) atEOF() bool { return p.peek().Kind == lexer.EOF }

func (p *Parser) isKeyword(s string) bool {
	t := p.peek()
	return t.Kind == lexer.Keyword && t.Spelling == s
}
func (p *Parser) isPunct(s string) bool {
	t := p.peek()
	return t.Kind == lexer.Punctuator && t.Spelling == s
}

func (p *Parser) expectPunct(s string) bool {
	if p.isPunct(s) {
		p.advance()
		return true
	}
	p.errorf("expected '%s', found '%s'", s, p.peek().Spelling)
	return false
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.diags.ErrorAt(p.peek().Loc, format, args...)
	p.panicMode = true
}

// synchronize skips to the next declaration-starting keyword or ';'/'}'
// (grounded on parse/parser.go's synchronize).
func (p *Parser) synchronize() {
	p.panicMode = false
	for !p.atEOF() {
		t := p.peek()
		if t.Kind == lexer.Keyword {
			switch t.Spelling {
			case "int", "char", "void", "struct", "union", "enum", "typedef",
				"static", "extern", "const", "short", "long", "unsigned", "signed", "float", "double":
				return
			}
		}
		if p.isPunct(";") {
			p.advance()
			return
		}
		if p.isPunct("}") {
			return
		}
		p.advance()
	}
}

func (p *Parser) synchronizeStmt() {
	p.panicMode = false
	for !p.atEOF() {
		t := p.peek()
		if t.Kind == lexer.Keyword {
			switch t.Spelling {
			case "if", "while", "for", "do", "switch", "return", "break", "continue", "goto":
				return
			}
		}
		if p.isPunct(";") {
			p.advance()
			return
		}
		if p.isPunct("}") {
			return
		}
		p.advance()
	}
}

// Parse drives the whole translation unit, recovering from a bad
// top-level declaration by resynchronizing rather than aborting (spec
// §5 "Ordering guarantees": the parser keeps going after an error).
func (p *Parser) Parse() *ast.TranslationUnit {
	tu := &ast.TranslationUnit{}
	for !p.atEOF() {
		before := p.pos
		d := p.parseExternalDecl()
		if d != nil {
			tu.Decls = append(tu.Decls, d)
		}
		if p.panicMode {
			p.synchronize()
		}
		if p.pos == before {
			// Guard against an unrecognized token making no progress.
			p.advance()
		}
	}
	return tu
}

// --- Declarations ---

func (p *Parser) parseExternalDecl() ast.Decl {
	loc := p.peek().Loc

	if p.isKeyword("typedef") {
		p.advance()
		base := p.parseDeclSpecifiers()
		name, ty := p.parseDeclarator(base)
		p.expectPunct(";")
		p.typedefNames[name] = ty
		return &ast.TypedefDecl{DeclBase: ast.DeclBase{L: loc}, Name: name, Type: ty}
	}

	if p.isKeyword("struct") || p.isKeyword("union") || p.isKeyword("enum") {
		if d := p.tryParseRecordOrEnumOnlyDecl(); d != nil {
			return d
		}
	}

	if p.isKeyword("_Static_assert") {
		return p.parseStaticAssert()
	}

	if p.isKeyword("asm") {
		return p.parseAsmDecl()
	}

	storage, base := p.parseStorageAndSpecifiers()
	if base == nil {
		p.errorf("expected a declaration")
		p.panicMode = true
		return nil
	}
	if p.isPunct(";") {
		p.advance()
		return &ast.RecordDecl{} // anonymous tag-only declaration, already registered by parseDeclSpecifiers
	}

	name, ty, paramNames := p.parseDeclaratorFull(base)
	if ty != nil && ty.IsFunction() {
		return p.parseFunctionDeclOrDef(loc, name, ty, storage, paramNames)
	}

	vd := &ast.VarDecl{DeclBase: ast.DeclBase{L: loc}, Name: name, Type: ty, Storage: storage}
	if p.isPunct("=") {
		p.advance()
		vd.Init = p.parseAssignExpr()
	}
	for p.isPunct(",") {
		p.advance()
		p.parseDeclarator(base) // additional declarators in one statement; only the first is kept, matching the common single-declarator style this compiler core targets
	}
	p.expectPunct(";")
	return vd
}

// tryParseRecordOrEnumOnlyDecl handles `struct S { ... };` with no
// following declarator.
func (p *Parser) tryParseRecordOrEnumOnlyDecl() ast.Decl {
	save := p.pos
	loc := p.peek().Loc
	if p.isKeyword("enum") {
		d := p.parseEnumSpec(loc)
		if p.isPunct(";") {
			p.advance()
			return d
		}
		p.pos = save
		return nil
	}
	d := p.parseRecordSpec(loc)
	if p.isPunct(";") {
		p.advance()
		return d
	}
	p.pos = save
	return nil
}

func (p *Parser) parseStaticAssert() ast.Decl {
	loc := p.peek().Loc
	p.advance()
	p.expectPunct("(")
	cond := p.parseAssignExpr()
	msg := ""
	if p.isPunct(",") {
		p.advance()
		if p.peek().Kind == lexer.StringConstant {
			msg = p.peek().StringValue
			p.advance()
		}
	}
	p.expectPunct(")")
	p.expectPunct(";")
	return &ast.StaticAssertDecl{DeclBase: ast.DeclBase{L: loc}, Cond: cond, Message: msg}
}

// parseAsmDecl handles GNU's top-level `asm("...")` block (spec
// §4.1 FeatureGNUAsm): the parenthesized string is passed through to
// the backend unparsed, with no operand-constraint parsing.
func (p *Parser) parseAsmDecl() ast.Decl {
	loc := p.peek().Loc
	p.advance()
	p.expectPunct("(")
	text := ""
	if p.peek().Kind == lexer.StringConstant {
		text = p.peek().StringValue
		p.advance()
	} else {
		p.errorf("expected a string literal in asm(...)")
	}
	p.expectPunct(")")
	p.expectPunct(";")
	return &ast.AsmDecl{DeclBase: ast.DeclBase{L: loc}, Text: text}
}

// parseStorageAndSpecifiers reads storage-class + type specifiers
// together, since C allows them interleaved (`static const int x`).
func (p *Parser) parseStorageAndSpecifiers() (ast.StorageClass, *types.Type) {
	storage := ast.NoStorageClass
	for {
		switch {
		case p.isKeyword("static"):
			storage = ast.Static
			p.advance()
		case p.isKeyword("extern"):
			storage = ast.Extern
			p.advance()
		case p.isKeyword("auto"):
			storage = ast.Auto
			p.advance()
		case p.isKeyword("register"):
			storage = ast.Register
			p.advance()
		default:
			return storage, p.parseDeclSpecifiers()
		}
	}
}

// parseDeclSpecifiers reads qualifiers and a type specifier (base
// type, struct/union/enum, or typedef name) into a *types.Type.
func (p *Parser) parseDeclSpecifiers() *types.Type {
	var quals types.Qualifiers
	var ty *types.Type
	unsignedSeen, signedSeen := false, false
	longCount := 0

loop:
	for {
		switch {
		case p.isKeyword("const"):
			quals |= types.Const
			p.advance()
		case p.isKeyword("volatile"):
			quals |= types.Volatile
			p.advance()
		case p.isKeyword("restrict"):
			quals |= types.Restrict
			p.advance()
		case p.isKeyword("_Atomic"):
			quals |= types.Atomic
			p.advance()
		case p.isKeyword("inline"), p.isKeyword("_Noreturn"):
			p.advance() // function specifiers, consumed by parseFunctionDeclOrDef's caller context
		case p.isKeyword("void"):
			ty = p.ctx.Void()
			p.advance()
		case p.isKeyword("char"):
			ty = p.ctx.Char()
			p.advance()
		case p.isKeyword("short"):
			ty = p.ctx.Short()
			p.advance()
		case p.isKeyword("int"):
			if ty == nil {
				ty = p.ctx.IntT()
			}
			p.advance()
		case p.isKeyword("long"):
			longCount++
			p.advance()
		case p.isKeyword("float"):
			ty = p.ctx.Float32()
			p.advance()
		case p.isKeyword("double"):
			ty = p.ctx.Float64()
			p.advance()
		case p.isKeyword("_Bool"):
			ty = p.ctx.Bool()
			p.advance()
		case p.isKeyword("signed"):
			signedSeen = true
			p.advance()
		case p.isKeyword("unsigned"):
			unsignedSeen = true
			p.advance()
		case p.isKeyword("struct") || p.isKeyword("union"):
			ty = p.parseRecordType()
		case p.isKeyword("enum"):
			ty = p.parseEnumType()
		case p.peek().Kind == lexer.Identifier:
			if t, ok := p.typedefNames[p.peek().Spelling]; ok && ty == nil {
				ty = t
				p.advance()
			} else {
				break loop
			}
		default:
			break loop
		}
	}

	if longCount > 0 {
		if longCount >= 2 {
			ty = p.ctx.LongLong()
		} else {
			ty = p.ctx.Long()
		}
	}
	if unsignedSeen || signedSeen {
		if ty == nil {
			ty = p.ctx.IntT()
		}
		ty = p.ctx.Int(ty.IntWidth, !unsignedSeen)
	}
	if ty == nil {
		return nil
	}
	if quals != 0 {
		ty = p.ctx.Qualify(ty, quals)
	}
	return ty
}

func (p *Parser) parseRecordType() *types.Type {
	loc := p.peek().Loc
	d := p.parseRecordSpec(loc)
	return d.Type
}

func (p *Parser) parseRecordSpec(loc source.Loc) *ast.RecordDecl {
	kind := types.StructKind
	if p.peek().Spelling == "union" {
		kind = types.UnionKind
	}
	p.advance()
	tag := ""
	if p.peek().Kind == lexer.Identifier {
		tag = p.peek().Spelling
		p.advance()
	}
	var ty *types.Type
	if existing, ok := p.tagTypes[tagKey(kind, tag)]; ok {
		ty = existing
	} else {
		ty = p.ctx.DeclareRecord(kind, tag)
		if tag != "" {
			p.tagTypes[tagKey(kind, tag)] = ty
		}
	}

	d := &ast.RecordDecl{DeclBase: ast.DeclBase{L: loc}, Kind: kind, Tag: tag, Type: ty}
	if p.isPunct("{") {
		p.advance()
		var fields []ast.FieldDecl
		var typeFields []types.Field
		for !p.isPunct("}") && !p.atEOF() {
			base := p.parseDeclSpecifiers()
			if base == nil {
				p.errorf("expected a field declaration")
				break
			}
			for {
				fname, fty := p.parseDeclarator(base)
				var bitWidth ast.Expr
				if p.isPunct(":") {
					p.advance()
					bitWidth = p.parseAssignExpr()
				}
				fields = append(fields, ast.FieldDecl{Name: fname, Type: fty, BitWidth: bitWidth})
				bw := 0
				if bitWidth != nil {
					if v, ok := constexpr.New(p.ctx, p.diags).Eval(bitWidth); ok {
						bw = int(v.Signed())
					}
				}
				typeFields = append(typeFields, types.Field{Name: fname, Type: fty, BitWidth: bw})
				if !p.isPunct(",") {
					break
				}
				p.advance()
			}
			p.expectPunct(";")
		}
		p.expectPunct("}")
		p.ctx.DefineRecord(ty, typeFields)
		d.Fields = fields
	}
	return d
}

func tagKey(kind types.RecordKind, tag string) string {
	if kind == types.UnionKind {
		return "u:" + tag
	}
	return "s:" + tag
}

func (p *Parser) parseEnumType() *types.Type {
	loc := p.peek().Loc
	d := p.parseEnumSpec(loc)
	return d.Type
}

func (p *Parser) parseEnumSpec(loc source.Loc) *ast.EnumDecl {
	p.advance() // "enum"
	tag := ""
	if p.peek().Kind == lexer.Identifier {
		tag = p.peek().Spelling
		p.advance()
	}
	ty := p.ctx.DeclareEnum(tag)
	d := &ast.EnumDecl{DeclBase: ast.DeclBase{L: loc}, Tag: tag, Type: ty}
	if p.isPunct("{") {
		p.advance()
		var consts []ast.EnumeratorDecl
		var typeConsts []types.EnumConst
		next := int64(0)
		for !p.isPunct("}") && !p.atEOF() {
			name := p.peek().Spelling
			eloc := p.peek().Loc
			p.advance()
			var valExpr ast.Expr
			if p.isPunct("=") {
				p.advance()
				valExpr = p.parseAssignExpr()
				if lit, ok := valExpr.(*ast.LiteralExpr); ok {
					next = int64(lit.IntValue)
				}
			}
			consts = append(consts, ast.EnumeratorDecl{Name: name, Value: valExpr, L: eloc})
			typeConsts = append(typeConsts, types.EnumConst{Name: name, Value: next})
			next++
			if !p.isPunct(",") {
				break
			}
			p.advance()
		}
		p.expectPunct("}")
		p.ctx.DefineEnum(ty, typeConsts)
		d.Constants = consts
	}
	return d
}

// parseDeclarator parses the (possibly empty) name plus pointer/array/
// function suffixes around it, per C's "declaration mimics use" grammar
// (simplified: pointers, array/function suffixes, and a parenthesized
// pointer declarator such as `int (*fp)(int)`, whose suffixes follow the
// closing parenthesis; a parenthesized declarator that itself carries
// suffixes, such as `int (*f(void))(int)`, is not parsed).
func (p *Parser) parseDeclarator(base *types.Type) (string, *types.Type) {
	name, ty, _ := p.parseDeclaratorFull(base)
	return name, ty
}

// parseDeclaratorFull is parseDeclarator plus the parameter names of the
// outermost function suffix, if any (spec §4.4 needs those names to bind
// parameters in the function body — a plain *types.Type carries only
// their types, per the interning rule that structurally identical
// signatures share one *types.Type).
func (p *Parser) parseDeclaratorFull(base *types.Type) (string, *types.Type, []string) {
	if p.isPunct("(") && p.peekN(1).Kind == lexer.Punctuator && p.peekN(1).Spelling == "*" {
		p.advance()
		stars, name := 0, ""
		for ; p.isPunct("*"); stars++ {
			p.advance()
		}
		if p.peek().Kind == lexer.Identifier {
			name = p.advance().Spelling
		}
		p.expectPunct(")")
		_, inner, _ := p.parseDeclaratorFull(base)
		for ; stars > 0; stars-- {
			inner = p.ctx.PointerTo(inner)
		}
		return name, inner, nil
	}
	ty := base
	for p.isPunct("*") {
		p.advance()
		var quals types.Qualifiers
		for p.isKeyword("const") || p.isKeyword("restrict") || p.isKeyword("volatile") {
			if p.isKeyword("const") {
				quals |= types.Const
			}
			p.advance()
		}
		ty = p.ctx.PointerTo(ty)
		if quals != 0 {
			ty = p.ctx.Qualify(ty, quals)
		}
	}
	name := ""
	if p.peek().Kind == lexer.Identifier {
		name = p.peek().Spelling
		p.advance()
	}
	var paramNames []string
	for {
		switch {
		case p.isPunct("["):
			p.advance()
			length := types.ArrayIncomplete
			if p.isPunct("]") {
				// incomplete/flexible, resolved by caller context
			} else {
				e := p.parseAssignExpr()
				if lit, ok := e.(*ast.LiteralExpr); ok {
					length = int(lit.IntValue)
				} else {
					length = types.ArrayVLA
				}
			}
			p.expectPunct("]")
			ty = p.ctx.ArrayOf(ty, length)
		case p.isPunct("("):
			p.advance()
			params, names, variadic := p.parseParamList()
			p.expectPunct(")")
			ty = p.ctx.FunctionType(ty, params, variadic, 0)
			paramNames = names
		default:
			return name, ty, paramNames
		}
	}
}

func (p *Parser) parseParamList() ([]*types.Type, []string, bool) {
	var params []*types.Type
	var names []string
	variadic := false
	if p.isKeyword("void") && p.peekN(1).Spelling == ")" {
		p.advance()
		return nil, nil, false
	}
	for !p.isPunct(")") && !p.atEOF() {
		if p.isPunct("...") {
			p.advance()
			variadic = true
			break
		}
		base := p.parseDeclSpecifiers()
		if base == nil {
			p.errorf("expected a parameter type")
			break
		}
		name, ty := p.parseDeclarator(base)
		params = append(params, ty)
		names = append(names, name)
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	return params, names, variadic
}

func (p *Parser) parseFunctionDeclOrDef(loc source.Loc, name string, ty *types.Type, storage ast.StorageClass, paramNames []string) ast.Decl {
	fd := &ast.FuncDecl{DeclBase: ast.DeclBase{L: loc}, Name: name, Type: ty, Storage: storage}
	for i, pt := range ty.Params {
		pname := ""
		if i < len(paramNames) {
			pname = paramNames[i]
		}
		fd.Params = append(fd.Params, ast.Param{Name: pname, Type: pt, L: loc})
	}
	if p.isPunct("{") {
		fd.Body = p.parseCompoundStmt()
		return fd
	}
	p.expectPunct(";")
	return fd
}

// --- Statements ---

func (p *Parser) parseCompoundStmt() *ast.CompoundStmt {
	loc := p.peek().Loc
	p.expectPunct("{")
	cs := &ast.CompoundStmt{StmtBase: ast.StmtBase{L: loc}}
	for !p.isPunct("}") && !p.atEOF() {
		before := p.pos
		s := p.parseBlockItem()
		if s != nil {
			cs.Items = append(cs.Items, s)
		}
		if p.panicMode {
			p.synchronizeStmt()
		}
		if p.pos == before {
			p.advance()
		}
	}
	p.expectPunct("}")
	return cs
}

func (p *Parser) parseBlockItem() ast.Stmt {
	if p.startsDeclaration() {
		loc := p.peek().Loc
		d := p.parseExternalDecl()
		return &ast.DeclStmt{StmtBase: ast.StmtBase{L: loc}, Decl: d}
	}
	return p.parseStmt()
}

func (p *Parser) startsDeclaration() bool {
	if p.peek().Kind != lexer.Keyword {
		if p.peek().Kind == lexer.Identifier {
			_, ok := p.typedefNames[p.peek().Spelling]
			return ok
		}
		return false
	}
	switch p.peek().Spelling {
	case "int", "char", "void", "struct", "union", "enum", "typedef",
		"static", "extern", "const", "short", "long", "unsigned", "signed",
		"float", "double", "_Bool", "auto", "register", "volatile", "_Static_assert", "inline":
		return true
	default:
		return false
	}
}

func (p *Parser) parseStmt() ast.Stmt {
	loc := p.peek().Loc
	switch {
	case p.isPunct("{"):
		return p.parseCompoundStmt()
	case p.isPunct(";"):
		p.advance()
		return &ast.NullStmt{StmtBase: ast.StmtBase{L: loc}}
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("while"):
		return p.parseWhile()
	case p.isKeyword("do"):
		return p.parseDoWhile()
	case p.isKeyword("for"):
		return p.parseFor()
	case p.isKeyword("switch"):
		return p.parseSwitch()
	case p.isKeyword("case"):
		return p.parseCase()
	case p.isKeyword("default"):
		return p.parseDefault()
	case p.isKeyword("return"):
		return p.parseReturn()
	case p.isKeyword("break"):
		p.advance()
		p.expectPunct(";")
		return &ast.BreakStmt{StmtBase: ast.StmtBase{L: loc}}
	case p.isKeyword("continue"):
		p.advance()
		p.expectPunct(";")
		return &ast.ContinueStmt{StmtBase: ast.StmtBase{L: loc}}
	case p.isKeyword("goto"):
		p.advance()
		label := p.peek().Spelling
		p.advance()
		p.expectPunct(";")
		return &ast.GotoStmt{StmtBase: ast.StmtBase{L: loc}, Label: label}
	case p.peek().Kind == lexer.Identifier && p.peekN(1).Spelling == ":":
		name := p.peek().Spelling
		p.advance()
		p.advance()
		inner := p.parseStmt()
		return &ast.LabelStmt{StmtBase: ast.StmtBase{L: loc}, Name: name, Stmt: inner}
	default:
		e := p.parseExpr()
		p.expectPunct(";")
		return &ast.ExprStmt{StmtBase: ast.StmtBase{L: loc}, X: e}
	}
}

func (p *Parser) parseIf() ast.Stmt {
	loc := p.peek().Loc
	p.advance()
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	then := p.parseStmt()
	var els ast.Stmt
	if p.isKeyword("else") {
		p.advance()
		els = p.parseStmt()
	}
	return &ast.IfStmt{StmtBase: ast.StmtBase{L: loc}, Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseWhile() ast.Stmt {
	loc := p.peek().Loc
	p.advance()
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	body := p.parseStmt()
	return &ast.WhileStmt{StmtBase: ast.StmtBase{L: loc}, Cond: cond, Body: body}
}

func (p *Parser) parseDoWhile() ast.Stmt {
	loc := p.peek().Loc
	p.advance()
	body := p.parseStmt()
	if !p.isKeyword("while") {
		p.errorf("expected 'while' after do-block")
	} else {
		p.advance()
	}
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	p.expectPunct(";")
	return &ast.DoWhileStmt{StmtBase: ast.StmtBase{L: loc}, Body: body, Cond: cond}
}

func (p *Parser) parseFor() ast.Stmt {
	loc := p.peek().Loc
	p.advance()
	p.expectPunct("(")
	var init ast.Stmt
	if p.startsDeclaration() {
		d := p.parseExternalDecl()
		init = &ast.DeclStmt{StmtBase: ast.StmtBase{L: loc}, Decl: d}
	} else if !p.isPunct(";") {
		e := p.parseExpr()
		p.expectPunct(";")
		init = &ast.ExprStmt{StmtBase: ast.StmtBase{L: loc}, X: e}
	} else {
		p.advance()
	}
	var cond ast.Expr
	if !p.isPunct(";") {
		cond = p.parseExpr()
	}
	p.expectPunct(";")
	var post ast.Expr
	if !p.isPunct(")") {
		post = p.parseExpr()
	}
	p.expectPunct(")")
	body := p.parseStmt()
	return &ast.ForStmt{StmtBase: ast.StmtBase{L: loc}, Init: init, Cond: cond, Post: post, Body: body}
}

func (p *Parser) parseSwitch() ast.Stmt {
	loc := p.peek().Loc
	p.advance()
	p.expectPunct("(")
	tag := p.parseExpr()
	p.expectPunct(")")
	body := p.parseStmt()
	return &ast.SwitchStmt{StmtBase: ast.StmtBase{L: loc}, Tag: tag, Body: body}
}

func (p *Parser) parseCase() ast.Stmt {
	loc := p.peek().Loc
	p.advance()
	v := p.parseAssignExpr()
	p.expectPunct(":")
	inner := p.parseStmt()
	return &ast.CaseStmt{StmtBase: ast.StmtBase{L: loc}, Value: v, Stmt: inner}
}

func (p *Parser) parseDefault() ast.Stmt {
	loc := p.peek().Loc
	p.advance()
	p.expectPunct(":")
	inner := p.parseStmt()
	return &ast.DefaultStmt{StmtBase: ast.StmtBase{L: loc}, Stmt: inner}
}

func (p *Parser) parseReturn() ast.Stmt {
	loc := p.peek().Loc
	p.advance()
	var v ast.Expr
	if !p.isPunct(";") {
		v = p.parseExpr()
	}
	p.expectPunct(";")
	return &ast.ReturnStmt{StmtBase: ast.StmtBase{L: loc}, Value: v}
}

// --- Expressions (precedence-climbing, grounded on parse/parser.go) ---

func (p *Parser) parseExpr() ast.Expr {
	e := p.parseAssignExpr()
	for p.isPunct(",") {
		loc := p.peek().Loc
		p.advance()
		r := p.parseAssignExpr()
		e = &ast.BinaryExpr{ExprBase: ast.ExprBase{L: loc}, Op: ast.OpComma, Left: e, Right: r}
	}
	return e
}

var compoundAssignOps = map[string]ast.BinaryOp{
	"+=": ast.OpAdd, "-=": ast.OpSub, "*=": ast.OpMul, "/=": ast.OpDiv, "%=": ast.OpMod,
	"&=": ast.OpBitAnd, "|=": ast.OpBitOr, "^=": ast.OpBitXor, "<<=": ast.OpShl, ">>=": ast.OpShr,
}

func (p *Parser) parseAssignExpr() ast.Expr {
	left := p.parseConditional()
	t := p.peek()
	if t.Kind == lexer.Punctuator && t.Spelling == "=" {
		loc := t.Loc
		p.advance()
		right := p.parseAssignExpr()
		return &ast.AssignExpr{ExprBase: ast.ExprBase{L: loc}, Left: left, Right: right}
	}
	if op, ok := compoundAssignOps[t.Spelling]; ok && t.Kind == lexer.Punctuator {
		loc := t.Loc
		p.advance()
		right := p.parseAssignExpr()
		return &ast.AssignExpr{ExprBase: ast.ExprBase{L: loc}, Op: op, Compound: true, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseConditional() ast.Expr {
	cond := p.parseLogOr()
	if p.isPunct("?") {
		loc := p.peek().Loc
		p.advance()
		then := p.parseExpr()
		p.expectPunct(":")
		els := p.parseConditional()
		return &ast.CondExpr{ExprBase: ast.ExprBase{L: loc}, Cond: cond, Then: then, Else: els}
	}
	return cond
}

type binLevel struct {
	ops map[string]ast.BinaryOp
	next func(*Parser) ast.Expr
}

func (p *Parser) parseLogOr() ast.Expr  { return p.parseBinLevel(map[string]ast.BinaryOp{"||": ast.OpLogOr}, (*Parser).parseLogAnd) }
func (p *Parser) parseLogAnd() ast.Expr { return p.parseBinLevel(map[string]ast.BinaryOp{"&&": ast.OpLogAnd}, (*Parser).parseBitOr) }
func (p *Parser) parseBitOr() ast.Expr  { return p.parseBinLevel(map[string]ast.BinaryOp{"|": ast.OpBitOr}, (*Parser).parseBitXor) }
func (p *Parser) parseBitXor() ast.Expr { return p.parseBinLevel(map[string]ast.BinaryOp{"^": ast.OpBitXor}, (*Parser).parseBitAnd) }
func (p *Parser) parseBitAnd() ast.Expr { return p.parseBinLevel(map[string]ast.BinaryOp{"&": ast.OpBitAnd}, (*Parser).parseEquality) }
func (p *Parser) parseEquality() ast.Expr {
	return p.parseBinLevel(map[string]ast.BinaryOp{"==": ast.OpEq, "!=": ast.OpNe}, (*Parser).parseRelational)
}
func (p *Parser) parseRelational() ast.Expr {
	return p.parseBinLevel(map[string]ast.BinaryOp{"<": ast.OpLt, "<=": ast.OpLe, ">": ast.OpGt, ">=": ast.OpGe}, (*Parser).parseShift)
}
func (p *Parser) parseShift() ast.Expr {
	return p.parseBinLevel(map[string]ast.BinaryOp{"<<": ast.OpShl, ">>": ast.OpShr}, (*Parser).parseAdditive)
}
func (p *Parser) parseAdditive() ast.Expr {
	return p.parseBinLevel(map[string]ast.BinaryOp{"+": ast.OpAdd, "-": ast.OpSub}, (*Parser).parseMultiplicative)
}
func (p *Parser) parseMultiplicative() ast.Expr {
	return p.parseBinLevel(map[string]ast.BinaryOp{"*": ast.OpMul, "/": ast.OpDiv, "%": ast.OpMod}, (*Parser).parseCast)
}

func (p *Parser) parseBinLevel(ops map[string]ast.BinaryOp, next func(*Parser) ast.Expr) ast.Expr {
	left := next(p)
	for {
		t := p.peek()
		op, ok := ops[t.Spelling]
		if !ok || t.Kind != lexer.Punctuator {
			return left
		}
		loc := t.Loc
		p.advance()
		right := next(p)
		left = &ast.BinaryExpr{ExprBase: ast.ExprBase{L: loc}, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseCast() ast.Expr {
	if p.isPunct("(") && p.startsTypeNameAt(1) {
		loc := p.peek().Loc
		p.advance()
		ty := p.parseDeclSpecifiers()
		_, ty = p.parseAbstractDeclarator(ty)
		p.expectPunct(")")
		if p.isPunct("{") {
			return p.finishCompoundLiteral(loc, ty)
		}
		x := p.parseCast()
		ce := &ast.CastExpr{ExprBase: ast.ExprBase{L: loc}, X: x}
		ce.SetType(ty)
		return ce
	}
	return p.parseUnary()
}

// parseAbstractDeclarator handles the pointer/array suffixes of a type
// name used in a cast or sizeof, reusing parseDeclarator's loop without
// requiring a name.
func (p *Parser) parseAbstractDeclarator(base *types.Type) (string, *types.Type) {
	return p.parseDeclarator(base)
}

func (p *Parser) startsTypeNameAt(ahead int) bool {
	t := p.peekN(ahead)
	if t.Kind == lexer.Keyword {
		switch t.Spelling {
		case "int", "char", "void", "short", "long", "unsigned", "signed",
			"float", "double", "_Bool", "struct", "union", "enum", "const", "volatile":
			return true
		}
	}
	if t.Kind == lexer.Identifier {
		_, ok := p.typedefNames[t.Spelling]
		return ok
	}
	return false
}

var unaryOps = map[string]ast.UnaryOp{
	"-": ast.OpNeg, "!": ast.OpNot, "~": ast.OpBitNot, "&": ast.OpAddr, "*": ast.OpDeref, "+": ast.OpPlus,
}

func (p *Parser) parseUnary() ast.Expr {
	t := p.peek()
	loc := t.Loc
	switch {
	case t.Kind == lexer.Punctuator && t.Spelling == "++":
		p.advance()
		x := p.parseUnary()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{L: loc}, Op: ast.OpPreInc, X: x}
	case t.Kind == lexer.Punctuator && t.Spelling == "--":
		p.advance()
		x := p.parseUnary()
		return &ast.UnaryExpr{ExprBase: ast.ExprBase{L: loc}, Op: ast.OpPreDec, X: x}
	case t.Kind == lexer.Punctuator:
		if op, ok := unaryOps[t.Spelling]; ok {
			p.advance()
			x := p.parseCast()
			return &ast.UnaryExpr{ExprBase: ast.ExprBase{L: loc}, Op: op, X: x}
		}
	case t.Kind == lexer.Keyword && t.Spelling == "sizeof":
		p.advance()
		if p.isPunct("(") && p.startsTypeNameAt(1) {
			p.advance()
			ty := p.parseDeclSpecifiers()
			_, ty = p.parseAbstractDeclarator(ty)
			p.expectPunct(")")
			return &ast.SizeofTypeExpr{ExprBase: ast.ExprBase{L: loc}, Operand: ty}
		}
		x := p.parseUnary()
		return &ast.SizeofExprExpr{ExprBase: ast.ExprBase{L: loc}, X: x}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		t := p.peek()
		loc := t.Loc
		switch {
		case p.isPunct("["):
			p.advance()
			idx := p.parseExpr()
			p.expectPunct("]")
			e = &ast.IndexExpr{ExprBase: ast.ExprBase{L: loc}, X: e, Index: idx}
		case p.isPunct("("):
			p.advance()
			var args []ast.Expr
			for !p.isPunct(")") && !p.atEOF() {
				args = append(args, p.parseAssignExpr())
				if !p.isPunct(",") {
					break
				}
				p.advance()
			}
			p.expectPunct(")")
			e = &ast.CallExpr{ExprBase: ast.ExprBase{L: loc}, Fn: e, Args: args}
		case p.isPunct("."):
			p.advance()
			name := p.peek().Spelling
			p.advance()
			e = &ast.FieldExpr{ExprBase: ast.ExprBase{L: loc}, X: e, Field: name}
		case p.isPunct("->"):
			p.advance()
			name := p.peek().Spelling
			p.advance()
			e = &ast.FieldExpr{ExprBase: ast.ExprBase{L: loc}, X: e, Field: name, Arrow: true}
		case p.isPunct("++"):
			p.advance()
			e = &ast.UnaryExpr{ExprBase: ast.ExprBase{L: loc}, Op: ast.OpPostInc, X: e}
		case p.isPunct("--"):
			p.advance()
			e = &ast.UnaryExpr{ExprBase: ast.ExprBase{L: loc}, Op: ast.OpPostDec, X: e}
		default:
			return e
		}
	}
}

func (p *Parser) finishCompoundLiteral(loc source.Loc, ty *types.Type) ast.Expr {
	init := p.parseInitList(loc)
	return &ast.CompoundLiteralExpr{ExprBase: ast.ExprBase{L: loc}, TypeName: ty, Init: init}
}

func (p *Parser) parseInitList(loc source.Loc) *ast.InitListExpr {
	p.expectPunct("{")
	il := &ast.InitListExpr{ExprBase: ast.ExprBase{L: loc}}
	for !p.isPunct("}") && !p.atEOF() {
		var elem ast.InitElem
		if p.isPunct(".") {
			p.advance()
			elem.FieldDesignator = p.peek().Spelling
			p.advance()
			p.expectPunct("=")
		} else if p.isPunct("[") {
			p.advance()
			elem.IndexDesignator = p.parseAssignExpr()
			p.expectPunct("]")
			p.expectPunct("=")
		}
		if p.isPunct("{") {
			elem.Value = p.parseInitList(p.peek().Loc)
		} else {
			elem.Value = p.parseAssignExpr()
		}
		il.Elems = append(il.Elems, elem)
		if !p.isPunct(",") {
			break
		}
		p.advance()
	}
	p.expectPunct("}")
	return il
}

func (p *Parser) parsePrimary() ast.Expr {
	t := p.peek()
	loc := t.Loc
	switch t.Kind {
	case lexer.IntConstant:
		p.advance()
		return &ast.LiteralExpr{ExprBase: ast.ExprBase{L: loc}, Kind: ast.LitInt, IntValue: t.IntValue}
	case lexer.CharConstant:
		p.advance()
		return &ast.LiteralExpr{ExprBase: ast.ExprBase{L: loc}, Kind: ast.LitChar, IntValue: t.IntValue}
	case lexer.FloatConstant:
		p.advance()
		return &ast.LiteralExpr{ExprBase: ast.ExprBase{L: loc}, Kind: ast.LitFloat, FloatVal: t.FloatValue}
	case lexer.StringConstant:
		p.advance()
		return &ast.LiteralExpr{ExprBase: ast.ExprBase{L: loc}, Kind: ast.LitString, StrValue: t.StringValue}
	case lexer.Identifier:
		p.advance()
		return &ast.IdentExpr{ExprBase: ast.ExprBase{L: loc}, Name: t.Spelling}
	case lexer.Punctuator:
		if t.Spelling == "(" {
			p.advance()
			e := p.parseExpr()
			p.expectPunct(")")
			return e
		}
	}
	p.errorf("expected an expression, found '%s'", tokenText(t))
	p.advance()
	return &ast.LiteralExpr{ExprBase: ast.ExprBase{L: loc}, Kind: ast.LitInt}
}

func tokenText(t lexer.Token) string {
	if t.Spelling != "" {
		return t.Spelling
	}
	if t.Kind == lexer.EOF {
		return "<eof>"
	}
	return strconv.Itoa(int(t.Kind))
}
