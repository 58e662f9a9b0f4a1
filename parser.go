package chasm

import (
	"sort"
	"strconv"
	"strings"
)

// Type is the two-value type system of chasm expressions. Literals,
// variables and parameters are F32; comparisons and && produce I32.
type Type int

const (
	I32 Type = iota
	F32
)

func (t Type) String() string {
	switch t {
	case I32:
		return "I32"
	case F32:
		return "F32"
	}
	panic("unreachable")
}

// Procedure is a compiled function: its index in the module's function
// index space, its parameter count, and its locals-prefixed body bytes.
// Index 0 is the imported print function, index 1 the top-level
// program, the rest first-reference order.
type Procedure struct {
	Idx      uint32
	NumParam uint32
	Code     []byte

	// span of the first reference, for the UndeclaredProc diagnostic
	span Span
}

// frame is the per-procedure emission state: the instruction bytes of
// the body being compiled and the symbol table assigning local slots.
type frame struct {
	code    []byte
	symbols map[string]uint32
}

func newFrame() *frame {
	return &frame{symbols: make(map[string]uint32)}
}

// localIndex returns the slot of symbol, assigning the next free slot
// in first-use order when the symbol is new.
func (f *frame) localIndex(symbol string) uint32 {
	if idx, ok := f.symbols[symbol]; ok {
		return idx
	}
	idx := uint32(len(f.symbols))
	f.symbols[symbol] = idx
	return idx
}

// finalize appends the end marker, then writes the locals declaration
// (one group of F32 locals, parameters excluded) and splices it in
// front of the already-emitted instruction bytes.
func (f *frame) finalize(numParam uint32) []byte {
	f.code = append(f.code, opEnd)
	mark := len(f.code)
	f.code = appendUleb(f.code, 1)
	f.code = appendUleb(f.code, uint64(len(f.symbols))-uint64(numParam))
	f.code = append(f.code, valF32)
	spliceToFront(f.code, mark)
	return f.code
}

// Parser walks the grammar with two tokens of lookahead and emits
// WebAssembly instruction bytes as it goes; there is no AST.
type Parser struct {
	source     []byte
	sc         *Scanner
	current    Token
	next       Token
	prev       Token // last consumed token, closes error spans
	procedures map[string]*Procedure
}

func NewParser(source []byte) *Parser {
	p := &Parser{
		source:     source,
		sc:         NewScanner(source),
		procedures: make(map[string]*Procedure),
	}
	p.eatToken()
	p.eatToken()
	return p
}

// Parse compiles every statement of the source and returns the
// finished procedures sorted by function index. The top-level program
// is finalized like any procedure and always occupies index 1.
func Parse(source []byte) ([]Procedure, error) {
	return NewParser(source).Parse()
}

func (p *Parser) Parse() ([]Procedure, error) {
	main := &Procedure{Idx: 1}
	p.procedures["main"] = main

	f := newFrame()
	for p.current.Kind != EOF {
		if err := p.statement(f); err != nil {
			return nil, err
		}
	}
	if _, err := p.matchToken(EOF); err != nil {
		return nil, err
	}
	main.Code = f.finalize(0)

	// drain the table: every referenced procedure needs a body by now
	names := make([]string, 0, len(p.procedures))
	for name := range p.procedures {
		names = append(names, name)
	}
	sort.Strings(names)
	procedures := make([]Procedure, 0, len(names))
	for _, name := range names {
		proc := p.procedures[name]
		if len(proc.Code) == 0 {
			return nil, NewError(UndeclaredProc, proc.span, p.source, "undeclared procedure %q", name)
		}
		procedures = append(procedures, *proc)
	}
	sort.Slice(procedures, func(i, j int) bool { return procedures[i].Idx < procedures[j].Idx })
	return procedures, nil
}

func (p *Parser) eatToken() {
	p.prev = p.current
	p.current = p.next
	p.next = p.sc.Next()
}

func (p *Parser) matchToken(kind TokenKind) (Token, error) {
	t := p.current
	if t.Kind != kind {
		return Token{}, p.unexpectedToken(t, kind)
	}
	p.eatToken()
	return t, nil
}

func (p *Parser) unexpectedToken(got Token, expected ...TokenKind) Error {
	kinds := make([]string, len(expected))
	for i, k := range expected {
		kinds[i] = k.String()
	}
	return NewError(UnexpectedToken, got.Span, p.source,
		"unexpected token %s, expected %s", got.Kind, naturalList(kinds))
}

func (p *Parser) expectType(got, want Type, span Span) error {
	if got != want {
		return p.unexpectedType(span, []Type{want}, []Type{got})
	}
	return nil
}

func (p *Parser) unexpectedType(span Span, expected, received []Type) Error {
	return NewError(UnexpectedType, span, p.source,
		"unexpected type, expected %s, received %s", typeList(expected), typeList(received))
}

func typeList(types []Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, " and ")
}

// procedure resolves a callee or declaration by name, creating a stub
// at the next unused function index when the name is new. Stubs are
// what make forward and mutually recursive calls work: the call
// instruction references an index whose body is compiled later.
func (p *Parser) procedure(name string, numParam uint32, span Span) (*Procedure, error) {
	if proc, ok := p.procedures[name]; ok {
		if proc.NumParam != numParam {
			return nil, NewError(ArgumentNumberMismatch, span, p.source,
				"number of arguments mismatch, expected %d, received %d", proc.NumParam, numParam)
		}
		return proc, nil
	}
	proc := &Procedure{
		Idx:      uint32(len(p.procedures)) + 1,
		NumParam: numParam,
		span:     span,
	}
	p.procedures[name] = proc
	return proc, nil
}

func (p *Parser) statement(f *frame) error {
	switch p.current.Kind {
	case PRINT:
		return p.printStatement(f)
	case VAR:
		return p.varDeclaration(f)
	case IDENTIFIER:
		switch p.next.Kind {
		case ASSIGNMENT:
			return p.assignment(f)
		case LEFTPAREN:
			return p.procCall(f)
		}
		return p.unexpectedToken(p.next, ASSIGNMENT, LEFTPAREN)
	case WHILE:
		return p.whileStatement(f)
	case IF:
		return p.ifStatement(f)
	case PROC:
		return p.procDeclaration()
	}
	return p.unexpectedToken(p.current, PRINT, VAR, IDENTIFIER, WHILE)
}

// printStatement parses "print <expression>" and emits a call to the
// imported print function at index 0.
func (p *Parser) printStatement(f *frame) error {
	if _, err := p.matchToken(PRINT); err != nil {
		return err
	}
	typ, span, err := p.expression(f)
	if err != nil {
		return err
	}
	if err := p.expectType(typ, F32, span); err != nil {
		return err
	}
	f.code = append(f.code, opCall)
	f.code = appendUleb(f.code, 0)
	return nil
}

// varDeclaration parses "var <ident> = <expression>". The keyword adds
// no meaning, the rest is an ordinary assignment.
func (p *Parser) varDeclaration(f *frame) error {
	if _, err := p.matchToken(VAR); err != nil {
		return err
	}
	return p.assignment(f)
}

// assignment parses "<ident> = <expression>" and stores into the
// identifier's local slot, allocating one on first use.
func (p *Parser) assignment(f *frame) error {
	ident, err := p.matchToken(IDENTIFIER)
	if err != nil {
		return err
	}
	idx := f.localIndex(string(ident.Content))
	if _, err := p.matchToken(ASSIGNMENT); err != nil {
		return err
	}
	typ, span, err := p.expression(f)
	if err != nil {
		return err
	}
	if err := p.expectType(typ, F32, span); err != nil {
		return err
	}
	f.code = append(f.code, opLocalSet)
	f.code = appendUleb(f.code, uint64(idx))
	return nil
}

// procCall parses "<ident> ( <expression>,* )". The setpixel intrinsic
// is generated inline; every other callee resolves through the
// procedure table and emits a call instruction.
func (p *Parser) procCall(f *frame) error {
	ident, err := p.matchToken(IDENTIFIER)
	if err != nil {
		return err
	}
	if string(ident.Content) == "setpixel" {
		return p.setpixel(f)
	}
	if _, err := p.matchToken(LEFTPAREN); err != nil {
		return err
	}
	var numArg uint32
	for p.current.Kind != RIGHTPAREN {
		typ, span, err := p.expression(f)
		if err != nil {
			return err
		}
		if err := p.expectType(typ, F32, span); err != nil {
			return err
		}
		numArg++
		if p.current.Kind == RIGHTPAREN {
			break
		}
		if _, err := p.matchToken(COMMA); err != nil {
			return err
		}
	}
	if _, err := p.matchToken(RIGHTPAREN); err != nil {
		return err
	}
	proc, err := p.procedure(string(ident.Content), numArg, Span{Start: ident.Span.Start, End: p.prev.Span.End})
	if err != nil {
		return err
	}
	f.code = append(f.code, opCall)
	f.code = appendUleb(f.code, uint64(proc.Idx))
	return nil
}

// setpixel generates "setpixel ( <x>, <y>, <color> )" inline: the
// arguments land in the locals x, y and color of the calling
// procedure's own frame, where they stay visible to later statements;
// the byte at y*100 + x of the shared linear memory is set to color,
// both truncated to integers.
func (p *Parser) setpixel(f *frame) error {
	if _, err := p.matchToken(LEFTPAREN); err != nil {
		return err
	}
	args := [3]string{"x", "y", "color"}
	var idx [3]uint32
	for i, name := range args {
		if i > 0 {
			if _, err := p.matchToken(COMMA); err != nil {
				return err
			}
		}
		typ, span, err := p.expression(f)
		if err != nil {
			return err
		}
		if err := p.expectType(typ, F32, span); err != nil {
			return err
		}
		idx[i] = f.localIndex(name)
		f.code = append(f.code, opLocalSet)
		f.code = appendUleb(f.code, uint64(idx[i]))
	}
	// (y*100 + x) as the store address, color as the stored byte
	f.code = append(f.code, opLocalGet)
	f.code = appendUleb(f.code, uint64(idx[1]))
	f.code = append(f.code, opF32Const)
	f.code = appendF32(f.code, 100)
	f.code = append(f.code, opF32Mul)
	f.code = append(f.code, opLocalGet)
	f.code = appendUleb(f.code, uint64(idx[0]))
	f.code = append(f.code, opF32Add)
	f.code = append(f.code, opI32TruncF32S)
	f.code = append(f.code, opLocalGet)
	f.code = appendUleb(f.code, uint64(idx[2]))
	f.code = append(f.code, opI32TruncF32S)
	f.code = append(f.code, opI32Store8, 0, 0)
	_, err := p.matchToken(RIGHTPAREN)
	return err
}

// whileStatement parses "while <expression> <statement>* endwhile".
// The loop nests inside a block; a negated condition branches out of
// both levels, and the body ends with a branch back to the loop start.
func (p *Parser) whileStatement(f *frame) error {
	if _, err := p.matchToken(WHILE); err != nil {
		return err
	}
	f.code = append(f.code, opBlock, blockTypeEmpty, opLoop, blockTypeEmpty)
	typ, span, err := p.expression(f)
	if err != nil {
		return err
	}
	if err := p.expectType(typ, I32, span); err != nil {
		return err
	}
	f.code = append(f.code, opI32Eqz, opBrIf, 1)
	for p.current.Kind != ENDWHILE {
		if err := p.statement(f); err != nil {
			return err
		}
	}
	if _, err := p.matchToken(ENDWHILE); err != nil {
		return err
	}
	f.code = append(f.code, opBr, 0, opEnd, opEnd)
	return nil
}

// ifStatement parses "if <expression> <statement>* endif" with an
// optional else arm. One end marker closes the construct either way.
func (p *Parser) ifStatement(f *frame) error {
	if _, err := p.matchToken(IF); err != nil {
		return err
	}
	typ, span, err := p.expression(f)
	if err != nil {
		return err
	}
	if err := p.expectType(typ, I32, span); err != nil {
		return err
	}
	f.code = append(f.code, opIf, blockTypeEmpty)
	for p.current.Kind != ENDIF && p.current.Kind != ELSE {
		if err := p.statement(f); err != nil {
			return err
		}
	}
	if p.current.Kind == ELSE {
		p.eatToken()
		f.code = append(f.code, opElse)
		for p.current.Kind != ENDIF {
			if err := p.statement(f); err != nil {
				return err
			}
		}
	}
	if _, err := p.matchToken(ENDIF); err != nil {
		return err
	}
	f.code = append(f.code, opEnd)
	return nil
}

// procDeclaration parses "proc <ident> ( <ident>,* ) <statement>*
// endproc" into a fresh frame with the parameters pre-seeded at the
// lowest local slots.
func (p *Parser) procDeclaration() error {
	if _, err := p.matchToken(PROC); err != nil {
		return err
	}
	name, err := p.matchToken(IDENTIFIER)
	if err != nil {
		return err
	}
	if _, err := p.matchToken(LEFTPAREN); err != nil {
		return err
	}
	var params []string
	for p.current.Kind != RIGHTPAREN {
		param, err := p.matchToken(IDENTIFIER)
		if err != nil {
			return err
		}
		params = append(params, string(param.Content))
		if p.current.Kind == RIGHTPAREN {
			break
		}
		if _, err := p.matchToken(COMMA); err != nil {
			return err
		}
	}
	if _, err := p.matchToken(RIGHTPAREN); err != nil {
		return err
	}

	numParam := uint32(len(params))
	proc, err := p.procedure(string(name.Content), numParam, name.Span)
	if err != nil {
		return err
	}

	f := newFrame()
	for i, param := range params {
		f.symbols[param] = uint32(i)
	}
	for p.current.Kind != ENDPROC {
		if err := p.statement(f); err != nil {
			return err
		}
	}
	if _, err := p.matchToken(ENDPROC); err != nil {
		return err
	}
	proc.Code = f.finalize(numParam)
	return nil
}

// expression parses "<number>", "<ident>" or "( <expression> <op>
// <expression> )", emits the bytes that leave its value on the stack,
// and returns its type along with the span it covered.
func (p *Parser) expression(f *frame) (Type, Span, error) {
	start := p.current.Span.Start
	typ, err := p.expr(f)
	return typ, Span{Start: start, End: p.prev.Span.End}, err
}

func (p *Parser) expr(f *frame) (Type, error) {
	switch p.current.Kind {
	case NUMBER:
		tok := p.current
		value, err := strconv.ParseFloat(string(tok.Content), 32)
		if err != nil {
			return F32, NewError(ParseFloatError, tok.Span, p.source, "failed to parse number (%v)", err)
		}
		p.eatToken()
		f.code = append(f.code, opF32Const)
		f.code = appendF32(f.code, float32(value))
		return F32, nil
	case IDENTIFIER:
		tok := p.current
		p.eatToken()
		idx := f.localIndex(string(tok.Content))
		f.code = append(f.code, opLocalGet)
		f.code = appendUleb(f.code, uint64(idx))
		return F32, nil
	case LEFTPAREN:
		start := p.current.Span.Start
		p.eatToken()

		typeA, err := p.expr(f)
		if err != nil {
			return F32, err
		}
		op, err := p.matchToken(OPERATOR)
		if err != nil {
			return F32, err
		}
		typeB, err := p.expr(f)
		if err != nil {
			return F32, err
		}

		span := Span{Start: start, End: p.prev.Span.End}
		switch string(op.Content) {
		case "+", "-", "*", "/", "==", "<", ">":
			if typeA != F32 || typeB != F32 {
				return F32, p.unexpectedType(span, []Type{F32, F32}, []Type{typeA, typeB})
			}
		case "&&":
			if typeA != I32 || typeB != I32 {
				return F32, p.unexpectedType(span, []Type{I32, I32}, []Type{typeA, typeB})
			}
		}
		if _, err := p.matchToken(RIGHTPAREN); err != nil {
			return F32, err
		}
		switch string(op.Content) {
		case "+":
			f.code = append(f.code, opF32Add)
		case "-":
			f.code = append(f.code, opF32Sub)
		case "*":
			f.code = append(f.code, opF32Mul)
		case "/":
			f.code = append(f.code, opF32Div)
		case "==":
			f.code = append(f.code, opF32Eq)
		case "<":
			f.code = append(f.code, opF32Lt)
		case ">":
			f.code = append(f.code, opF32Gt)
		case "&&":
			f.code = append(f.code, opI32And)
		}
		switch string(op.Content) {
		case "==", "<", ">", "&&":
			return I32, nil
		}
		return F32, nil
	}
	return F32, p.unexpectedToken(p.current, NUMBER, LEFTPAREN)
}
