package compiler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/reckon/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Compiler: single-pass Pratt parser emitting bytecode
// ---------------------------------------------------------------------------

// Options configures a compilation. Zero values select the defaults.
type Options struct {
	Diagnostics io.Writer // Error output (os.Stderr if nil)
	PrintCode   bool      // Disassemble the chunk after a successful compile
	CodeOut     io.Writer // Disassembly output (os.Stdout if nil)
	Logger      commonlog.Logger
}

// Diagnostic is one reported compile error.
type Diagnostic struct {
	Line    int
	Where   string // " at end", " at 'x'" or "" for lexical errors
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[line %d] Error%s: %s", d.Line, d.Where, d.Message)
}

// CompileError carries the diagnostics of a failed compilation.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.String()
	}
	return strings.Join(msgs, "\n")
}

// IsCompileError reports whether err is (or wraps) a *CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// maxNestingDepth bounds parsePrecedence recursion. Deeper input is a
// compile error.
const maxNestingDepth = 1024

// panicState suppresses cascading diagnostics after the first error.
// The grammar has no statement boundaries, so nothing resets it to
// panicNormal within one compilation.
type panicState uint8

const (
	panicNormal panicState = iota
	panicSuppressing
)

// Parser holds the state of one compilation.
type Parser struct {
	source  string
	scanner *Scanner
	chunk   *bytecode.Chunk

	previous Token
	current  Token

	hadError    bool
	panic       panicState
	diagnostics []Diagnostic

	depth int // active parsePrecedence calls

	opts Options
	log  commonlog.Logger
}

func newParser(source string, chunk *bytecode.Chunk, opts Options) *Parser {
	if opts.Diagnostics == nil {
		opts.Diagnostics = os.Stderr
	}
	if opts.CodeOut == nil {
		opts.CodeOut = os.Stdout
	}
	log := opts.Logger
	if log == nil {
		log = commonlog.GetLogger("reckon.compiler")
	}
	return &Parser{
		source:  source,
		scanner: NewScanner(source),
		chunk:   chunk,
		opts:    opts,
		log:     log,
	}
}

// Compile translates source into chunk and reports whether no error was
// recorded. Diagnostics are written to opts.Diagnostics as they occur; the
// chunk must not be executed when Compile returns false.
func Compile(source string, chunk *bytecode.Chunk, opts Options) bool {
	return newParser(source, chunk, opts).compile()
}

// CompileSource compiles source into a fresh chunk. On failure it returns a
// *CompileError holding every reported diagnostic.
func CompileSource(source string, opts Options) (*bytecode.Chunk, error) {
	chunk := bytecode.NewChunk()
	p := newParser(source, chunk, opts)
	if !p.compile() {
		return nil, &CompileError{Diagnostics: p.diagnostics}
	}
	return chunk, nil
}

func (p *Parser) compile() bool {
	p.advance()
	p.expression()
	p.consume(TokenEOF, "Expect end of expression.")
	p.endCompiler()
	return !p.hadError
}

func (p *Parser) endCompiler() {
	p.emitOp(bytecode.OpReturn)

	if p.hadError {
		p.log.Debugf("compile failed with %d diagnostic(s)", len(p.diagnostics))
		return
	}
	p.log.Debugf("compiled %d instruction(s), %d constant(s)",
		p.chunk.InstructionCount(), p.chunk.ConstantCount())
	if p.opts.PrintCode {
		fmt.Fprint(p.opts.CodeOut, p.chunk.DisassembleWithName("code"))
	}
}

// ---------------------------------------------------------------------------
// Token handling
// ---------------------------------------------------------------------------

// advance moves to the next non-error token, reporting lexical errors on the way.
func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scanner.NextToken()
		if p.current.Type != TokenError {
			return
		}
		p.errorAtCurrent(p.current.Message)
	}
}

// consume advances if the current token matches, otherwise records an error.
func (p *Parser) consume(t TokenType, message string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) expression() {
	p.parsePrecedence(PrecAssignment)
}

// parsePrecedence parses any expression whose operators bind at least as
// tightly as min.
func (p *Parser) parsePrecedence(min Precedence) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxNestingDepth {
		p.errorAtCurrent("Expression nested too deeply.")
		return
	}

	p.advance()
	prefix := getRule(p.previous.Type).prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}
	prefix(p)

	for min <= getRule(p.current.Type).precedence {
		p.advance()
		infix := getRule(p.previous.Type).infix
		infix(p)
	}
}

func (p *Parser) number() {
	v, err := strconv.ParseFloat(p.previous.Lexeme(p.source), 64)
	if err != nil {
		p.error("Invalid number literal.")
		return
	}
	p.emitConstant(bytecode.Value(v))
}

func (p *Parser) grouping() {
	p.expression()
	p.consume(TokenRightParen, "Expect ')' after expression.")
}

func (p *Parser) unary() {
	operator := p.previous.Type

	p.parsePrecedence(PrecUnary)

	if operator == TokenMinus {
		p.emitOp(bytecode.OpNegate)
	}
}

// binary compiles the right operand one level tighter than the operator,
// which makes every binary operator left-associative.
func (p *Parser) binary() {
	operator := p.previous.Type
	rule := getRule(operator)
	p.parsePrecedence(rule.precedence + 1)

	switch operator {
	case TokenPlus:
		p.emitOp(bytecode.OpAdd)
	case TokenMinus:
		p.emitOp(bytecode.OpSubtract)
	case TokenStar:
		p.emitOp(bytecode.OpMultiply)
	case TokenSlash:
		p.emitOp(bytecode.OpDivide)
	}
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// emitOp tags the instruction with the line of the token just consumed.
func (p *Parser) emitOp(op bytecode.Opcode) {
	p.chunk.WriteOp(op, p.previous.Line)
}

func (p *Parser) emitConstant(v bytecode.Value) {
	if _, err := p.chunk.EmitConstant(v, p.previous.Line); err != nil {
		p.error("Too many constants in one chunk.")
	}
}

// ---------------------------------------------------------------------------
// Error reporting
// ---------------------------------------------------------------------------

func (p *Parser) error(message string) {
	p.errorAt(p.previous, message)
}

func (p *Parser) errorAtCurrent(message string) {
	p.errorAt(p.current, message)
}

func (p *Parser) errorAt(tok Token, message string) {
	if p.panic == panicSuppressing {
		return
	}
	p.panic = panicSuppressing
	p.hadError = true

	d := Diagnostic{Line: tok.Line, Message: message}
	switch tok.Type {
	case TokenEOF:
		d.Where = " at end"
	case TokenError:
		// The message already describes the offending text.
	default:
		d.Where = fmt.Sprintf(" at '%s'", tok.Lexeme(p.source))
	}

	p.diagnostics = append(p.diagnostics, d)
	fmt.Fprintln(p.opts.Diagnostics, d.String())
}
