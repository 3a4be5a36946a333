package compiler

import "unicode/utf8"

// ---------------------------------------------------------------------------
// Scanner: on-demand tokenizer
// ---------------------------------------------------------------------------

// Lexical error messages carried by TokenError tokens.
const (
	msgUnexpectedChar     = "Unexpected character."
	msgUnterminatedStr    = "Unterminated string."
	msgDigitLedIdentifier = "Identifier cannot start with a digit."
)

// Scanner produces tokens one at a time from a borrowed source string.
// Positions only move forward; consumed text is never revisited.
type Scanner struct {
	source  string
	start   int // start of the current lexeme
	current int // next byte to read
	line    int // current line (1-based)
	done    bool
}

// NewScanner creates a scanner over source.
func NewScanner(source string) *Scanner {
	return &Scanner{source: source, line: 1}
}

// Line returns the line the scanner is currently on.
func (s *Scanner) Line() int {
	return s.line
}

// NextToken scans and returns the next token. Once TokenEOF has been
// returned, every further call returns the same EOF token without scanning.
func (s *Scanner) NextToken() Token {
	if s.done {
		return Token{Type: TokenEOF, Start: s.current, Line: s.line}
	}

	s.skipWhitespaceAndComments()
	s.start = s.current

	if s.atEnd() {
		s.done = true
		return s.makeToken(TokenEOF)
	}

	c := s.advance()

	switch {
	case isAlpha(c):
		return s.identifier()
	case isDigit(c):
		return s.number()
	}

	switch c {
	case '(':
		return s.makeToken(TokenLeftParen)
	case ')':
		return s.makeToken(TokenRightParen)
	case '{':
		return s.makeToken(TokenLeftBrace)
	case '}':
		return s.makeToken(TokenRightBrace)
	case ';':
		return s.makeToken(TokenSemicolon)
	case ',':
		return s.makeToken(TokenComma)
	case '.':
		return s.makeToken(TokenDot)
	case '-':
		return s.makeToken(TokenMinus)
	case '+':
		return s.makeToken(TokenPlus)
	case '/':
		return s.makeToken(TokenSlash)
	case '*':
		return s.makeToken(TokenStar)
	case '!':
		return s.makeToken(s.either('=', TokenBangEqual, TokenBang))
	case '=':
		return s.makeToken(s.either('=', TokenEqualEqual, TokenEqual))
	case '<':
		return s.makeToken(s.either('=', TokenLessEqual, TokenLess))
	case '>':
		return s.makeToken(s.either('=', TokenGreaterEqual, TokenGreater))
	case '"':
		return s.string()
	}

	if c >= utf8.RuneSelf {
		// Report a multi-byte character once, not per byte.
		_, size := utf8.DecodeRuneInString(s.source[s.start:])
		s.current = s.start + size
	}
	return s.errorToken(msgUnexpectedChar)
}

// Tokens drains a fresh scanner over source, including the final EOF token.
func Tokens(source string) []Token {
	s := NewScanner(source)
	var toks []Token
	for {
		tok := s.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}

// skipWhitespaceAndComments skips blanks, newlines and '#' line comments.
func (s *Scanner) skipWhitespaceAndComments() {
	for !s.atEnd() {
		switch s.peek() {
		case ' ', '\r', '\t':
			s.current++
		case '\n':
			s.line++
			s.current++
		case '#':
			for !s.atEnd() && s.peek() != '\n' {
				s.current++
			}
		default:
			return
		}
	}
}

func (s *Scanner) identifier() Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.current++
	}
	if t, ok := keywords[s.source[s.start:s.current]]; ok {
		return s.makeToken(t)
	}
	return s.makeToken(TokenIdentifier)
}

func (s *Scanner) number() Token {
	for isDigit(s.peek()) {
		s.current++
	}

	// A fractional part needs at least one digit after the point.
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.current++
		for isDigit(s.peek()) {
			s.current++
		}
	}

	if isAlpha(s.peek()) {
		for isAlpha(s.peek()) || isDigit(s.peek()) {
			s.current++
		}
		return s.errorToken(msgDigitLedIdentifier)
	}
	return s.makeToken(TokenNumber)
}

func (s *Scanner) string() Token {
	for !s.atEnd() && s.peek() != '"' {
		if s.peek() == '\n' {
			s.line++
		}
		s.current++
	}

	if s.atEnd() {
		return s.errorToken(msgUnterminatedStr)
	}

	s.current++ // closing quote
	return s.makeToken(TokenString)
}

// either consumes expected and returns match, or returns otherwise.
func (s *Scanner) either(expected byte, match, otherwise TokenType) TokenType {
	if s.atEnd() || s.source[s.current] != expected {
		return otherwise
	}
	s.current++
	return match
}

func (s *Scanner) advance() byte {
	s.current++
	return s.source[s.current-1]
}

// peek returns the next byte, or 0 at end of input.
func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return 0
	}
	return s.source[s.current+1]
}

func (s *Scanner) atEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) makeToken(t TokenType) Token {
	return Token{
		Type:   t,
		Start:  s.start,
		Length: s.current - s.start,
		Line:   s.line,
	}
}

// errorToken spans the text consumed so far so callers can still point at it.
func (s *Scanner) errorToken(message string) Token {
	return Token{
		Type:    TokenError,
		Start:   s.start,
		Length:  s.current - s.start,
		Line:    s.line,
		Message: message,
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
