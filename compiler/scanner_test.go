package compiler

import "testing"

func tokenTypes(toks []Token) []TokenType {
	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	return types
}

func expectTypes(t *testing.T, source string, want ...TokenType) []Token {
	t.Helper()
	toks := Tokens(source)
	got := tokenTypes(toks)
	if len(got) != len(want) {
		t.Fatalf("Tokens(%q) = %v, want %v", source, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokens(%q)[%d] = %s, want %s", source, i, got[i], want[i])
		}
	}
	return toks
}

func TestScannerEmpty(t *testing.T) {
	for _, src := range []string{"", "   \t\r\n  ", "# only a comment", "\n# one\n  # two\n"} {
		expectTypes(t, src, TokenEOF)
	}
}

func TestScannerArithmetic(t *testing.T) {
	src := "(1 + 2.5) * -3 / 4"
	toks := expectTypes(t, src,
		TokenLeftParen, TokenNumber, TokenPlus, TokenNumber, TokenRightParen,
		TokenStar, TokenMinus, TokenNumber, TokenSlash, TokenNumber, TokenEOF)

	if got := toks[3].Lexeme(src); got != "2.5" {
		t.Errorf("lexeme = %q, want %q", got, "2.5")
	}
}

func TestScannerNumbers(t *testing.T) {
	// A trailing dot is not part of the number.
	toks := expectTypes(t, "12.", TokenNumber, TokenDot, TokenEOF)
	if toks[0].Length != 2 {
		t.Errorf("number length = %d, want 2", toks[0].Length)
	}

	expectTypes(t, "1.2.3", TokenNumber, TokenDot, TokenNumber, TokenEOF)
	expectTypes(t, ".5", TokenDot, TokenNumber, TokenEOF)
}

func TestScannerTwoCharOperators(t *testing.T) {
	expectTypes(t, "! != = == < <= > >=",
		TokenBang, TokenBangEqual, TokenEqual, TokenEqualEqual,
		TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual, TokenEOF)
	expectTypes(t, "!==", TokenBangEqual, TokenEqual, TokenEOF)
}

func TestScannerPunctuation(t *testing.T) {
	expectTypes(t, "{};,.",
		TokenLeftBrace, TokenRightBrace, TokenSemicolon, TokenComma, TokenDot, TokenEOF)
}

func TestScannerKeywordsAndIdentifiers(t *testing.T) {
	expectTypes(t, "and class else false for fun if nil or print return super this true var while",
		TokenAnd, TokenClass, TokenElse, TokenFalse, TokenFor, TokenFun, TokenIf, TokenNil,
		TokenOr, TokenPrint, TokenReturn, TokenSuper, TokenThis, TokenTrue, TokenVar, TokenWhile,
		TokenEOF)

	toks := expectTypes(t, "orchid _x9 While", TokenIdentifier, TokenIdentifier, TokenIdentifier, TokenEOF)
	if got := toks[1].Lexeme("orchid _x9 While"); got != "_x9" {
		t.Errorf("lexeme = %q, want %q", got, "_x9")
	}
}

func TestScannerStrings(t *testing.T) {
	src := "\"hi\nthere\" 1"
	toks := expectTypes(t, src, TokenString, TokenNumber, TokenEOF)
	if got := toks[0].Lexeme(src); got != "\"hi\nthere\"" {
		t.Errorf("lexeme = %q, includes quotes", got)
	}
	if toks[1].Line != 2 {
		t.Errorf("line after multi-line string = %d, want 2", toks[1].Line)
	}
}

func TestScannerUnterminatedString(t *testing.T) {
	toks := expectTypes(t, "\"open", TokenError, TokenEOF)
	if toks[0].Message != "Unterminated string." {
		t.Errorf("Message = %q", toks[0].Message)
	}
}

func TestScannerDigitLedIdentifier(t *testing.T) {
	src := "1abc + 2"
	toks := expectTypes(t, src, TokenError, TokenPlus, TokenNumber, TokenEOF)
	if toks[0].Message != "Identifier cannot start with a digit." {
		t.Errorf("Message = %q", toks[0].Message)
	}
	if got := toks[0].Lexeme(src); got != "1abc" {
		t.Errorf("error token covers %q, want %q", got, "1abc")
	}
}

func TestScannerUnexpectedCharacter(t *testing.T) {
	toks := expectTypes(t, "1 @ 2", TokenNumber, TokenError, TokenNumber, TokenEOF)
	if toks[1].Message != "Unexpected character." {
		t.Errorf("Message = %q", toks[1].Message)
	}

	// One error per character, not per byte.
	expectTypes(t, "π", TokenError, TokenEOF)
}

func TestScannerLines(t *testing.T) {
	src := "1\n+ # comment\n\n2"
	toks := expectTypes(t, src, TokenNumber, TokenPlus, TokenNumber, TokenEOF)
	want := []int{1, 2, 4, 4}
	for i, tok := range toks {
		if tok.Line != want[i] {
			t.Errorf("token %d (%s) line = %d, want %d", i, tok.Type, tok.Line, want[i])
		}
	}
}

func TestScannerEOFRepeats(t *testing.T) {
	s := NewScanner("7")
	if tok := s.NextToken(); tok.Type != TokenNumber {
		t.Fatalf("first token = %s", tok.Type)
	}
	for i := 0; i < 3; i++ {
		if tok := s.NextToken(); tok.Type != TokenEOF {
			t.Errorf("call %d after end = %s, want EOF", i, tok.Type)
		}
	}
}

func TestScannerPositionsAdvance(t *testing.T) {
	src := "(10 - 2) * 3 # done"
	prevEnd := 0
	for _, tok := range Tokens(src) {
		if tok.Start < prevEnd {
			t.Errorf("%s starts at %d, before previous end %d", tok.Type, tok.Start, prevEnd)
		}
		prevEnd = tok.Start + tok.Length
	}
}

func TestTokenLexemeOutOfRange(t *testing.T) {
	tok := Token{Type: TokenNumber, Start: 5, Length: 3}
	if got := tok.Lexeme("12"); got != "" {
		t.Errorf("Lexeme = %q, want empty", got)
	}
}
