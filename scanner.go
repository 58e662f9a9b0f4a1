package chasm

import (
	"github.com/cznic/mathutil"
)

type TokenKind int

const (
	EOF TokenKind = iota
	NUMBER
	COMMA
	OPERATOR
	IDENTIFIER
	ASSIGNMENT
	LEFTPAREN
	RIGHTPAREN
	ERROR

	// keywords
	PRINT
	VAR
	WHILE
	ENDWHILE
	IF
	ENDIF
	ELSE
	PROC
	ENDPROC
)

func (t TokenKind) String() string {
	switch t {
	case EOF:
		return "EOF"
	case NUMBER:
		return "NUMBER"
	case COMMA:
		return ","
	case OPERATOR:
		return "OPERATOR"
	case IDENTIFIER:
		return "IDENTIFIER"
	case ASSIGNMENT:
		return "="
	case LEFTPAREN:
		return "("
	case RIGHTPAREN:
		return ")"
	case ERROR:
		return "ERROR"
	case PRINT:
		return "PRINT"
	case VAR:
		return "VAR"
	case WHILE:
		return "WHILE"
	case ENDWHILE:
		return "ENDWHILE"
	case IF:
		return "IF"
	case ENDIF:
		return "ENDIF"
	case ELSE:
		return "ELSE"
	case PROC:
		return "PROC"
	case ENDPROC:
		return "ENDPROC"
	}
	panic("unreachable")
}

var keywords = map[string]TokenKind{
	"print":    PRINT,
	"var":      VAR,
	"while":    WHILE,
	"endwhile": ENDWHILE,
	"if":       IF,
	"endif":    ENDIF,
	"else":     ELSE,
	"proc":     PROC,
	"endproc":  ENDPROC,
}

// Span is a half-open byte-offset range into the source text.
type Span struct {
	Start int
	End   int
}

type Token struct {
	Kind    TokenKind
	Span    Span
	Content []byte
}

// ScanTokens scans the whole source, ending with a single EOF token.
// Unrecognized bytes come back as ERROR tokens instead of failing the
// scan; the parser rejects them as unexpected tokens.
func ScanTokens(source []byte) []Token {
	sc := NewScanner(source)
	tokens := []Token{}
	for {
		tok := sc.Next()
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return tokens
}

type Scanner struct {
	source []byte
	start  int
	end    int
}

func NewScanner(source []byte) *Scanner {
	return &Scanner{source: source}
}

func (s *Scanner) Next() Token {
	s.skipWhitespace()
	s.start = s.end
	if s.end >= len(s.source) {
		return s.token(EOF)
	}
	switch c := s.peek(); c {
	case ',':
		s.advance()
		return s.token(COMMA)
	case '(':
		s.advance()
		return s.token(LEFTPAREN)
	case ')':
		s.advance()
		return s.token(RIGHTPAREN)
	case '=':
		s.advance()
		if s.peek() == '=' {
			s.advance()
			return s.token(OPERATOR)
		}
		return s.token(ASSIGNMENT)
	case '&':
		s.advance()
		if s.peek() == '&' {
			s.advance()
			return s.token(OPERATOR)
		}
		return s.token(ERROR)
	case '+', '*', '/', '<', '>':
		s.advance()
		return s.token(OPERATOR)
	case '-':
		// a '-' starts a number when a digit or dot follows
		if isNumeric(s.peekAt(1)) {
			return s.number()
		}
		s.advance()
		return s.token(OPERATOR)
	default:
		if isNumeric(c) {
			return s.number()
		}
		if isLetter(c) {
			return s.word()
		}
		s.advance()
		return s.token(ERROR)
	}
}

func isLetter(c byte) bool {
	return ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isNumeric(c byte) bool {
	return isDigit(c) || c == '.'
}

func (s *Scanner) word() Token {
	for isLetter(s.peek()) {
		s.advance()
	}
	t := s.token(IDENTIFIER)
	if kind, ok := keywords[string(t.Content)]; ok {
		t.Kind = kind
	}
	return t
}

// number scans an optional '-', then digits with at most one '.', then
// an optional exponent: 'e' or 'E', an optional '-', and exactly two
// digits. A shorter exponent is not part of the number, so "1e5" scans
// as NUMBER(1), IDENTIFIER(e), NUMBER(5).
func (s *Scanner) number() Token {
	if s.peek() == '-' {
		s.advance()
	}
	dot := false
	for {
		c := s.peek()
		if !isDigit(c) && (c != '.' || dot) {
			break
		}
		dot = dot || c == '.'
		s.advance()
	}
	if c := s.peek(); c == 'e' || c == 'E' {
		mark := s.end
		s.advance()
		if s.peek() == '-' {
			s.advance()
		}
		if isDigit(s.peek()) && isDigit(s.peekAt(1)) {
			s.advance()
			s.advance()
		} else {
			s.end = mark
		}
	}
	return s.token(NUMBER)
}

func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case ' ', '\t', '\r', '\n', '\v', '\f':
			s.advance()
		default:
			return
		}
	}
}

func (s *Scanner) peek() byte {
	return s.peekAt(0)
}

func (s *Scanner) peekAt(offset int) byte {
	if s.end+offset >= len(s.source) {
		return 0
	}
	return s.source[s.end+offset]
}

func (s *Scanner) advance() byte {
	c := s.peek()
	s.end++
	return c
}

func (s *Scanner) token(t TokenKind) Token {
	end := mathutil.Clamp(s.end, 0, len(s.source))
	content := s.source[s.start:end]
	span := Span{Start: s.start, End: end}
	s.start = end
	return Token{
		Kind:    t,
		Span:    span,
		Content: content,
	}
}
