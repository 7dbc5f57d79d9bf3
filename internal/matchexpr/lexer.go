package matchexpr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenLParen
	tokenRParen
	tokenComma
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of expression"
	case tokenIdent:
		return "identifier"
	case tokenString:
		return "string"
	case tokenNumber:
		return "number"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenComma:
		return "','"
	}
	return "unknown token"
}

type token struct {
	kind  tokenKind
	text  string
	start int
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, start: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokenLParen, text: "(", start: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokenRParen, text: ")", start: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokenComma, text: ",", start: start}, nil
	case c == '\'':
		return l.quoted()
	case c == '-' || c == '+' || isDigit(c):
		return l.number()
	case isIdentStart(rune(c)):
		for l.pos < len(l.input) && isIdentPart(rune(l.input[l.pos])) {
			l.pos++
		}
		return token{kind: tokenIdent, text: l.input[start:l.pos], start: start}, nil
	}
	return token{}, fmt.Errorf("%w: unexpected character %q at index %d", ErrParse, c, start)
}

func (l *lexer) quoted() (token, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch c {
		case '\\':
			if l.pos+1 < len(l.input) {
				next := l.input[l.pos+1]
				if next == '\'' || next == '\\' {
					b.WriteByte(next)
					l.pos += 2
					continue
				}
			}
			b.WriteByte(c)
			l.pos++
		case '\'':
			l.pos++
			return token{kind: tokenString, text: b.String(), start: start}, nil
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, fmt.Errorf("%w: unterminated string starting at index %d", ErrParse, start)
}

func (l *lexer) number() (token, error) {
	start := l.pos
	if c := l.input[l.pos]; c == '-' || c == '+' {
		l.pos++
	}
	digits := 0
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.' ||
		l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		if isDigit(l.input[l.pos]) {
			digits++
		}
		l.pos++
	}
	if digits == 0 {
		return token{}, fmt.Errorf("%w: malformed number at index %d", ErrParse, start)
	}
	return token{kind: tokenNumber, text: l.input[start:l.pos], start: start}, nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool { return unicode.IsLetter(r) || r == '_' || r == '$' }

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '-' || r == '.'
}
