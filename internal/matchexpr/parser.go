// Package matchexpr parses the field expressions used to configure content,
// e.g. "matching(number, 100)" or "matching(datetime, 'yyyy-MM-dd', '2000-01-01')",
// into an example value plus an optional matching rule and generator.
package matchexpr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nupi-ai/contentplugins/internal/generators"
	"github.com/nupi-ai/contentplugins/internal/matchers"
)

// ErrParse is returned for malformed expressions.
var ErrParse = errors.New("matchexpr: invalid expression")

// Field is the result of parsing one expression.
type Field struct {
	Example   string
	Rule      matchers.Rule
	Generator generators.Generator
}

func (f Field) String() string {
	var rule, gen string
	if f.Rule != nil {
		rule = f.Rule.Name()
	}
	if f.Generator != nil {
		gen = f.Generator.Name()
	}
	return fmt.Sprintf("Field{example=%q rule=%q generator=%q}", f.Example, rule, gen)
}

// Parser turns expressions into fields using the given registries.
type Parser struct {
	Rules      *matchers.Registry
	Generators *generators.Registry
}

// NewParser returns a parser backed by the default registries.
func NewParser() *Parser {
	return &Parser{Rules: matchers.Default(), Generators: generators.Default()}
}

// Parse parses expr with the default registries.
func Parse(expr string) (Field, error) {
	return NewParser().Parse(expr)
}

type arg struct {
	kind tokenKind
	text string
}

// Parse parses a single field expression. Anything that is not a function
// call is taken literally as the example value; a single quoted string is
// unquoted.
func (p *Parser) Parse(expr string) (Field, error) {
	literal := Field{Example: strings.TrimSpace(expr)}
	lex := &lexer{input: expr}
	first, err := lex.next()
	if err != nil {
		if strings.HasPrefix(literal.Example, "'") {
			return Field{}, err
		}
		return literal, nil
	}

	switch first.kind {
	case tokenEOF:
		return Field{}, nil
	case tokenString:
		if err := expectEOF(lex); err != nil {
			return Field{}, err
		}
		return Field{Example: first.text}, nil
	case tokenIdent:
	default:
		return literal, nil
	}

	second, err := lex.next()
	if err != nil || second.kind != tokenLParen {
		return literal, nil
	}

	args, err := parseArgs(lex)
	if err != nil {
		return Field{}, err
	}
	if err := expectEOF(lex); err != nil {
		return Field{}, err
	}
	return p.build(first.text, args)
}

func parseArgs(lex *lexer) ([]arg, error) {
	var args []arg
	for {
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokenRParen && len(args) == 0 {
			return args, nil
		}
		switch tok.kind {
		case tokenIdent, tokenString, tokenNumber:
			args = append(args, arg{kind: tok.kind, text: tok.text})
		default:
			return nil, fmt.Errorf("%w: expected an argument at index %d, got %s", ErrParse, tok.start, tok.kind)
		}

		sep, err := lex.next()
		if err != nil {
			return nil, err
		}
		switch sep.kind {
		case tokenComma:
			continue
		case tokenRParen:
			return args, nil
		default:
			return nil, fmt.Errorf("%w: expected ',' or ')' at index %d, got %s", ErrParse, sep.start, sep.kind)
		}
	}
}

func expectEOF(lex *lexer) error {
	tok, err := lex.next()
	if err != nil {
		return err
	}
	if tok.kind != tokenEOF {
		return fmt.Errorf("%w: unexpected %s at index %d", ErrParse, tok.kind, tok.start)
	}
	return nil
}

func (p *Parser) build(function string, args []arg) (Field, error) {
	switch function {
	case "matching":
		if len(args) == 0 || args[0].kind != tokenIdent {
			return Field{}, fmt.Errorf("%w: matching() requires a matcher type as its first argument", ErrParse)
		}
		return p.matching(args[0].text, args[1:])
	case "notEmpty":
		example, err := single("notEmpty", args)
		if err != nil {
			return Field{}, err
		}
		return p.withRule(example, matchers.TypeNotEmpty, nil)
	case "fromProviderState":
		if len(args) != 2 {
			return Field{}, fmt.Errorf("%w: fromProviderState() requires an expression and an example", ErrParse)
		}
		field, err := p.withRule(args[1].text, matchers.TypeType, nil)
		if err != nil {
			return Field{}, err
		}
		field.Generator, err = p.Generators.FromMap(generators.TypeProviderState, map[string]any{
			"expression": args[0].text,
		})
		if err != nil {
			return Field{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return field, nil
	}
	return Field{}, fmt.Errorf("%w: unknown function %q", ErrParse, function)
}

func (p *Parser) matching(kind string, args []arg) (Field, error) {
	switch kind {
	case "type", "number", "boolean", "notEmpty", "semver":
		example, err := single(kind, args)
		if err != nil {
			return Field{}, err
		}
		return p.withRule(example, kind, nil)
	case "equalTo":
		example, err := single(kind, args)
		if err != nil {
			return Field{}, err
		}
		return p.withRule(example, matchers.TypeEquality, nil)
	case "include":
		example, err := single(kind, args)
		if err != nil {
			return Field{}, err
		}
		return p.withRule(example, matchers.TypeInclude, map[string]any{"value": example})
	case "integer":
		example, err := single(kind, args)
		if err != nil {
			return Field{}, err
		}
		return p.withGenerator(example, matchers.TypeInteger, nil, generators.TypeRandomInt, map[string]any{
			"min": 0,
			"max": intBound(example),
		})
	case "decimal":
		example, err := single(kind, args)
		if err != nil {
			return Field{}, err
		}
		return p.withGenerator(example, matchers.TypeDecimal, nil, generators.TypeRandomDecimal, map[string]any{
			"digits": max(countDigits(example), 2),
		})
	case "regex":
		if len(args) != 2 {
			return Field{}, fmt.Errorf("%w: matching(regex) requires a regex and an example", ErrParse)
		}
		regex := map[string]any{"regex": args[0].text}
		return p.withGenerator(args[1].text, matchers.TypeRegex, regex, generators.TypeRegex, regex)
	case "date", "time", "datetime", "timestamp":
		if len(args) != 2 {
			return Field{}, fmt.Errorf("%w: matching(%s) requires a format and an example", ErrParse, kind)
		}
		format := map[string]any{"format": args[0].text}
		ruleType, genType := matchers.TypeTimestamp, generators.TypeDateTime
		switch kind {
		case "date":
			ruleType, genType = matchers.TypeDate, generators.TypeDate
		case "time":
			ruleType, genType = matchers.TypeTime, generators.TypeTime
		}
		return p.withGenerator(args[1].text, ruleType, format, genType, format)
	}
	return Field{}, fmt.Errorf("%w: unknown matcher type %q", ErrParse, kind)
}

// withRule builds the rule and checks that the example satisfies it.
func (p *Parser) withRule(example, ruleType string, values map[string]any) (Field, error) {
	rule, err := p.Rules.FromMap(ruleType, values)
	if err != nil {
		return Field{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := rule.Match(example, example); err != nil {
		return Field{}, fmt.Errorf("%w: example '%s' does not satisfy its own matcher: %v", ErrParse, example, err)
	}
	return Field{Example: example, Rule: rule}, nil
}

func (p *Parser) withGenerator(example, ruleType string, ruleValues map[string]any, genType string, genValues map[string]any) (Field, error) {
	field, err := p.withRule(example, ruleType, ruleValues)
	if err != nil {
		return Field{}, err
	}
	field.Generator, err = p.Generators.FromMap(genType, genValues)
	if err != nil {
		return Field{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return field, nil
}

func single(function string, args []arg) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: %s requires exactly one example value, got %d", ErrParse, function, len(args))
	}
	return args[0].text, nil
}

func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			n++
		}
	}
	return n
}

// intBound returns the largest integer with as many digits as example, so
// generated values keep the example's width.
func intBound(example string) int {
	digits := min(max(countDigits(example), 1), 9)
	return int(math.Pow10(digits)) - 1
}
