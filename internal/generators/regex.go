package generators

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp/syntax"
	"strings"
)

// maxRepeat caps unbounded repetitions (*, +, {n,}) when generating.
const maxRepeat = 10

// Regex generates strings matching a regular expression.
type Regex struct {
	pattern string
	re      *syntax.Regexp
}

// NewRegex parses pattern for generation.
func NewRegex(pattern string) (*Regex, error) {
	if pattern == "" {
		return nil, errors.New("regex is required")
	}
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", pattern, err)
	}
	return &Regex{pattern: pattern, re: re.Simplify()}, nil
}

func (g *Regex) Name() string           { return TypeRegex }
func (g *Regex) Values() map[string]any { return map[string]any{"regex": g.pattern} }

func (g *Regex) Generate(string, Context) (string, error) {
	var b strings.Builder
	if err := emit(&b, g.re); err != nil {
		return "", fmt.Errorf("generate from %q: %w", g.pattern, err)
	}
	return b.String(), nil
}

func emit(b *strings.Builder, re *syntax.Regexp) error {
	switch re.Op {
	case syntax.OpNoMatch:
		return errors.New("expression can never match")
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText,
		syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return nil
	case syntax.OpLiteral:
		b.WriteString(string(re.Rune))
	case syntax.OpCharClass:
		b.WriteRune(pickFromClass(re.Rune))
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		b.WriteRune(rune('!' + rand.IntN('~'-'!'+1)))
	case syntax.OpCapture:
		return emit(b, re.Sub[0])
	case syntax.OpStar:
		return repeat(b, re.Sub[0], 0, maxRepeat)
	case syntax.OpPlus:
		return repeat(b, re.Sub[0], 1, maxRepeat)
	case syntax.OpQuest:
		return repeat(b, re.Sub[0], 0, 1)
	case syntax.OpRepeat:
		upper := re.Max
		if upper < 0 {
			upper = re.Min + maxRepeat
		}
		return repeat(b, re.Sub[0], re.Min, upper)
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if err := emit(b, sub); err != nil {
				return err
			}
		}
	case syntax.OpAlternate:
		return emit(b, re.Sub[rand.IntN(len(re.Sub))])
	default:
		return fmt.Errorf("unsupported operation %v", re.Op)
	}
	return nil
}

func repeat(b *strings.Builder, re *syntax.Regexp, lower, upper int) error {
	count := lower
	if upper > lower {
		count += rand.IntN(upper - lower + 1)
	}
	for i := 0; i < count; i++ {
		if err := emit(b, re); err != nil {
			return err
		}
	}
	return nil
}

// pickFromClass picks a rune from a class given as [lo, hi] pairs, preferring
// printable ASCII when a range extends beyond it.
func pickFromClass(ranges []rune) rune {
	if len(ranges) == 0 {
		return '?'
	}
	pair := rand.IntN(len(ranges)/2) * 2
	lo, hi := ranges[pair], ranges[pair+1]
	if lo <= '~' && hi > '~' {
		hi = '~'
	}
	if lo < ' ' && hi >= ' ' {
		lo = ' '
	}
	return lo + rune(rand.IntN(int(hi-lo)+1))
}
