package matchers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/dlclark/regexp2"

	"github.com/nupi-ai/contentplugins/internal/datefmt"
)

// Built-in rule type names.
const (
	TypeEquality  = "equality"
	TypeRegex     = "regex"
	TypeType      = "type"
	TypeNumber    = "number"
	TypeInteger   = "integer"
	TypeDecimal   = "decimal"
	TypeBoolean   = "boolean"
	TypeDate      = "date"
	TypeTime      = "time"
	TypeTimestamp = "timestamp"
	TypeInclude   = "include"
	TypeNotEmpty  = "notEmpty"
	TypeSemver    = "semver"
)

func registerBuiltins(r *Registry) {
	r.Register(TypeEquality, func(map[string]any) (Rule, error) { return Equality{}, nil })
	r.Register(TypeType, func(map[string]any) (Rule, error) { return Type{}, nil })
	r.Register(TypeNumber, func(map[string]any) (Rule, error) { return Number{}, nil })
	r.Register(TypeInteger, func(map[string]any) (Rule, error) { return Integer{}, nil })
	r.Register(TypeDecimal, func(map[string]any) (Rule, error) { return Decimal{}, nil })
	r.Register(TypeBoolean, func(map[string]any) (Rule, error) { return Boolean{}, nil })
	r.Register(TypeNotEmpty, func(map[string]any) (Rule, error) { return NotEmpty{}, nil })
	r.Register(TypeSemver, func(map[string]any) (Rule, error) { return Semver{}, nil })
	r.Register(TypeRegex, func(values map[string]any) (Rule, error) {
		var params struct {
			Regex string `mapstructure:"regex"`
		}
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		return NewRegex(params.Regex)
	})
	r.Register(TypeInclude, func(values map[string]any) (Rule, error) {
		var params struct {
			Value string `mapstructure:"value"`
		}
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		return Include{Value: params.Value}, nil
	})
	for _, kind := range []string{TypeDate, TypeTime, TypeTimestamp} {
		r.Register(kind, dateFactory(kind))
	}
	r.Register("datetime", dateFactory(TypeTimestamp))
}

func dateFactory(kind string) Factory {
	return func(values map[string]any) (Rule, error) {
		var params struct {
			Format string `mapstructure:"format"`
		}
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		return NewDateTime(kind, params.Format)
	}
}

// Equality requires the values to be identical.
type Equality struct{}

func (Equality) Name() string           { return TypeEquality }
func (Equality) Values() map[string]any { return map[string]any{} }

func (Equality) Match(expected, actual string) error {
	if expected != actual {
		return fmt.Errorf("Expected '%s' to be equal to '%s'", actual, expected)
	}
	return nil
}

// Type matches any value of the same type. Content fields are always strings.
type Type struct{}

func (Type) Name() string               { return TypeType }
func (Type) Values() map[string]any     { return map[string]any{} }
func (Type) Match(string, string) error { return nil }

// Number requires the actual value to parse as a number.
type Number struct{}

func (Number) Name() string           { return TypeNumber }
func (Number) Values() map[string]any { return map[string]any{} }

func (Number) Match(_, actual string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(actual), 64); err != nil {
		return fmt.Errorf("Expected '%s' to be a number", actual)
	}
	return nil
}

// Integer requires the actual value to parse as an integer.
type Integer struct{}

func (Integer) Name() string           { return TypeInteger }
func (Integer) Values() map[string]any { return map[string]any{} }

func (Integer) Match(_, actual string) error {
	if _, err := strconv.ParseInt(strings.TrimSpace(actual), 10, 64); err != nil {
		return fmt.Errorf("Expected '%s' to be an integer value", actual)
	}
	return nil
}

// Decimal requires a number with a fractional part.
type Decimal struct{}

func (Decimal) Name() string           { return TypeDecimal }
func (Decimal) Values() map[string]any { return map[string]any{} }

func (Decimal) Match(_, actual string) error {
	trimmed := strings.TrimSpace(actual)
	if _, err := strconv.ParseFloat(trimmed, 64); err != nil || !strings.Contains(trimmed, ".") {
		return fmt.Errorf("Expected '%s' to be a decimal value", actual)
	}
	return nil
}

// Boolean requires "true" or "false".
type Boolean struct{}

func (Boolean) Name() string           { return TypeBoolean }
func (Boolean) Values() map[string]any { return map[string]any{} }

func (Boolean) Match(_, actual string) error {
	if actual != "true" && actual != "false" {
		return fmt.Errorf("Expected '%s' to be a boolean value", actual)
	}
	return nil
}

// NotEmpty requires a non-empty value.
type NotEmpty struct{}

func (NotEmpty) Name() string           { return TypeNotEmpty }
func (NotEmpty) Values() map[string]any { return map[string]any{} }

func (NotEmpty) Match(_, actual string) error {
	if actual == "" {
		return errors.New("Expected a non-empty value")
	}
	return nil
}

// Semver requires a semantic version string.
type Semver struct{}

func (Semver) Name() string           { return TypeSemver }
func (Semver) Values() map[string]any { return map[string]any{} }

func (Semver) Match(_, actual string) error {
	if _, err := semver.NewVersion(actual); err != nil {
		return fmt.Errorf("'%s' is not a valid semantic version - %v", actual, err)
	}
	return nil
}

// Include requires the actual value to contain Value.
type Include struct {
	Value string
}

func (Include) Name() string             { return TypeInclude }
func (i Include) Values() map[string]any { return map[string]any{"value": i.Value} }

func (i Include) Match(_, actual string) error {
	if !strings.Contains(actual, i.Value) {
		return fmt.Errorf("Expected '%s' to include '%s'", actual, i.Value)
	}
	return nil
}

// Regex requires the actual value to match a regular expression. Patterns use
// the .NET/Java-compatible syntax of regexp2, so lookarounds are available.
type Regex struct {
	pattern string
	re      *regexp2.Regexp
}

// NewRegex compiles pattern.
func NewRegex(pattern string) (*Regex, error) {
	if pattern == "" {
		return nil, errors.New("regex is required")
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	return &Regex{pattern: pattern, re: re}, nil
}

func (r *Regex) Name() string           { return TypeRegex }
func (r *Regex) Values() map[string]any { return map[string]any{"regex": r.pattern} }

// Pattern returns the source expression.
func (r *Regex) Pattern() string { return r.pattern }

func (r *Regex) Match(_, actual string) error {
	ok, err := r.re.MatchString(actual)
	if err != nil {
		return fmt.Errorf("Failed to match '%s' against '%s' - %v", actual, r.pattern, err)
	}
	if !ok {
		return fmt.Errorf("Expected '%s' to match '%s'", actual, r.pattern)
	}
	return nil
}

// DateTime requires the actual value to parse with a date/time pattern.
type DateTime struct {
	kind    string
	format  string
	pattern string
	layout  string
}

// NewDateTime builds a date, time or timestamp rule. An empty format selects
// the ISO default for kind.
func NewDateTime(kind, format string) (*DateTime, error) {
	pattern := format
	if pattern == "" {
		switch kind {
		case TypeDate:
			pattern = datefmt.DefaultDate
		case TypeTime:
			pattern = datefmt.DefaultTime
		default:
			pattern = datefmt.DefaultDateTime
		}
	}
	layout, err := datefmt.Layout(pattern)
	if err != nil {
		return nil, err
	}
	return &DateTime{kind: kind, format: format, pattern: pattern, layout: layout}, nil
}

func (d *DateTime) Name() string { return d.kind }

func (d *DateTime) Values() map[string]any {
	if d.format == "" {
		return map[string]any{}
	}
	return map[string]any{"format": d.format}
}

func (d *DateTime) Match(_, actual string) error {
	if _, err := time.Parse(d.layout, actual); err != nil {
		return fmt.Errorf("Expected '%s' to match a %s pattern of '%s': %v", actual, d.kind, d.pattern, err)
	}
	return nil
}
