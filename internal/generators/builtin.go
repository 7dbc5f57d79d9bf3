package generators

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nupi-ai/contentplugins/internal/datefmt"
)

// Built-in generator type names.
const (
	TypeRandomInt         = "RandomInt"
	TypeRandomDecimal     = "RandomDecimal"
	TypeRandomHexadecimal = "RandomHexadecimal"
	TypeRandomString      = "RandomString"
	TypeRandomBoolean     = "RandomBoolean"
	TypeRegex             = "Regex"
	TypeUUID              = "Uuid"
	TypeDate              = "Date"
	TypeTime              = "Time"
	TypeDateTime          = "DateTime"
	TypeProviderState     = "ProviderState"
)

const (
	defaultDigits = 10
	defaultSize   = 10
	maxRandomInt  = 2147483647
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func registerBuiltins(r *Registry) {
	r.Register(TypeRandomInt, func(values map[string]any) (Generator, error) {
		params := RandomInt{Min: 0, Max: maxRandomInt}
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		if params.Max < params.Min {
			return nil, fmt.Errorf("max %d is below min %d", params.Max, params.Min)
		}
		return params, nil
	})
	r.Register(TypeRandomDecimal, func(values map[string]any) (Generator, error) {
		params := RandomDecimal{Digits: defaultDigits}
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		if params.Digits < 1 {
			return nil, errors.New("digits must be positive")
		}
		return params, nil
	})
	r.Register(TypeRandomHexadecimal, func(values map[string]any) (Generator, error) {
		params := RandomHexadecimal{Digits: defaultDigits}
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		if params.Digits < 0 {
			return nil, fmt.Errorf("digits %d is negative", params.Digits)
		}
		return params, nil
	})
	r.Register(TypeRandomString, func(values map[string]any) (Generator, error) {
		params := RandomString{Size: defaultSize}
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		if params.Size < 0 {
			return nil, fmt.Errorf("size %d is negative", params.Size)
		}
		return params, nil
	})
	r.Register(TypeRandomBoolean, func(map[string]any) (Generator, error) {
		return RandomBoolean{}, nil
	})
	r.Register(TypeRegex, func(values map[string]any) (Generator, error) {
		var params struct {
			Regex string `mapstructure:"regex"`
		}
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		return NewRegex(params.Regex)
	})
	r.Register(TypeUUID, func(values map[string]any) (Generator, error) {
		var params UUID
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		switch params.Format {
		case "", UUIDSimple, UUIDLowerHyphenated, UUIDUpperHyphenated, UUIDURN:
			return params, nil
		}
		return nil, fmt.Errorf("unknown uuid format %q", params.Format)
	})
	for _, kind := range []string{TypeDate, TypeTime, TypeDateTime} {
		r.Register(kind, dateTimeFactory(kind))
	}
	r.Register(TypeProviderState, func(values map[string]any) (Generator, error) {
		var params ProviderState
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		if params.Expression == "" {
			return nil, errors.New("expression is required")
		}
		return params, nil
	})
}

// RandomInt generates an integer in [Min, Max].
type RandomInt struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

func (RandomInt) Name() string { return TypeRandomInt }

func (g RandomInt) Values() map[string]any {
	return map[string]any{"min": g.Min, "max": g.Max}
}

// Generate draws from the full [Min, Max] range. The span is computed in
// uint64 so that ranges wider than math.MaxInt64 do not overflow.
func (g RandomInt) Generate(string, Context) (string, error) {
	lo, hi := int64(g.Min), int64(g.Max)
	if hi < lo {
		return "", fmt.Errorf("max %d is below min %d", hi, lo)
	}
	span := uint64(hi) - uint64(lo) + 1
	if span == 0 {
		return strconv.FormatInt(int64(rand.Uint64()), 10), nil
	}
	return strconv.FormatInt(lo+int64(rand.Uint64N(span)), 10), nil
}

// RandomDecimal generates a decimal number with Digits significant digits.
type RandomDecimal struct {
	Digits int `mapstructure:"digits"`
}

func (RandomDecimal) Name() string { return TypeRandomDecimal }

func (g RandomDecimal) Values() map[string]any {
	return map[string]any{"digits": g.Digits}
}

func (g RandomDecimal) Generate(string, Context) (string, error) {
	if g.Digits < 1 {
		return "", fmt.Errorf("digits %d must be positive", g.Digits)
	}
	if g.Digits == 1 {
		return strconv.Itoa(rand.IntN(10)), nil
	}
	digits := make([]byte, g.Digits)
	digits[0] = byte('1' + rand.IntN(9))
	for i := 1; i < len(digits); i++ {
		digits[i] = byte('0' + rand.IntN(10))
	}
	point := 1 + rand.IntN(g.Digits-1)
	return string(digits[:point]) + "." + string(digits[point:]), nil
}

// RandomHexadecimal generates Digits hexadecimal characters.
type RandomHexadecimal struct {
	Digits int `mapstructure:"digits"`
}

func (RandomHexadecimal) Name() string { return TypeRandomHexadecimal }

func (g RandomHexadecimal) Values() map[string]any {
	return map[string]any{"digits": g.Digits}
}

func (g RandomHexadecimal) Generate(string, Context) (string, error) {
	const hex = "0123456789abcdef"
	if g.Digits < 0 {
		return "", fmt.Errorf("digits %d is negative", g.Digits)
	}
	out := make([]byte, g.Digits)
	for i := range out {
		out[i] = hex[rand.IntN(len(hex))]
	}
	return string(out), nil
}

// RandomString generates Size alphanumeric characters.
type RandomString struct {
	Size int `mapstructure:"size"`
}

func (RandomString) Name() string { return TypeRandomString }

func (g RandomString) Values() map[string]any {
	return map[string]any{"size": g.Size}
}

func (g RandomString) Generate(string, Context) (string, error) {
	if g.Size < 0 {
		return "", fmt.Errorf("size %d is negative", g.Size)
	}
	out := make([]byte, g.Size)
	for i := range out {
		out[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(out), nil
}

// RandomBoolean generates "true" or "false".
type RandomBoolean struct{}

func (RandomBoolean) Name() string           { return TypeRandomBoolean }
func (RandomBoolean) Values() map[string]any { return map[string]any{} }

func (RandomBoolean) Generate(string, Context) (string, error) {
	return strconv.FormatBool(rand.IntN(2) == 1), nil
}

// UUID formats.
const (
	UUIDSimple          = "simple"
	UUIDLowerHyphenated = "lower-case-hyphenated"
	UUIDUpperHyphenated = "upper-case-hyphenated"
	UUIDURN             = "URN"
)

// UUID generates a random UUID in Format.
type UUID struct {
	Format string `mapstructure:"format"`
}

func (UUID) Name() string { return TypeUUID }

func (g UUID) Values() map[string]any {
	if g.Format == "" {
		return map[string]any{}
	}
	return map[string]any{"format": g.Format}
}

func (g UUID) Generate(string, Context) (string, error) {
	id := uuid.New()
	switch g.Format {
	case UUIDSimple:
		return strings.ReplaceAll(id.String(), "-", ""), nil
	case UUIDUpperHyphenated:
		return strings.ToUpper(id.String()), nil
	case UUIDURN:
		return id.URN(), nil
	default:
		return id.String(), nil
	}
}

// DateTime renders the current time with a date, time or timestamp pattern.
type DateTime struct {
	kind    string
	format  string
	pattern string
	now     func() time.Time
}

func dateTimeFactory(kind string) Factory {
	return func(values map[string]any) (Generator, error) {
		var params struct {
			Format string `mapstructure:"format"`
		}
		if err := decodeValues(values, &params); err != nil {
			return nil, err
		}
		return NewDateTime(kind, params.Format)
	}
}

// NewDateTime builds a Date, Time or DateTime generator. An empty format uses
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
	if _, err := datefmt.Layout(pattern); err != nil {
		return nil, err
	}
	return &DateTime{kind: kind, format: format, pattern: pattern, now: time.Now}, nil
}

func (g *DateTime) Name() string { return g.kind }

func (g *DateTime) Values() map[string]any {
	if g.format == "" {
		return map[string]any{}
	}
	return map[string]any{"format": g.format}
}

func (g *DateTime) Generate(string, Context) (string, error) {
	return datefmt.Format(g.pattern, g.now())
}

// ProviderState resolves ${name} placeholders in Expression from the context.
type ProviderState struct {
	Expression string `mapstructure:"expression"`
	DataType   string `mapstructure:"dataType"`
}

func (ProviderState) Name() string { return TypeProviderState }

func (g ProviderState) Values() map[string]any {
	values := map[string]any{"expression": g.Expression}
	if g.DataType != "" {
		values["dataType"] = g.DataType
	}
	return values
}

var placeholder = regexp.MustCompile(`\$\{([^}]+)\}`)

func (g ProviderState) Generate(_ string, ctx Context) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(g.Expression, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-1])
		value, ok := ctx[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return stringify(value)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("provider state value(s) not found: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
