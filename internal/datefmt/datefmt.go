// Package datefmt translates the Java-style date patterns used in matching
// expressions ("yyyy-MM-dd'T'HH:mm:ss") into Go time layouts.
package datefmt

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default patterns applied when a rule or generator does not carry a format.
const (
	DefaultDate     = "yyyy-MM-dd"
	DefaultTime     = "HH:mm:ss"
	DefaultDateTime = "yyyy-MM-dd'T'HH:mm:ss"
)

// ErrUnsupportedPattern is returned for pattern letters without a Go equivalent.
var ErrUnsupportedPattern = errors.New("datefmt: unsupported pattern")

// letter runs mapped to Go layout fragments, keyed by letter then run length.
// A missing exact length falls back to the longest run below it.
var layoutTable = map[byte]map[int]string{
	'y': {1: "2006", 2: "06", 3: "2006"},
	'M': {1: "1", 2: "01", 3: "Jan", 4: "January"},
	'd': {1: "2", 2: "02"},
	'E': {1: "Mon", 4: "Monday"},
	'H': {1: "15", 2: "15"},
	'h': {1: "3", 2: "03"},
	'm': {1: "4", 2: "04"},
	's': {1: "5", 2: "05"},
	'S': {1: "0", 2: "00", 3: "000", 6: "000000", 9: "000000000"},
	'a': {1: "PM"},
	'Z': {1: "-0700"},
	'X': {1: "Z07", 2: "Z0700", 3: "Z07:00"},
	'z': {1: "MST"},
}

// Layout converts a Java-style pattern into a Go layout string.
func Layout(pattern string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch {
		case c == '\'':
			if i+1 < len(pattern) && pattern[i+1] == '\'' {
				b.WriteByte('\'')
				i += 2
				continue
			}
			j, closed := i+1, false
			for j < len(pattern) {
				if pattern[j] == '\'' {
					if j+1 < len(pattern) && pattern[j+1] == '\'' {
						b.WriteByte('\'')
						j += 2
						continue
					}
					closed = true
					break
				}
				b.WriteByte(pattern[j])
				j++
			}
			if !closed {
				return "", fmt.Errorf("%w: unterminated quote in %q", ErrUnsupportedPattern, pattern)
			}
			i = j + 1
		case isLetter(c):
			run := 1
			for i+run < len(pattern) && pattern[i+run] == c {
				run++
			}
			fragment, err := fragmentFor(c, run)
			if err != nil {
				return "", fmt.Errorf("%w in %q", err, pattern)
			}
			b.WriteString(fragment)
			i += run
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

func fragmentFor(letter byte, run int) (string, error) {
	lengths, ok := layoutTable[letter]
	if !ok {
		return "", fmt.Errorf("%w: letter %q", ErrUnsupportedPattern, letter)
	}
	for n := run; n > 0; n-- {
		if fragment, ok := lengths[n]; ok {
			return fragment, nil
		}
	}
	return "", fmt.Errorf("%w: letter %q", ErrUnsupportedPattern, letter)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Parse parses value according to a Java-style pattern.
func Parse(pattern, value string) (time.Time, error) {
	layout, err := Layout(pattern)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(layout, value)
}

// Format renders t using a Java-style pattern.
func Format(pattern string, t time.Time) (string, error) {
	layout, err := Layout(pattern)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}
