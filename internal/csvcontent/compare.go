package csvcontent

import (
	"errors"
	"fmt"
	"io"

	"github.com/nupi-ai/contentplugins/internal/matchers"
)

// Mismatch is one discrepancy between the template record and actual content.
// Path is "row:<line>, column:<index>" for value mismatches and empty for
// column-count mismatches.
type Mismatch struct {
	Expected []byte
	Actual   []byte
	Message  string
	Path     string
}

// Rules maps a column path ("column:0") to the rules applied to that column.
type Rules map[string]*matchers.RuleList

// ColumnPath returns the rule key of the zero-based column index.
func ColumnPath(index int) string {
	return fmt.Sprintf("column:%d", index)
}

// Compare checks every record of actual against the first record of
// expected. Mismatches are returned in discovery order: the column-count
// check on the first actual record, then row by row, column by column.
func Compare(expected, actual []byte, rules Rules, allowUnexpectedColumns bool) ([]Mismatch, error) {
	template, err := First(expected)
	if err != nil {
		return nil, fmt.Errorf("expected content: %w", err)
	}

	reader := NewReader(actual)
	first, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("actual content: %w", ErrNoContent)
		}
		return nil, fmt.Errorf("actual content: %w: %v", ErrNoContent, err)
	}

	var results []Mismatch
	if m, ok := columnCount(template, first, allowUnexpectedColumns); ok {
		results = append(results, m)
	}

	results = compareRecord(template, first, rules, results)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read actual content: %w", err)
		}
		results = compareRecord(template, record, rules, results)
	}
	return results, nil
}

func columnCount(template, actual Record, allowUnexpected bool) (Mismatch, bool) {
	want, got := len(template.Fields), len(actual.Fields)
	var message string
	switch {
	case got < want:
		message = fmt.Sprintf("Expected %d columns, but got %d", want, got)
	case got > want && !allowUnexpected:
		message = fmt.Sprintf("Expected at least %d columns, but got %d", want, got)
	default:
		return Mismatch{}, false
	}
	return Mismatch{
		Expected: []byte(fmt.Sprintf("%d columns", want)),
		Actual:   []byte(fmt.Sprintf("%d columns", got)),
		Message:  message,
	}, true
}

func compareRecord(template, actual Record, rules Rules, results []Mismatch) []Mismatch {
	for index, value := range actual.Fields {
		expected := template.Get(index)
		path := fmt.Sprintf("row:%d, column:%d", actual.Line, index)

		list, ok := rules[ColumnPath(index)]
		if !ok {
			if value != expected {
				results = append(results, Mismatch{
					Expected: []byte(expected),
					Actual:   []byte(value),
					Message:  fmt.Sprintf("Expected column %d value to equal '%s', but got '%s'", index, expected, value),
					Path:     path,
				})
			}
			continue
		}
		if list == nil {
			continue
		}
		for _, rule := range list.Rules {
			if err := rule.Match(expected, value); err != nil {
				results = append(results, Mismatch{
					Expected: []byte(expected),
					Actual:   []byte(value),
					Message:  err.Error(),
					Path:     path,
				})
			}
		}
	}
	return results
}
