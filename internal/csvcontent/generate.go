package csvcontent

import (
	"errors"
	"fmt"
	"io"

	"github.com/nupi-ai/contentplugins/internal/generators"
)

// ErrGenerationFailed is returned when a generator fails or the content can
// not be read or written. No partial output accompanies it.
var ErrGenerationFailed = errors.New("csvcontent: content generation failed")

// Generators maps a zero-based column index to the generator for that column.
type Generators map[int]generators.Generator

// Generate re-emits every record of content, replacing the fields of
// columns that have a generator with freshly generated values.
func Generate(content []byte, gens Generators, ctx generators.Context) ([]byte, error) {
	if ctx == nil {
		ctx = generators.Context{}
	}

	reader := NewReader(content)
	var out [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read record: %v", ErrGenerationFailed, err)
		}

		fields := make([]string, len(record.Fields))
		for col, field := range record.Fields {
			gen, ok := gens[col]
			if !ok {
				fields[col] = field
				continue
			}
			value, err := gen.Generate(field, ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d, column %d (%s): %v", ErrGenerationFailed, record.Line, col, gen.Name(), err)
			}
			fields[col] = value
		}
		out = append(out, fields)
	}

	generated, err := Write(out...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return generated, nil
}
