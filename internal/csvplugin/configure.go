package csvplugin

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/csvcontent"
	"github.com/nupi-ai/contentplugins/internal/matchexpr"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
	"github.com/nupi-ai/contentplugins/internal/structval"
)

const columnPrefix = "column:"

// Config maps field selectors ("column:1") to field expressions.
type Config struct {
	Fields *structpb.Struct
}

// ParseSelector resolves a 1-based "column:N" selector to its column number.
func ParseSelector(selector string) (int, error) {
	n, err := parseColumn(selector)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %q (columns start at 1)", ErrInvalidSelector, selector)
	}
	return n, nil
}

// ParseColumnPath resolves a zero-based "column:N" path to its column index.
func ParseColumnPath(path string) (int, error) {
	return parseColumn(path)
}

func parseColumn(key string) (int, error) {
	trimmed := strings.TrimSpace(key)
	if !strings.HasPrefix(trimmed, columnPrefix) {
		return 0, fmt.Errorf("%w: %q (expected column:<n>)", ErrInvalidSelector, key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(trimmed, columnPrefix)))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSelector, key)
	}
	return n, nil
}

// Configure builds the template body and the rules and generators for the
// configured columns. Rules and generators are keyed by zero-based column path.
func (s *Service) Configure(config *Config) (*pluginpb.ConfigureContentsResponse, error) {
	if config == nil || config.Fields == nil {
		return nil, ErrMissingConfig
	}

	fields := config.Fields.GetFields()
	var columns []*matchexpr.Field
	for _, selector := range structval.SortedKeys(fields) {
		column, err := ParseSelector(selector)
		if err != nil {
			return nil, err
		}
		expression, ok := fields[selector].GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string expression", ErrInvalidExpression, selector)
		}
		field, err := s.parser.Parse(expression.StringValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidExpression, selector, err)
		}
		s.logger.Debug("parsed column definition", zap.Int("column", column), zap.Stringer("field", field))

		if column > len(columns) {
			columns = append(columns, make([]*matchexpr.Field, column-len(columns))...)
		}
		columns[column-1] = &field
	}

	examples := make([]string, len(columns))
	resp := &pluginpb.ConfigureContentsResponse{
		Rules:      map[string]*pluginpb.MatchingRules{},
		Generators: map[string]*pluginpb.Generator{},
	}
	for index, field := range columns {
		if field == nil {
			continue
		}
		examples[index] = field.Example
		path := csvcontent.ColumnPath(index)

		if field.Rule != nil {
			values, err := structval.ToStruct(field.Rule.Values())
			if err != nil {
				return nil, fmt.Errorf("%w: rule values for %s: %v", ErrSerializationFailed, path, err)
			}
			resp.Rules[path] = &pluginpb.MatchingRules{Rule: []*pluginpb.MatchingRule{{
				Type:   field.Rule.Name(),
				Values: pluginpb.NewValues(values),
			}}}
		}
		if field.Generator != nil {
			values, err := structval.ToStruct(field.Generator.Values())
			if err != nil {
				return nil, fmt.Errorf("%w: generator values for %s: %v", ErrSerializationFailed, path, err)
			}
			resp.Generators[path] = &pluginpb.Generator{
				Type:   field.Generator.Name(),
				Values: pluginpb.NewValues(values),
			}
		}
	}

	content, err := csvcontent.Write(examples)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	resp.Contents = &pluginpb.Body{ContentType: constants.CSVContentType, Content: content}
	return resp, nil
}
