package csvplugin

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
)

func newConfig(t *testing.T, fields map[string]any) *Config {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return &Config{Fields: s}
}

func csvBody(content string) *pluginpb.Body {
	return &pluginpb.Body{ContentType: constants.CSVContentType, Content: []byte(content)}
}

func TestInitPluginCatalogue(t *testing.T) {
	resp, err := NewService().InitPlugin(context.Background(), &pluginpb.InitPluginRequest{Implementation: "test", Version: "0"})
	require.NoError(t, err)
	require.Len(t, resp.Catalogue, 2)

	assert.Equal(t, pluginpb.EntryContentMatcher, resp.Catalogue[0].Type)
	assert.Equal(t, pluginpb.EntryContentGenerator, resp.Catalogue[1].Type)
	for _, entry := range resp.Catalogue {
		assert.Equal(t, "csv", entry.Key)
		assert.Equal(t, map[string]string{"content-types": "text/csv;application/csv"}, entry.Values)
	}
}

func TestUpdateCatalogueIsAcknowledged(t *testing.T) {
	resp, err := NewService().UpdateCatalogue(context.Background(), &pluginpb.Catalogue{Catalogue: Catalogue()})
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestConfigureBuildsTemplateRulesAndGenerators(t *testing.T) {
	resp, err := NewService().Configure(newConfig(t, map[string]any{
		"column:1": "matching(type,'Name')",
		"column:2": "matching(number,100)",
		"column:3": "matching(datetime, 'yyyy-MM-dd','2000-01-01')",
	}))
	require.NoError(t, err)

	assert.Equal(t, "text/csv;charset=UTF-8", resp.Contents.ContentType)
	assert.Equal(t, "Name,100,2000-01-01\n", string(resp.Contents.Content))

	require.Len(t, resp.Rules, 3)
	assert.Equal(t, "type", resp.Rules["column:0"].Rule[0].Type)
	assert.Equal(t, "number", resp.Rules["column:1"].Rule[0].Type)
	assert.Equal(t, "timestamp", resp.Rules["column:2"].Rule[0].Type)
	assert.Equal(t, "yyyy-MM-dd", resp.Rules["column:2"].Rule[0].Values.Fields()["format"].GetStringValue())

	require.Len(t, resp.Generators, 1)
	assert.Equal(t, "DateTime", resp.Generators["column:2"].Type)
}

func TestConfigureFillsGapsWithEmptyValues(t *testing.T) {
	resp, err := NewService().Configure(newConfig(t, map[string]any{
		"column:3": "x",
		"column:1": "'quoted'",
	}))
	require.NoError(t, err)
	assert.Equal(t, "quoted,,x\n", string(resp.Contents.Content))
	assert.Empty(t, resp.Rules)
	assert.Empty(t, resp.Generators)
}

func TestConfigureErrors(t *testing.T) {
	svc := NewService()

	_, err := svc.Configure(nil)
	assert.ErrorIs(t, err, ErrMissingConfig)

	tests := []struct {
		name   string
		fields map[string]any
		want   error
	}{
		{name: "bad prefix", fields: map[string]any{"col:1": "x"}, want: ErrInvalidSelector},
		{name: "zero column", fields: map[string]any{"column:0": "x"}, want: ErrInvalidSelector},
		{name: "not a number", fields: map[string]any{"column:one": "x"}, want: ErrInvalidSelector},
		{name: "non-string expression", fields: map[string]any{"column:1": 12.0}, want: ErrInvalidExpression},
		{name: "unknown matcher", fields: map[string]any{"column:1": "matching(colour, 'red')"}, want: ErrInvalidExpression},
		{name: "example fails its matcher", fields: map[string]any{"column:1": "matching(number, 'abc')"}, want: ErrInvalidExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Configure(newConfig(t, tt.fields))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompareAbsentBodies(t *testing.T) {
	svc := NewService()

	resp, err := svc.Compare(nil, nil, nil, false)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	resp, err = svc.Compare(nil, csvBody("a,b\n"), nil, false)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Expected no CSV content, but got 4 bytes", resp.Results[0].Mismatch)
	assert.Equal(t, []byte("a,b\n"), resp.Results[0].Actual)
	assert.Nil(t, resp.Results[0].Expected)

	resp, err = svc.Compare(csvBody("a,b\n"), nil, nil, false)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Expected CSV content, but did not get any", resp.Results[0].Mismatch)
	assert.Equal(t, []byte("a,b\n"), resp.Results[0].Expected)
}

func TestCompareWithConfiguredRules(t *testing.T) {
	svc := NewService()
	configured, err := svc.Configure(newConfig(t, map[string]any{
		"column:1": "matching(type,'Name')",
		"column:2": "matching(number,100)",
		"column:3": "matching(datetime, 'yyyy-MM-dd','2000-01-01')",
	}))
	require.NoError(t, err)

	resp, err := svc.Compare(configured.Contents, csvBody("Bob,200,2001-02-03\nAlice,300,1999-12-31\n"), configured.Rules, false)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	resp, err = svc.Compare(configured.Contents, csvBody("Bob,lots,2001-02-03\n"), configured.Rules, false)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "row:1, column:1", resp.Results[0].Path)
	assert.Equal(t, []byte("100"), resp.Results[0].Expected)
	assert.Equal(t, []byte("lots"), resp.Results[0].Actual)
}

func TestCompareRuleDecodeFailures(t *testing.T) {
	svc := NewService()
	rules := map[string]*pluginpb.MatchingRules{
		"column:0": {Rule: []*pluginpb.MatchingRule{{Type: "colour"}}},
	}
	_, err := svc.Compare(csvBody("a\n"), csvBody("a\n"), rules, false)
	assert.ErrorIs(t, err, ErrUnknownRuleType)

	values, err := structpb.NewStruct(map[string]any{"regex": "("})
	require.NoError(t, err)
	rules = map[string]*pluginpb.MatchingRules{
		"column:0": {Rule: []*pluginpb.MatchingRule{{Type: "regex", Values: pluginpb.NewValues(values)}}},
	}
	_, err = svc.Compare(csvBody("a\n"), csvBody("a\n"), rules, false)
	assert.ErrorIs(t, err, ErrUnknownRuleType)
}

func TestCompareNoContent(t *testing.T) {
	svc := NewService()

	_, err := svc.Compare(csvBody(""), csvBody("a\n"), nil, false)
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = svc.Compare(csvBody("a\n"), csvBody(""), nil, false)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestGenerateReplacesConfiguredColumns(t *testing.T) {
	values, err := structpb.NewStruct(map[string]any{"min": 5, "max": 5})
	require.NoError(t, err)
	gens := map[string]*pluginpb.Generator{
		"column:1": {Type: "RandomInt", Values: pluginpb.NewValues(values)},
	}

	body, err := NewService().Generate(&pluginpb.Body{ContentType: "application/csv", Content: []byte("a,1,x\nb,2,y\n")}, gens, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/csv", body.ContentType)
	assert.Equal(t, "a,5,x\nb,5,y\n", string(body.Content))
}

func TestGenerateDefaultsContentType(t *testing.T) {
	body, err := NewService().Generate(&pluginpb.Body{Content: []byte("a\n")}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, constants.CSVContentType, body.ContentType)
	assert.Equal(t, "a\n", string(body.Content))
}

func TestGenerateErrors(t *testing.T) {
	svc := NewService()

	_, err := svc.Generate(csvBody("a\n"), map[string]*pluginpb.Generator{"column:0": {Type: "Sparkle"}}, nil)
	assert.ErrorIs(t, err, ErrUnknownGeneratorType)

	_, err = svc.Generate(csvBody("a\n"), map[string]*pluginpb.Generator{"row:0": {Type: "RandomInt"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidSelector)
}

func TestParseSelectorAndPath(t *testing.T) {
	n, err := ParseSelector("column:3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = ParseColumnPath("column:0")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = ParseColumnPath("column:-1")
	assert.ErrorIs(t, err, ErrInvalidSelector)
}

func TestConfigureEmptyExampleRoundTrips(t *testing.T) {
	svc := NewService()

	resp, err := svc.Configure(newConfig(t, map[string]any{"column:1": "''"}))
	require.NoError(t, err)
	assert.Equal(t, "\"\"\n", string(resp.Contents.Content))

	compared, err := svc.Compare(resp.Contents, csvBody("\"\"\n"), resp.Rules, false)
	require.NoError(t, err)
	assert.Empty(t, compared.Results)
}

func TestSentinelErrorsArePrefixed(t *testing.T) {
	for _, err := range []error{
		ErrMissingConfig, ErrInvalidSelector, ErrInvalidExpression, ErrSerializationFailed,
		ErrNoContent, ErrUnknownRuleType, ErrUnknownGeneratorType,
	} {
		assert.True(t, strings.HasPrefix(err.Error(), "csvplugin: "), err.Error())
	}
}
