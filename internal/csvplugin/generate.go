package csvplugin

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/csvcontent"
	"github.com/nupi-ai/contentplugins/internal/generators"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
	"github.com/nupi-ai/contentplugins/internal/structval"
)

// Generate regenerates body, replacing the columns that have a generator.
// Generators are keyed by zero-based column path ("column:0"). The result
// keeps the content type of body.
func (s *Service) Generate(body *pluginpb.Body, wireGenerators map[string]*pluginpb.Generator, ctx generators.Context) (*pluginpb.Body, error) {
	gens, err := s.decodeGenerators(wireGenerators)
	if err != nil {
		return nil, err
	}

	generated, err := csvcontent.Generate(body.Content, gens, ctx)
	if err != nil {
		return nil, err
	}

	contentType := body.ContentType
	if contentType == "" {
		contentType = constants.CSVContentType
	}
	s.metrics.observeGenerated(len(generated))
	s.logger.Debug("generated contents", zap.String("size", humanize.Bytes(uint64(len(generated)))))
	return &pluginpb.Body{ContentType: contentType, Content: generated}, nil
}

func (s *Service) decodeGenerators(wire map[string]*pluginpb.Generator) (csvcontent.Generators, error) {
	gens := make(csvcontent.Generators, len(wire))
	for path, gen := range wire {
		column, err := ParseColumnPath(path)
		if err != nil {
			return nil, err
		}
		if gen == nil {
			continue
		}
		values := map[string]any{}
		if gen.Values != nil {
			values = structval.FromStruct(gen.Values.Struct)
		}
		live, err := s.generators.FromMap(gen.Type, values)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnknownGeneratorType, path, err)
		}
		gens[column] = live
	}
	return gens, nil
}
