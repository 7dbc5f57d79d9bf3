package csvplugin

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nupi-ai/contentplugins/internal/csvcontent"
	"github.com/nupi-ai/contentplugins/internal/matchers"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
	"github.com/nupi-ai/contentplugins/internal/structval"
)

// matchAttribute carries the wire rule type inside the decoded rule values.
const matchAttribute = "match"

// Compare compares actual against expected. A body that is present on one
// side only yields a single mismatch; two absent bodies yield none.
func (s *Service) Compare(expected, actual *pluginpb.Body, wireRules map[string]*pluginpb.MatchingRules, allowUnexpected bool) (*pluginpb.CompareContentsResponse, error) {
	resp := &pluginpb.CompareContentsResponse{Results: []*pluginpb.ContentMismatch{}}

	switch {
	case expected == nil && actual == nil:
		return resp, nil
	case expected == nil:
		resp.Results = append(resp.Results, &pluginpb.ContentMismatch{
			Actual:   actual.Content,
			Mismatch: fmt.Sprintf("Expected no CSV content, but got %d bytes", len(actual.Content)),
		})
		s.metrics.observeMismatches(1)
		return resp, nil
	case actual == nil:
		resp.Results = append(resp.Results, &pluginpb.ContentMismatch{
			Expected: expected.Content,
			Mismatch: "Expected CSV content, but did not get any",
		})
		s.metrics.observeMismatches(1)
		return resp, nil
	}

	rules, err := s.decodeRules(wireRules)
	if err != nil {
		return nil, err
	}

	mismatches, err := csvcontent.Compare(expected.Content, actual.Content, rules, allowUnexpected)
	if err != nil {
		if errors.Is(err, csvcontent.ErrNoContent) {
			return nil, fmt.Errorf("%w: %v", ErrNoContent, err)
		}
		return nil, err
	}

	for _, m := range mismatches {
		resp.Results = append(resp.Results, &pluginpb.ContentMismatch{
			Expected: m.Expected,
			Actual:   m.Actual,
			Mismatch: m.Message,
			Path:     m.Path,
		})
	}
	s.metrics.observeMismatches(len(mismatches))
	s.logger.Debug("compared contents", zap.Int("mismatches", len(mismatches)))
	return resp, nil
}

func (s *Service) decodeRules(wire map[string]*pluginpb.MatchingRules) (csvcontent.Rules, error) {
	rules := make(csvcontent.Rules, len(wire))
	for path, list := range wire {
		decoded := matchers.NewRuleList()
		if list != nil {
			for _, rule := range list.Rule {
				if rule == nil {
					continue
				}
				values := map[string]any{}
				if rule.Values != nil {
					values = structval.FromStruct(rule.Values.Struct)
				}
				values[matchAttribute] = rule.Type

				live, err := s.rules.FromMap(rule.Type, values)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrUnknownRuleType, path, err)
				}
				decoded.Add(live)
			}
		}
		rules[path] = decoded
	}
	return rules, nil
}
