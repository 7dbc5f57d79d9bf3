// Package pluginpb defines the content-plugin protocol: request/response
// messages, the gRPC service descriptor, a client, and the codec that puts
// the messages on the wire in protobuf binary form. The JSON tags are used
// for command-line output and input files.
package pluginpb

import (
	"bytes"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// EntryType is the kind of capability a catalogue entry advertises.
type EntryType string

const (
	EntryContentMatcher   EntryType = "content-matcher"
	EntryContentGenerator EntryType = "content-generator"
	EntryTransport        EntryType = "transport"
	EntryMatcher          EntryType = "matcher"
	EntryInteraction      EntryType = "interaction"
)

// RunningPluginInfo is the startup line a plugin prints on stdout once its
// listener is bound.
type RunningPluginInfo struct {
	Port      uint16 `json:"port"`
	ServerKey string `json:"serverKey"`
}

// InitPluginRequest is sent by the driver right after the handshake.
type InitPluginRequest struct {
	Implementation string `json:"implementation"`
	Version        string `json:"version"`
}

// CatalogueEntry advertises one capability of a plugin.
type CatalogueEntry struct {
	Type   EntryType         `json:"type"`
	Key    string            `json:"key"`
	Values map[string]string `json:"values,omitempty"`
}

// InitPluginResponse lists the plugin's capabilities.
type InitPluginResponse struct {
	Catalogue []*CatalogueEntry `json:"catalogue"`
}

// Catalogue is the merged catalogue pushed to every plugin by the driver.
type Catalogue struct {
	Catalogue []*CatalogueEntry `json:"catalogue"`
}

// Void is an empty response.
type Void struct{}

// Body is a tagged content body. A nil *Body means no body at all.
type Body struct {
	ContentType string `json:"contentType"`
	Content     []byte `json:"content,omitempty"`
}

// Values wraps a protobuf Struct. On the wire it is a google.protobuf.Struct;
// in JSON it is canonical protobuf JSON.
type Values struct {
	*structpb.Struct
}

// NewValues wraps s.
func NewValues(s *structpb.Struct) *Values {
	return &Values{Struct: s}
}

func (v Values) MarshalJSON() ([]byte, error) {
	if v.Struct == nil {
		return []byte("{}"), nil
	}
	return protojson.Marshal(v.Struct)
}

func (v *Values) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		v.Struct = nil
		return nil
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return err
	}
	v.Struct = s
	return nil
}

// Fields returns the wrapped struct fields; nil-safe.
func (v *Values) Fields() map[string]*structpb.Value {
	if v == nil {
		return nil
	}
	return v.Struct.GetFields()
}

// MatchingRule is the wire descriptor of one matching rule.
type MatchingRule struct {
	Type   string  `json:"type"`
	Values *Values `json:"values,omitempty"`
}

// MatchingRules is the ordered rule list for one path.
type MatchingRules struct {
	Rule []*MatchingRule `json:"rule"`
}

// Generator is the wire descriptor of one generator.
type Generator struct {
	Type   string  `json:"type"`
	Values *Values `json:"values,omitempty"`
}

// ConfigureContentsRequest asks the plugin to build example content from
// field expressions, keyed by field selector ("column:1").
type ConfigureContentsRequest struct {
	ContentType    string  `json:"contentType"`
	ContentsConfig *Values `json:"contentsConfig,omitempty"`
}

// ConfigureContentsResponse carries the example body and the rules and
// generators that go with it, keyed by path ("column:0").
type ConfigureContentsResponse struct {
	Contents   *Body                     `json:"contents,omitempty"`
	Rules      map[string]*MatchingRules `json:"rules,omitempty"`
	Generators map[string]*Generator     `json:"generators,omitempty"`
}

// CompareContentsRequest asks the plugin to compare actual against expected content.
type CompareContentsRequest struct {
	Expected            *Body                     `json:"expected,omitempty"`
	Actual              *Body                     `json:"actual,omitempty"`
	AllowUnexpectedKeys bool                      `json:"allowUnexpectedKeys"`
	Rules               map[string]*MatchingRules `json:"rules,omitempty"`
}

// ContentMismatch describes one discrepancy. It is a successful comparison result.
type ContentMismatch struct {
	Expected []byte `json:"expected,omitempty"`
	Actual   []byte `json:"actual,omitempty"`
	Mismatch string `json:"mismatch"`
	Path     string `json:"path"`
	Diff     string `json:"diff,omitempty"`
}

// ContentTypeMismatch reports bodies of incompatible content types.
type ContentTypeMismatch struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// CompareContentsResponse holds the mismatches in order of discovery.
type CompareContentsResponse struct {
	TypeMismatch *ContentTypeMismatch `json:"typeMismatch,omitempty"`
	Results      []*ContentMismatch   `json:"results"`
}

// GenerateContentRequest asks the plugin to regenerate content, with
// generators keyed by zero-based column path ("column:0").
type GenerateContentRequest struct {
	Contents   *Body                 `json:"contents,omitempty"`
	Generators map[string]*Generator `json:"generators,omitempty"`
}

// GenerateContentResponse carries the generated body.
type GenerateContentResponse struct {
	Contents *Body `json:"contents,omitempty"`
}
