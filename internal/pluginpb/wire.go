package pluginpb

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// errWireType is returned when a field arrives with a wire type its
// declaration does not allow.
var errWireType = errors.New("pluginpb: unexpected wire type")

// wireMessage is implemented by every protocol message. The encoding is the
// protobuf binary format of the plugin protocol, so peers built from the
// protocol's .proto file interoperate with these structs.
type wireMessage interface {
	appendWire(b []byte) ([]byte, error)
	consumeWire(b []byte) error
}

var deterministic = proto.MarshalOptions{Deterministic: true}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendMessage(b []byte, num protowire.Number, m wireMessage) ([]byte, error) {
	inner, err := m.appendWire(nil)
	if err != nil {
		return nil, err
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}

// appendBytesValue writes v as a google.protobuf.BytesValue. A nil slice is
// omitted, an empty one is written as an empty wrapper.
func appendBytesValue(b []byte, num protowire.Number, v []byte) []byte {
	if v == nil {
		return b
	}
	var inner []byte
	if len(v) > 0 {
		inner = protowire.AppendTag(inner, 1, protowire.BytesType)
		inner = protowire.AppendBytes(inner, v)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

func appendValues(b []byte, num protowire.Number, v *Values) ([]byte, error) {
	if v == nil || v.Struct == nil {
		return b, nil
	}
	inner, err := deterministic.Marshal(v.Struct)
	if err != nil {
		return nil, fmt.Errorf("pluginpb: encode struct: %w", err)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner), nil
}

func appendStringMap(b []byte, num protowire.Number, m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := appendString(nil, 1, k)
		entry = appendString(entry, 2, m[k])
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func appendMessageMap[V wireMessage](b []byte, num protowire.Number, m map[string]V) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entry := appendString(nil, 1, k)
		entry, err := appendMessage(entry, 2, m[k])
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b, nil
}

// decoder walks the fields of one encoded message. Unknown fields are
// skipped with skip.
type decoder struct {
	b   []byte
	num protowire.Number
	typ protowire.Type
	err error
}

func (d *decoder) next() bool {
	if d.err != nil || len(d.b) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(d.b)
	if n < 0 {
		d.err = protowire.ParseError(n)
		return false
	}
	d.b = d.b[n:]
	d.num, d.typ = num, typ
	return true
}

func (d *decoder) skip() {
	n := protowire.ConsumeFieldValue(d.num, d.typ, d.b)
	if n < 0 {
		d.err = protowire.ParseError(n)
		return
	}
	d.b = d.b[n:]
}

// bytes returns the length-delimited payload of the current field. The
// slice aliases the input.
func (d *decoder) bytes() []byte {
	if d.typ != protowire.BytesType {
		d.err = fmt.Errorf("%w: field %d", errWireType, d.num)
		return nil
	}
	v, n := protowire.ConsumeBytes(d.b)
	if n < 0 {
		d.err = protowire.ParseError(n)
		return nil
	}
	d.b = d.b[n:]
	return v
}

func (d *decoder) string() string {
	return string(d.bytes())
}

func (d *decoder) bool() bool {
	if d.typ != protowire.VarintType {
		d.err = fmt.Errorf("%w: field %d", errWireType, d.num)
		return false
	}
	v, n := protowire.ConsumeVarint(d.b)
	if n < 0 {
		d.err = protowire.ParseError(n)
		return false
	}
	d.b = d.b[n:]
	return v != 0
}

func (d *decoder) message(m wireMessage) {
	data := d.bytes()
	if d.err != nil {
		return
	}
	d.err = m.consumeWire(data)
}

// bytesValue decodes a google.protobuf.BytesValue. A present wrapper always
// yields a non-nil slice.
func (d *decoder) bytesValue() []byte {
	data := d.bytes()
	if d.err != nil {
		return nil
	}
	out := []byte{}
	inner := decoder{b: data}
	for inner.next() {
		if inner.num == 1 {
			out = bytes.Clone(inner.bytes())
			if out == nil {
				out = []byte{}
			}
			continue
		}
		inner.skip()
	}
	d.err = inner.err
	return out
}

func (d *decoder) values() *Values {
	data := d.bytes()
	if d.err != nil {
		return nil
	}
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		d.err = fmt.Errorf("pluginpb: decode struct: %w", err)
		return nil
	}
	return NewValues(s)
}

// mapEntry decodes a map entry message and returns its key and the raw
// payload of its value field.
func (d *decoder) mapEntry() (string, []byte) {
	data := d.bytes()
	if d.err != nil {
		return "", nil
	}
	var key string
	var value []byte
	inner := decoder{b: data}
	for inner.next() {
		switch inner.num {
		case 1:
			key = inner.string()
		case 2:
			value = inner.bytes()
		default:
			inner.skip()
		}
	}
	d.err = inner.err
	return key, value
}

func (d *decoder) stringMapEntry(m *map[string]string) {
	key, value := d.mapEntry()
	if d.err != nil {
		return
	}
	if *m == nil {
		*m = map[string]string{}
	}
	(*m)[key] = string(value)
}

func decodeMapEntry[V any, P interface {
	*V
	wireMessage
}](d *decoder, m *map[string]*V) {
	key, value := d.mapEntry()
	if d.err != nil {
		return
	}
	v := P(new(V))
	if err := v.consumeWire(value); err != nil {
		d.err = err
		return
	}
	if *m == nil {
		*m = map[string]*V{}
	}
	(*m)[key] = (*V)(v)
}

func (m *InitPluginRequest) appendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Implementation)
	return appendString(b, 2, m.Version), nil
}

func (m *InitPluginRequest) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Implementation = d.string()
		case 2:
			m.Version = d.string()
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *CatalogueEntry) appendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, string(m.Type))
	b = appendString(b, 2, m.Key)
	return appendStringMap(b, 3, m.Values), nil
}

func (m *CatalogueEntry) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Type = EntryType(d.string())
		case 2:
			m.Key = d.string()
		case 3:
			d.stringMapEntry(&m.Values)
		default:
			d.skip()
		}
	}
	return d.err
}

func appendEntries(b []byte, entries []*CatalogueEntry) ([]byte, error) {
	var err error
	for _, e := range entries {
		if e == nil {
			e = &CatalogueEntry{}
		}
		if b, err = appendMessage(b, 1, e); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func consumeEntries(b []byte) ([]*CatalogueEntry, error) {
	var entries []*CatalogueEntry
	d := decoder{b: b}
	for d.next() {
		if d.num != 1 {
			d.skip()
			continue
		}
		e := &CatalogueEntry{}
		d.message(e)
		entries = append(entries, e)
	}
	return entries, d.err
}

func (m *InitPluginResponse) appendWire(b []byte) ([]byte, error) {
	return appendEntries(b, m.Catalogue)
}

func (m *InitPluginResponse) consumeWire(b []byte) (err error) {
	m.Catalogue, err = consumeEntries(b)
	return err
}

func (m *Catalogue) appendWire(b []byte) ([]byte, error) {
	return appendEntries(b, m.Catalogue)
}

func (m *Catalogue) consumeWire(b []byte) (err error) {
	m.Catalogue, err = consumeEntries(b)
	return err
}

func (m *Void) appendWire(b []byte) ([]byte, error) { return b, nil }

func (m *Void) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		d.skip()
	}
	return d.err
}

func (m *Body) appendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.ContentType)
	return appendBytesValue(b, 2, m.Content), nil
}

func (m *Body) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.ContentType = d.string()
		case 2:
			m.Content = d.bytesValue()
		default:
			d.skip()
		}
	}
	return d.err
}

// appendBody writes an optional body; nil means the field is absent.
func appendBody(b []byte, num protowire.Number, body *Body) ([]byte, error) {
	if body == nil {
		return b, nil
	}
	return appendMessage(b, num, body)
}

func (m *MatchingRule) appendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Type)
	return appendValues(b, 2, m.Values)
}

func (m *MatchingRule) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Type = d.string()
		case 2:
			m.Values = d.values()
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *MatchingRules) appendWire(b []byte) ([]byte, error) {
	if m == nil {
		return b, nil
	}
	var err error
	for _, r := range m.Rule {
		if r == nil {
			r = &MatchingRule{}
		}
		if b, err = appendMessage(b, 1, r); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *MatchingRules) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		if d.num != 1 {
			d.skip()
			continue
		}
		r := &MatchingRule{}
		d.message(r)
		m.Rule = append(m.Rule, r)
	}
	return d.err
}

func (m *Generator) appendWire(b []byte) ([]byte, error) {
	if m == nil {
		return b, nil
	}
	b = appendString(b, 1, m.Type)
	return appendValues(b, 2, m.Values)
}

func (m *Generator) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Type = d.string()
		case 2:
			m.Values = d.values()
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *ConfigureContentsRequest) appendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.ContentType)
	return appendValues(b, 2, m.ContentsConfig)
}

func (m *ConfigureContentsRequest) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.ContentType = d.string()
		case 2:
			m.ContentsConfig = d.values()
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *ConfigureContentsResponse) appendWire(b []byte) ([]byte, error) {
	b, err := appendBody(b, 1, m.Contents)
	if err != nil {
		return nil, err
	}
	if b, err = appendMessageMap(b, 2, m.Rules); err != nil {
		return nil, err
	}
	return appendMessageMap(b, 3, m.Generators)
}

func (m *ConfigureContentsResponse) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Contents = &Body{}
			d.message(m.Contents)
		case 2:
			decodeMapEntry(&d, &m.Rules)
		case 3:
			decodeMapEntry(&d, &m.Generators)
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *CompareContentsRequest) appendWire(b []byte) ([]byte, error) {
	b, err := appendBody(b, 1, m.Expected)
	if err != nil {
		return nil, err
	}
	if b, err = appendBody(b, 2, m.Actual); err != nil {
		return nil, err
	}
	b = appendBool(b, 3, m.AllowUnexpectedKeys)
	return appendMessageMap(b, 4, m.Rules)
}

func (m *CompareContentsRequest) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Expected = &Body{}
			d.message(m.Expected)
		case 2:
			m.Actual = &Body{}
			d.message(m.Actual)
		case 3:
			m.AllowUnexpectedKeys = d.bool()
		case 4:
			decodeMapEntry(&d, &m.Rules)
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *ContentMismatch) appendWire(b []byte) ([]byte, error) {
	b = appendBytesValue(b, 1, m.Expected)
	b = appendBytesValue(b, 2, m.Actual)
	b = appendString(b, 3, m.Mismatch)
	b = appendString(b, 4, m.Path)
	return appendString(b, 5, m.Diff), nil
}

func (m *ContentMismatch) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Expected = d.bytesValue()
		case 2:
			m.Actual = d.bytesValue()
		case 3:
			m.Mismatch = d.string()
		case 4:
			m.Path = d.string()
		case 5:
			m.Diff = d.string()
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *ContentTypeMismatch) appendWire(b []byte) ([]byte, error) {
	b = appendString(b, 1, m.Expected)
	return appendString(b, 2, m.Actual), nil
}

func (m *ContentTypeMismatch) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Expected = d.string()
		case 2:
			m.Actual = d.string()
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *CompareContentsResponse) appendWire(b []byte) ([]byte, error) {
	var err error
	if m.TypeMismatch != nil {
		if b, err = appendMessage(b, 1, m.TypeMismatch); err != nil {
			return nil, err
		}
	}
	for _, r := range m.Results {
		if r == nil {
			r = &ContentMismatch{}
		}
		if b, err = appendMessage(b, 2, r); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *CompareContentsResponse) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.TypeMismatch = &ContentTypeMismatch{}
			d.message(m.TypeMismatch)
		case 2:
			r := &ContentMismatch{}
			d.message(r)
			m.Results = append(m.Results, r)
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *GenerateContentRequest) appendWire(b []byte) ([]byte, error) {
	b, err := appendBody(b, 1, m.Contents)
	if err != nil {
		return nil, err
	}
	return appendMessageMap(b, 2, m.Generators)
}

func (m *GenerateContentRequest) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Contents = &Body{}
			d.message(m.Contents)
		case 2:
			decodeMapEntry(&d, &m.Generators)
		default:
			d.skip()
		}
	}
	return d.err
}

func (m *GenerateContentResponse) appendWire(b []byte) ([]byte, error) {
	return appendBody(b, 1, m.Contents)
}

func (m *GenerateContentResponse) consumeWire(b []byte) error {
	d := decoder{b: b}
	for d.next() {
		switch d.num {
		case 1:
			m.Contents = &Body{}
			d.message(m.Contents)
		default:
			d.skip()
		}
	}
	return d.err
}
