// Package matchers holds the matching rules applied to individual content
// values and the registry that turns wire descriptors ({type, values}) into
// live rules.
package matchers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// ErrUnknownRule is returned when a descriptor names a rule type nobody registered.
var ErrUnknownRule = errors.New("matchers: unknown matching rule type")

// ErrInvalidRule is returned when a descriptor's values do not configure a rule.
var ErrInvalidRule = errors.New("matchers: invalid matching rule")

// Rule checks an actual value against the expected one.
type Rule interface {
	// Name is the wire type name of the rule, e.g. "regex".
	Name() string
	// Values are the rule parameters carried on the wire.
	Values() map[string]any
	// Match returns an error describing the mismatch, or nil.
	Match(expected, actual string) error
}

// Factory builds a rule from its wire parameters.
type Factory func(values map[string]any) (Rule, error)

// Registry maps rule type names to factories. The zero value is empty and usable.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry preloaded with the built-in rules.
func NewRegistry() *Registry {
	r := &Registry{}
	registerBuiltins(r)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factories == nil {
		r.factories = make(map[string]Factory)
	}
	r.factories[name] = factory
}

// Names lists the registered rule types in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromMap builds the rule registered under name.
func (r *Registry) FromMap(name string, values map[string]any) (Rule, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, name)
	}
	rule, err := factory(values)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidRule, name, err)
	}
	return rule, nil
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the CSV plugin.
func Default() *Registry {
	return defaultRegistry
}

// FromMap builds a rule from the default registry.
func FromMap(name string, values map[string]any) (Rule, error) {
	return defaultRegistry.FromMap(name, values)
}

// decodeValues fills out from the wire values, converting float64 numbers
// to integer fields where needed.
func decodeValues(values map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}

// RuleList is the ordered set of rules for one path. All rules must match.
type RuleList struct {
	Rules []Rule
}

// NewRuleList returns a list holding rules in order.
func NewRuleList(rules ...Rule) *RuleList {
	return &RuleList{Rules: rules}
}

// Add appends rule to the list.
func (l *RuleList) Add(rule Rule) {
	l.Rules = append(l.Rules, rule)
}

// IsEmpty reports whether the list holds no rules.
func (l *RuleList) IsEmpty() bool {
	return l == nil || len(l.Rules) == 0
}
