// Package generators produces replacement content values. Generators travel
// between driver and plugin as {type, values} descriptors and are rebuilt
// through a Registry.
package generators

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"
)

// ErrUnknownGenerator is returned when a descriptor names an unregistered generator.
var ErrUnknownGenerator = errors.New("generators: unknown generator type")

// ErrInvalidGenerator is returned when a descriptor's values do not configure a generator.
var ErrInvalidGenerator = errors.New("generators: invalid generator")

// Context is the key/value environment available to generators, e.g. provider
// state values for ProviderState generators. It is never mutated by a generator.
type Context map[string]any

// Generator produces a replacement for a current value.
type Generator interface {
	Name() string
	Values() map[string]any
	Generate(current string, ctx Context) (string, error)
}

// Factory builds a generator from its wire parameters.
type Factory func(values map[string]any) (Generator, error)

// Registry maps generator type names to factories. The zero value is empty and usable.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry preloaded with the built-in generators.
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

// Names lists the registered generator types in lexical order.
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

// FromMap builds the generator registered under name.
func (r *Registry) FromMap(name string, values map[string]any) (Generator, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
	}
	gen, err := factory(values)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidGenerator, name, err)
	}
	return gen, nil
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the CSV plugin.
func Default() *Registry {
	return defaultRegistry
}

// FromMap builds a generator from the default registry.
func FromMap(name string, values map[string]any) (Generator, error) {
	return defaultRegistry.FromMap(name, values)
}

func decodeValues(values map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}
