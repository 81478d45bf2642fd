package extension

import (
	"reflect"
	"sort"
	"sync"

	"github.com/viant/x"

	"github.com/sitepulse/engine/model/types"
)

// Registry holds the pipeline components by kind and name. It is constructed
// at startup and passed by reference to consumers; there is no process-wide
// registry.
type Registry struct {
	types      *Types
	components map[types.Kind]map[string]types.Component
	mux        sync.RWMutex
}

// NewRegistry creates a component registry, pre-registering any supplied
// config types.
func NewRegistry(goTypes ...*x.Type) *Registry {
	ret := &Registry{
		types:      NewTypes(),
		components: make(map[types.Kind]map[string]types.Component),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}

// Types returns the config type registry.
func (r *Registry) Types() *Types {
	return r.types
}

// Register adds a component under its kind. A component exposing a config
// type gets that type registered as well.
func (r *Registry) Register(kind types.Kind, component types.Component) {
	r.mux.Lock()
	defer r.mux.Unlock()
	if configurable, ok := component.(types.Configurable); ok {
		if rType := configurable.ConfigType(); rType != nil {
			if rType.Kind() == reflect.Ptr {
				rType = rType.Elem()
			}
			r.types.Register(x.NewType(rType))
		}
	}
	byName, ok := r.components[kind]
	if !ok {
		byName = make(map[string]types.Component)
		r.components[kind] = byName
	}
	byName[component.Name()] = component
}

// Lookup returns a component by kind and name.
func (r *Registry) Lookup(kind types.Kind, name string) (types.Component, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	if component, ok := r.components[kind][name]; ok {
		return component, nil
	}
	return nil, types.NewComponentNotFoundError(kind, name)
}

// Collector returns a registered collector by name.
func (r *Registry) Collector(name string) (types.Collector, error) {
	component, err := r.Lookup(types.KindCollector, name)
	if err != nil {
		return nil, err
	}
	collector, ok := component.(types.Collector)
	if !ok {
		return nil, types.NewComponentNotFoundError(types.KindCollector, name)
	}
	return collector, nil
}

// Processor returns a registered processor by name.
func (r *Registry) Processor(name string) (types.Processor, error) {
	component, err := r.Lookup(types.KindProcessor, name)
	if err != nil {
		return nil, err
	}
	processor, ok := component.(types.Processor)
	if !ok {
		return nil, types.NewComponentNotFoundError(types.KindProcessor, name)
	}
	return processor, nil
}

// Analyzer returns a registered analyzer by name.
func (r *Registry) Analyzer(name string) (types.Analyzer, error) {
	component, err := r.Lookup(types.KindAnalyzer, name)
	if err != nil {
		return nil, err
	}
	analyzer, ok := component.(types.Analyzer)
	if !ok {
		return nil, types.NewComponentNotFoundError(types.KindAnalyzer, name)
	}
	return analyzer, nil
}

// Reporter returns a registered reporter by name.
func (r *Registry) Reporter(name string) (types.Reporter, error) {
	component, err := r.Lookup(types.KindReporter, name)
	if err != nil {
		return nil, err
	}
	reporter, ok := component.(types.Reporter)
	if !ok {
		return nil, types.NewComponentNotFoundError(types.KindReporter, name)
	}
	return reporter, nil
}

// Names returns the sorted component names registered under kind.
func (r *Registry) Names(kind types.Kind) []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	var result []string
	for name := range r.components[kind] {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
