package extension

import (
	"github.com/viant/x"
)

// Types registers the Go types of component configurations so that raw stage
// config maps can be converted into their typed form.
type Types struct {
	x.Registry
}

// Register adds a config type to the registry.
func (t *Types) Register(dataType *x.Type) {
	t.Registry.Register(dataType)
}

// Lookup returns a registered type by name, or nil.
func (t *Types) Lookup(name string) *x.Type {
	return t.Registry.Lookup(name)
}

// NewTypes creates a type registry.
func NewTypes(options ...x.RegistryOption) *Types {
	return &Types{Registry: *x.NewRegistry(options...)}
}
