package types

import "fmt"

func NewComponentNotFoundError(kind Kind, name string) error {
	return fmt.Errorf("%v %v not found", kind, name)
}

func NewInvalidConfigError(name string, err error) error {
	return fmt.Errorf("invalid config for %v: %w", name, err)
}

func NewInvalidInputError(in interface{}) error {
	return fmt.Errorf("invalid input %T", in)
}
