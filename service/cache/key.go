package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives a deterministic, content-addressed cache key from component
// identity, input and config. json.Marshal sorts map keys and walks struct
// fields in declaration order, so semantically equal values produce equal
// keys. The component name prefixes the key so that
// InvalidateNamespace(Namespace(component)) drops all of its entries.
func Key(component string, input, config interface{}) (string, error) {
	digest := sha256.New()
	for _, part := range []interface{}{input, config} {
		data, err := json.Marshal(part)
		if err != nil {
			return "", fmt.Errorf("failed to derive cache key for %v: %w", component, err)
		}
		digest.Write(data)
		digest.Write([]byte{0})
	}
	return Namespace(component) + hex.EncodeToString(digest.Sum(nil)), nil
}

// Namespace returns the key prefix owned by a component.
func Namespace(component string) string {
	return component + ":"
}
