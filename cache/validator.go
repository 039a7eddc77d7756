package cache

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Validator computes the content validator for a value: the value is
// serialized deterministically (encoding/json emits map keys in sorted order
// with no incidental whitespace) and the bytes are hashed. Byte-identical
// content always yields the identical validator.
func Validator(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serializing for validator: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}
