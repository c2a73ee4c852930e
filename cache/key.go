package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives the deterministic cache key for a stage invocation.
// encoding/json sorts map keys, so identical (stage, input, parameters)
// triples hash identically across process instances — a requirement for
// sharing the redis backend between instances.
func Key(stage string, input any, params any) string {
	h := sha256.New()
	h.Write([]byte(stage))
	h.Write([]byte{0})
	h.Write(canonical(input))
	h.Write([]byte{0})
	h.Write(canonical(params))
	return hex.EncodeToString(h.Sum(nil))
}

func canonical(v any) []byte {
	if v == nil {
		return []byte("null")
	}
	data, err := json.Marshal(v)
	if err != nil {
		// Non-serializable values still need a stable representation.
		return []byte(fmt.Sprintf("%#v", v))
	}
	return data
}
