package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Canonicalize recursively sorts object keys so that two JSON values that
// are semantically equal but differ in key order or object encoding
// produce byte-identical output. Used before hashing for dedup and for the
// canonicalize(parse(v)) == canonicalize(v) round-trip property.
func Canonicalize(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	sorted := canonicalizeValue(v)
	return json.Marshal(sorted)
}

func canonicalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			out = append(out, kv{k, canonicalizeValue(val[k])})
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return val
	}
}

// kv and orderedMap implement json.Marshaler to emit object keys in the
// explicit sorted order computed by canonicalizeValue; encoding/json's map
// marshaling already sorts string keys, but we use an explicit ordered
// representation to avoid relying on that implementation detail.
type kv struct {
	Key   string
	Value any
}

type orderedMap []kv

func (m orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, p := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')
		valBytes, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valBytes...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// Fingerprint returns the "sha256:<hex>" content hash of raw bytes, used
// both for the RunRecord's input fingerprint and (after Canonicalize) for
// the SeenRecord's per-conversation content hash.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// ContentHash canonicalizes raw and returns its fingerprint in one step.
func ContentHash(raw []byte) (string, error) {
	canon, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	return Fingerprint(canon), nil
}
