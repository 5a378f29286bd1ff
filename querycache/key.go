// Package querycache provides a key-addressed query cache with staleness
// windows, fetch deduplication, explicit invalidation and garbage collection
//
// Values are cached per Key. A fresh value is served without a fetch; a stale
// value is served immediately while a single background refetch runs; a
// missing value blocks the caller until the (deduplicated) fetch resolves.
package querycache

import (
	"encoding/json"
	"strings"
)

// Key identifies a queryable resource
//
// A key is an ordered sequence of primitive values or filter objects. Two
// keys are equal iff their canonical serialized forms match exactly. A key
// is a prefix of another when every segment matches from the start:
// Key{"jobs"} matches Key{"jobs", "detail", "42"}.
//
// Canonical form is the element-wise JSON encoding; encoding/json sorts map
// keys, so filter objects serialize deterministically.
type Key []any

// NewKey builds a key from its parts
func NewKey(parts ...any) Key {
	return Key(parts)
}

// segments returns the canonical encoding of each element
func (k Key) segments() ([]string, error) {
	segs := make([]string, len(k))
	for i, part := range k {
		data, err := json.Marshal(part)
		if err != nil {
			return nil, ErrKeyInvalid.Wrapf(err, "cache key element %d not serializable", i)
		}
		segs[i] = string(data)
	}
	return segs, nil
}

// Canonical returns the canonical serialized form of the key
func (k Key) Canonical() (string, error) {
	if len(k) == 0 {
		return "", ErrKeyInvalid.WithMsg("cache key must not be empty")
	}
	segs, err := k.segments()
	if err != nil {
		return "", err
	}
	return "[" + strings.Join(segs, ",") + "]", nil
}

// Equal reports whether two keys have identical canonical forms
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}
	a, err := k.segments()
	if err != nil {
		return false
	}
	b, err := other.segments()
	if err != nil {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix matches the leading segments of the key
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	a, err := k[:len(prefix)].segments()
	if err != nil {
		return false
	}
	b, err := prefix.segments()
	if err != nil {
		return false
	}
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Append returns a new key extended with parts
func (k Key) Append(parts ...any) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// String renders the canonical form, or a placeholder for invalid keys
func (k Key) String() string {
	s, err := k.Canonical()
	if err != nil {
		return "<invalid key>"
	}
	return s
}
