// Package value implements the recursive, self-describing value model used
// as the canonical representation for ledger blocks: signed/unsigned
// arbitrary-precision integers, blobs, UTF-8 text, ordered arrays, and
// string-keyed maps with a canonical (ascending, by key bytes) ordering.
package value

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
)

// Kind identifies which variant of the tagged union a V holds.
type Kind uint8

const (
	KindInt Kind = iota
	KindNat
	KindBlob
	KindText
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindNat:
		return "nat"
	case KindBlob:
		return "blob"
	case KindText:
		return "text"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Entry is a single key/value pair of a Map, preserved in insertion order.
type Entry struct {
	Key   string
	Value V
}

// V is the tagged union. The zero value is not meaningful; construct with
// one of the New* functions.
type V struct {
	kind  Kind
	big   *big.Int
	blob  []byte
	text  string
	array []V
	m     []Entry
}

func NewInt(i *big.Int) V {
	if i == nil {
		i = new(big.Int)
	}
	return V{kind: KindInt, big: new(big.Int).Set(i)}
}

func NewIntI64(i int64) V {
	return NewInt(big.NewInt(i))
}

// NewNat constructs a Nat value. It returns an error if n is negative.
func NewNat(n *big.Int) (V, error) {
	if n == nil {
		n = new(big.Int)
	}
	if n.Sign() < 0 {
		return V{}, fmt.Errorf("value: nat must be non-negative, got %s", n.String())
	}
	return V{kind: KindNat, big: new(big.Int).Set(n)}, nil
}

func NewNatU64(n uint64) V {
	v, _ := NewNat(new(big.Int).SetUint64(n))
	return v
}

func NewBlob(b []byte) V {
	return V{kind: KindBlob, blob: append([]byte(nil), b...)}
}

func NewText(s string) V {
	return V{kind: KindText, text: s}
}

func NewArray(items []V) V {
	return V{kind: KindArray, array: append([]V(nil), items...)}
}

// NewMap constructs a Map value from entries, preserving the given order for
// iteration/round-trip purposes. Duplicate keys are rejected.
func NewMap(entries []Entry) (V, error) {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Key]; dup {
			return V{}, fmt.Errorf("value: duplicate map key %q", e.Key)
		}
		seen[e.Key] = struct{}{}
		out = append(out, e)
	}
	return V{kind: KindMap, m: out}, nil
}

func MustMap(entries []Entry) V {
	v, err := NewMap(entries)
	if err != nil {
		panic(err)
	}
	return v
}

func (v V) Kind() Kind { return v.kind }

func (v V) AsInt() (*big.Int, bool) {
	if v.kind != KindInt {
		return nil, false
	}
	return new(big.Int).Set(v.big), true
}

func (v V) AsNat() (*big.Int, bool) {
	if v.kind != KindNat {
		return nil, false
	}
	return new(big.Int).Set(v.big), true
}

func (v V) AsBlob() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	return append([]byte(nil), v.blob...), true
}

func (v V) AsText() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

func (v V) AsArray() ([]V, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return append([]V(nil), v.array...), true
}

// MapGet looks up a key in a Map value. ok is false if v is not a Map or the
// key is absent.
func (v V) MapGet(key string) (V, bool) {
	if v.kind != KindMap {
		return V{}, false
	}
	for _, e := range v.m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return V{}, false
}

// MapEntries returns the Map's entries in insertion order. Empty/nil for
// non-Map values.
func (v V) MapEntries() []Entry {
	if v.kind != KindMap {
		return nil
	}
	return append([]Entry(nil), v.m...)
}

// sortedMapEntries returns the Map's entries in canonical order: ascending
// by the key's raw UTF-8 bytes.
func sortedMapEntries(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare([]byte(out[i].Key), []byte(out[j].Key)) < 0
	})
	return out
}

// Equal reports whether two values are structurally equal. Map comparison
// is order-independent; Array comparison is order-dependent.
func Equal(a, b V) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInt, KindNat:
		return a.big.Cmp(b.big) == 0
	case KindBlob:
		return bytes.Equal(a.blob, b.blob)
	case KindText:
		return a.text == b.text
	case KindArray:
		if len(a.array) != len(b.array) {
			return false
		}
		for i := range a.array {
			if !Equal(a.array[i], b.array[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		as := sortedMapEntries(a.m)
		bs := sortedMapEntries(b.m)
		for i := range as {
			if as[i].Key != bs[i].Key || !Equal(as[i].Value, bs[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
