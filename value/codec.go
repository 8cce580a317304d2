package value

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Encode renders v as a self-delimiting byte string, used both for archive
// block batches (spec.md §4.7: "encode the batch as a list of
// EncodedBlocks") and for the persistent-state sink. It is independent of
// Hash: two different encodings may hash the same only if structurally
// equal, but Encode is not itself the canonical hash input.
func Encode(v V) []byte {
	var buf []byte
	return appendEncoded(buf, v)
}

func appendEncoded(buf []byte, v V) []byte {
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case KindInt:
		buf = appendBigInt(buf, v.big, true)
	case KindNat:
		buf = appendBigInt(buf, v.big, false)
	case KindBlob:
		buf = appendLenPrefixed(buf, v.blob)
	case KindText:
		buf = appendLenPrefixed(buf, []byte(v.text))
	case KindArray:
		buf = appendUvarint(buf, uint64(len(v.array)))
		for _, e := range v.array {
			buf = appendEncoded(buf, e)
		}
	case KindMap:
		buf = appendUvarint(buf, uint64(len(v.m)))
		for _, e := range v.m {
			buf = appendLenPrefixed(buf, []byte(e.Key))
			buf = appendEncoded(buf, e.Value)
		}
	}
	return buf
}

func appendUvarint(buf []byte, n uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	written := binary.PutUvarint(tmp[:], n)
	return append(buf, tmp[:written]...)
}

func appendLenPrefixed(buf []byte, b []byte) []byte {
	buf = appendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

func appendBigInt(buf []byte, n *big.Int, signed bool) []byte {
	if signed {
		sign := byte(0)
		if n.Sign() < 0 {
			sign = 1
		}
		buf = append(buf, sign)
	}
	mag := n.Bytes()
	return appendLenPrefixed(buf, mag)
}

// Decode parses bytes produced by Encode. It is the inverse used when
// rehydrating blocks read back from an archive shard or the state sink.
func Decode(b []byte) (V, error) {
	v, rest, err := decodeOne(b)
	if err != nil {
		return V{}, err
	}
	if len(rest) != 0 {
		return V{}, fmt.Errorf("value: %d trailing bytes after decode", len(rest))
	}
	return v, nil
}

func decodeOne(b []byte) (V, []byte, error) {
	if len(b) == 0 {
		return V{}, nil, fmt.Errorf("value: unexpected end of input")
	}
	kind := Kind(b[0])
	b = b[1:]
	switch kind {
	case KindInt, KindNat:
		signed := kind == KindInt
		sign := byte(0)
		if signed {
			if len(b) == 0 {
				return V{}, nil, fmt.Errorf("value: truncated int sign byte")
			}
			sign = b[0]
			b = b[1:]
		}
		mag, rest, err := decodeLenPrefixed(b)
		if err != nil {
			return V{}, nil, err
		}
		n := new(big.Int).SetBytes(mag)
		if signed && sign == 1 {
			n.Neg(n)
		}
		if kind == KindInt {
			return NewInt(n), rest, nil
		}
		out, err := NewNat(n)
		if err != nil {
			return V{}, nil, err
		}
		return out, rest, nil
	case KindBlob:
		raw, rest, err := decodeLenPrefixed(b)
		if err != nil {
			return V{}, nil, err
		}
		return NewBlob(raw), rest, nil
	case KindText:
		raw, rest, err := decodeLenPrefixed(b)
		if err != nil {
			return V{}, nil, err
		}
		return NewText(string(raw)), rest, nil
	case KindArray:
		n, rest, err := decodeUvarint(b)
		if err != nil {
			return V{}, nil, err
		}
		elems := make([]V, 0, n)
		for i := uint64(0); i < n; i++ {
			var e V
			e, rest, err = decodeOne(rest)
			if err != nil {
				return V{}, nil, err
			}
			elems = append(elems, e)
		}
		return NewArray(elems), rest, nil
	case KindMap:
		n, rest, err := decodeUvarint(b)
		if err != nil {
			return V{}, nil, err
		}
		entries := make([]Entry, 0, n)
		for i := uint64(0); i < n; i++ {
			var keyRaw []byte
			keyRaw, rest, err = decodeLenPrefixed(rest)
			if err != nil {
				return V{}, nil, err
			}
			var val V
			val, rest, err = decodeOne(rest)
			if err != nil {
				return V{}, nil, err
			}
			entries = append(entries, Entry{Key: string(keyRaw), Value: val})
		}
		out, err := NewMap(entries)
		if err != nil {
			return V{}, nil, err
		}
		return out, rest, nil
	default:
		return V{}, nil, fmt.Errorf("value: unknown kind tag %d", kind)
	}
}

func decodeUvarint(b []byte) (uint64, []byte, error) {
	n, width := binary.Uvarint(b)
	if width <= 0 {
		return 0, nil, fmt.Errorf("value: malformed varint")
	}
	return n, b[width:], nil
}

func decodeLenPrefixed(b []byte) ([]byte, []byte, error) {
	n, rest, err := decodeUvarint(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("value: truncated payload")
	}
	return rest[:n], rest[n:], nil
}
