package value

import (
	"crypto/sha256"
	"math/big"
)

// Size is the digest length produced by Hash, in bytes.
const Size = sha256.Size

// Hash computes the representation-independent digest of v, following
// spec.md §4.1:
//
//   - Int/Nat  -> variable-length big-endian minimal encoding of the
//     magnitude, with a leading sign byte for Int (0x00 non-negative,
//     0x01 negative); Nat carries no sign byte.
//   - Blob/Text -> the raw bytes, hashed directly.
//   - Array    -> H(concat(H(e_0) || H(e_1) || ...)).
//   - Map      -> sort entries ascending by key bytes; H(concat over
//     entries of H(key_bytes) || H(value))).
//
// Any two conformant implementations must produce byte-identical digests
// for structurally equal values; this function contains no host-specific
// behavior (no time, no randomness, no map-iteration-order dependence).
func Hash(v V) [32]byte {
	switch v.kind {
	case KindInt:
		return sha256.Sum256(encodeSignedMagnitude(v.big))
	case KindNat:
		return sha256.Sum256(encodeMagnitude(v.big))
	case KindBlob:
		return sha256.Sum256(v.blob)
	case KindText:
		return sha256.Sum256([]byte(v.text))
	case KindArray:
		var buf []byte
		for _, e := range v.array {
			h := Hash(e)
			buf = append(buf, h[:]...)
		}
		return sha256.Sum256(buf)
	case KindMap:
		var buf []byte
		for _, e := range sortedMapEntries(v.m) {
			kh := sha256.Sum256([]byte(e.Key))
			vh := Hash(e.Value)
			buf = append(buf, kh[:]...)
			buf = append(buf, vh[:]...)
		}
		return sha256.Sum256(buf)
	default:
		// Unreachable for values constructed through this package's
		// exported constructors.
		return sha256.Sum256(nil)
	}
}

// encodeMagnitude returns the minimal big-endian byte encoding of |n|. Zero
// encodes as the empty slice.
func encodeMagnitude(n *big.Int) []byte {
	if n.Sign() == 0 {
		return nil
	}
	return new(big.Int).Abs(n).Bytes()
}

func encodeSignedMagnitude(n *big.Int) []byte {
	sign := byte(0x00)
	if n.Sign() < 0 {
		sign = 0x01
	}
	out := make([]byte, 0, 1+len(encodeMagnitude(n)))
	out = append(out, sign)
	out = append(out, encodeMagnitude(n)...)
	return out
}

// ZeroHash is the tip hash of an empty log: 32 zero bytes (spec.md §3).
var ZeroHash [32]byte
