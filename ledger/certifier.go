package ledger

import (
	"crypto/sha256"
	"encoding/binary"
)

// Platform is the narrow capability the hosting environment provides for
// certified data (spec.md §1: "the hosting platform's certified-variable
// API (treated as a setter for a single authenticated blob)"). The core
// never inspects what the platform does with the blob; it only sets it
// after every state-changing append and reads back whatever certificate
// the platform currently has.
type Platform interface {
	SetCertifiedData(digest [32]byte)
	DataCertificate() (certificate []byte, ok bool)
}

// DevPlatform is a standalone stand-in for environments with no real
// certified-variable authority (tests, local daemons). It derives a
// deterministic pseudo-certificate from the digest rather than performing
// any real attestation.
type DevPlatform struct {
	last [32]byte
	set  bool
}

func NewDevPlatform() *DevPlatform { return &DevPlatform{} }

func (p *DevPlatform) SetCertifiedData(digest [32]byte) {
	p.last = digest
	p.set = true
}

func (p *DevPlatform) DataCertificate() ([]byte, bool) {
	if !p.set {
		return nil, false
	}
	sum := sha256.Sum256(append([]byte("dev-certificate:"), p.last[:]...))
	return sum[:], true
}

// Certificate is the tip proof returned by icrc3_get_tip_certificate
// (spec.md §3, §4.9).
type Certificate struct {
	Certificate []byte
	HashTree    []byte
}

// certifier maintains the hash tree over the current tip (spec.md §4.9):
// a single leaf (last_block_index, tip_hash), republished after every
// append.
type certifier struct {
	platform Platform
	cached   Certificate
}

func newCertifier(platform Platform) *certifier {
	return &certifier{platform: platform}
}

// leafTree encodes (lastBlockIndex, tipHash). recertify hashes these bytes
// into the digest that goes to the platform, and returns the tree bytes
// verbatim as the (opaque, to callers) hash_tree blob.
func leafTree(lastBlockIndex uint64, tipHash [32]byte) []byte {
	buf := make([]byte, 8+32)
	binary.BigEndian.PutUint64(buf[:8], lastBlockIndex)
	copy(buf[8:], tipHash[:])
	return buf
}

// recertify recomputes and publishes the tip certificate. Called after
// every append/commit (spec.md §4.9). lastBlockIndex is logLength-1,
// saturating at 0 for an empty log (which certifies over (0, zero hash)
// per spec.md §8 scenario 1).
func (c *certifier) recertify(logLength uint64, tipHash [32]byte) {
	lastBlockIndex := uint64(0)
	if logLength > 0 {
		lastBlockIndex = logLength - 1
	}
	tree := leafTree(lastBlockIndex, tipHash)
	digest := sha256.Sum256(tree)
	c.platform.SetCertifiedData(digest)
	cert, _ := c.platform.DataCertificate()
	c.cached = Certificate{Certificate: cert, HashTree: tree}
}

func (c *certifier) tipCertificate() Certificate { return c.cached }
