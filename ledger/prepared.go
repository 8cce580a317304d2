package ledger

// preparedExpiry is the fixed 24h lifetime of a PreparedEntry (spec.md §4.5).
const preparedExpiry = 24 * 60 * 60 * 1_000_000_000 // ns

// preparedSet is the short-lived index of prepared-but-not-committed
// transactions, keyed by content hash. It is not part of the certified
// state.
type preparedSet struct {
	byHash map[[32]byte]uint64 // content hash -> prepared_at (ns)
}

func newPreparedSet() *preparedSet {
	return &preparedSet{byHash: make(map[[32]byte]uint64)}
}

func (p *preparedSet) get(hash [32]byte) (preparedAt uint64, ok bool) {
	preparedAt, ok = p.byHash[hash]
	return
}

func (p *preparedSet) insert(hash [32]byte, preparedAt uint64) {
	p.byHash[hash] = preparedAt
}

func (p *preparedSet) remove(hash [32]byte) {
	delete(p.byHash, hash)
}

func (p *preparedSet) count() uint64 { return uint64(len(p.byHash)) }

// cleanupExpired purges every entry older than preparedExpiry relative to
// now, returning the number removed.
func (p *preparedSet) cleanupExpired(now uint64) uint64 {
	var removed uint64
	for hash, preparedAt := range p.byHash {
		if now >= preparedAt && now-preparedAt > preparedExpiry {
			delete(p.byHash, hash)
			removed++
		}
	}
	return removed
}
