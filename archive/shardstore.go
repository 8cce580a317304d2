package archive

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketBlocks = []byte("blocks_by_id")

// ShardManifestVersion is the leading version tag for a shard's on-disk
// manifest (spec.md §6: "No schema versioning beyond a leading version
// tag").
const ShardManifestVersion uint32 = 1

type shardManifest struct {
	SchemaVersion uint32 `json:"schema_version"`
	Address       string `json:"address"`
	BytesUsed     uint64 `json:"bytes_used"`
	TotalBlocks   uint64 `json:"total_blocks"`
}

// ShardStore is a bbolt-backed, in-process implementation of Shard. It
// plays the role a separate archive canister plays in a real deployment;
// one ShardStore owns one on-disk database file.
type ShardStore struct {
	mu       sync.Mutex
	dir      string
	db       *bolt.DB
	manifest shardManifest
	capacity uint64
}

// openShardStore opens (creating if absent) the bbolt database backing one
// shard, grounded on node/store/db.go's Open.
func openShardStore(dir string, addr ShardAddress, capacity uint64) (*ShardStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("shardstore: mkdir: %w", err)
	}
	path := filepath.Join(dir, "shard.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("shardstore: open bbolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlocks)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("shardstore: create bucket: %w", err)
	}

	s := &ShardStore{
		dir:      dir,
		db:       db,
		capacity: capacity,
		manifest: shardManifest{SchemaVersion: ShardManifestVersion, Address: string(addr)},
	}
	if m, err := readShardManifest(dir); err == nil {
		s.manifest = *m
	} else if !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("shardstore: read manifest: %w", err)
	}
	return s, nil
}

func (s *ShardStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

func (s *ShardStore) InsertBlocks(ctx context.Context, blocks []BlockWithId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlocks)
		for _, bw := range blocks {
			if err := b.Put(idKey(bw.Id), bw.Block); err != nil {
				return err
			}
			added += uint64(len(bw.Block))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("shardstore: insert_blocks: %w", err)
	}

	s.manifest.BytesUsed += added
	s.manifest.TotalBlocks += uint64(len(blocks))
	return writeShardManifestAtomic(s.dir, &s.manifest)
}

func (s *ShardStore) GetBlocks(ctx context.Context, requests []Range) (GetBlocksResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []BlockWithId
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlocks)
		for _, r := range requests {
			for i := uint64(0); i < r.Length; i++ {
				id := r.Start + i
				v := b.Get(idKey(id))
				if v == nil {
					continue
				}
				out = append(out, BlockWithId{Id: id, Block: append([]byte(nil), v...)})
			}
		}
		return nil
	})
	if err != nil {
		return GetBlocksResult{}, fmt.Errorf("shardstore: get_blocks: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return GetBlocksResult{LogLength: s.manifest.TotalBlocks, Blocks: out}, nil
}

func (s *ShardStore) RemainingCapacity(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest.BytesUsed >= s.capacity {
		return 0, nil
	}
	return s.capacity - s.manifest.BytesUsed, nil
}

func (s *ShardStore) TotalTransactions(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest.TotalBlocks, nil
}

func shardManifestPath(dir string) string { return filepath.Join(dir, "MANIFEST.json") }

func readShardManifest(dir string) (*shardManifest, error) {
	b, err := os.ReadFile(shardManifestPath(dir))
	if err != nil {
		return nil, err
	}
	var m shardManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("shard manifest json: %w", err)
	}
	return &m, nil
}

// writeShardManifestAtomic mirrors node/store/manifest.go's crash-safe
// commit point: write temp -> fsync temp -> rename -> fsync dir.
func writeShardManifestAtomic(dir string, m *shardManifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("shard manifest json: %w", err)
	}
	b = append(b, '\n')

	final := shardManifestPath(dir)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("shard manifest open tmp: %w", err)
	}
	_, werr := f.Write(b)
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("shard manifest write tmp: %w", werr)
	}
	if serr != nil {
		return fmt.Errorf("shard manifest fsync tmp: %w", serr)
	}
	if cerr != nil {
		return fmt.Errorf("shard manifest close tmp: %w", cerr)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("shard manifest rename: %w", err)
	}

	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("shard manifest fsync dir open: %w", err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return fmt.Errorf("shard manifest fsync dir: %w", err)
	}
	return d.Close()
}

// LocalFactory creates ShardStore-backed shards rooted under a single
// directory, one subdirectory per shard address (the in-process stand-in
// for the platform's canister-creation flow, spec.md §4.6 step 2).
type LocalFactory struct {
	mu       sync.Mutex
	baseDir  string
	capacity uint64
	next     uint64
}

func NewLocalFactory(baseDir string, perShardCapacity uint64) *LocalFactory {
	return &LocalFactory{baseDir: baseDir, capacity: perShardCapacity}
}

// ReopenAll reopens every shard directory found under baseDir, e.g. after
// a process restart, and advances the factory's counter past the highest
// address seen so CreateShard never collides with an existing shard.
func (f *LocalFactory) ReopenAll() (map[ShardAddress]Shard, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[ShardAddress]Shard{}, nil
		}
		return nil, fmt.Errorf("localfactory: readdir: %w", err)
	}

	handles := make(map[ShardAddress]Shard)
	var nextFree uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var n uint64
		if _, err := fmt.Sscanf(e.Name(), "shard-%06d", &n); err != nil {
			continue
		}
		addr := ShardAddress(e.Name())
		store, err := openShardStore(filepath.Join(f.baseDir, e.Name()), addr, f.capacity)
		if err != nil {
			return nil, fmt.Errorf("localfactory: reopen %s: %w", addr, err)
		}
		handles[addr] = store
		if n+1 > nextFree {
			nextFree = n + 1
		}
	}

	f.mu.Lock()
	if nextFree > f.next {
		f.next = nextFree
	}
	f.mu.Unlock()
	return handles, nil
}

func (f *LocalFactory) CreateShard(ctx context.Context, initialCycles uint64) (ShardAddress, Shard, error) {
	f.mu.Lock()
	n := f.next
	f.next++
	f.mu.Unlock()

	addr := ShardAddress(fmt.Sprintf("shard-%06d", n))
	dir := filepath.Join(f.baseDir, string(addr))
	store, err := openShardStore(dir, addr, f.capacity)
	if err != nil {
		return "", nil, err
	}
	return addr, store, nil
}
