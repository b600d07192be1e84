package oak

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/secstore/lib/db"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum      = "OAKDB\x00\x00\x00" // File format identifier
	oakVersion    = 1                   // Database version
	defaultDegree = 32                  // Default branching factor of the tree
	entryOverhead = 24                  // 8 bytes index + slice headers (estimate)
)

// --------------------------------------------------------------------------
// Core Oak database structure
// --------------------------------------------------------------------------

// entry is a single key value pair stored in the tree
type entry struct {
	key   string
	value []byte
	index uint64 // write index of the last modification
}

// Less orders entries bytewise by key
func (e *entry) Less(than btree.Item) bool {
	return e.key < than.(*entry).key
}

// oakImpl implements an ordered in-memory database on top of a btree
type oakImpl struct {
	mu        sync.RWMutex
	degree    int
	tree      *btree.BTree
	sizeBytes int           // sum of key and value lengths
	currIndex atomic.Uint64 // Current logical timestamp
}

// DBOptions configures the oakImpl behavior during initialization
type DBOptions struct {
	Degree int // Branching factor of the btree (0 = use default)
}

// DefaultOptions returns the default oakImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{Degree: defaultDegree}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewOakDB creates a new OakDB instance with the specified options (optional)
func NewOakDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	degree := opts.Degree
	if degree < 2 {
		degree = defaultDegree
	}
	return &oakImpl{
		degree: degree,
		tree:   btree.New(degree),
	}
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Data Operations
// --------------------------------------------------------------------------

func (oak *oakImpl) Put(key string, value []byte, writeIndex uint64) ([]byte, bool, error) {
	stored := make([]byte, len(value))
	copy(stored, value)

	oak.mu.Lock()
	old := oak.tree.ReplaceOrInsert(&entry{key: key, value: stored, index: writeIndex})
	oak.sizeBytes += len(key) + len(stored)
	if old != nil {
		oak.sizeBytes -= len(key) + len(old.(*entry).value)
	}
	oak.mu.Unlock()

	oak.SetWriteIdx(writeIndex)

	if old == nil {
		return nil, false, nil
	}
	// the replaced entry is no longer reachable, no copy needed
	return old.(*entry).value, true, nil
}

func (oak *oakImpl) Get(key string) ([]byte, bool, error) {
	oak.mu.RLock()
	defer oak.mu.RUnlock()

	item := oak.tree.Get(&entry{key: key})
	if item == nil {
		return nil, false, nil
	}
	stored := item.(*entry).value
	value := make([]byte, len(stored))
	copy(value, stored)
	return value, true, nil
}

func (oak *oakImpl) Keys(prefix string) ([]string, error) {
	oak.mu.RLock()
	defer oak.mu.RUnlock()

	keys := make([]string, 0)
	oak.tree.AscendGreaterOrEqual(&entry{key: prefix}, func(item btree.Item) bool {
		e := item.(*entry)
		if !strings.HasPrefix(e.key, prefix) {
			return false
		}
		keys = append(keys, e.key)
		return true
	})
	return keys, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Persistence
// --------------------------------------------------------------------------

// Save writes all entries in key order to the writer
//
// Thread-safety: Writers are blocked while the entries are collected, the
// actual write to w happens without holding the lock.
func (oak *oakImpl) Save(w io.Writer) error {
	oak.mu.RLock()
	entries := make([]*entry, 0, oak.tree.Len())
	oak.tree.Ascend(func(item btree.Item) bool {
		entries = append(entries, item.(*entry))
		return true
	})
	writeIdx := oak.currIndex.Load()
	oak.mu.RUnlock()

	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(oakVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, writeIdx); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(e.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, e.index); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(e.value))); err != nil {
			return err
		}
		if _, err := bw.Write(e.value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the content of the database with the entries read from r
//
// Thread-safety: The new tree is built without holding the lock and swapped
// in at the end. A failed load leaves the database unchanged.
func (oak *oakImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != oakVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, oakVersion)
	}

	var writeIdx, count uint64
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	tree := btree.New(oak.degree)
	sizeBytes := 0
	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var index uint64
		if err := binary.Read(br, binary.LittleEndian, &index); err != nil {
			return err
		}

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		tree.ReplaceOrInsert(&entry{key: string(key), value: value, index: index})
		sizeBytes += len(key) + len(value)
	}

	oak.mu.Lock()
	oak.tree = tree
	oak.sizeBytes = sizeBytes
	oak.currIndex.Store(writeIdx)
	oak.mu.Unlock()

	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (oak *oakImpl) GetInfo() db.DatabaseInfo {
	oak.mu.RLock()
	entries := oak.tree.Len()
	sizeBytes := oak.sizeBytes + entries*entryOverhead
	oak.mu.RUnlock()

	meta := &struct {
		CurrentWriteIndex uint64 `json:"current_write_index"`
		Entries           int    `json:"entries"`
		Degree            int    `json:"degree"`
	}{
		CurrentWriteIndex: oak.currIndex.Load(),
		Entries:           entries,
		Degree:            oak.degree,
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		DbType:    db.ImplOak,
		SupportedFeatures: []db.Feature{
			db.FeaturePut, db.FeatureGet, db.FeatureKeys,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (oak *oakImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeaturePut |
		db.FeatureGet |
		db.FeatureKeys |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close drops all entries
func (oak *oakImpl) Close() error {
	oak.mu.Lock()
	defer oak.mu.Unlock()
	oak.tree = btree.New(oak.degree)
	oak.sizeBytes = 0
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
func (oak *oakImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := oak.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if oak.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (oak *oakImpl) WriteIdx() uint64 {
	return oak.currIndex.Load()
}
