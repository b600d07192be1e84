package ring

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/99designs/keyring"
	"github.com/ValentinKolb/secstore/lib/db"
)

// ringImpl stores every entry as an item of an OS or file keyring. Values are
// encrypted at rest by the keyring backend.
type ringImpl struct {
	mu        sync.RWMutex // Put is a read-modify-write, file backends are not atomic
	ring      keyring.Keyring
	backend   keyring.BackendType
	currIndex atomic.Uint64
}

// DBOptions configures the keyring that backs the database
type DBOptions struct {
	// ServiceName namespaces the items in system keyrings, use one per storage domain
	ServiceName string
	// Backends allowed to be opened, in order of preference (default: file)
	Backends []keyring.BackendType
	// FileDir is the directory of the encrypted file backend
	FileDir string
	// FilePassword encrypts the file backend
	FilePassword string
}

// NewRingDB opens the keyring described by opts
func NewRingDB(opts DBOptions) (db.KVDB, error) {
	if opts.ServiceName == "" {
		return nil, fmt.Errorf("keyring service name must not be empty")
	}

	backends := opts.Backends
	if len(backends) == 0 {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:      opts.ServiceName,
		AllowedBackends:  backends,
		FileDir:          opts.FileDir,
		FilePasswordFunc: keyring.FixedStringPrompt(opts.FilePassword),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}

	return &ringImpl{ring: ring, backend: backends[0]}, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Data Operations
// --------------------------------------------------------------------------

func (r *ringImpl) Put(key string, value []byte, writeIndex uint64) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, replaced, err := r.get(key)
	if err != nil {
		return nil, false, err
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	if err := r.ring.Set(keyring.Item{Key: encodeItemKey(key), Data: stored}); err != nil {
		return nil, false, fmt.Errorf("failed to store key in keyring: %w", err)
	}

	r.SetWriteIdx(writeIndex)
	return prev, replaced, nil
}

func (r *ringImpl) Get(key string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(key)
}

func (r *ringImpl) get(key string) ([]byte, bool, error) {
	item, err := r.ring.Get(encodeItemKey(key))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key from keyring: %w", err)
	}
	if item.Data == nil {
		return []byte{}, true, nil
	}
	return item.Data, true, nil
}

func (r *ringImpl) Keys(prefix string) ([]string, error) {
	r.mu.RLock()
	all, err := r.ring.Keys()
	r.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys from keyring: %w", err)
	}

	keys := make([]string, 0, len(all))
	for _, itemKey := range all {
		key, ok := decodeItemKey(itemKey)
		if !ok {
			continue // not written by this database
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// encodeItemKey maps a key to a keyring item key. Storage keys contain '/'
// which the file backend would treat as a path separator.
func encodeItemKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeItemKey(itemKey string) (string, bool) {
	key, err := base64.RawURLEncoding.DecodeString(itemKey)
	if err != nil {
		return "", false
	}
	return string(key), true
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Persistence
// --------------------------------------------------------------------------

// Save is not supported, the keyring persists every write by itself
func (r *ringImpl) Save(w io.Writer) error {
	return fmt.Errorf("%s database does not support snapshots", db.ImplRing)
}

// Load is not supported, the keyring persists every write by itself
func (r *ringImpl) Load(rd io.Reader) error {
	return fmt.Errorf("%s database does not support snapshots", db.ImplRing)
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

func (r *ringImpl) GetInfo() db.DatabaseInfo {
	entries := -1
	if keys, err := r.ring.Keys(); err == nil {
		entries = len(keys)
	}

	meta := &struct {
		CurrentWriteIndex uint64 `json:"current_write_index"`
		Backend           string `json:"backend"`
		Entries           int    `json:"entries"`
		Info              string `json:"info"`
	}{
		CurrentWriteIndex: r.currIndex.Load(),
		Backend:           string(r.backend),
		Entries:           entries,
		Info:              "Size is not tracked, values live in the keyring backend.",
	}

	return db.DatabaseInfo{
		SizeBytes:         0,
		DbType:            db.ImplRing,
		SupportedFeatures: []db.Feature{db.FeaturePut, db.FeatureGet, db.FeatureKeys},
		Metadata:          meta,
	}
}

func (r *ringImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeaturePut | db.FeatureGet | db.FeatureKeys
	return supportedFeatures&feature == feature
}

func (r *ringImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

func (r *ringImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := r.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if r.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

func (r *ringImpl) WriteIdx() uint64 {
	return r.currIndex.Load()
}
