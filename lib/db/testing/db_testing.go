package testing

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/ValentinKolb/secstore/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs the conformance test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("PutReturnsPrevious", func(t *testing.T) {
			testPutReturnsPrevious(t, factory())
		})

		t.Run("ValueIsolation", func(t *testing.T) {
			testValueIsolation(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("WriteIndex", func(t *testing.T) {
			testWriteIndex(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skipf("feature %s not supported", feature)
	}
}

func mustPut(t testing.TB, database db.KVDB, key string, value []byte, idx uint64) {
	t.Helper()
	if _, _, err := database.Put(key, value, idx); err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
}

func mustGet(t testing.TB, database db.KVDB, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return value, ok
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	testKey := "v=1,euid=0x0/test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustPut(t, database, testKey, testValue1, 1)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Put", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustPut(t, database, testKey, testValue2, 2)

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Put", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = mustGet(t, database, "nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}
}

func testPutReturnsPrevious(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut)

	prev, replaced, err := database.Put("k", []byte("first"), 1)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if replaced || prev != nil {
		t.Errorf("First Put: expected (nil, false), got (%q, %v)", prev, replaced)
	}

	prev, replaced, err = database.Put("k", []byte("second"), 2)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !replaced || string(prev) != "first" {
		t.Errorf("Second Put: expected (first, true), got (%q, %v)", prev, replaced)
	}

	// Replacing an empty value still reports a replacement
	mustPut(t, database, "empty", []byte{}, 3)
	prev, replaced, err = database.Put("empty", []byte("x"), 4)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !replaced || len(prev) != 0 {
		t.Errorf("Replacing empty value: expected (empty, true), got (%q, %v)", prev, replaced)
	}
}

func testValueIsolation(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	input := []byte("original")
	mustPut(t, database, "isolated", input, 1)
	input[0] = 'X'

	result, _ := mustGet(t, database, "isolated")
	if string(result) != "original" {
		t.Errorf("Modifying the input slice changed the stored value: %s", result)
	}

	result[0] = 'Y'
	again, _ := mustGet(t, database, "isolated")
	if string(again) != "original" {
		t.Errorf("Modifying a returned slice changed the stored value: %s", again)
	}
}

func testKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureKeys)

	inserted := []string{
		"v=1,euid=0x2/b",
		"v=1,euid=0x1/zeta",
		"v=1,euid=0x1/alpha",
		"v=1,euid=0x1/alphabet",
		"v=1,euid=0x10/a",
		"other",
	}
	for i, key := range inserted {
		mustPut(t, database, key, []byte(key), uint64(i+1))
	}

	all, err := database.Keys("")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	expected := slices.Clone(inserted)
	slices.Sort(expected)
	if !slices.Equal(all, expected) {
		t.Errorf("Keys(\"\"): expected %v, got %v", expected, all)
	}

	cases := []struct {
		prefix   string
		expected []string
	}{
		{"v=1,euid=0x1/", []string{"v=1,euid=0x1/alpha", "v=1,euid=0x1/alphabet", "v=1,euid=0x1/zeta"}},
		{"v=1,euid=0x1/alpha", []string{"v=1,euid=0x1/alpha", "v=1,euid=0x1/alphabet"}},
		{"v=1,euid=0x10/", []string{"v=1,euid=0x10/a"}},
		{"v=1,euid=0x3/", []string{}},
		{"zzz", []string{}},
	}
	for _, tc := range cases {
		keys, err := database.Keys(tc.prefix)
		if err != nil {
			t.Fatalf("Keys(%q) failed: %v", tc.prefix, err)
		}
		if len(keys) != len(tc.expected) || !slices.Equal(keys, tc.expected) {
			t.Errorf("Keys(%q): expected %v, got %v", tc.prefix, tc.expected, keys)
		}
	}
}

func testWriteIndex(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut)

	mustPut(t, database, "a", []byte("a"), 5)
	if idx := database.WriteIdx(); idx != 5 {
		t.Errorf("Expected write index 5, got %d", idx)
	}

	mustPut(t, database, "b", []byte("b"), 3)
	if idx := database.WriteIdx(); idx != 5 {
		t.Errorf("Write index must not decrease, got %d", idx)
	}

	database.SetWriteIdx(10)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("Expected write index 10, got %d", idx)
	}

	database.SetWriteIdx(2)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("Write index must not decrease, got %d", idx)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureKeys|db.FeatureSave|db.FeatureLoad)

	database2 := factory()
	defer database2.Close()

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		mustPut(t, database, key, value, uint64(i+1))
	}
	mustPut(t, database, "empty-value", []byte{}, uint64(numEntries+1))

	// pre-existing entries of database2 must be dropped by Load
	mustPut(t, database2, "stale", []byte("stale"), 1)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		expectedValue := []byte(fmt.Sprintf("save-load-test-value-%d", i))

		actualValue, exists := mustGet(t, database2, key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	if value, exists := mustGet(t, database2, "empty-value"); !exists || len(value) != 0 {
		t.Errorf("Empty value not restored: %q, %v", value, exists)
	}
	if _, exists := mustGet(t, database2, "stale"); exists {
		t.Errorf("Load must replace existing entries")
	}
	if database2.WriteIdx() != database.WriteIdx() {
		t.Errorf("Write index mismatch after Load: expected %d, got %d", database.WriteIdx(), database2.WriteIdx())
	}

	keys1, _ := database.Keys("")
	keys2, _ := database2.Keys("")
	if !slices.Equal(keys1, keys2) {
		t.Errorf("Key sets differ after Load: %d vs %d keys", len(keys1), len(keys2))
	}

	if err := database2.Load(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Errorf("Expected error when loading invalid data")
	}
	if _, exists := mustGet(t, database2, "save-load-test-key-0"); !exists {
		t.Errorf("Failed Load must leave the database unchanged")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	emptyKeyValue := []byte("value for empty user key")
	mustPut(t, database, "v=1,euid=0x0/", emptyKeyValue, 1)
	if result, exists := mustGet(t, database, "v=1,euid=0x0/"); !exists || !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Key with empty user key not stored correctly: %q, %v", result, exists)
	}

	mustPut(t, database, "empty-value-key", []byte{}, 2)
	if result, exists := mustGet(t, database, "empty-value-key"); !exists || len(result) != 0 {
		t.Errorf("Empty value not stored correctly: %q, %v", result, exists)
	}

	mustPut(t, database, "nil-value-key", nil, 3)
	if result, exists := mustGet(t, database, "nil-value-key"); !exists || len(result) != 0 {
		t.Errorf("Nil value not stored correctly: %q, %v", result, exists)
	}

	specialKey := "v=1,euid=0xFFFFFFFF/wifi/ssid with spaces/äöü/\x00"
	mustPut(t, database, specialKey, []byte("special"), 4)
	if result, exists := mustGet(t, database, specialKey); !exists || string(result) != "special" {
		t.Errorf("Key with special characters not stored correctly: %q, %v", result, exists)
	}

	binaryValue := make([]byte, 256)
	for i := range binaryValue {
		binaryValue[i] = byte(i)
	}
	mustPut(t, database, "binary-value", binaryValue, 5)
	if result, _ := mustGet(t, database, "binary-value"); !bytes.Equal(result, binaryValue) {
		t.Errorf("Binary value mismatch")
	}

	largeValue := make([]byte, 1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 251)
	}
	mustPut(t, database, "large-value-key", largeValue, 6)
	if result, exists := mustGet(t, database, "large-value-key"); !exists || !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch (found=%v, len=%d)", exists, len(result))
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected non-empty database type")
	}
	for _, feature := range info.SupportedFeatures {
		if !database.SupportsFeature(feature) {
			t.Errorf("Feature %s listed in info but not supported", feature)
		}
	}
	if database.SupportsFeature(db.Feature(1 << 40)) {
		t.Errorf("Unknown feature must not be supported")
	}
}

func testConcurrent(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureKeys)

	numWorkers := 8
	keysPerWorker := 25

	var wg sync.WaitGroup
	errs := make(chan error, numWorkers*keysPerWorker)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < keysPerWorker; i++ {
				key := fmt.Sprintf("v=1,euid=0x%X/key-%03d", worker, i)
				if _, _, err := database.Put(key, []byte(key), uint64(worker*keysPerWorker+i+1)); err != nil {
					errs <- err
					return
				}
				if _, _, err := database.Put("hot-key", []byte(key), 0); err != nil {
					errs <- err
					return
				}
				if _, _, err := database.Get("hot-key"); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Error during concurrent operations: %v", err)
	}

	for w := 0; w < numWorkers; w++ {
		prefix := fmt.Sprintf("v=1,euid=0x%X/", w)
		keys, err := database.Keys(prefix)
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if len(keys) != keysPerWorker {
			t.Errorf("Expected %d keys for worker %d, got %d", keysPerWorker, w, len(keys))
		}
		for _, key := range keys {
			if value, exists := mustGet(t, database, key); !exists || string(value) != key {
				t.Errorf("Value mismatch for key %s: %q", key, value)
			}
		}
	}
}
