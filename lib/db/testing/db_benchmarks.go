package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/secstore/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Put", func(b *testing.B) {
			benchmarkPut(b, factory())
		})

		b.Run("PutExisting", func(b *testing.B) {
			benchmarkPutExisting(b, factory())
		})

		b.Run("PutLargeValue", func(b *testing.B) {
			benchmarkPutLargeValue(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("Keys", func(b *testing.B) {
			benchmarkKeys(b, factory())
		})

		b.Run("SaveLoad", func(b *testing.B) {
			benchmarkSaveLoad(b, factory)
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkPut(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Put(key, value, 0)
			counter++
		}
	})
}

func benchmarkPutExisting(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		database.Put(key, []byte(fmt.Sprintf("test-value-%d", i)), 0)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Put(key, value, 0)
			counter++
		}
	})
}

func benchmarkPutLargeValue(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	largeValue := make([]byte, 64*1024) // 64KB

	b.SetBytes(int64(len(largeValue)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Put(fmt.Sprintf("test-key-%d", i%128), largeValue, 0)
	}
}

func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet)

	numKeys := 10_000
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Put(keys[i], []byte(fmt.Sprintf("test-value-%d", i)), 0)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			database.Get(keys[r.Intn(numKeys)])
		}
	})
}

func benchmarkKeys(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureKeys)

	// 100 users with 100 keys each, a listing returns one user
	numUsers, keysPerUser := 100, 100
	for u := 0; u < numUsers; u++ {
		for i := 0; i < keysPerUser; i++ {
			database.Put(fmt.Sprintf("v=1,euid=0x%X/key-%d", u, i), []byte("v"), 0)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		keys, _ := database.Keys(fmt.Sprintf("v=1,euid=0x%X/", i%numUsers))
		if len(keys) != keysPerUser {
			b.Fatalf("Expected %d keys, got %d", keysPerUser, len(keys))
		}
	}
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureSave|db.FeatureLoad)

	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		database.Put(fmt.Sprintf("test-key-%d", i), []byte(fmt.Sprintf("test-value-%d", i)), 0)
	}

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		b.Fatalf("Save failed: %v", err)
	}
	b.SetBytes(int64(buf.Len()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var snapshot bytes.Buffer
		if err := database.Save(&snapshot); err != nil {
			b.Fatalf("Save failed: %v", err)
		}
		target := factory()
		if err := target.Load(&snapshot); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
		target.Close()
	}
}

// Mix of 70% Get, 20% Put and 10% Keys on a shared key space
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet|db.FeatureKeys)

	numUsers, keysPerUser := 50, 20
	for u := 0; u < numUsers; u++ {
		for i := 0; i < keysPerUser; i++ {
			database.Put(fmt.Sprintf("v=1,euid=0x%X/key-%d", u, i), []byte("initial"), 0)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		value := make([]byte, 128)
		for pb.Next() {
			user := r.Intn(numUsers)
			key := fmt.Sprintf("v=1,euid=0x%X/key-%d", user, r.Intn(keysPerUser))
			switch op := r.Intn(10); {
			case op < 7:
				database.Get(key)
			case op < 9:
				database.Put(key, value, 0)
			default:
				database.Keys(fmt.Sprintf("v=1,euid=0x%X/", user))
			}
		}
	})
}
