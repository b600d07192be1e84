package lstore

import (
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/ValentinKolb/secstore/lib/db"
	"github.com/ValentinKolb/secstore/lib/db/engines/oak"
	"github.com/ValentinKolb/secstore/lib/store"
)

func newTestStore() store.IStore {
	return NewLocalStore(func() db.KVDB { return oak.NewOakDB(nil) })
}

func TestPutGet(t *testing.T) {
	s := newTestStore()

	prev, replaced, err := s.Put("k", []byte("first"))
	if err != nil || replaced || prev != nil {
		t.Fatalf("first Put = (%q, %v, %v)", prev, replaced, err)
	}
	prev, replaced, err = s.Put("k", []byte("second"))
	if err != nil || !replaced || string(prev) != "first" {
		t.Fatalf("second Put = (%q, %v, %v)", prev, replaced, err)
	}

	value, ok, err := s.Get("k")
	if err != nil || !ok || string(value) != "second" {
		t.Errorf("Get = (%q, %v, %v)", value, ok, err)
	}
	if _, ok, _ := s.Get("missing"); ok {
		t.Errorf("Get(missing) reported a value")
	}
}

func TestKeysAndInfo(t *testing.T) {
	s := newTestStore()
	for _, k := range []string{"p/b", "p/a", "q/a"} {
		if _, _, err := s.Put(k, nil); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := s.Keys("p/")
	if err != nil || !slices.Equal(keys, []string{"p/a", "p/b"}) {
		t.Errorf("Keys = %v, %v", keys, err)
	}

	info, err := s.GetDBInfo()
	if err != nil || info.DbType != db.ImplOak {
		t.Errorf("GetDBInfo = %+v, %v", info, err)
	}
	// every write got its own index from the store
	if s.(*storeImpl).db.WriteIdx() != 3 {
		t.Errorf("write index = %d, want 3", s.(*storeImpl).db.WriteIdx())
	}
}

// readOnlyDB supports nothing but Get
type readOnlyDB struct {
	db.KVDB
}

func (readOnlyDB) SupportsFeature(f db.Feature) bool { return f == db.FeatureGet }
func (readOnlyDB) Get(string) ([]byte, bool, error) { return nil, false, io.ErrUnexpectedEOF }

func TestErrors(t *testing.T) {
	s := NewLocalStore(func() db.KVDB { return readOnlyDB{} })

	var storeErr *store.Error
	if _, _, err := s.Put("k", nil); !errors.As(err, &storeErr) || storeErr.Code != store.RetCUnsupportedOperation {
		t.Errorf("Put: expected unsupported operation, got %v", err)
	}
	if _, err := s.Keys(""); !errors.As(err, &storeErr) || storeErr.Code != store.RetCUnsupportedOperation {
		t.Errorf("Keys: expected unsupported operation, got %v", err)
	}
	if _, _, err := s.Get("k"); !errors.As(err, &storeErr) || storeErr.Code != store.RetCInternalError {
		t.Errorf("Get: expected internal error, got %v", err)
	}
}
