package dstore

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/ValentinKolb/secstore/lib/db"
	"github.com/ValentinKolb/secstore/lib/db/engines/oak"
	"github.com/ValentinKolb/secstore/lib/store"
	"github.com/ValentinKolb/secstore/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

func newTestStateMachine() *KVStateMachine {
	factory := CreateStateMaschineFactory(func() db.KVDB { return oak.NewOakDB(nil) })
	return factory(1, 1).(*KVStateMachine)
}

func putEntry(index uint64, key, value string) sm.Entry {
	cmd := internal.Command{Type: internal.CommandTPut, Key: key, Value: []byte(value)}
	return sm.Entry{Index: index, Cmd: cmd.Serialize()}
}

func TestUpdatePut(t *testing.T) {
	fsm := newTestStateMachine()
	defer fsm.Close()

	entries, err := fsm.Update([]sm.Entry{
		putEntry(1, "k", "first"),
		putEntry(2, "k", "second"),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	for i, e := range entries {
		if e.Result.Value != uint64(store.RetCSuccess) {
			t.Fatalf("entry %d: unexpected result code %d (%s)", i, e.Result.Value, e.Result.Data)
		}
	}

	prev, replaced, err := internal.DecodePutResult(entries[0].Result.Data)
	if err != nil || replaced || prev != nil {
		t.Errorf("first put: got (%q, %v, %v), want (nil, false, nil)", prev, replaced, err)
	}
	prev, replaced, err = internal.DecodePutResult(entries[1].Result.Data)
	if err != nil || !replaced || string(prev) != "first" {
		t.Errorf("second put: got (%q, %v, %v), want (first, true, nil)", prev, replaced, err)
	}

	if idx := fsm.database.WriteIdx(); idx != 2 {
		t.Errorf("write index = %d, want 2", idx)
	}
}

func TestUpdateInvalidEntries(t *testing.T) {
	fsm := newTestStateMachine()
	defer fsm.Close()

	unknown := internal.Command{Type: internal.CommandType(99), Key: "k"}
	entries, err := fsm.Update([]sm.Entry{
		{Index: 1, Cmd: nil},
		{Index: 2, Cmd: []byte{1, 0}},
		{Index: 3, Cmd: unknown.Serialize()},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	want := []store.RetCode{store.RetCInvalidOperation, store.RetCInternalError, store.RetCInvalidOperation}
	for i, e := range entries {
		if e.Result.Value != uint64(want[i]) {
			t.Errorf("entry %d: result code %d, want %d", i, e.Result.Value, want[i])
		}
	}
}

func TestLookup(t *testing.T) {
	fsm := newTestStateMachine()
	defer fsm.Close()

	if _, err := fsm.Update([]sm.Entry{
		putEntry(1, "v=1,euid=0x1/b", "b"),
		putEntry(2, "v=1,euid=0x1/a", "a"),
		putEntry(3, "v=1,euid=0x2/a", "other"),
	}); err != nil {
		t.Fatal(err)
	}

	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTGet, Key: "v=1,euid=0x1/a"})
	if err != nil {
		t.Fatal(err)
	}
	if qr := res.(internal.QueryResult); !qr.Ok || string(qr.Value) != "a" {
		t.Errorf("Get = %+v", qr)
	}

	res, err = fsm.Lookup(internal.Query{Type: internal.QueryTGet, Key: "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if qr := res.(internal.QueryResult); qr.Ok {
		t.Errorf("Get(missing) = %+v", qr)
	}

	res, err = fsm.Lookup(internal.Query{Type: internal.QueryTKeys, Key: "v=1,euid=0x1/"})
	if err != nil {
		t.Fatal(err)
	}
	if keys := res.([]string); !slices.Equal(keys, []string{"v=1,euid=0x1/a", "v=1,euid=0x1/b"}) {
		t.Errorf("Keys = %v", keys)
	}

	res, err = fsm.Lookup(internal.Query{Type: internal.QueryTGetDBInfo})
	if err != nil {
		t.Fatal(err)
	}
	if info := res.(db.DatabaseInfo); info.DbType != db.ImplOak {
		t.Errorf("DbType = %s", info.DbType)
	}

	var storeErr *store.Error
	if _, err := fsm.Lookup("not a query"); !errors.As(err, &storeErr) {
		t.Errorf("expected store error for invalid query type, got %v", err)
	}
	if _, err := fsm.Lookup(internal.Query{Type: internal.QueryType(42)}); !errors.As(err, &storeErr) || storeErr.Code != store.RetCInvalidOperation {
		t.Errorf("expected invalid operation for unknown query, got %v", err)
	}
}

func TestSnapshot(t *testing.T) {
	fsm := newTestStateMachine()
	defer fsm.Close()

	if _, err := fsm.Update([]sm.Entry{putEntry(7, "k", "v")}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := fsm.SaveSnapshot(nil, &buf, nil, nil); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	restored := newTestStateMachine()
	defer restored.Close()
	if err := restored.RecoverFromSnapshot(&buf, nil, nil); err != nil {
		t.Fatalf("RecoverFromSnapshot failed: %v", err)
	}

	res, err := restored.Lookup(internal.Query{Type: internal.QueryTGet, Key: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if qr := res.(internal.QueryResult); !qr.Ok || string(qr.Value) != "v" {
		t.Errorf("Get after recover = %+v", qr)
	}
	if idx := restored.database.WriteIdx(); idx != 7 {
		t.Errorf("write index after recover = %d, want 7", idx)
	}
}
