package ring

import (
	"testing"

	"github.com/ValentinKolb/secstore/lib/db"
	dbtesting "github.com/ValentinKolb/secstore/lib/db/testing"
)

func newTestRing(t testing.TB) db.KVDB {
	t.Helper()
	database, err := NewRingDB(DBOptions{
		ServiceName:  "secstore-test",
		FileDir:      t.TempDir(),
		FilePassword: "test-password",
	})
	if err != nil {
		t.Fatalf("Failed to open keyring: %v", err)
	}
	return database
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "RingDB", func() db.KVDB {
		return newTestRing(t)
	})
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	opts := DBOptions{ServiceName: "secstore-test", FileDir: dir, FilePassword: "pw"}

	first, err := NewRingDB(opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := first.Put("v=1,euid=0x0/persisted", []byte("value"), 1); err != nil {
		t.Fatal(err)
	}

	second, err := NewRingDB(opts)
	if err != nil {
		t.Fatal(err)
	}
	value, ok, err := second.Get("v=1,euid=0x0/persisted")
	if err != nil || !ok || string(value) != "value" {
		t.Errorf("Get after reopen = %q, %v, %v", value, ok, err)
	}
}

func TestEmptyServiceName(t *testing.T) {
	if _, err := NewRingDB(DBOptions{FileDir: t.TempDir()}); err == nil {
		t.Error("expected error for empty service name")
	}
}
