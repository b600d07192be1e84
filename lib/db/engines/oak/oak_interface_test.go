package oak

import (
	"testing"

	"github.com/ValentinKolb/secstore/lib/db"
	dbtesting "github.com/ValentinKolb/secstore/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "OakDB", func() db.KVDB {
		return NewOakDB(nil)
	})
}

func TestSmallDegree(t *testing.T) {
	dbtesting.RunKVDBTests(t, "OakDB(degree=2)", func() db.KVDB {
		return NewOakDB(&DBOptions{Degree: 2})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "OakDB", func() db.KVDB {
		return NewOakDB(nil)
	})
}
