package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/docdb/lib/db"
	"github.com/ValentinKolb/docdb/lib/store"
	"go.mongodb.org/mongo-driver/bson"
)

// RunDocStoreBenchmarks runs all benchmarks for a document store implementation
func RunDocStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Insert", func(b *testing.B) {
			benchmarkInsert(b, factory(b))
		})

		b.Run("InsertBatch", func(b *testing.B) {
			benchmarkInsertBatch(b, factory(b))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory(b))
		})

		b.Run("Find", func(b *testing.B) {
			benchmarkFind(b, factory(b))
		})

		b.Run("Update", func(b *testing.B) {
			benchmarkUpdate(b, factory(b))
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory(b))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func benchDoc(i int) []byte {
	data, _ := db.EncodeDocument(bson.D{
		{Key: "i", Value: int64(i)},
		{Key: "bucket", Value: int32(i % 10)},
		{Key: "name", Value: fmt.Sprintf("document-%d", i)},
	})
	return data
}

// fill inserts n documents and returns their identities
func fill(b *testing.B, s store.IDocStore, collection string, n int) []string {
	b.Helper()
	raw := make([][]byte, n)
	for i := range raw {
		raw[i] = benchDoc(i)
	}
	results, err := s.Insert(collection, raw, false)
	if err != nil {
		b.Fatalf("fill: %v", err)
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkInsert(b *testing.B, s store.IDocStore) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Insert("bench", [][]byte{benchDoc(i)}, false); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkInsertBatch(b *testing.B, s store.IDocStore) {
	batch := make([][]byte, 100)
	for i := range batch {
		batch[i] = benchDoc(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Insert("bench", batch, false); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, s store.IDocStore) {
	ids := fill(b, s, "bench", 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := s.Get("bench", ids[i%len(ids)]); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkFind(b *testing.B, s store.IDocStore) {
	fill(b, s, "bench", 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Find("bench", bson.D{{Key: "bucket", Value: int32(i % 10)}}, 10); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkUpdate(b *testing.B, s store.IDocStore) {
	fill(b, s, "bench", 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filter := bson.D{{Key: "bucket", Value: int32(i % 10)}}
		if _, err := s.Update("bench", filter, bson.D{{Key: "seen", Value: int64(i)}}, 1); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkMixedUsage(b *testing.B, s store.IDocStore) {
	ids := fill(b, s, "bench", 1000)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		i := 0
		for pb.Next() {
			var err error
			switch r.Intn(4) {
			case 0:
				_, err = s.Insert("bench", [][]byte{benchDoc(i)}, false)
			case 1:
				_, err = s.Find("bench", bson.D{{Key: "bucket", Value: int32(i % 10)}}, 5)
			default:
				_, _, err = s.Get("bench", ids[r.Intn(len(ids))])
			}
			if err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}
