package benchmark_test

import (
	"testing"

	"github.com/surrealdb/recordcodec"
	"github.com/surrealdb/recordcodec/internal/rand"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/recordstore"
)

const (
	benchFields = 24
	benchDepth  = 2
)

func setupCodec(b *testing.B) (*recordcodec.Codec, *models.Entity) {
	b.Helper()
	codec := recordcodec.New(recordstore.NewMemoryStore())
	b.Cleanup(func() { _ = codec.Close() })
	return codec, rand.New(1).Entity(models.NewArena(), "Bench", benchFields, benchDepth)
}

func BenchmarkEncode(b *testing.B) {
	codec, e := setupCodec(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Encode(e); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	codec, e := setupCodec(b)
	data, err := codec.Encode(e)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Decode(data, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSave measures encoding plus a store round trip for an existing
// record, which includes loading it for padding.
func BenchmarkSave(b *testing.B) {
	codec, e := setupCodec(b)
	if _, _, err := codec.Save(e, 1); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := codec.Save(e, 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoad(b *testing.B) {
	codec, e := setupCodec(b)
	rid, _, err := codec.Save(e, 1)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Load(rid, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSnapshot(b *testing.B) {
	codec, e := setupCodec(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Snapshot(e); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDelta(b *testing.B) {
	codec, e := setupCodec(b)
	e.MarkClean()
	g := rand.New(2)
	for _, name := range e.Names()[:benchFields/4] {
		e.Set(name, g.Scalar())
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Delta(e); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExportJSON(b *testing.B) {
	codec, e := setupCodec(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.ExportJSON(e); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompareField(b *testing.B) {
	codec, _ := setupCodec(b)
	arena := models.NewArena()
	left, right := arena.New("Bench"), arena.New("Bench")
	left.Set("name", models.String("alpha"))
	right.Set("name", models.String("alphabet"))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.CompareField(left, right, "name"); err != nil {
			b.Fatal(err)
		}
	}
}
