// Package rand builds random entities for benchmarks and tests.
//
// A Generator is seeded, so the same seed always yields the same records.
package rand

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/surrealdb/recordcodec/pkg/models"
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789" // reduced base64

// epoch bounds the generated datetimes to 2000-01-01 and later.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

type Generator struct {
	rng *rand.Rand
}

func New(seed uint64) *Generator {
	//nolint:gosec // no security required
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Word returns a base62 string of length n.
func (g *Generator) Word(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = charset[g.rng.IntN(len(charset))]
	}
	return string(buf)
}

// RecordID returns a persistent id within the first clusters.
func (g *Generator) RecordID() models.RecordID {
	return models.NewRecordID(g.rng.Int32N(16), g.rng.Int64N(1<<20))
}

// Scalar returns a random non-collection value.
func (g *Generator) Scalar() models.Value {
	switch g.rng.IntN(7) {
	case 0:
		return models.String(g.Word(1 + g.rng.IntN(24)))
	case 1:
		return models.Integer(g.rng.Int32())
	case 2:
		return models.Long(g.rng.Int64())
	case 3:
		return models.Double(g.rng.NormFloat64() * 1e6)
	case 4:
		return models.Boolean(g.rng.IntN(2) == 1)
	case 5:
		return models.DateTimeFromMillis(epoch + g.rng.Int64N(1<<40))
	}
	return models.NewLink(g.RecordID())
}

// Value returns a scalar or, while depth allows, a list, map or embedded
// entity of owner.
func (g *Generator) Value(owner *models.Entity, depth int) models.Value {
	if depth <= 0 {
		return g.Scalar()
	}
	switch g.rng.IntN(6) {
	case 0:
		items := make([]models.Value, 1+g.rng.IntN(4))
		for i := range items {
			items[i] = g.Value(owner, depth-1)
		}
		return models.NewList(items...)
	case 1:
		m := models.NewMap()
		for n := 1 + g.rng.IntN(4); n > 0; n-- {
			m.Put(g.Word(6), g.Scalar())
		}
		return m
	case 2:
		child := owner.Arena().NewEmbedded(owner.Handle(), "")
		g.fill(child, 1+g.rng.IntN(3), depth-1)
		return child.Ref()
	}
	return g.Scalar()
}

// Entity returns a new top-level entity of class in arena with the given
// number of fields, nested at most depth levels.
func (g *Generator) Entity(arena *models.Arena, class string, fields, depth int) *models.Entity {
	e := arena.New(class)
	g.fill(e, fields, depth)
	return e
}

func (g *Generator) fill(e *models.Entity, fields, depth int) {
	for i := 0; i < fields; i++ {
		e.Set("f"+strconv.Itoa(i)+"_"+g.Word(4), g.Value(e, depth))
	}
}
