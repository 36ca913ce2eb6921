// Package delta writes entities in a compact binary form and records the
// changes made to an entity tree since it was last marked clean.
//
// Both forms are CBOR. The full form lists every field with its declared
// type and is used for the initial state. The delta form lists operations
// against the baseline each entity snapshots in models.Entity.MarkClean:
//
//	CREATED   a field, element or key that did not exist
//	REPLACED  a new value for an existing field, position or key
//	CHANGED   a nested delta for an embedded entity, a collection or a bag
//	REMOVED   a field, element or key that no longer exists
//
// Lists are diffed by position, sets by value and maps by key. Bags carry
// the ids added and removed so the receiver updates its bag in place.
// A stored null is a value like any other and is distinct from a removed
// element.
package delta

import (
	"errors"
	"time"

	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/metrics"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// Operation codes.
const (
	opCreated  uint8 = 1
	opReplaced uint8 = 2
	opChanged  uint8 = 3
	opRemoved  uint8 = 4
)

var errNoEntity = errors.New("entity is nil or not part of an arena")

func check(e *models.Entity) error {
	if e == nil || e.Arena() == nil {
		return errNoEntity
	}
	return nil
}

// Serialize writes the full state of e and of the entities it embeds.
func Serialize(ctx *codecctx.Context, e *models.Entity) (data []byte, err error) {
	start := time.Now()
	defer func() { ctx.Observe(metrics.OpSerialize, start, err) }()

	if err := check(e); err != nil {
		return nil, err
	}
	we, err := newWriter(ctx, e.Arena()).entity(e)
	if err != nil {
		return nil, err
	}
	return marshal(we)
}

// Deserialize replaces the fields of target with the full state in data
// and marks the result clean.
func Deserialize(ctx *codecctx.Context, data []byte, target *models.Entity) (err error) {
	start := time.Now()
	defer func() { ctx.Observe(metrics.OpDeserialize, start, err) }()

	if err := check(target); err != nil {
		return err
	}
	var we wireEntity
	if err := unmarshal(data, &we); err != nil {
		return err
	}

	target.Clear()
	r := &reader{ctx: ctx, arena: target.Arena()}
	if err := r.entity(target, we); err != nil {
		return err
	}
	target.MarkClean()
	return nil
}

// SerializeDelta writes the changes made to e and to the entities it
// embeds since their baselines. An entity that was never marked clean is
// written as created field by field. Call MarkClean once the delta has
// been persisted.
func SerializeDelta(ctx *codecctx.Context, e *models.Entity) (data []byte, err error) {
	start := time.Now()
	defer func() { ctx.Observe(metrics.OpSerializeDelta, start, err) }()

	if err := check(e); err != nil {
		return nil, err
	}
	d := &differ{writer: newWriter(ctx, e.Arena())}
	wd, err := d.entity(e)
	if err != nil {
		return nil, err
	}
	return marshal(wd)
}

// DeserializeDelta applies a delta to target, which is expected to be in
// the state the delta was computed against, and marks the result clean.
// Operations that do not fit target are skipped and logged as warnings.
func DeserializeDelta(ctx *codecctx.Context, data []byte, target *models.Entity) (err error) {
	start := time.Now()
	defer func() { ctx.Observe(metrics.OpDeserializeDelta, start, err) }()

	if err := check(target); err != nil {
		return err
	}
	var wd wireDelta
	if err := unmarshal(data, &wd); err != nil {
		return err
	}

	a := &applier{reader: &reader{ctx: ctx, arena: target.Arena()}}
	if err := a.entity(target, wd); err != nil {
		return err
	}
	target.MarkClean()
	return nil
}
