package textcodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/surrealdb/recordcodec/internal/textscan"
	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/metrics"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/typeresolver"
)

// Encode writes e in the text format. The entity is never modified; see
// Result for how coerced values are handed back.
func Encode(ctx *codecctx.Context, e *models.Entity, opts Options) (res Result, err error) {
	start := time.Now()
	defer func() { ctx.Observe(metrics.OpEncode, start, err) }()

	if e == nil || e.Arena() == nil {
		return Result{}, errors.New("textcodec: entity is not part of an arena")
	}

	enc := &encoder{
		ctx:      ctx,
		arena:    e.Arena(),
		visiting: make(map[models.Handle]struct{}),
	}

	var sb strings.Builder
	if err = enc.writeEntity(&sb, e, !opts.OmitClass); err != nil {
		return Result{}, err
	}

	factor := opts.OverAllocation
	if factor == 0 {
		factor = ctx.OverSize(e.ClassName())
	}
	out := pad([]byte(sb.String()), opts.PadToSize, factor)

	return Result{Bytes: out, Entity: enc.patched(e)}, nil
}

type valuePatch struct {
	handle models.Handle
	field  string
	value  models.Value
}

type encoder struct {
	ctx      *codecctx.Context
	arena    *models.Arena
	visiting map[models.Handle]struct{}

	values []valuePatch
	rids   map[models.Handle]models.RecordID
	owners map[models.Handle]models.Handle
}

// patched applies the recorded patches to a copy of the arena and returns
// the copy of e, or e itself when there is nothing to patch.
func (enc *encoder) patched(e *models.Entity) *models.Entity {
	if len(enc.values) == 0 && len(enc.rids) == 0 && len(enc.owners) == 0 {
		return e
	}

	arena := enc.arena.Clone()
	for h, rid := range enc.rids {
		if x, ok := arena.Get(h); ok {
			_ = x.SetRID(rid)
		}
	}
	for h, owner := range enc.owners {
		if x, ok := arena.Get(h); ok {
			x.SetOwner(owner)
		}
	}
	for _, p := range enc.values {
		if x, ok := arena.Get(p.handle); ok {
			x.Set(p.field, p.value)
		}
	}

	out, _ := arena.Get(e.Handle())
	return out
}

func (enc *encoder) writeEntity(sb *strings.Builder, e *models.Entity, withClass bool) error {
	if _, ok := enc.visiting[e.Handle()]; ok {
		return fmt.Errorf("%w: entity %d", constants.ErrCyclicEmbedding, e.Handle())
	}
	enc.visiting[e.Handle()] = struct{}{}
	defer delete(enc.visiting, e.Handle())

	if withClass && e.ClassName() != "" {
		sb.WriteString(e.ClassName())
		sb.WriteByte(constants.ClassSeparator)
	}

	written := 0
	for _, f := range e.Fields() {
		typ, linked := enc.fieldType(e, f)
		if typ == models.TypeTransient {
			continue
		}

		if written > 0 {
			sb.WriteByte(constants.RecordSeparator)
		}
		written++
		sb.WriteString(f.Name)
		sb.WriteByte(constants.EntrySeparator)

		v, changed, err := enc.writeValue(sb, e, f.Name, f.Value, typ, linked)
		if err != nil {
			return err
		}
		if changed {
			enc.values = append(enc.values, valuePatch{handle: e.Handle(), field: f.Name, value: v})
		}
	}
	return nil
}

// fieldType resolves the type a field is written as: the schema
// declaration, then the type recorded on the field, then the value itself.
func (enc *encoder) fieldType(e *models.Entity, f models.Field) (typ, linked models.PropertyType) {
	if p, ok := enc.ctx.Property(e.ClassName(), f.Name); ok {
		typ, linked = p.Type, p.LinkedType
	}
	if !typ.Declared() {
		typ = f.Type
	}
	if !typ.Declared() {
		typ = typeresolver.FromValue(enc.arena, f.Value)
	}
	return typ, linked
}

// writeValue writes v as t. It returns the value the field should hold
// afterwards and whether that differs from v.
func (enc *encoder) writeValue(sb *strings.Builder, owner *models.Entity, field string, v models.Value, t, linked models.PropertyType) (models.Value, bool, error) {
	if v == nil || !t.Declared() || t == models.TypeTransient {
		return v, false, nil
	}

	v, changed, err := enc.coerce(field, v, t)
	if err != nil {
		return nil, false, err
	}

	switch t {
	case models.TypeString:
		sb.WriteString(textscan.Quote(string(v.(models.String))))
	case models.TypeBinary:
		writeBinary(sb, v.(models.Binary))
	case models.TypeCustom:
		sb.WriteByte(typeresolver.CustomPrefix)
		writeBinary(sb, v.(models.Custom).Data)
	case models.TypeLink:
		nv, linkChanged, err := enc.writeLink(sb, field, -1, v)
		if err != nil {
			return nil, false, err
		}
		return nv, changed || linkChanged, nil
	case models.TypeEmbedded:
		if err := enc.writeEmbedded(sb, owner, field, v); err != nil {
			return nil, false, err
		}
	case models.TypeEmbeddedList, models.TypeEmbeddedSet, models.TypeLinkList, models.TypeLinkSet:
		nv, itemsChanged, err := enc.writeItems(sb, owner, field, v, t, linked)
		if err != nil {
			return nil, false, err
		}
		return nv, changed || itemsChanged, nil
	case models.TypeEmbeddedMap, models.TypeLinkMap:
		nv, entriesChanged, err := enc.writeEntries(sb, owner, field, v, t, linked)
		if err != nil {
			return nil, false, err
		}
		return nv, changed || entriesChanged, nil
	case models.TypeLinkBag:
		nv, bagChanged := enc.writeBag(sb, v.(*models.Bag))
		return nv, changed || bagChanged, nil
	default:
		s, ok := models.FormatScalar(v)
		if !ok {
			return nil, false, &models.SerializationError{Field: field, Type: t, Value: v}
		}
		sb.WriteString(s)
		if suffix := typeresolver.Suffix(t); suffix != 0 {
			sb.WriteByte(suffix)
		}
	}
	return v, changed, nil
}

// coerce converts v to t. Converting a collection into another collection
// type is reported as a change so the caller can hand the new value back.
func (enc *encoder) coerce(field string, v models.Value, t models.PropertyType) (models.Value, bool, error) {
	if v.Type() == t {
		return v, false, nil
	}
	if r, ok := v.(models.Record); ok && (t == models.TypeLink || t == models.TypeEmbedded) {
		return r, false, nil
	}
	if items, ok := models.Items(v); ok && t == models.TypeLinkBag {
		bag, err := enc.bagOf(field, items)
		if err != nil {
			return nil, false, err
		}
		return bag, true, nil
	}

	cv, err := models.Convert(v, t)
	if err != nil {
		return nil, false, &models.SerializationError{Field: field, Type: t, Value: v, Err: err}
	}
	return cv, t.IsMultiValue(), nil
}

// bagOf builds a bag from the references in items.
func (enc *encoder) bagOf(field string, items []models.Value) (*models.Bag, error) {
	bag := models.NewBag()
	for i, item := range items {
		switch tv := item.(type) {
		case models.Link:
			bag.Add(tv.RecordID)
			continue
		case models.Record:
			if target, ok := enc.arena.Get(tv.Handle); ok && target.Identifiable() {
				bag.Add(target.RID())
				continue
			}
		}
		return nil, &models.LinkCastError{Field: field, Index: i, Got: models.TypeOf(item)}
	}
	return bag, nil
}

func writeBinary(sb *strings.Builder, b []byte) {
	sb.WriteByte(constants.BinaryDelimiter)
	sb.WriteString(base64.StdEncoding.EncodeToString(b))
	sb.WriteByte(constants.BinaryDelimiter)
}

// writeLink writes a reference. Pending ids are replaced by the persisted
// id the context knows for them.
func (enc *encoder) writeLink(sb *strings.Builder, field string, index int, v models.Value) (models.Value, bool, error) {
	switch tv := v.(type) {
	case models.Link:
		if rid, ok := enc.ctx.ResolveIdentity(tv.RecordID); ok {
			sb.WriteString(rid.String())
			return models.NewLink(rid), true, nil
		}
		sb.WriteString(tv.RecordID.String())
		return tv, false, nil
	case models.Record:
		target, err := enc.arena.Resolve(tv)
		if err != nil {
			return nil, false, err
		}
		if !target.Identifiable() {
			return nil, false, &models.LinkCastError{Field: field, Index: index, Got: models.TypeEmbedded}
		}
		rid := target.RID()
		if resolved, ok := enc.ctx.ResolveIdentity(rid); ok {
			if enc.rids == nil {
				enc.rids = make(map[models.Handle]models.RecordID)
			}
			enc.rids[target.Handle()] = resolved
			rid = resolved
		}
		sb.WriteString(rid.String())
		return tv, false, nil
	}
	return nil, false, &models.LinkCastError{Field: field, Index: index, Got: models.TypeOf(v)}
}

func (enc *encoder) writeEmbedded(sb *strings.Builder, owner *models.Entity, field string, v models.Value) error {
	r, ok := v.(models.Record)
	if !ok {
		return &models.SerializationError{Field: field, Type: models.TypeEmbedded, Value: v}
	}
	child, err := enc.arena.Resolve(r)
	if err != nil {
		return &models.SerializationError{Field: field, Type: models.TypeEmbedded, Value: v, Err: err}
	}

	if !child.IsEmbedded() && !child.RID().IsValid() {
		if enc.owners == nil {
			enc.owners = make(map[models.Handle]models.Handle)
		}
		enc.owners[child.Handle()] = owner.Handle()
	}

	sb.WriteByte(constants.EmbeddedBegin)
	if err := enc.writeEntity(sb, child, true); err != nil {
		return err
	}
	sb.WriteByte(constants.EmbeddedEnd)
	return nil
}

func (enc *encoder) writeItems(sb *strings.Builder, owner *models.Entity, field string, v models.Value, t, linked models.PropertyType) (models.Value, bool, error) {
	items, _ := models.Items(v)

	begin, end := byte(constants.ListBegin), byte(constants.ListEnd)
	if t == models.TypeEmbeddedSet || t == models.TypeLinkSet {
		begin, end = constants.SetBegin, constants.SetEnd
	}

	var replaced []models.Value
	sb.WriteByte(begin)
	for i, item := range items {
		if i > 0 {
			sb.WriteByte(constants.RecordSeparator)
		}

		var (
			nv      models.Value
			changed bool
			err     error
		)
		switch {
		case item == nil:
			sb.WriteString("null")
			continue
		case t.IsLink():
			nv, changed, err = enc.writeLink(sb, field, i, item)
		default:
			nv, changed, err = enc.writeValue(sb, owner, field, item, enc.itemType(item, linked), models.TypeAny)
		}
		if err != nil {
			return nil, false, err
		}

		if changed {
			if replaced == nil {
				replaced = append([]models.Value(nil), items...)
			}
			replaced[i] = nv
		}
	}
	sb.WriteByte(end)

	if replaced == nil {
		return v, false, nil
	}
	return models.WithItems(t, replaced), true, nil
}

func (enc *encoder) writeEntries(sb *strings.Builder, owner *models.Entity, field string, v models.Value, t, linked models.PropertyType) (models.Value, bool, error) {
	entries, _ := models.Entries(v)

	var replaced []models.MapEntry
	sb.WriteByte(constants.MapBegin)
	for i, entry := range entries {
		if i > 0 {
			sb.WriteByte(constants.RecordSeparator)
		}
		sb.WriteString(textscan.Quote(entry.Key))
		sb.WriteByte(constants.EntrySeparator)

		var (
			nv      models.Value
			changed bool
			err     error
		)
		switch {
		case entry.Value == nil:
			sb.WriteString("null")
			continue
		case t.IsLink():
			nv, changed, err = enc.writeLink(sb, field, i, entry.Value)
		default:
			nv, changed, err = enc.writeValue(sb, owner, field, entry.Value, enc.itemType(entry.Value, linked), models.TypeAny)
		}
		if err != nil {
			return nil, false, err
		}

		if changed {
			if replaced == nil {
				replaced = append([]models.MapEntry(nil), entries...)
			}
			replaced[i] = models.MapEntry{Key: entry.Key, Value: nv}
		}
	}
	sb.WriteByte(constants.MapEnd)

	if replaced == nil {
		return v, false, nil
	}
	return models.WithEntries(t, replaced), true, nil
}

func (enc *encoder) writeBag(sb *strings.Builder, bag *models.Bag) (models.Value, bool) {
	var patched *models.Bag

	sb.WriteByte(constants.BagDelimiter)
	for i, rid := range bag.RIDs() {
		if i > 0 {
			sb.WriteByte(constants.RecordSeparator)
		}
		if resolved, ok := enc.ctx.ResolveIdentity(rid); ok {
			if patched == nil {
				patched = bag.Clone()
			}
			if patched.Remove(rid) {
				patched.Add(resolved)
			}
			rid = resolved
		}
		sb.WriteString(rid.String())
	}
	sb.WriteByte(constants.BagDelimiter)

	if patched == nil {
		return bag, false
	}
	return patched, true
}

func (enc *encoder) itemType(item models.Value, linked models.PropertyType) models.PropertyType {
	if linked.Declared() {
		return linked
	}
	return typeresolver.FromValue(enc.arena, item)
}

// pad appends blanks up to the previous size of the record, or up to its
// length times factor when that is larger.
func pad(out []byte, previous int, factor float64) []byte {
	target := previous
	if factor > 1 {
		if n := int(math.Ceil(float64(len(out)) * factor)); n > target {
			target = n
		}
	}
	if target <= len(out) {
		return out
	}
	return append(out, bytes.Repeat([]byte{' '}, target-len(out))...)
}
