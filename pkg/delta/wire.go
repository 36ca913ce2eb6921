package delta

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/surrealdb/recordcodec/internal/codec"
	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
)

var (
	marshaler   codec.Marshaler   = models.CborMarshaler{}
	unmarshaler codec.Unmarshaler = models.CborUnmarshaler{}
)

// wireEntity is the full form of an entity: [class, [field...]].
type wireEntity struct {
	_      struct{} `cbor:",toarray"`
	Class  string
	Fields []wireField
}

// wireField is [name, declared type, value type, value]. A null value has
// the value type ANY.
type wireField struct {
	_     struct{} `cbor:",toarray"`
	Name  string
	Type  uint8
	Kind  uint8
	Value cbor.RawMessage
}

type wireItem struct {
	_     struct{} `cbor:",toarray"`
	Kind  uint8
	Value cbor.RawMessage
}

type wireEntry struct {
	_     struct{} `cbor:",toarray"`
	Key   string
	Kind  uint8
	Value cbor.RawMessage
}

type wireBag struct {
	_    struct{} `cbor:",toarray"`
	ID   models.UUID
	RIDs []models.RecordID
}

// wireDelta is the delta of one entity: [class, [op...]].
type wireDelta struct {
	_     struct{} `cbor:",toarray"`
	Class string
	Ops   []wireOp
}

// wireOp is one change. Key names a field or a map key, Index a list or
// set position. Type is the declared type of a created or replaced field.
type wireOp struct {
	_     struct{} `cbor:",toarray"`
	Code  uint8
	Key   string
	Index int
	Type  uint8
	Kind  uint8
	Value cbor.RawMessage
}

type wireBagDelta struct {
	_       struct{} `cbor:",toarray"`
	ID      models.UUID
	Added   []models.RecordID
	Removed []models.RecordID
}

func marshal(v any) (cbor.RawMessage, error) {
	return marshaler.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	if err := unmarshaler.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", constants.ErrMalformedRecord, err)
	}
	return nil
}

func typeByID(id uint8) (models.PropertyType, error) {
	t, err := models.TypeByID(id)
	if err != nil {
		return models.TypeAny, fmt.Errorf("%w: %v", constants.ErrMalformedRecord, err)
	}
	return t, nil
}

// writer turns values into their wire form.
type writer struct {
	ctx      *codecctx.Context
	arena    *models.Arena
	visiting map[models.Handle]struct{}
}

func newWriter(ctx *codecctx.Context, arena *models.Arena) *writer {
	return &writer{ctx: ctx, arena: arena, visiting: make(map[models.Handle]struct{})}
}

func (w *writer) entity(e *models.Entity) (wireEntity, error) {
	if _, ok := w.visiting[e.Handle()]; ok {
		return wireEntity{}, fmt.Errorf("%w: entity %d", constants.ErrCyclicEmbedding, e.Handle())
	}
	w.visiting[e.Handle()] = struct{}{}
	defer delete(w.visiting, e.Handle())

	out := wireEntity{Class: e.ClassName()}
	for _, f := range e.Fields() {
		if f.Type == models.TypeTransient {
			continue
		}
		kind, raw, err := w.value(f.Name, f.Value)
		if err != nil {
			return wireEntity{}, err
		}
		out.Fields = append(out.Fields, wireField{Name: f.Name, Type: f.Type.ID(), Kind: kind.ID(), Value: raw})
	}
	return out, nil
}

// value returns the wire type and the encoding of v.
func (w *writer) value(field string, v models.Value) (models.PropertyType, cbor.RawMessage, error) {
	var payload any

	switch tv := v.(type) {
	case nil:
		return models.TypeAny, nil, nil
	case models.String:
		payload = string(tv)
	case models.Integer:
		payload = int64(tv)
	case models.Short:
		payload = int64(tv)
	case models.Long:
		payload = int64(tv)
	case models.Byte:
		payload = int64(tv)
	case models.Float:
		payload = float32(tv)
	case models.Double:
		payload = float64(tv)
	case models.Decimal:
		payload = models.DecimalString(tv.String())
	case models.Boolean:
		payload = bool(tv)
	case models.Binary:
		payload = []byte(tv)
	case models.Custom:
		payload = tv.Data
	case models.Date:
		payload = tv.Millis()
	case models.DateTime:
		payload = tv.Millis()
	case models.Link:
		payload = w.resolve(tv.RecordID)
	case models.Record:
		child, err := w.arena.Resolve(tv)
		if err != nil {
			return models.TypeAny, nil, err
		}
		if child.Identifiable() {
			raw, err := marshal(w.resolve(child.RID()))
			return models.TypeLink, raw, err
		}
		we, err := w.entity(child)
		if err != nil {
			return models.TypeAny, nil, err
		}
		payload = we
	case *models.List, *models.Set, *models.LinkList, *models.LinkSet:
		items, _ := models.Items(v)
		out, err := w.items(field, v.Type(), items)
		if err != nil {
			return models.TypeAny, nil, err
		}
		payload = out
	case *models.Map, *models.LinkMap:
		entries, _ := models.Entries(v)
		out, err := w.entries(field, v.Type(), entries)
		if err != nil {
			return models.TypeAny, nil, err
		}
		payload = out
	case *models.Bag:
		rids := tv.RIDs()
		for i, rid := range rids {
			rids[i] = w.resolve(rid)
		}
		payload = wireBag{ID: tv.ID(), RIDs: rids}
	default:
		return models.TypeAny, nil, &models.SerializationError{Field: field, Type: models.TypeOf(v), Value: v}
	}

	raw, err := marshal(payload)
	if err != nil {
		return models.TypeAny, nil, &models.SerializationError{Field: field, Type: v.Type(), Value: v, Err: err}
	}
	return v.Type(), raw, nil
}

func (w *writer) items(field string, t models.PropertyType, items []models.Value) ([]wireItem, error) {
	out := make([]wireItem, len(items))
	for i, item := range items {
		kind, raw, err := w.value(field, item)
		if err != nil {
			return nil, err
		}
		if t.IsLink() && item != nil && kind != models.TypeLink {
			return nil, &models.LinkCastError{Field: field, Index: i, Got: kind}
		}
		out[i] = wireItem{Kind: kind.ID(), Value: raw}
	}
	return out, nil
}

func (w *writer) entries(field string, t models.PropertyType, entries []models.MapEntry) ([]wireEntry, error) {
	out := make([]wireEntry, len(entries))
	for i, entry := range entries {
		kind, raw, err := w.value(field, entry.Value)
		if err != nil {
			return nil, err
		}
		if t.IsLink() && entry.Value != nil && kind != models.TypeLink {
			return nil, &models.LinkCastError{Field: field, Index: i, Got: kind}
		}
		out[i] = wireEntry{Key: entry.Key, Kind: kind.ID(), Value: raw}
	}
	return out, nil
}

func (w *writer) resolve(rid models.RecordID) models.RecordID {
	if resolved, ok := w.ctx.ResolveIdentity(rid); ok {
		return resolved
	}
	return rid
}

// reader builds values from their wire form.
type reader struct {
	ctx   *codecctx.Context
	arena *models.Arena
}

func (r *reader) entity(e *models.Entity, we wireEntity) error {
	e.SetClassName(we.Class)
	for _, f := range we.Fields {
		declared, err := typeByID(f.Type)
		if err != nil {
			return err
		}
		v, err := r.value(e, f.Kind, f.Value)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		e.SetTyped(f.Name, v, declared)
	}
	return nil
}

// value decodes a value of wire type kind. Embedded entities are created
// in the arena with owner as their owner.
func (r *reader) value(owner *models.Entity, kind uint8, raw cbor.RawMessage) (models.Value, error) {
	t, err := typeByID(kind)
	if err != nil {
		return nil, err
	}

	switch t {
	case models.TypeAny:
		return nil, nil
	case models.TypeString:
		var s string
		err = unmarshal(raw, &s)
		return models.String(s), err
	case models.TypeInteger, models.TypeShort, models.TypeLong, models.TypeByte:
		var n int64
		if err := unmarshal(raw, &n); err != nil {
			return nil, err
		}
		return models.Convert(models.Long(n), t)
	case models.TypeFloat:
		var f float32
		err = unmarshal(raw, &f)
		return models.Float(f), err
	case models.TypeDouble:
		var f float64
		err = unmarshal(raw, &f)
		return models.Double(f), err
	case models.TypeDecimal:
		var s models.DecimalString
		if err := unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return models.Convert(models.String(s), models.TypeDecimal)
	case models.TypeBoolean:
		var b bool
		err = unmarshal(raw, &b)
		return models.Boolean(b), err
	case models.TypeBinary, models.TypeCustom:
		var b []byte
		if err := unmarshal(raw, &b); err != nil {
			return nil, err
		}
		if t == models.TypeCustom {
			return models.Custom{Data: b}, nil
		}
		return models.Binary(b), nil
	case models.TypeDate, models.TypeDateTime:
		var ms int64
		if err := unmarshal(raw, &ms); err != nil {
			return nil, err
		}
		if t == models.TypeDate {
			return models.DateFromMillis(ms), nil
		}
		return models.DateTimeFromMillis(ms), nil
	case models.TypeLink:
		var rid models.RecordID
		err = unmarshal(raw, &rid)
		return models.NewLink(rid), err
	case models.TypeEmbedded:
		var we wireEntity
		if err := unmarshal(raw, &we); err != nil {
			return nil, err
		}
		child := r.arena.NewEmbedded(owner.Handle(), we.Class)
		if err := r.entity(child, we); err != nil {
			return nil, err
		}
		return child.Ref(), nil
	case models.TypeEmbeddedList, models.TypeEmbeddedSet, models.TypeLinkList, models.TypeLinkSet:
		var items []wireItem
		if err := unmarshal(raw, &items); err != nil {
			return nil, err
		}
		values := make([]models.Value, len(items))
		for i, item := range items {
			if values[i], err = r.value(owner, item.Kind, item.Value); err != nil {
				return nil, err
			}
		}
		return models.WithItems(t, values), nil
	case models.TypeEmbeddedMap, models.TypeLinkMap:
		var entries []wireEntry
		if err := unmarshal(raw, &entries); err != nil {
			return nil, err
		}
		values := make([]models.MapEntry, len(entries))
		for i, entry := range entries {
			v, err := r.value(owner, entry.Kind, entry.Value)
			if err != nil {
				return nil, err
			}
			values[i] = models.MapEntry{Key: entry.Key, Value: v}
		}
		return models.WithEntries(t, values), nil
	case models.TypeLinkBag:
		var wb wireBag
		if err := unmarshal(raw, &wb); err != nil {
			return nil, err
		}
		bag := models.NewBag(wb.RIDs...)
		bag.SetID(wb.ID)
		return bag, nil
	}
	return nil, fmt.Errorf("%w: unexpected value type %s", constants.ErrMalformedRecord, t)
}
