package delta

import (
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// keyed is the mutation API shared by Map and LinkMap.
type keyed interface {
	models.Value
	Get(key string) (models.Value, bool)
	Put(key string, v models.Value)
	Delete(key string) bool
}

// applier replays a delta on a target. Operations that do not fit the
// target, such as a position past the end of a list or a nested change of
// a missing field, are skipped with a warning.
type applier struct {
	*reader
}

func (a *applier) skip(field string, reason string) {
	a.ctx.Logger().Warn("delta operation skipped", "field", field, "reason", reason)
}

func (a *applier) entity(e *models.Entity, wd wireDelta) error {
	e.SetClassName(wd.Class)

	for _, op := range wd.Ops {
		switch op.Code {
		case opCreated, opReplaced:
			declared, err := typeByID(op.Type)
			if err != nil {
				return err
			}
			v, err := a.value(e, op.Kind, op.Value)
			if err != nil {
				return fmt.Errorf("field %q: %w", op.Key, err)
			}
			e.SetTyped(op.Key, v, declared)
		case opChanged:
			cur, ok := e.Get(op.Key)
			if !ok {
				a.skip(op.Key, "changed field is missing")
				continue
			}
			v, err := a.nested(e, op.Key, cur, op.Kind, op.Value)
			if err != nil {
				return fmt.Errorf("field %q: %w", op.Key, err)
			}
			e.Set(op.Key, v)
		case opRemoved:
			if !e.Remove(op.Key) {
				a.skip(op.Key, "removed field is missing")
			}
		default:
			return fmt.Errorf("%w: unknown delta operation %d", constants.ErrMalformedRecord, op.Code)
		}
	}
	return nil
}

// nested applies a nested delta to cur and returns the updated value.
func (a *applier) nested(owner *models.Entity, field string, cur models.Value, kind uint8, raw cbor.RawMessage) (models.Value, error) {
	t, err := typeByID(kind)
	if err != nil {
		return nil, err
	}
	if models.TypeOf(cur) != t {
		a.skip(field, fmt.Sprintf("expected %s, found %s", t, models.TypeOf(cur)))
		return cur, nil
	}

	switch tv := cur.(type) {
	case models.Record:
		var wd wireDelta
		if err := unmarshal(raw, &wd); err != nil {
			return nil, err
		}
		child, err := a.arena.Resolve(tv)
		if err != nil {
			a.skip(field, err.Error())
			return cur, nil
		}
		return cur, a.entity(child, wd)
	case *models.List, *models.LinkList, *models.Set, *models.LinkSet:
		var ops []wireOp
		if err := unmarshal(raw, &ops); err != nil {
			return nil, err
		}
		items, _ := models.Items(cur)
		items = slices.Clone(items)
		if t == models.TypeEmbeddedSet || t == models.TypeLinkSet {
			items, err = a.set(owner, field, items, ops)
		} else {
			items, err = a.list(owner, field, items, ops)
		}
		if err != nil {
			return nil, err
		}
		return models.WithItems(t, items), nil
	case *models.Map, *models.LinkMap:
		var ops []wireOp
		if err := unmarshal(raw, &ops); err != nil {
			return nil, err
		}
		entries, _ := models.Entries(cur)
		m := models.WithEntries(t, slices.Clone(entries)).(keyed)
		return m, a.entries(owner, field, m, ops)
	case *models.Bag:
		var bd wireBagDelta
		if err := unmarshal(raw, &bd); err != nil {
			return nil, err
		}
		// Bag ids are not part of the text form, so a target decoded from
		// text carries a fresh one. Adopt the sender's id and apply the
		// link changes to whatever bag is present.
		tv.SetID(bd.ID)
		for _, rid := range bd.Removed {
			if !tv.Remove(rid) {
				a.skip(field, fmt.Sprintf("bag does not contain %s", rid))
			}
		}
		for _, rid := range bd.Added {
			tv.Add(rid)
		}
		return tv, nil
	}

	a.skip(field, fmt.Sprintf("%s has no nested delta", t))
	return cur, nil
}

func (a *applier) list(owner *models.Entity, field string, items []models.Value, ops []wireOp) ([]models.Value, error) {
	for _, op := range ops {
		switch op.Code {
		case opReplaced, opChanged:
			if op.Index < 0 || op.Index >= len(items) {
				a.skip(field, fmt.Sprintf("position %d is out of range", op.Index))
				continue
			}
			var (
				v   models.Value
				err error
			)
			if op.Code == opReplaced {
				v, err = a.value(owner, op.Kind, op.Value)
			} else {
				v, err = a.nested(owner, field, items[op.Index], op.Kind, op.Value)
			}
			if err != nil {
				return nil, err
			}
			items[op.Index] = v
		case opCreated:
			v, err := a.value(owner, op.Kind, op.Value)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		case opRemoved:
			if op.Index < 0 || op.Index >= len(items) {
				a.skip(field, fmt.Sprintf("position %d is out of range", op.Index))
				continue
			}
			items = slices.Delete(items, op.Index, op.Index+1)
		default:
			return nil, fmt.Errorf("%w: unknown list operation %d", constants.ErrMalformedRecord, op.Code)
		}
	}
	return items, nil
}

func (a *applier) set(owner *models.Entity, field string, items []models.Value, ops []wireOp) ([]models.Value, error) {
	for _, op := range ops {
		switch op.Code {
		case opChanged:
			if op.Index < 0 || op.Index >= len(items) {
				a.skip(field, fmt.Sprintf("position %d is out of range", op.Index))
				continue
			}
			v, err := a.nested(owner, field, items[op.Index], op.Kind, op.Value)
			if err != nil {
				return nil, err
			}
			items[op.Index] = v
		case opRemoved:
			i := op.Index
			if op.Kind != models.TypeEmbedded.ID() {
				v, err := a.value(owner, op.Kind, op.Value)
				if err != nil {
					return nil, err
				}
				i = indexOf(items, v)
			}
			if i < 0 || i >= len(items) {
				a.skip(field, "removed element is missing")
				continue
			}
			items = slices.Delete(items, i, i+1)
		case opCreated:
			v, err := a.value(owner, op.Kind, op.Value)
			if err != nil {
				return nil, err
			}
			if indexOf(items, v) < 0 {
				items = append(items, v)
			}
		default:
			return nil, fmt.Errorf("%w: unknown set operation %d", constants.ErrMalformedRecord, op.Code)
		}
	}
	return items, nil
}

func (a *applier) entries(owner *models.Entity, field string, m keyed, ops []wireOp) error {
	for _, op := range ops {
		switch op.Code {
		case opCreated, opReplaced:
			v, err := a.value(owner, op.Kind, op.Value)
			if err != nil {
				return err
			}
			m.Put(op.Key, v)
		case opChanged:
			cur, ok := m.Get(op.Key)
			if !ok {
				a.skip(field, fmt.Sprintf("key %q is missing", op.Key))
				continue
			}
			v, err := a.nested(owner, field, cur, op.Kind, op.Value)
			if err != nil {
				return err
			}
			m.Put(op.Key, v)
		case opRemoved:
			if !m.Delete(op.Key) {
				a.skip(field, fmt.Sprintf("key %q is missing", op.Key))
			}
		default:
			return fmt.Errorf("%w: unknown map operation %d", constants.ErrMalformedRecord, op.Code)
		}
	}
	return nil
}
