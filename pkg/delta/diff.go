package delta

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// change is the outcome of diffing one value against its baseline.
type change struct {
	code uint8
	kind models.PropertyType
	raw  cbor.RawMessage
}

// differ computes deltas. Full values are written through the embedded
// writer, so pending identities resolve the same way in both forms.
type differ struct {
	*writer
}

func (d *differ) entity(e *models.Entity) (wireDelta, error) {
	if _, ok := d.visiting[e.Handle()]; ok {
		return wireDelta{}, fmt.Errorf("%w: entity %d", constants.ErrCyclicEmbedding, e.Handle())
	}
	d.visiting[e.Handle()] = struct{}{}
	defer delete(d.visiting, e.Handle())

	var previous []models.Field
	if base, ok := e.Baseline(); ok {
		previous = base.Fields
	}
	old := make(map[string]models.Field, len(previous))
	for _, f := range previous {
		old[f.Name] = f
	}

	out := wireDelta{Class: e.ClassName()}
	for _, f := range e.Fields() {
		if f.Type == models.TypeTransient {
			continue
		}
		prev, existed := old[f.Name]
		delete(old, f.Name)

		if existed && prev.Type == f.Type {
			c, changed, err := d.value(f.Name, prev.Value, f.Value)
			if err != nil {
				return wireDelta{}, err
			}
			if changed {
				out.Ops = append(out.Ops, wireOp{Code: c.code, Key: f.Name, Type: f.Type.ID(), Kind: c.kind.ID(), Value: c.raw})
			}
			continue
		}

		code := opCreated
		if existed {
			code = opReplaced
		}
		kind, raw, err := d.writer.value(f.Name, f.Value)
		if err != nil {
			return wireDelta{}, err
		}
		out.Ops = append(out.Ops, wireOp{Code: code, Key: f.Name, Type: f.Type.ID(), Kind: kind.ID(), Value: raw})
	}

	for _, f := range previous {
		if _, gone := old[f.Name]; gone && f.Type != models.TypeTransient {
			out.Ops = append(out.Ops, wireOp{Code: opRemoved, Key: f.Name})
		}
	}
	return out, nil
}

// value diffs cur against prev. A nested delta is produced for the same
// embedded entity, for collections of the same type and for the same bag;
// anything else that differs is replaced.
func (d *differ) value(field string, prev, cur models.Value) (change, bool, error) {
	if models.TypeOf(prev) != models.TypeOf(cur) {
		return d.replace(field, cur)
	}

	var (
		nested any
		empty  bool
	)
	switch tv := cur.(type) {
	case models.Record:
		if prev.(models.Record).Handle != tv.Handle {
			return d.replace(field, cur)
		}
		child, err := d.arena.Resolve(tv)
		if err != nil {
			return change{}, false, err
		}
		if child.Identifiable() {
			return change{}, false, nil
		}
		base, ok := child.Baseline()
		if !ok {
			return d.replace(field, cur)
		}
		wd, err := d.entity(child)
		if err != nil {
			return change{}, false, err
		}
		nested, empty = wd, len(wd.Ops) == 0 && base.Class == child.ClassName()
	case *models.List, *models.LinkList:
		before, _ := models.Items(prev)
		after, _ := models.Items(cur)
		ops, err := d.list(field, before, after)
		if err != nil {
			return change{}, false, err
		}
		nested, empty = ops, len(ops) == 0
	case *models.Set, *models.LinkSet:
		before, _ := models.Items(prev)
		after, _ := models.Items(cur)
		ops, err := d.set(field, before, after)
		if err != nil {
			return change{}, false, err
		}
		nested, empty = ops, len(ops) == 0
	case *models.Map, *models.LinkMap:
		before, _ := models.Entries(prev)
		after, _ := models.Entries(cur)
		ops, err := d.entries(field, before, after)
		if err != nil {
			return change{}, false, err
		}
		nested, empty = ops, len(ops) == 0
	case *models.Bag:
		old := prev.(*models.Bag)
		if old.ID() != tv.ID() {
			return d.replace(field, cur)
		}
		added, removed := tv.Diff(old)
		for i, rid := range added {
			added[i] = d.resolve(rid)
		}
		nested = wireBagDelta{ID: tv.ID(), Added: added, Removed: removed}
		empty = len(added) == 0 && len(removed) == 0
	default:
		if models.Equal(prev, cur) {
			return change{}, false, nil
		}
		return d.replace(field, cur)
	}

	if empty {
		return change{}, false, nil
	}
	raw, err := marshal(nested)
	if err != nil {
		return change{}, false, &models.SerializationError{Field: field, Type: cur.Type(), Value: cur, Err: err}
	}
	return change{code: opChanged, kind: cur.Type(), raw: raw}, true, nil
}

func (d *differ) replace(field string, cur models.Value) (change, bool, error) {
	kind, raw, err := d.writer.value(field, cur)
	if err != nil {
		return change{}, false, err
	}
	return change{code: opReplaced, kind: kind, raw: raw}, true, nil
}

func (d *differ) full(code uint8, field string, v models.Value) (wireOp, error) {
	kind, raw, err := d.writer.value(field, v)
	if err != nil {
		return wireOp{}, err
	}
	return wireOp{Code: code, Kind: kind.ID(), Value: raw}, nil
}

// list diffs positionally: common positions are replaced or changed in
// place, new trailing items are appended and missing trailing items are
// removed from the end.
func (d *differ) list(field string, before, after []models.Value) ([]wireOp, error) {
	var ops []wireOp
	common := min(len(before), len(after))
	for i := 0; i < common; i++ {
		c, changed, err := d.value(field, before[i], after[i])
		if err != nil {
			return nil, err
		}
		if changed {
			ops = append(ops, wireOp{Code: c.code, Index: i, Kind: c.kind.ID(), Value: c.raw})
		}
	}
	for i := common; i < len(after); i++ {
		op, err := d.full(opCreated, field, after[i])
		if err != nil {
			return nil, err
		}
		op.Index = i
		ops = append(ops, op)
	}
	for i := len(before) - 1; i >= common; i-- {
		ops = append(ops, wireOp{Code: opRemoved, Index: i})
	}
	return ops, nil
}

// set diffs by value. Embedded entities kept in the set are changed in
// place at their baseline position, then removed values are listed from
// the highest baseline position down, then added values.
func (d *differ) set(field string, before, after []models.Value) ([]wireOp, error) {
	var ops []wireOp
	for i, item := range before {
		rec, ok := item.(models.Record)
		if !ok {
			continue
		}
		j := indexOf(after, rec)
		if j < 0 {
			continue
		}
		c, changed, err := d.value(field, item, after[j])
		if err != nil {
			return nil, err
		}
		if changed {
			ops = append(ops, wireOp{Code: c.code, Index: i, Kind: c.kind.ID(), Value: c.raw})
		}
	}
	for i := len(before) - 1; i >= 0; i-- {
		if indexOf(after, before[i]) >= 0 {
			continue
		}
		op := wireOp{Code: opRemoved, Index: i, Kind: models.TypeOf(before[i]).ID()}
		if _, embedded := before[i].(models.Record); !embedded {
			full, err := d.full(opRemoved, field, before[i])
			if err != nil {
				return nil, err
			}
			op.Kind, op.Value = full.Kind, full.Value
		}
		ops = append(ops, op)
	}
	for _, item := range after {
		if indexOf(before, item) >= 0 {
			continue
		}
		op, err := d.full(opCreated, field, item)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// entries diffs maps by key.
func (d *differ) entries(field string, before, after []models.MapEntry) ([]wireOp, error) {
	old := make(map[string]models.Value, len(before))
	for _, entry := range before {
		old[entry.Key] = entry.Value
	}

	var ops []wireOp
	for _, entry := range after {
		prev, existed := old[entry.Key]
		delete(old, entry.Key)
		if !existed {
			op, err := d.full(opCreated, field, entry.Value)
			if err != nil {
				return nil, err
			}
			op.Key = entry.Key
			ops = append(ops, op)
			continue
		}
		c, changed, err := d.value(field, prev, entry.Value)
		if err != nil {
			return nil, err
		}
		if changed {
			ops = append(ops, wireOp{Code: c.code, Key: entry.Key, Kind: c.kind.ID(), Value: c.raw})
		}
	}
	for _, entry := range before {
		if _, gone := old[entry.Key]; gone {
			ops = append(ops, wireOp{Code: opRemoved, Key: entry.Key})
		}
	}
	return ops, nil
}

func indexOf(items []models.Value, v models.Value) int {
	for i, item := range items {
		if models.Equal(item, v) {
			return i
		}
	}
	return -1
}
