package models

import (
	"fmt"
	"maps"
	"slices"

	"github.com/surrealdb/recordcodec/pkg/constants"
)

// Handle addresses an entity inside its Arena.
type Handle int32

// NoHandle is the owner of top-level entities.
const NoHandle Handle = -1

// Arena owns a tree of entities. Embedded entities point at their owner
// through a Handle, never through a pointer, so the graph can be copied
// and walked without reference cycles.
//
// An Arena is not safe for concurrent mutation.
type Arena struct {
	entities []*Entity
}

func NewArena() *Arena {
	return &Arena{}
}

// New creates a top-level entity of the given class. className may be
// empty for schemaless entities.
func (a *Arena) New(className string) *Entity {
	return a.add(&Entity{class: className, rid: UnresolvedRecordID, owner: NoHandle})
}

// NewEmbedded creates an entity owned by owner.
func (a *Arena) NewEmbedded(owner Handle, className string) *Entity {
	return a.add(&Entity{class: className, rid: UnresolvedRecordID, owner: owner, embedded: true})
}

func (a *Arena) add(e *Entity) *Entity {
	e.arena = a
	e.handle = Handle(len(a.entities))
	a.entities = append(a.entities, e)
	return e
}

// Get returns the entity stored under h.
func (a *Arena) Get(h Handle) (*Entity, bool) {
	if h < 0 || int(h) >= len(a.entities) {
		return nil, false
	}
	return a.entities[h], true
}

// Resolve returns the entity a Record refers to.
func (a *Arena) Resolve(r Record) (*Entity, error) {
	e, ok := a.Get(r.Handle)
	if !ok {
		return nil, fmt.Errorf("%w: %d", constants.ErrUnknownHandle, r.Handle)
	}
	return e, nil
}

func (a *Arena) Len() int {
	return len(a.entities)
}

// Clone returns an independent copy of the arena. Handles are preserved,
// so a Record valid in a is valid in the copy.
func (a *Arena) Clone() *Arena {
	out := &Arena{entities: make([]*Entity, len(a.entities))}
	for i, e := range a.entities {
		c := &Entity{
			arena:    out,
			handle:   e.handle,
			class:    e.class,
			rid:      e.rid,
			embedded: e.embedded,
			owner:    e.owner,
			fields:   cloneFields(e.fields),
			declared: maps.Clone(e.declared),
		}
		if e.baseline != nil {
			c.baseline = &Baseline{Class: e.baseline.Class, Fields: cloneFields(e.baseline.Fields)}
		}
		c.reindex()
		out.entities[i] = c
	}
	return out
}

// Field is one entry of an entity.
type Field struct {
	Name  string
	Value Value
	Type  PropertyType
}

// Baseline is the state an entity had when it was last marked clean.
type Baseline struct {
	Class  string
	Fields []Field
}

// Field returns the baseline field named name.
func (b *Baseline) Field(name string) (Field, bool) {
	for _, f := range b.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Entity is an insertion-ordered set of fields, optionally tagged with a
// class name.
type Entity struct {
	arena    *Arena
	handle   Handle
	class    string
	rid      RecordID
	embedded bool
	owner    Handle

	fields   []Field
	index    map[string]int
	declared map[string]PropertyType

	baseline *Baseline
}

func (e *Entity) Arena() *Arena {
	return e.arena
}

func (e *Entity) Handle() Handle {
	return e.handle
}

// Ref returns a Record value pointing at e.
func (e *Entity) Ref() Record {
	return Record{Handle: e.handle}
}

func (e *Entity) ClassName() string {
	return e.class
}

func (e *Entity) SetClassName(name string) {
	e.class = name
}

// RID returns the identity of a top-level entity.
func (e *Entity) RID() RecordID {
	return e.rid
}

// SetRID assigns the identity. Embedded entities cannot carry one.
func (e *Entity) SetRID(rid RecordID) error {
	if e.embedded {
		return fmt.Errorf("%w: embedded entity cannot have identity %s", constants.ErrInvalidRecordID, rid)
	}
	e.rid = rid
	return nil
}

func (e *Entity) IsEmbedded() bool {
	return e.embedded
}

// Owner returns the handle of the entity that embeds e.
func (e *Entity) Owner() (Handle, bool) {
	return e.owner, e.owner != NoHandle
}

// SetOwner marks e as embedded in owner and drops any identity it had.
func (e *Entity) SetOwner(owner Handle) {
	e.owner = owner
	e.embedded = true
	e.rid = UnresolvedRecordID
}

// Identifiable reports whether e should be referenced by its identity
// rather than embedded.
func (e *Entity) Identifiable() bool {
	return !e.embedded && e.rid.IsValid()
}

func (e *Entity) Len() int {
	return len(e.fields)
}

// Names returns the field names in insertion order.
func (e *Entity) Names() []string {
	names := make([]string, len(e.fields))
	for i, f := range e.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the fields in insertion order.
func (e *Entity) Fields() []Field {
	return slices.Clone(e.fields)
}

func (e *Entity) Has(name string) bool {
	_, ok := e.index[name]
	return ok
}

func (e *Entity) Get(name string) (Value, bool) {
	i, ok := e.index[name]
	if !ok {
		return nil, false
	}
	return e.fields[i].Value, true
}

// Field returns the full entry for name.
func (e *Entity) Field(name string) (Field, bool) {
	i, ok := e.index[name]
	if !ok {
		return Field{}, false
	}
	return e.fields[i], true
}

// Set stores v under name, keeping the declared type of an existing field.
func (e *Entity) Set(name string, v Value) {
	if i, ok := e.index[name]; ok {
		e.fields[i].Value = v
	} else {
		e.append(Field{Name: name, Value: v})
	}
	e.adopt(v)
}

// SetTyped stores v under name and declares its type.
func (e *Entity) SetTyped(name string, v Value, t PropertyType) {
	if i, ok := e.index[name]; ok {
		e.fields[i].Value = v
		e.fields[i].Type = t
	} else {
		e.append(Field{Name: name, Value: v, Type: t})
	}
	e.adopt(v)
}

// Type returns the declared type of name, TypeAny when none. Types
// declared with Declare for absent fields are reported too.
func (e *Entity) Type(name string) PropertyType {
	i, ok := e.index[name]
	if !ok {
		return e.declared[name]
	}
	return e.fields[i].Type
}

// Declare sets the type of name whether or not the field exists yet. A
// field set later without a type takes the declared one.
func (e *Entity) Declare(name string, t PropertyType) {
	if e.SetType(name, t) {
		return
	}
	if e.declared == nil {
		e.declared = make(map[string]PropertyType)
	}
	e.declared[name] = t
}

// SetType declares the type of an existing field.
func (e *Entity) SetType(name string, t PropertyType) bool {
	i, ok := e.index[name]
	if !ok {
		return false
	}
	e.fields[i].Type = t
	return true
}

func (e *Entity) ClearType(name string) {
	e.SetType(name, TypeAny)
}

// Remove deletes name and reports whether it was present.
func (e *Entity) Remove(name string) bool {
	i, ok := e.index[name]
	if !ok {
		return false
	}
	e.fields = slices.Delete(e.fields, i, i+1)
	e.reindex()
	return true
}

// Clear removes every field.
func (e *Entity) Clear() {
	e.fields = nil
	e.index = nil
}

// Baseline returns the snapshot taken by the last MarkClean.
func (e *Entity) Baseline() (*Baseline, bool) {
	return e.baseline, e.baseline != nil
}

// MarkClean snapshots e and every entity it embeds as the baseline for the
// next delta.
func (e *Entity) MarkClean() {
	e.walkEmbedded(func(x *Entity) {
		x.baseline = &Baseline{Class: x.class, Fields: cloneFields(x.fields)}
	})
}

// Embedded returns e and its embedded descendants in depth-first order.
// Each entity is visited once even if the graph contains a cycle.
func (e *Entity) Embedded() []*Entity {
	var out []*Entity
	e.walkEmbedded(func(x *Entity) { out = append(out, x) })
	return out
}

func (e *Entity) walkEmbedded(fn func(*Entity)) {
	visited := make(map[Handle]struct{})
	var walk func(x *Entity)
	var walkValue func(v Value)
	walkValue = func(v Value) {
		switch tv := v.(type) {
		case Record:
			child, ok := e.arena.Get(tv.Handle)
			if ok && child.embedded {
				walk(child)
			}
		case *List, *Set, *LinkList, *LinkSet:
			items, _ := Items(tv)
			for _, item := range items {
				walkValue(item)
			}
		case *Map, *LinkMap:
			entries, _ := Entries(tv)
			for _, entry := range entries {
				walkValue(entry.Value)
			}
		}
	}
	walk = func(x *Entity) {
		if _, ok := visited[x.handle]; ok {
			return
		}
		visited[x.handle] = struct{}{}
		fn(x)
		for _, f := range x.fields {
			walkValue(f.Value)
		}
	}
	walk(e)
}

func (e *Entity) append(f Field) {
	if t, ok := e.declared[f.Name]; ok {
		if !f.Type.Declared() {
			f.Type = t
		}
		delete(e.declared, f.Name)
	}
	if e.index == nil {
		e.index = make(map[string]int)
	}
	e.index[f.Name] = len(e.fields)
	e.fields = append(e.fields, f)
}

func (e *Entity) reindex() {
	e.index = make(map[string]int, len(e.fields))
	for i, f := range e.fields {
		e.index[f.Name] = i
	}
}

// adopt attaches embedded entities referenced by v to e.
func (e *Entity) adopt(v Value) {
	if e.arena == nil {
		return
	}
	switch tv := v.(type) {
	case Record:
		if child, ok := e.arena.Get(tv.Handle); ok && child.embedded && child.handle != e.handle {
			child.owner = e.handle
		}
	case *List:
		for _, item := range tv.Items {
			e.adopt(item)
		}
	case *Set:
		for _, item := range tv.Items {
			e.adopt(item)
		}
	case *Map:
		for _, entry := range tv.Entries {
			e.adopt(entry.Value)
		}
	}
}

func cloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{Name: f.Name, Value: CloneValue(f.Value), Type: f.Type}
	}
	return out
}
