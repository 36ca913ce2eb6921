package models

// List is an ordered collection of embedded values.
type List struct {
	Items []Value
}

// Set is an insertion-ordered collection of distinct embedded values.
type Set struct {
	Items []Value
}

// LinkList is an ordered collection of references. Items are Link or
// Record values.
type LinkList struct {
	Items []Value
}

// LinkSet is an insertion-ordered collection of distinct references.
type LinkSet struct {
	Items []Value
}

// MapEntry is one key of a Map or LinkMap.
type MapEntry struct {
	Key   string
	Value Value
}

// Map is a string-keyed collection of embedded values that keeps keys in
// insertion order.
type Map struct {
	Entries []MapEntry
}

// LinkMap is a string-keyed collection of references.
type LinkMap struct {
	Entries []MapEntry
}

func (*List) Type() PropertyType     { return TypeEmbeddedList }
func (*Set) Type() PropertyType      { return TypeEmbeddedSet }
func (*LinkList) Type() PropertyType { return TypeLinkList }
func (*LinkSet) Type() PropertyType  { return TypeLinkSet }
func (*Map) Type() PropertyType      { return TypeEmbeddedMap }
func (*LinkMap) Type() PropertyType  { return TypeLinkMap }

func (*List) isValue()     {}
func (*Set) isValue()      {}
func (*LinkList) isValue() {}
func (*LinkSet) isValue()  {}
func (*Map) isValue()      {}
func (*LinkMap) isValue()  {}

func NewList(items ...Value) *List {
	return &List{Items: items}
}

// NewSet builds a set, dropping duplicates.
func NewSet(items ...Value) *Set {
	s := &Set{}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// NewLinkList builds a link list from record ids.
func NewLinkList(rids ...RecordID) *LinkList {
	l := &LinkList{Items: make([]Value, 0, len(rids))}
	for _, rid := range rids {
		l.Items = append(l.Items, NewLink(rid))
	}
	return l
}

func NewLinkSet(rids ...RecordID) *LinkSet {
	s := &LinkSet{}
	for _, rid := range rids {
		s.Add(NewLink(rid))
	}
	return s
}

func NewMap(entries ...MapEntry) *Map {
	m := &Map{}
	for _, e := range entries {
		m.Put(e.Key, e.Value)
	}
	return m
}

func NewLinkMap(entries ...MapEntry) *LinkMap {
	m := &LinkMap{}
	for _, e := range entries {
		m.Put(e.Key, e.Value)
	}
	return m
}

// Add appends v unless an equal item is present. It reports whether the
// set changed.
func (s *Set) Add(v Value) bool {
	if indexOf(s.Items, v) >= 0 {
		return false
	}
	s.Items = append(s.Items, v)
	return true
}

// Remove deletes the item equal to v.
func (s *Set) Remove(v Value) bool {
	var ok bool
	s.Items, ok = removeItem(s.Items, v)
	return ok
}

func (s *Set) Contains(v Value) bool {
	return indexOf(s.Items, v) >= 0
}

func (s *LinkSet) Add(v Value) bool {
	if indexOf(s.Items, v) >= 0 {
		return false
	}
	s.Items = append(s.Items, v)
	return true
}

func (s *LinkSet) Remove(v Value) bool {
	var ok bool
	s.Items, ok = removeItem(s.Items, v)
	return ok
}

func (s *LinkSet) Contains(v Value) bool {
	return indexOf(s.Items, v) >= 0
}

func (m *Map) Get(key string) (Value, bool) {
	return getEntry(m.Entries, key)
}

// Put sets key to v, keeping the key's position when it already exists.
func (m *Map) Put(key string, v Value) {
	m.Entries = putEntry(m.Entries, key, v)
}

func (m *Map) Delete(key string) bool {
	var ok bool
	m.Entries, ok = deleteEntry(m.Entries, key)
	return ok
}

func (m *LinkMap) Get(key string) (Value, bool) {
	return getEntry(m.Entries, key)
}

func (m *LinkMap) Put(key string, v Value) {
	m.Entries = putEntry(m.Entries, key, v)
}

func (m *LinkMap) Delete(key string) bool {
	var ok bool
	m.Entries, ok = deleteEntry(m.Entries, key)
	return ok
}

// Items returns the elements of any list or set value, and whether v is
// one.
func Items(v Value) ([]Value, bool) {
	switch tv := v.(type) {
	case *List:
		return tv.Items, true
	case *Set:
		return tv.Items, true
	case *LinkList:
		return tv.Items, true
	case *LinkSet:
		return tv.Items, true
	}
	return nil, false
}

// Entries returns the entries of any map value, and whether v is one.
func Entries(v Value) ([]MapEntry, bool) {
	switch tv := v.(type) {
	case *Map:
		return tv.Entries, true
	case *LinkMap:
		return tv.Entries, true
	}
	return nil, false
}

// WithItems builds a collection of type t holding items. Sets drop
// duplicates. It returns nil when t is not a list or set type.
func WithItems(t PropertyType, items []Value) Value {
	switch t {
	case TypeEmbeddedList:
		return &List{Items: items}
	case TypeLinkList:
		return &LinkList{Items: items}
	case TypeEmbeddedSet:
		s := &Set{}
		for _, item := range items {
			s.Add(item)
		}
		return s
	case TypeLinkSet:
		s := &LinkSet{}
		for _, item := range items {
			s.Add(item)
		}
		return s
	}
	return nil
}

// WithEntries builds a map of type t holding entries.
func WithEntries(t PropertyType, entries []MapEntry) Value {
	switch t {
	case TypeEmbeddedMap:
		return &Map{Entries: entries}
	case TypeLinkMap:
		return &LinkMap{Entries: entries}
	}
	return nil
}

func indexOf(items []Value, v Value) int {
	for i, item := range items {
		if Equal(item, v) {
			return i
		}
	}
	return -1
}

func removeItem(items []Value, v Value) ([]Value, bool) {
	i := indexOf(items, v)
	if i < 0 {
		return items, false
	}
	return append(items[:i:i], items[i+1:]...), true
}

func getEntry(entries []MapEntry, key string) (Value, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func putEntry(entries []MapEntry, key string, v Value) []MapEntry {
	for i := range entries {
		if entries[i].Key == key {
			entries[i].Value = v
			return entries
		}
	}
	return append(entries, MapEntry{Key: key, Value: v})
}

func deleteEntry(entries []MapEntry, key string) ([]MapEntry, bool) {
	for i := range entries {
		if entries[i].Key == key {
			return append(entries[:i:i], entries[i+1:]...), true
		}
	}
	return entries, false
}
