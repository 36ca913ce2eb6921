package models

import (
	"bytes"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/surrealdb/recordcodec/pkg/constants"
)

// Value is a field value. It is a closed union: every storable
// PropertyType has exactly one implementation in this package, and a nil
// Value is a stored null.
//
//	STRING       String       EMBEDDED      Record
//	INTEGER      Integer      EMBEDDEDLIST  *List
//	SHORT        Short        EMBEDDEDSET   *Set
//	LONG         Long         EMBEDDEDMAP   *Map
//	BYTE         Byte         LINK          Link (or Record)
//	FLOAT        Float        LINKLIST      *LinkList
//	DOUBLE       Double       LINKSET       *LinkSet
//	DECIMAL      Decimal      LINKMAP       *LinkMap
//	BOOLEAN      Boolean      LINKBAG       *Bag
//	DATE         Date         CUSTOM        Custom
//	DATETIME     DateTime
//	BINARY       Binary
//
// A Record refers to another entity of the same arena. Whether it is
// written as EMBEDDED or LINK depends on the referenced entity, see
// Entity.Identifiable.
type Value interface {
	Type() PropertyType
	isValue()
}

type (
	String   string
	Integer  int32
	Short    int16
	Long     int64
	Byte     int8
	Float    float32
	Double   float64
	Boolean  bool
	Binary   []byte
	Decimal  struct{ decimal.Decimal }
	Date     struct{ time.Time }
	DateTime struct{ time.Time }
	Link     struct{ RecordID }
	Record   struct{ Handle Handle }
	Custom   struct{ Data []byte }
)

func (String) Type() PropertyType   { return TypeString }
func (Integer) Type() PropertyType  { return TypeInteger }
func (Short) Type() PropertyType    { return TypeShort }
func (Long) Type() PropertyType     { return TypeLong }
func (Byte) Type() PropertyType     { return TypeByte }
func (Float) Type() PropertyType    { return TypeFloat }
func (Double) Type() PropertyType   { return TypeDouble }
func (Boolean) Type() PropertyType  { return TypeBoolean }
func (Binary) Type() PropertyType   { return TypeBinary }
func (Decimal) Type() PropertyType  { return TypeDecimal }
func (Date) Type() PropertyType     { return TypeDate }
func (DateTime) Type() PropertyType { return TypeDateTime }
func (Link) Type() PropertyType     { return TypeLink }
func (Record) Type() PropertyType   { return TypeEmbedded }
func (Custom) Type() PropertyType   { return TypeCustom }

func (String) isValue()   {}
func (Integer) isValue()  {}
func (Short) isValue()    {}
func (Long) isValue()     {}
func (Byte) isValue()     {}
func (Float) isValue()    {}
func (Double) isValue()   {}
func (Boolean) isValue()  {}
func (Binary) isValue()   {}
func (Decimal) isValue()  {}
func (Date) isValue()     {}
func (DateTime) isValue() {}
func (Link) isValue()     {}
func (Record) isValue()   {}
func (Custom) isValue()   {}

// NewDecimal wraps d.
func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{Decimal: d}
}

// NewDate truncates t to midnight UTC.
func NewDate(t time.Time) Date {
	u := t.UTC()
	return Date{Time: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// DateFromMillis builds a Date from epoch milliseconds.
func DateFromMillis(ms int64) Date {
	return NewDate(time.UnixMilli(ms))
}

// Millis returns the epoch milliseconds of the date.
func (d Date) Millis() int64 {
	return d.UnixMilli()
}

// Days returns the number of whole days since the epoch.
func (d Date) Days() int64 {
	ms := d.UnixMilli()
	days := ms / constants.MillisPerDay
	if ms%constants.MillisPerDay < 0 {
		days--
	}
	return days
}

// NewDateTime truncates t to millisecond precision in UTC.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: time.UnixMilli(t.UnixMilli()).UTC()}
}

func DateTimeFromMillis(ms int64) DateTime {
	return DateTime{Time: time.UnixMilli(ms).UTC()}
}

func (d DateTime) Millis() int64 {
	return d.UnixMilli()
}

func NewLink(rid RecordID) Link {
	return Link{RecordID: rid}
}

// Equal reports whether two values hold the same logical content.
// Records are equal when they refer to the same handle.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}

	switch av := a.(type) {
	case Binary:
		return bytes.Equal(av, b.(Binary))
	case Custom:
		return bytes.Equal(av.Data, b.(Custom).Data)
	case Decimal:
		return av.Equal(b.(Decimal).Decimal)
	case Date:
		return av.Equal(b.(Date).Time)
	case DateTime:
		return av.Equal(b.(DateTime).Time)
	case *List:
		return equalItems(av.Items, b.(*List).Items)
	case *Set:
		return equalItems(av.Items, b.(*Set).Items)
	case *LinkList:
		return equalItems(av.Items, b.(*LinkList).Items)
	case *LinkSet:
		return equalItems(av.Items, b.(*LinkSet).Items)
	case *Map:
		return equalEntries(av.Entries, b.(*Map).Entries)
	case *LinkMap:
		return equalEntries(av.Entries, b.(*LinkMap).Entries)
	case *Bag:
		return av.Equal(b.(*Bag))
	}

	return a == b
}

func equalItems(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalEntries(a, b []MapEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key || !Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

// CloneValue returns a copy of v that shares no mutable state with it.
// Records are copied by handle.
func CloneValue(v Value) Value {
	switch tv := v.(type) {
	case Binary:
		return Binary(bytes.Clone(tv))
	case Custom:
		return Custom{Data: bytes.Clone(tv.Data)}
	case *List:
		return &List{Items: cloneItems(tv.Items)}
	case *Set:
		return &Set{Items: cloneItems(tv.Items)}
	case *LinkList:
		return &LinkList{Items: cloneItems(tv.Items)}
	case *LinkSet:
		return &LinkSet{Items: cloneItems(tv.Items)}
	case *Map:
		return &Map{Entries: cloneEntries(tv.Entries)}
	case *LinkMap:
		return &LinkMap{Entries: cloneEntries(tv.Entries)}
	case *Bag:
		return tv.Clone()
	}
	return v
}

func cloneItems(items []Value) []Value {
	if items == nil {
		return nil
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = CloneValue(item)
	}
	return out
}

func cloneEntries(entries []MapEntry) []MapEntry {
	if entries == nil {
		return nil
	}
	out := make([]MapEntry, len(entries))
	for i, e := range entries {
		out[i] = MapEntry{Key: e.Key, Value: CloneValue(e.Value)}
	}
	return out
}

// TypeOf returns the natural type of v, or TypeAny for null.
func TypeOf(v Value) PropertyType {
	if v == nil {
		return TypeAny
	}
	return v.Type()
}

// FormatScalar renders a scalar in its canonical text form, without the
// type suffix used by the text codec.
func FormatScalar(v Value) (string, bool) {
	switch tv := v.(type) {
	case String:
		return string(tv), true
	case Integer:
		return strconv.FormatInt(int64(tv), 10), true
	case Short:
		return strconv.FormatInt(int64(tv), 10), true
	case Long:
		return strconv.FormatInt(int64(tv), 10), true
	case Byte:
		return strconv.FormatInt(int64(tv), 10), true
	case Float:
		return strconv.FormatFloat(float64(tv), 'f', -1, 32), true
	case Double:
		return strconv.FormatFloat(float64(tv), 'f', -1, 64), true
	case Decimal:
		return tv.String(), true
	case Boolean:
		return strconv.FormatBool(bool(tv)), true
	case Date:
		return strconv.FormatInt(tv.Millis(), 10), true
	case DateTime:
		return strconv.FormatInt(tv.Millis(), 10), true
	case Link:
		return tv.RecordID.String(), true
	}
	return "", false
}
