package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var errOutOfRange = errors.New("value out of range")

// Convert returns v expressed as type t. Collections are converted between
// their embedded and link flavours without inspecting the elements.
func Convert(v Value, t PropertyType) (Value, error) {
	if v == nil || !t.Declared() || v.Type() == t {
		return v, nil
	}

	var (
		out Value
		err error
	)
	switch t {
	case TypeInteger, TypeShort, TypeLong, TypeByte:
		out, err = toInteger(v, t)
	case TypeFloat, TypeDouble:
		out, err = toFloat(v, t)
	case TypeDecimal:
		out, err = toDecimal(v)
	case TypeString:
		if s, ok := FormatScalar(v); ok {
			out = String(s)
		}
	case TypeBoolean:
		out, err = toBoolean(v)
	case TypeDate, TypeDateTime:
		out, err = toTemporal(v, t)
	case TypeBinary:
		switch tv := v.(type) {
		case String:
			out = Binary(tv)
		case Custom:
			out = Binary(tv.Data)
		}
	case TypeCustom:
		if b, ok := v.(Binary); ok {
			out = Custom{Data: b}
		}
	case TypeLink:
		switch tv := v.(type) {
		case Record:
			out = tv
		case String:
			var rid RecordID
			rid, err = ParseRecordID(string(tv))
			out = NewLink(rid)
		}
	case TypeEmbedded:
		if r, ok := v.(Record); ok {
			out = r
		}
	case TypeEmbeddedList, TypeEmbeddedSet, TypeLinkList, TypeLinkSet:
		if items, ok := Items(v); ok {
			out = WithItems(t, append([]Value(nil), items...))
		} else if b, ok := v.(*Bag); ok {
			out = WithItems(t, linksOf(b.RIDs()))
		}
	case TypeEmbeddedMap, TypeLinkMap:
		if entries, ok := Entries(v); ok {
			out = WithEntries(t, append([]MapEntry(nil), entries...))
		}
	case TypeLinkBag:
		out, err = toBag(v)
	}

	if err != nil {
		return nil, fmt.Errorf("cannot convert %s to %s: %w", v.Type(), t, err)
	}
	if out == nil {
		return nil, fmt.Errorf("cannot convert %s to %s", v.Type(), t)
	}
	return out, nil
}

func linksOf(rids []RecordID) []Value {
	out := make([]Value, len(rids))
	for i, rid := range rids {
		out[i] = NewLink(rid)
	}
	return out
}

func toBag(v Value) (Value, error) {
	items, ok := Items(v)
	if !ok {
		return nil, nil
	}
	bag := NewBag()
	for _, item := range items {
		link, ok := item.(Link)
		if !ok {
			return nil, fmt.Errorf("bag element of type %s", TypeOf(item))
		}
		bag.Add(link.RecordID)
	}
	return bag, nil
}

func asInt64(v Value) (int64, bool) {
	switch tv := v.(type) {
	case Integer:
		return int64(tv), true
	case Short:
		return int64(tv), true
	case Long:
		return int64(tv), true
	case Byte:
		return int64(tv), true
	case Date:
		return tv.Millis(), true
	case DateTime:
		return tv.Millis(), true
	}
	return 0, false
}

func asFloat64(v Value) (float64, bool) {
	switch tv := v.(type) {
	case Float:
		return float64(tv), true
	case Double:
		return float64(tv), true
	}
	if i, ok := asInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toInteger(v Value, t PropertyType) (Value, error) {
	var n int64
	switch tv := v.(type) {
	case Float, Double:
		f, _ := asFloat64(tv)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errOutOfRange
		}
		n = int64(f)
	case Decimal:
		n = tv.IntPart()
	case Boolean:
		if tv {
			n = 1
		}
	case String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(string(tv)), 10, 64)
		if err != nil {
			return nil, err
		}
		n = parsed
	default:
		i, ok := asInt64(v)
		if !ok {
			return nil, nil
		}
		n = i
	}

	switch t {
	case TypeInteger:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, errOutOfRange
		}
		return Integer(n), nil
	case TypeShort:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, errOutOfRange
		}
		return Short(n), nil
	case TypeByte:
		if n < math.MinInt8 || n > math.MaxInt8 {
			return nil, errOutOfRange
		}
		return Byte(n), nil
	}
	return Long(n), nil
}

func toFloat(v Value, t PropertyType) (Value, error) {
	var f float64
	switch tv := v.(type) {
	case Decimal:
		f = tv.InexactFloat64()
	case String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(string(tv)), 64)
		if err != nil {
			return nil, err
		}
		f = parsed
	default:
		x, ok := asFloat64(v)
		if !ok {
			return nil, nil
		}
		f = x
	}
	if t == TypeFloat {
		return Float(f), nil
	}
	return Double(f), nil
}

func toDecimal(v Value) (Value, error) {
	switch tv := v.(type) {
	case Float:
		return NewDecimal(decimal.NewFromFloat32(float32(tv))), nil
	case Double:
		return NewDecimal(decimal.NewFromFloat(float64(tv))), nil
	case String:
		d, err := decimal.NewFromString(strings.TrimSpace(string(tv)))
		if err != nil {
			return nil, err
		}
		return NewDecimal(d), nil
	}
	if i, ok := asInt64(v); ok {
		return NewDecimal(decimal.NewFromInt(i)), nil
	}
	return nil, nil
}

func toBoolean(v Value) (Value, error) {
	if s, ok := v.(String); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(string(s)))
		if err != nil {
			return nil, err
		}
		return Boolean(b), nil
	}
	if i, ok := asInt64(v); ok {
		return Boolean(i != 0), nil
	}
	return nil, nil
}

func toTemporal(v Value, t PropertyType) (Value, error) {
	var ms int64
	switch tv := v.(type) {
	case String:
		parsed, err := strconv.ParseInt(strings.TrimSpace(string(tv)), 10, 64)
		if err != nil {
			return nil, err
		}
		ms = parsed
	default:
		i, ok := asInt64(v)
		if !ok {
			return nil, nil
		}
		ms = i
	}
	if t == TypeDate {
		return DateFromMillis(ms), nil
	}
	return DateTimeFromMillis(ms), nil
}
