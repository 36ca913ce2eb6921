package models

import (
	"fmt"
	"strings"

	"github.com/surrealdb/recordcodec/pkg/constants"
	"gopkg.in/yaml.v3"
)

// PropertyType is the logical type of a field value.
//
// The zero value is TypeAny, which means no type has been declared.
type PropertyType uint8

const (
	TypeAny PropertyType = iota
	TypeBoolean
	TypeInteger
	TypeShort
	TypeLong
	TypeFloat
	TypeDouble
	TypeDateTime
	TypeString
	TypeBinary
	TypeEmbedded
	TypeEmbeddedList
	TypeEmbeddedSet
	TypeEmbeddedMap
	TypeLink
	TypeLinkList
	TypeLinkSet
	TypeLinkMap
	TypeByte
	TypeTransient
	TypeDate
	TypeCustom
	TypeDecimal
	TypeLinkBag
)

type typeInfo struct {
	name string
	id   uint8
}

var typeInfos = [...]typeInfo{
	TypeAny:          {"ANY", 23},
	TypeBoolean:      {"BOOLEAN", 0},
	TypeInteger:      {"INTEGER", 1},
	TypeShort:        {"SHORT", 2},
	TypeLong:         {"LONG", 3},
	TypeFloat:        {"FLOAT", 4},
	TypeDouble:       {"DOUBLE", 5},
	TypeDateTime:     {"DATETIME", 6},
	TypeString:       {"STRING", 7},
	TypeBinary:       {"BINARY", 8},
	TypeEmbedded:     {"EMBEDDED", 9},
	TypeEmbeddedList: {"EMBEDDEDLIST", 10},
	TypeEmbeddedSet:  {"EMBEDDEDSET", 11},
	TypeEmbeddedMap:  {"EMBEDDEDMAP", 12},
	TypeLink:         {"LINK", 13},
	TypeLinkList:     {"LINKLIST", 14},
	TypeLinkSet:      {"LINKSET", 15},
	TypeLinkMap:      {"LINKMAP", 16},
	TypeByte:         {"BYTE", 17},
	TypeTransient:    {"TRANSIENT", 18},
	TypeDate:         {"DATE", 19},
	TypeCustom:       {"CUSTOM", 20},
	TypeDecimal:      {"DECIMAL", 21},
	TypeLinkBag:      {"LINKBAG", 22},
}

var typesByID = func() map[uint8]PropertyType {
	m := make(map[uint8]PropertyType, len(typeInfos))
	for t, info := range typeInfos {
		m[info.id] = PropertyType(t)
	}
	return m
}()

// AllTypes lists every property type in declaration order.
func AllTypes() []PropertyType {
	types := make([]PropertyType, len(typeInfos))
	for i := range typeInfos {
		types[i] = PropertyType(i)
	}
	return types
}

func (t PropertyType) valid() bool {
	return int(t) < len(typeInfos)
}

func (t PropertyType) String() string {
	if !t.valid() {
		return fmt.Sprintf("PropertyType(%d)", uint8(t))
	}
	return typeInfos[t].name
}

// ID returns the stable wire identifier of the type.
func (t PropertyType) ID() uint8 {
	if !t.valid() {
		return typeInfos[TypeAny].id
	}
	return typeInfos[t].id
}

// TypeByID is the inverse of PropertyType.ID.
func TypeByID(id uint8) (PropertyType, error) {
	t, ok := typesByID[id]
	if !ok {
		return TypeAny, fmt.Errorf("%w: id %d", constants.ErrUnknownType, id)
	}
	return t, nil
}

// ParsePropertyType parses a type name case-insensitively.
func ParsePropertyType(name string) (PropertyType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for t, info := range typeInfos {
		if info.name == upper {
			return PropertyType(t), nil
		}
	}
	return TypeAny, fmt.Errorf("%w: %q", constants.ErrUnknownType, name)
}

// Declared reports whether t carries a concrete declaration.
func (t PropertyType) Declared() bool {
	return t != TypeAny
}

func (t PropertyType) IsLink() bool {
	switch t {
	case TypeLink, TypeLinkList, TypeLinkSet, TypeLinkMap, TypeLinkBag:
		return true
	}
	return false
}

func (t PropertyType) IsEmbedded() bool {
	switch t {
	case TypeEmbedded, TypeEmbeddedList, TypeEmbeddedSet, TypeEmbeddedMap:
		return true
	}
	return false
}

// IsMultiValue reports whether t is a collection type.
func (t PropertyType) IsMultiValue() bool {
	switch t {
	case TypeEmbeddedList, TypeEmbeddedSet, TypeEmbeddedMap,
		TypeLinkList, TypeLinkSet, TypeLinkMap, TypeLinkBag:
		return true
	}
	return false
}

// IsScalar reports whether t holds a single non-reference value.
func (t PropertyType) IsScalar() bool {
	switch t {
	case TypeBoolean, TypeInteger, TypeShort, TypeLong, TypeByte, TypeFloat,
		TypeDouble, TypeDecimal, TypeDate, TypeDateTime, TypeString, TypeBinary, TypeCustom:
		return true
	}
	return false
}

// IsNumeric reports whether values of t have a numeric interpretation.
func (t PropertyType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeShort, TypeLong, TypeByte, TypeFloat, TypeDouble, TypeDecimal:
		return true
	}
	return false
}

// Family groups the link and embedded variants of the same collection
// shape. Scalars are their own family.
func (t PropertyType) Family() PropertyType {
	switch t {
	case TypeLinkList:
		return TypeEmbeddedList
	case TypeLinkSet:
		return TypeEmbeddedSet
	case TypeLinkMap:
		return TypeEmbeddedMap
	case TypeLink:
		return TypeEmbedded
	}
	return t
}

// LinkVariant returns the link flavour of an embedded collection type.
func (t PropertyType) LinkVariant() PropertyType {
	switch t {
	case TypeEmbeddedList:
		return TypeLinkList
	case TypeEmbeddedSet:
		return TypeLinkSet
	case TypeEmbeddedMap:
		return TypeLinkMap
	case TypeEmbedded:
		return TypeLink
	}
	return t
}

func (t PropertyType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *PropertyType) UnmarshalText(text []byte) error {
	parsed, err := ParsePropertyType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t PropertyType) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *PropertyType) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(name))
}
