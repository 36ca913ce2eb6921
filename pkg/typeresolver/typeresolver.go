// Package typeresolver recovers the logical type of a field when no schema
// declares it: from a raw token on the decode path, and from the runtime
// value on the encode path.
package typeresolver

import (
	"math"
	"strconv"
	"strings"

	"github.com/surrealdb/recordcodec/internal/textscan"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// CustomPrefix opens CUSTOM tokens, followed by a binary token.
const CustomPrefix = '^'

const maxIntegerText = "2147483647"

// FromToken infers the type of a single token. It returns TypeAny for an
// empty token, which stands for null.
func FromToken(token string) models.PropertyType {
	if token == "" {
		return models.TypeAny
	}

	switch token[0] {
	case constants.LinkPrefix:
		return models.TypeLink
	case constants.StringDelimiter, '\'':
		return models.TypeString
	case constants.BinaryDelimiter:
		return models.TypeBinary
	case CustomPrefix:
		return models.TypeCustom
	case constants.EmbeddedBegin:
		return models.TypeEmbedded
	case constants.ListBegin:
		return models.TypeEmbeddedList
	case constants.SetBegin:
		return models.TypeEmbeddedSet
	case constants.MapBegin:
		return models.TypeEmbeddedMap
	case constants.BagDelimiter:
		return models.TypeLinkBag
	}

	if strings.EqualFold(token, "true") || strings.EqualFold(token, "false") {
		return models.TypeBoolean
	}

	if t, ok := nonFinite(token); ok {
		return t
	}

	integer, exponent := true, false
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if i == 0 && (c == '+' || c == '-') {
			continue
		}
		if c == '.' && !exponent {
			integer = false
			continue
		}
		if i == 0 {
			return models.TypeString
		}

		if (c == 'e' || c == 'E') && !exponent {
			integer, exponent = false, true
			if i+1 < len(token) && (token[i+1] == '-' || token[i+1] == '+') {
				i++
			}
			continue
		}

		if t, ok := suffixType(c); ok {
			if i != len(token)-1 {
				return models.TypeString
			}
			return t
		}
		return models.TypeString
	}

	if exponent {
		if _, err := strconv.ParseFloat(token, 64); err == nil {
			return models.TypeDouble
		}
		return models.TypeString
	}

	if integer {
		digits := strings.TrimLeft(token, "+-")
		if digits == "" {
			return models.TypeString
		}
		if len(digits) > len(maxIntegerText) ||
			(len(digits) == len(maxIntegerText) && digits > maxIntegerText) {
			return models.TypeLong
		}
		return models.TypeInteger
	}

	return classifyDecimal(token)
}

// nonFinite recognises NaN and the infinities as written for FLOAT and
// DOUBLE values. They are only numbers with their type suffix.
func nonFinite(token string) (models.PropertyType, bool) {
	last := token[len(token)-1]
	if last != 'f' && last != 'd' {
		return models.TypeAny, false
	}
	switch token[:len(token)-1] {
	case "NaN", "Inf", "+Inf", "-Inf":
		t, _ := suffixType(last)
		return t, true
	}
	return models.TypeAny, false
}

// Suffix returns the type letter appended to values of t, or 0 when t has
// none.
func Suffix(t models.PropertyType) byte {
	switch t {
	case models.TypeByte:
		return 'b'
	case models.TypeShort:
		return 's'
	case models.TypeLong:
		return 'l'
	case models.TypeFloat:
		return 'f'
	case models.TypeDouble:
		return 'd'
	case models.TypeDecimal:
		return 'c'
	case models.TypeDate:
		return 'a'
	case models.TypeDateTime:
		return 't'
	}
	return 0
}

func suffixType(c byte) (models.PropertyType, bool) {
	switch c {
	case 'b':
		return models.TypeByte, true
	case 's':
		return models.TypeShort, true
	case 'l':
		return models.TypeLong, true
	case 'f':
		return models.TypeFloat, true
	case 'd':
		return models.TypeDouble, true
	case 'c':
		return models.TypeDecimal, true
	case 'a':
		return models.TypeDate, true
	case 't':
		return models.TypeDateTime, true
	}
	return models.TypeAny, false
}

// classifyDecimal picks FLOAT when the literal survives a trip through a
// 32-bit float, DECIMAL when a double would not print it back unchanged,
// DOUBLE otherwise.
func classifyDecimal(token string) models.PropertyType {
	d, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return models.TypeString
	}

	abs := math.Abs(d)
	if abs <= math.MaxFloat32 && (abs == 0 || abs >= math.SmallestNonzeroFloat32) {
		f := float32(d)
		if float64(f) == d && strconv.FormatFloat(d, 'g', -1, 64) == strconv.FormatFloat(float64(f), 'g', -1, 32) {
			return models.TypeFloat
		}
	}

	if strconv.FormatFloat(d, 'f', -1, 64) != strings.TrimPrefix(token, "+") {
		return models.TypeDecimal
	}
	return models.TypeDouble
}

// Inference is the result of inferring a field from its token.
type Inference struct {
	Type       models.PropertyType
	LinkedType models.PropertyType
	// Certain is false when the token does not pin its type down: empty
	// collections, and numbers or booleans without a type suffix.
	Certain bool
}

// Infer inspects a whole field token, looking inside collections to tell
// link collections from embedded ones.
func Infer(token string) Inference {
	if token == "" {
		return Inference{}
	}

	switch token[0] {
	case constants.StringDelimiter, '\'':
		return Inference{Type: models.TypeString, Certain: true}
	case constants.ListBegin:
		if inner, ok := textscan.Unwrap(token, constants.ListBegin, constants.ListEnd); ok {
			return inferItems(models.TypeEmbeddedList, textscan.Split(inner, constants.RecordSeparator))
		}
	case constants.SetBegin:
		if inner, ok := textscan.Unwrap(token, constants.SetBegin, constants.SetEnd); ok {
			return inferItems(models.TypeEmbeddedSet, textscan.Split(inner, constants.RecordSeparator))
		}
	case constants.MapBegin:
		if inner, ok := textscan.Unwrap(token, constants.MapBegin, constants.MapEnd); ok {
			return inferMap(textscan.Split(inner, constants.RecordSeparator))
		}
	}

	t := FromToken(token)
	certain := true
	switch t {
	case models.TypeString, models.TypeBoolean:
		certain = false
	case models.TypeInteger, models.TypeLong, models.TypeShort, models.TypeByte,
		models.TypeFloat, models.TypeDouble, models.TypeDecimal, models.TypeDate, models.TypeDateTime:
		suffix := Suffix(t)
		certain = suffix != 0 && token[len(token)-1] == suffix
	}
	return Inference{Type: t, Certain: certain}
}

func inferItems(t models.PropertyType, items []string) Inference {
	if len(items) == 0 {
		return Inference{Type: t}
	}

	allLinks := true
	for _, item := range items {
		if item == "" || item[0] != constants.LinkPrefix {
			allLinks = false
			break
		}
	}
	if allLinks {
		return Inference{Type: t.LinkVariant(), LinkedType: models.TypeLink, Certain: true}
	}

	return Inference{Type: t, LinkedType: FromToken(items[0]), Certain: true}
}

func inferMap(entries []string) Inference {
	if len(entries) == 0 {
		return Inference{Type: models.TypeEmbeddedMap}
	}

	allLinks := true
	var first string
	for i, entry := range entries {
		sep := textscan.IndexTopLevel(entry, constants.EntrySeparator)
		if sep < 0 {
			allLinks = false
			break
		}
		value := strings.TrimSpace(entry[sep+1:])
		if i == 0 {
			first = value
		}
		if value == "" || value[0] != constants.LinkPrefix {
			allLinks = false
		}
	}
	if allLinks {
		return Inference{Type: models.TypeLinkMap, LinkedType: models.TypeLink, Certain: true}
	}
	return Inference{Type: models.TypeEmbeddedMap, LinkedType: FromToken(first), Certain: true}
}

// Reconcile returns the type a stored token is decoded as when the schema
// or the entity declares declared for it.
//
// The declaration wins unless the token pins a conflicting type down. In
// that case the stored shape is kept until the record is rewritten, with
// one exception: a list-shaped token is read into whatever list-shaped
// collection is declared, keeping the stored link or embedded flavour.
func Reconcile(declared models.PropertyType, stored Inference) models.PropertyType {
	if !declared.Declared() {
		return stored.Type
	}
	if !stored.Type.Declared() || !stored.Certain || stored.Type == declared {
		return declared
	}

	if listShaped(declared) && listShaped(stored.Type) {
		if declared == models.TypeLinkBag || stored.Type == models.TypeLinkBag {
			return declared
		}
		if declared.IsLink() != stored.Type.IsLink() {
			if stored.Type.IsLink() {
				return declared.LinkVariant()
			}
			return declared.Family()
		}
		return declared
	}

	return stored.Type
}

func listShaped(t models.PropertyType) bool {
	switch t {
	case models.TypeEmbeddedList, models.TypeEmbeddedSet, models.TypeLinkList, models.TypeLinkSet, models.TypeLinkBag:
		return true
	}
	return false
}

// FromValue infers the type of a runtime value when nothing declares one.
// Collections are classified by their first element only, so a list that
// starts with a reference is treated as a link list even if later elements
// are not references.
func FromValue(arena *models.Arena, v models.Value) models.PropertyType {
	switch tv := v.(type) {
	case nil:
		return models.TypeAny
	case models.Record:
		if isReference(arena, tv) {
			return models.TypeLink
		}
		return models.TypeEmbedded
	case *models.List:
		if len(tv.Items) > 0 && isReference(arena, tv.Items[0]) {
			return models.TypeLinkList
		}
		return models.TypeEmbeddedList
	case *models.Set:
		if len(tv.Items) > 0 && isReference(arena, tv.Items[0]) {
			return models.TypeLinkSet
		}
		return models.TypeEmbeddedSet
	case *models.Map:
		if len(tv.Entries) > 0 && isReference(arena, tv.Entries[0].Value) {
			return models.TypeLinkMap
		}
		return models.TypeEmbeddedMap
	}
	return v.Type()
}

// LinkedType infers the element type of a collection from its first
// non-null element.
func LinkedType(arena *models.Arena, items []models.Value) models.PropertyType {
	for _, item := range items {
		if item != nil {
			return FromValue(arena, item)
		}
	}
	return models.TypeAny
}

// IsReference reports whether v is written as a link.
func IsReference(arena *models.Arena, v models.Value) bool {
	return isReference(arena, v)
}

func isReference(arena *models.Arena, v models.Value) bool {
	switch tv := v.(type) {
	case models.Link:
		return true
	case models.Record:
		if arena == nil {
			return false
		}
		e, ok := arena.Get(tv.Handle)
		return ok && e.Identifiable()
	}
	return false
}
