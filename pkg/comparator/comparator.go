// Package comparator orders and equates encoded scalar fields without
// decoding whole records. Fields of the same binary comparable type are
// compared byte by byte; every other pair is decoded and compared across
// types: numbers by exact value, scalars against strings by their text.
package comparator

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/metrics"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// IsBinaryComparable reports whether two fields of type t can be ordered
// by comparing their bytes. Strings qualify only under the default
// collation.
func IsBinaryComparable(t models.PropertyType, collation Collation) bool {
	switch t {
	case models.TypeBoolean, models.TypeByte, models.TypeShort, models.TypeInteger, models.TypeLong,
		models.TypeFloat, models.TypeDouble, models.TypeDate, models.TypeDateTime,
		models.TypeLink, models.TypeBinary:
		return true
	case models.TypeString:
		return isDefault(collation)
	}
	return false
}

// Compare returns a negative number, zero or a positive number when a
// sorts before, with or after b. It fails with constants.ErrIncomparable
// when the two types have no common order.
func Compare(ctx *codecctx.Context, a, b Field) (n int, err error) {
	start := time.Now()
	defer func() { ctx.Observe(metrics.OpCompare, start, err) }()

	return compare(a, b)
}

// IsEqual reports whether a and b hold the same value. Incomparable
// fields are never equal.
func IsEqual(ctx *codecctx.Context, a, b Field) bool {
	start := time.Now()
	n, err := compare(a, b)
	ctx.Observe(metrics.OpEqual, start, err)
	return err == nil && n == 0
}

func compare(a, b Field) (int, error) {
	collation := pick(a.Collation, b.Collation)
	if a.Type == b.Type && IsBinaryComparable(a.Type, collation) {
		return bytes.Compare(a.Bytes, b.Bytes), nil
	}

	va, err := a.Value()
	if err != nil {
		return 0, err
	}
	vb, err := b.Value()
	if err != nil {
		return 0, err
	}
	return CompareValues(va, vb, collation)
}

// CompareValues compares two decoded scalar values.
func CompareValues(a, b models.Value, collation Collation) (int, error) {
	if collation == nil {
		collation = DefaultCollation
	}
	ta, tb := models.TypeOf(a), models.TypeOf(b)

	switch {
	case ta.IsNumeric() && tb.IsNumeric():
		return compareNumbers(a, b), nil
	case ta == models.TypeString && tb == models.TypeString:
		return collation.Compare(string(a.(models.String)), string(b.(models.String))), nil
	case ta == models.TypeString:
		n, err := compareWithString(b, string(a.(models.String)), collation)
		return -n, err
	case tb == models.TypeString:
		return compareWithString(a, string(b.(models.String)), collation)
	case isTemporal(ta) && isTemporal(tb):
		return cmp.Compare(millis(a), millis(b)), nil
	case ta == models.TypeLink && tb == models.TypeLink:
		return a.(models.Link).Compare(b.(models.Link).RecordID), nil
	case ta == models.TypeBoolean && tb == models.TypeBoolean:
		return cmp.Compare(boolRank(a), boolRank(b)), nil
	case ta == models.TypeBinary && tb == models.TypeBinary:
		return bytes.Compare(a.(models.Binary), b.(models.Binary)), nil
	}
	return 0, fmt.Errorf("%w: %s and %s", constants.ErrIncomparable, ta, tb)
}

// compareWithString compares a scalar with a string, as the scalar's
// canonical text unless the scalar is a DATETIME and the string reads as
// one.
func compareWithString(v models.Value, s string, collation Collation) (int, error) {
	if dt, ok := v.(models.DateTime); ok {
		if ms, ok := parseDateTime(s); ok {
			return cmp.Compare(dt.Millis(), ms), nil
		}
	}
	text, ok := models.FormatScalar(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s and STRING", constants.ErrIncomparable, models.TypeOf(v))
	}
	return collation.Compare(text, s), nil
}

var dateTimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

func parseDateTime(s string) (int64, bool) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func isTemporal(t models.PropertyType) bool {
	return t == models.TypeDate || t == models.TypeDateTime
}

func millis(v models.Value) int64 {
	switch tv := v.(type) {
	case models.Date:
		return tv.Millis()
	case models.DateTime:
		return tv.Millis()
	}
	return 0
}

func boolRank(v models.Value) int {
	if v.(models.Boolean) {
		return 1
	}
	return 0
}

// compareNumbers compares two numeric values exactly. Integers are widened
// to int64; any pair involving a float or a decimal is compared as
// rationals, so no precision is lost to a double conversion.
func compareNumbers(a, b models.Value) int {
	ia, aInt := integerOf(a)
	ib, bInt := integerOf(b)
	if aInt && bInt {
		return cmp.Compare(ia, ib)
	}

	ra, okA := ratOf(a)
	rb, okB := ratOf(b)
	if okA && okB {
		return ra.Cmp(rb)
	}

	// NaN and infinities have no rational value.
	return cmp.Compare(floatOf(a), floatOf(b))
}

func integerOf(v models.Value) (int64, bool) {
	switch tv := v.(type) {
	case models.Byte:
		return int64(tv), true
	case models.Short:
		return int64(tv), true
	case models.Integer:
		return int64(tv), true
	case models.Long:
		return int64(tv), true
	}
	return 0, false
}

func ratOf(v models.Value) (*big.Rat, bool) {
	if i, ok := integerOf(v); ok {
		return new(big.Rat).SetInt64(i), true
	}
	switch tv := v.(type) {
	case models.Decimal:
		return tv.Rat(), true
	case models.Float:
		return floatRat(float64(tv))
	case models.Double:
		return floatRat(float64(tv))
	}
	return nil, false
}

func floatRat(f float64) (*big.Rat, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return new(big.Rat).SetFloat64(f), true
}

func floatOf(v models.Value) float64 {
	switch tv := v.(type) {
	case models.Float:
		return float64(tv)
	case models.Double:
		return float64(tv)
	case models.Decimal:
		return tv.InexactFloat64()
	}
	i, _ := integerOf(v)
	return float64(i)
}
