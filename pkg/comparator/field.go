package comparator

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// Field is an encoded scalar value. For binary comparable types the bytes
// sort the same way the values do.
type Field struct {
	Name      string
	Type      models.PropertyType
	Bytes     []byte
	Collation Collation
}

// EncodeField encodes a scalar value. Signed integers are written big
// endian with the sign bit flipped, floats with the usual IEEE 754 order
// transform, DATE as days since the epoch, DATETIME as milliseconds and
// LINK as cluster then position. Strings and binaries are kept verbatim,
// DECIMAL as its canonical text.
func EncodeField(name string, v models.Value, collation Collation) (Field, error) {
	f := Field{Name: name, Type: models.TypeOf(v), Collation: collation}

	switch tv := v.(type) {
	case models.Boolean:
		if tv {
			f.Bytes = []byte{1}
		} else {
			f.Bytes = []byte{0}
		}
	case models.Byte:
		f.Bytes = []byte{uint8(tv) ^ 0x80}
	case models.Short:
		f.Bytes = binary.BigEndian.AppendUint16(nil, uint16(tv)^0x8000)
	case models.Integer:
		f.Bytes = binary.BigEndian.AppendUint32(nil, uint32(tv)^0x80000000)
	case models.Long:
		f.Bytes = appendInt64(nil, int64(tv))
	case models.Float:
		f.Bytes = binary.BigEndian.AppendUint32(nil, orderedFloat32(float32(tv)))
	case models.Double:
		f.Bytes = binary.BigEndian.AppendUint64(nil, orderedFloat64(float64(tv)))
	case models.Date:
		f.Bytes = appendInt64(nil, tv.Days())
	case models.DateTime:
		f.Bytes = appendInt64(nil, tv.Millis())
	case models.Link:
		f.Bytes = binary.BigEndian.AppendUint32(nil, uint32(tv.Cluster)^0x80000000)
		f.Bytes = appendInt64(f.Bytes, tv.Position)
	case models.String:
		f.Bytes = []byte(tv)
	case models.Binary:
		f.Bytes = append([]byte(nil), tv...)
	case models.Decimal:
		f.Bytes = []byte(tv.String())
	default:
		return Field{}, fmt.Errorf("%w: cannot encode %s", constants.ErrIncomparable, models.TypeOf(v))
	}
	return f, nil
}

// FieldOf encodes the named field of e with the collation its schema
// property declares.
func FieldOf(ctx *codecctx.Context, e *models.Entity, name string) (Field, error) {
	v, ok := e.Get(name)
	if !ok {
		return Field{}, fmt.Errorf("field %q not found", name)
	}
	collation := DefaultCollation
	if p, ok := ctx.Property(e.ClassName(), name); ok {
		c, err := CollationByName(p.Collate)
		if err != nil {
			return Field{}, err
		}
		collation = c
	}
	return EncodeField(name, v, collation)
}

// Value decodes the field back into a value.
func (f Field) Value() (models.Value, error) {
	want := map[models.PropertyType]int{
		models.TypeBoolean:  1,
		models.TypeByte:     1,
		models.TypeShort:    2,
		models.TypeInteger:  4,
		models.TypeLong:     8,
		models.TypeFloat:    4,
		models.TypeDouble:   8,
		models.TypeDate:     8,
		models.TypeDateTime: 8,
		models.TypeLink:     12,
	}
	if n, fixed := want[f.Type]; fixed && len(f.Bytes) != n {
		return nil, fmt.Errorf("%w: %s field %q has %d bytes, want %d", constants.ErrMalformedField, f.Type, f.Name, len(f.Bytes), n)
	}

	b := f.Bytes
	switch f.Type {
	case models.TypeBoolean:
		return models.Boolean(b[0] != 0), nil
	case models.TypeByte:
		return models.Byte(int8(b[0] ^ 0x80)), nil
	case models.TypeShort:
		return models.Short(int16(binary.BigEndian.Uint16(b) ^ 0x8000)), nil
	case models.TypeInteger:
		return models.Integer(int32(binary.BigEndian.Uint32(b) ^ 0x80000000)), nil
	case models.TypeLong:
		return models.Long(readInt64(b)), nil
	case models.TypeFloat:
		return models.Float(float32FromOrdered(binary.BigEndian.Uint32(b))), nil
	case models.TypeDouble:
		return models.Double(float64FromOrdered(binary.BigEndian.Uint64(b))), nil
	case models.TypeDate:
		return models.DateFromMillis(readInt64(b) * constants.MillisPerDay), nil
	case models.TypeDateTime:
		return models.DateTimeFromMillis(readInt64(b)), nil
	case models.TypeLink:
		cluster := int32(binary.BigEndian.Uint32(b[:4]) ^ 0x80000000)
		return models.NewLink(models.NewRecordID(cluster, readInt64(b[4:]))), nil
	case models.TypeString:
		return models.String(b), nil
	case models.TypeBinary:
		return models.Binary(b), nil
	case models.TypeDecimal:
		d, err := decimal.NewFromString(string(b))
		if err != nil {
			return nil, fmt.Errorf("%w: decimal field %q: %v", constants.ErrMalformedField, f.Name, err)
		}
		return models.NewDecimal(d), nil
	}
	return nil, fmt.Errorf("%w: %s", constants.ErrIncomparable, f.Type)
}

func appendInt64(b []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(v)^(1<<63))
}

func readInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func orderedFloat32(f float32) uint32 {
	bits := math.Float32bits(f)
	if bits&(1<<31) != 0 {
		return ^bits
	}
	return bits | 1<<31
}

func float32FromOrdered(bits uint32) float32 {
	if bits&(1<<31) != 0 {
		return math.Float32frombits(bits &^ (1 << 31))
	}
	return math.Float32frombits(^bits)
}

func orderedFloat64(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | 1<<63
}

func float64FromOrdered(bits uint64) float64 {
	if bits&(1<<63) != 0 {
		return math.Float64frombits(bits &^ (1 << 63))
	}
	return math.Float64frombits(^bits)
}
