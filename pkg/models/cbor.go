package models

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/surrealdb/recordcodec/internal/codec"
)

type CustomCBORTag uint64

// Tags used by the binary record wire.
const (
	TagRecordID      = 8
	TagDecimalString = 10
	TagBinaryUUID    = 37
)

// DecimalString carries the canonical text of a DECIMAL value on the wire.
type DecimalString string

func registerCborTags() cbor.TagSet {
	customTags := map[CustomCBORTag]interface{}{
		TagDecimalString: DecimalString(""),
	}

	tags := cbor.NewTagSet()
	for tag, customType := range customTags {
		err := tags.Add(
			cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired},
			reflect.TypeOf(customType),
			uint64(tag),
		)
		if err != nil {
			panic(err)
		}
	}

	return tags
}

var (
	cborTags    = registerCborTags()
	cborEncMode = mustEncMode()
	cborDecMode = mustDecMode()
)

type CborMarshaler struct {
}

func (c CborMarshaler) Marshal(v interface{}) ([]byte, error) {
	return getCborEncoder().Marshal(v)
}

func (c CborMarshaler) NewEncoder(w io.Writer) codec.Encoder {
	return getCborEncoder().NewEncoder(w)
}

type CborUnmarshaler struct {
}

func (c CborUnmarshaler) Unmarshal(data []byte, dst interface{}) error {
	return getCborDecoder().Unmarshal(data, dst)
}

func (c CborUnmarshaler) NewDecoder(r io.Reader) codec.Decoder {
	return getCborDecoder().NewDecoder(r)
}

func getCborEncoder() cbor.EncMode {
	return cborEncMode
}

func getCborDecoder() cbor.DecMode {
	return cborDecMode
}

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort: cbor.SortNone,
	}.EncModeWithTags(cborTags)
	if err != nil {
		panic(err)
	}

	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		IntDec: cbor.IntDecConvertSigned,
	}.DecModeWithTags(cborTags)
	if err != nil {
		panic(err)
	}

	return dm
}
