package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"gopkg.in/yaml.v3"
)

func TestConvert(t *testing.T) {
	testcases := []struct {
		name string
		in   Value
		to   PropertyType
		want Value
		err  string
	}{
		{name: "integer to long", in: Integer(5), to: TypeLong, want: Long(5)},
		{name: "long overflows integer", in: Long(1 << 40), to: TypeInteger, err: "out of range"},
		{name: "short overflows byte", in: Short(300), to: TypeByte, err: "out of range"},
		{name: "string to integer", in: String(" 12 "), to: TypeInteger, want: Integer(12)},
		{name: "double truncates", in: Double(2.9), to: TypeInteger, want: Integer(2)},
		{name: "float to double", in: Float(1.5), to: TypeDouble, want: Double(1.5)},
		{name: "string to decimal", in: String("1.25"), to: TypeDecimal, want: NewDecimal(decimal.RequireFromString("1.25"))},
		{name: "integer to boolean", in: Integer(1), to: TypeBoolean, want: Boolean(true)},
		{name: "bad boolean", in: String("yes"), to: TypeBoolean, err: "cannot convert STRING to BOOLEAN"},
		{name: "long to string", in: Long(7), to: TypeString, want: String("7")},
		{name: "millis to date", in: Long(86400000 + 5), to: TypeDate, want: DateFromMillis(86400000)},
		{name: "string to link", in: String("#3:4"), to: TypeLink, want: NewLink(NewRecordID(3, 4))},
		{name: "list to link set", in: NewList(NewLink(ridA), NewLink(ridA)), to: TypeLinkSet, want: NewLinkSet(ridA)},
		{name: "links to bag", in: NewLinkList(ridA, ridB), to: TypeLinkBag, want: NewBag(ridA, ridB)},
		{name: "bag to link list", in: NewBag(ridA), to: TypeLinkList, want: NewLinkList(ridA)},
		{name: "strings to bag", in: NewList(String("x")), to: TypeLinkBag, err: "bag element of type STRING"},
		{name: "map to link map", in: NewMap(MapEntry{Key: "k", Value: NewLink(ridC)}), to: TypeLinkMap, want: NewLinkMap(MapEntry{Key: "k", Value: NewLink(ridC)})},
		{name: "string to embedded", in: String("x"), to: TypeEmbedded, err: "cannot convert STRING to EMBEDDED"},
		{name: "binary to custom", in: Binary("raw"), to: TypeCustom, want: Custom{Data: []byte("raw")}},
		{name: "same type", in: String("x"), to: TypeString, want: String("x")},
		{name: "undeclared", in: Integer(3), to: TypeAny, want: Integer(3)},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Convert(tc.in, tc.to)
			if tc.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.err)
				return
			}
			require.NoError(t, err)
			assert.Truef(t, Equal(tc.want, got), "want %v, got %v", tc.want, got)
		})
	}

	got, err := Convert(nil, TypeLong)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFormatScalar(t *testing.T) {
	testcases := []struct {
		in   Value
		want string
	}{
		{in: Float(0.1), want: "0.1"},
		{in: Double(-2.5), want: "-2.5"},
		{in: Byte(-3), want: "-3"},
		{in: NewDecimal(decimal.RequireFromString("10.50")), want: "10.5"},
		{in: DateTimeFromMillis(1500), want: "1500"},
		{in: NewLink(ridC), want: "#7:0"},
	}
	for _, tc := range testcases {
		t.Run(tc.want, func(t *testing.T) {
			got, ok := FormatScalar(tc.in)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	_, ok := FormatScalar(NewList())
	assert.False(t, ok)
}

func TestDateBeforeEpoch(t *testing.T) {
	d := DateFromMillis(-1)
	assert.Equal(t, int64(-1), d.Days())
	assert.Equal(t, int64(-86400000), d.Millis())
}

func TestPropertyType(t *testing.T) {
	for _, typ := range AllTypes() {
		byID, err := TypeByID(typ.ID())
		require.NoError(t, err)
		assert.Equal(t, typ, byID)

		parsed, err := ParsePropertyType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	parsed, err := ParsePropertyType(" linkList ")
	require.NoError(t, err)
	assert.Equal(t, TypeLinkList, parsed)

	_, err = ParsePropertyType("VARCHAR")
	assert.ErrorIs(t, err, constants.ErrUnknownType)
	_, err = TypeByID(200)
	assert.ErrorIs(t, err, constants.ErrUnknownType)

	assert.Equal(t, TypeLinkList, TypeEmbeddedList.LinkVariant())
	assert.Equal(t, TypeEmbeddedMap, TypeLinkMap.Family())
	assert.True(t, TypeCustom.IsScalar())
	assert.False(t, TypeLink.IsScalar())
	assert.True(t, TypeLinkBag.IsMultiValue())
}

func TestPropertyTypeYAML(t *testing.T) {
	var doc struct {
		Type PropertyType `yaml:"type"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("type: embeddedmap\n"), &doc))
	assert.Equal(t, TypeEmbeddedMap, doc.Type)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "type: EMBEDDEDMAP\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("type: number\n"), &doc))
}
