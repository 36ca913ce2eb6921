package textcodec

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/constants"
	logslog "github.com/surrealdb/recordcodec/pkg/logger/slog"
	"github.com/surrealdb/recordcodec/pkg/metrics"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/schema"
)

func encode(t *testing.T, ctx *codecctx.Context, e *models.Entity) string {
	t.Helper()
	res, err := Encode(ctx, e, Options{})
	require.NoError(t, err)
	return string(res.Bytes)
}

func assertValue(t *testing.T, want models.Value, e *models.Entity, field string) {
	t.Helper()
	got, ok := e.Get(field)
	require.True(t, ok, "field %q is missing", field)
	assert.True(t, models.Equal(want, got), "field %q: want %#v, got %#v", field, want, got)
}

func TestDeclaredTypesSurviveRoundTrip(t *testing.T) {
	arena := models.NewArena()
	e := arena.New("")
	e.Set("name", models.String("name"))
	e.SetTyped("age", models.Integer(20), models.TypeInteger)
	e.SetTyped("oldAge", models.Long(20), models.TypeLong)

	data := encode(t, codecctx.Default, e)
	assert.Equal(t, `name:"name",age:20,oldAge:20l`, data)

	out, err := Decode(codecctx.Default, []byte(data), nil)
	require.NoError(t, err)

	assertValue(t, models.String("name"), out, "name")
	assertValue(t, models.Integer(20), out, "age")
	assertValue(t, models.Long(20), out, "oldAge")
	assert.Equal(t, models.TypeInteger, out.Type("age"))
	assert.Equal(t, models.TypeLong, out.Type("oldAge"))
}

func TestLinkListStaysLinkList(t *testing.T) {
	arena := models.NewArena()
	e := arena.New("")
	e.Set("links", models.NewLinkList(
		models.NewRecordID(10, 20),
		models.NewRecordID(10, 21),
		models.NewRecordID(10, 22),
	))

	data := encode(t, codecctx.Default, e)
	assert.Equal(t, "links:[#10:20,#10:21,#10:22]", data)

	out, err := Decode(codecctx.Default, []byte(data), nil)
	require.NoError(t, err)

	v, _ := out.Get("links")
	require.IsType(t, &models.LinkList{}, v)
	assert.Len(t, v.(*models.LinkList).Items, 3)
	assert.Equal(t, models.TypeLinkList, out.Type("links"))
}

func TestDecodeFloatTokens(t *testing.T) {
	testcases := []struct {
		token string
		want  models.Value
	}{
		{token: "20.5f", want: models.Float(20.5)},
		{token: "20.5", want: models.Float(20.5)},
		{token: "0.1", want: models.Double(0.1)},
		{token: "1.10", want: models.NewDecimal(decimal.RequireFromString("1.10"))},
		{token: "1e-06", want: models.Double(1e-06)},
		{token: "1.5E10", want: models.Double(1.5e10)},
		{token: "2.5E-3", want: models.Double(2.5e-3)},
	}

	for _, tc := range testcases {
		t.Run(tc.token, func(t *testing.T) {
			out, err := Decode(codecctx.Default, []byte("v:"+tc.token), nil)
			require.NoError(t, err)
			assertValue(t, tc.want, out, "v")
			assert.Equal(t, tc.want.Type(), out.Type("v"))
		})
	}
}

func TestNonFiniteFloatsRoundTrip(t *testing.T) {
	e := models.NewArena().New("")
	e.Set("n", models.Double(math.NaN()))
	e.Set("i", models.Float(math.Inf(-1)))
	e.Set("p", models.Double(math.Inf(1)))

	data := encode(t, codecctx.Default, e)
	assert.Equal(t, "n:NaNd,i:-Inff,p:+Infd", data)

	out, err := Decode(codecctx.Default, []byte(data), nil)
	require.NoError(t, err)

	n, _ := out.Get("n")
	require.IsType(t, models.Double(0), n)
	assert.True(t, math.IsNaN(float64(n.(models.Double))))
	assert.Equal(t, models.TypeDouble, out.Type("n"))
	assertValue(t, models.Float(math.Inf(-1)), out, "i")
	assert.Equal(t, models.TypeFloat, out.Type("i"))
	assertValue(t, models.Double(math.Inf(1)), out, "p")
}

func TestScalarRoundTrip(t *testing.T) {
	testcases := []struct {
		name  string
		value models.Value
		typ   models.PropertyType
	}{
		{name: "string", value: models.String(`he said "hi", \o/ (ok)`), typ: models.TypeString},
		{name: "empty string", value: models.String(""), typ: models.TypeString},
		{name: "numeric string", value: models.String("20"), typ: models.TypeString},
		{name: "integer", value: models.Integer(-7), typ: models.TypeInteger},
		{name: "short", value: models.Short(300), typ: models.TypeShort},
		{name: "long", value: models.Long(-9000000000), typ: models.TypeLong},
		{name: "byte", value: models.Byte(-5), typ: models.TypeByte},
		{name: "float", value: models.Float(-20.5), typ: models.TypeFloat},
		{name: "double", value: models.Double(-1234.5678), typ: models.TypeDouble},
		{name: "decimal", value: models.NewDecimal(decimal.RequireFromString("123456789.123456789")), typ: models.TypeDecimal},
		{name: "boolean", value: models.Boolean(false), typ: models.TypeBoolean},
		{name: "date", value: models.NewDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), typ: models.TypeDate},
		{name: "datetime", value: models.NewDateTime(time.Date(2024, 3, 1, 12, 30, 15, 123000000, time.UTC)), typ: models.TypeDateTime},
		{name: "binary", value: models.Binary{0, 1, 2, 255}, typ: models.TypeBinary},
		{name: "custom", value: models.Custom{Data: []byte("opaque")}, typ: models.TypeCustom},
		{name: "link", value: models.NewLink(models.NewRecordID(10, 3)), typ: models.TypeLink},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			e := models.NewArena().New("")
			e.SetTyped("v", tc.value, tc.typ)

			out, err := Decode(codecctx.Default, []byte(encode(t, codecctx.Default, e)), nil)
			require.NoError(t, err)
			assertValue(t, tc.value, out, "v")
			assert.Equal(t, tc.typ, out.Type("v"))
		})
	}
}

func TestStructuralRoundTrip(t *testing.T) {
	arena := models.NewArena()
	top := arena.New("Person")
	top.Set("name", models.String("Ada"))
	addr := arena.NewEmbedded(top.Handle(), "Address")
	addr.Set("city", models.String("Rome"))
	addr.Set("zip", models.Integer(100))
	top.Set("address", addr.Ref())
	top.Set("tags", models.NewSet(models.String("a"), models.String("b")))
	top.Set("scores", models.NewList(models.Integer(1), nil, models.Integer(3)))
	top.Set("nothing", nil)

	data := encode(t, codecctx.Default, top)
	assert.Equal(t, `Person@name:"Ada",address:(Address@city:"Rome",zip:100),tags:<"a","b">,scores:[1,null,3],nothing:`, data)

	out, err := Decode(codecctx.Default, []byte(data), nil)
	require.NoError(t, err)

	assert.Equal(t, "Person", out.ClassName())
	assert.Equal(t, top.Names(), out.Names())
	assertValue(t, top.Fields()[2].Value, out, "tags")
	assertValue(t, top.Fields()[3].Value, out, "scores")
	assertValue(t, nil, out, "nothing")

	v, _ := out.Get("address")
	rec, ok := v.(models.Record)
	require.True(t, ok)
	child, err := out.Arena().Resolve(rec)
	require.NoError(t, err)
	assert.Equal(t, "Address", child.ClassName())
	assert.Equal(t, []string{"city", "zip"}, child.Names())
	assert.True(t, child.IsEmbedded())
	owner, ok := child.Owner()
	require.True(t, ok)
	assert.Equal(t, out.Handle(), owner)
	assertValue(t, models.String("Rome"), child, "city")
}

func TestCollectionsRoundTrip(t *testing.T) {
	testcases := []struct {
		name    string
		value   models.Value
		encoded string
		typ     models.PropertyType
	}{
		{
			name:    "map with null",
			value:   models.NewMap(models.MapEntry{Key: "k", Value: models.Integer(1)}, models.MapEntry{Key: "x"}),
			encoded: `v:{"k":1,"x":null}`,
			typ:     models.TypeEmbeddedMap,
		},
		{
			name:    "link map",
			value:   models.NewLinkMap(models.MapEntry{Key: "a", Value: models.NewLink(models.NewRecordID(1, 2))}),
			encoded: `v:{"a":#1:2}`,
			typ:     models.TypeLinkMap,
		},
		{
			name:    "link set",
			value:   models.NewLinkSet(models.NewRecordID(1, 2), models.NewRecordID(1, 3)),
			encoded: `v:<#1:2,#1:3>`,
			typ:     models.TypeLinkSet,
		},
		{
			name:    "bag",
			value:   models.NewBag(models.NewRecordID(1, 2), models.NewRecordID(1, 3), models.NewRecordID(1, 2)),
			encoded: `v:%#1:2,#1:3,#1:2%`,
			typ:     models.TypeLinkBag,
		},
		{
			name:    "nested lists",
			value:   models.NewList(models.NewList(models.String("a")), models.NewList()),
			encoded: `v:[["a"],[]]`,
			typ:     models.TypeEmbeddedList,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			e := models.NewArena().New("")
			e.Set("v", tc.value)

			data := encode(t, codecctx.Default, e)
			assert.Equal(t, tc.encoded, data)

			out, err := Decode(codecctx.Default, []byte(data), nil)
			require.NoError(t, err)
			assertValue(t, tc.value, out, "v")
			assert.Equal(t, tc.typ, out.Type("v"))
		})
	}
}

func TestDecodeLegacyBag(t *testing.T) {
	out, err := Decode(codecctx.Default, []byte("friends:%#1:2,#1:3;,age:3"), nil)
	require.NoError(t, err)

	assertValue(t, models.NewBag(models.NewRecordID(1, 2), models.NewRecordID(1, 3)), out, "friends")
	assertValue(t, models.Integer(3), out, "age")
}

func TestEmptyCollectionWithoutDeclarationIsUntyped(t *testing.T) {
	out, err := Decode(codecctx.Default, []byte("tags:[],props:{}"), nil)
	require.NoError(t, err)

	assertValue(t, models.NewList(), out, "tags")
	assertValue(t, models.NewMap(), out, "props")
	assert.Equal(t, models.TypeAny, out.Type("tags"))
	assert.Equal(t, models.TypeAny, out.Type("props"))
}

func TestDecodeMalformedLinkKeepsRecord(t *testing.T) {
	var buf bytes.Buffer
	log := logslog.New(slog.NewJSONHandler(&buf, nil))
	ctx := codecctx.New(codecctx.WithLogger(log))

	out, err := Decode(ctx, []byte(`friend:#abc,links:[#1:2,#1:x],name:"kept"`), nil)
	require.NoError(t, err)

	assertValue(t, models.NewLink(models.UnresolvedRecordID), out, "friend")
	assertValue(t, models.NewLinkList(models.NewRecordID(1, 2), models.UnresolvedRecordID), out, "links")
	assertValue(t, models.String("kept"), out, "name")

	logs := buf.String()
	assert.Equal(t, 2, strings.Count(logs, `"msg":"malformed link"`))
	assert.Contains(t, logs, `"field":"friend"`)
	assert.Contains(t, logs, `"token":"#1:x"`)
}

func TestPartialDecode(t *testing.T) {
	data := []byte(`Person@name:"Ada",age:30,city:"Rome"`)

	out, err := Decode(codecctx.Default, data, nil, constants.ClassField)
	require.NoError(t, err)
	assert.Equal(t, "Person", out.ClassName())
	assert.Zero(t, out.Len())

	out, err = Decode(codecctx.Default, data, nil, "age")
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, out.Names())

	out, err = Decode(codecctx.Default, data, nil, constants.ClassField, "city", "name")
	require.NoError(t, err)
	assert.Equal(t, "Person", out.ClassName())
	assert.Equal(t, []string{"name", "city"}, out.Names())
}

func TestDecodeKeepsExistingFields(t *testing.T) {
	target := models.NewArena().New("")
	target.Set("name", models.String("kept"))
	target.Declare("age", models.TypeShort)

	out, err := Decode(codecctx.Default, []byte(`name:"new",age:20`), target)
	require.NoError(t, err)
	assert.Same(t, target, out)

	assertValue(t, models.String("kept"), out, "name")
	assertValue(t, models.Short(20), out, "age")
	assert.Equal(t, models.TypeShort, out.Type("age"))
}

func TestDecodeMalformedRecord(t *testing.T) {
	testcases := []string{
		`name`,
		`:1`,
		`v:(a:1`,
		`v:_!!_`,
	}

	for _, data := range testcases {
		t.Run(data, func(t *testing.T) {
			_, err := Decode(codecctx.Default, []byte(data), nil)
			assert.ErrorIs(t, err, constants.ErrMalformedRecord)
		})
	}
}

func TestSchemaDeclarations(t *testing.T) {
	reg := schema.NewRegistry()
	require.NoError(t, reg.Define(schema.Class{
		Name:     "Person",
		OverSize: 1.5,
		Properties: []schema.Property{
			{Name: "age", Type: models.TypeLong},
			{Name: "links", Type: models.TypeEmbeddedMap},
			{Name: "tags", Type: models.TypeEmbeddedSet},
			{Name: "secret", Type: models.TypeTransient},
			{Name: "home", Type: models.TypeEmbedded, LinkedClass: "Address"},
		},
	}))
	ctx := codecctx.New(codecctx.WithSchema(reg))

	t.Run("decode", func(t *testing.T) {
		out, err := Decode(ctx, []byte(`Person@age:20,links:{"a":#1:2},tags:["x","y","x"],secret:"s",home:(city:"Rome")`), nil)
		require.NoError(t, err)

		assertValue(t, models.Long(20), out, "age")
		assert.Equal(t, models.TypeLong, out.Type("age"))

		v, _ := out.Get("links")
		assert.IsType(t, &models.LinkMap{}, v, "stored link map wins over the declaration")

		assertValue(t, models.NewSet(models.String("x"), models.String("y")), out, "tags")
		assert.False(t, out.Has("secret"))

		v, _ = out.Get("home")
		home, err := out.Arena().Resolve(v.(models.Record))
		require.NoError(t, err)
		assert.Equal(t, "Address", home.ClassName())
	})

	t.Run("encode", func(t *testing.T) {
		e := models.NewArena().New("Person")
		e.Set("age", models.Integer(20))
		e.Set("secret", models.String("s"))

		res, err := Encode(ctx, e, Options{})
		require.NoError(t, err)
		assert.Equal(t, "Person@age:20l", strings.TrimRight(string(res.Bytes), " "))
		assert.Len(t, res.Bytes, 21, "padded by the class over-size factor")
	})
}

func TestEncodeIsPure(t *testing.T) {
	t.Run("raw list coerced to link list", func(t *testing.T) {
		arena := models.NewArena()
		e := arena.New("")
		raw := models.NewList(models.NewLink(models.NewRecordID(1, 2)), models.NewLink(models.NewRecordID(1, 3)))
		e.SetTyped("links", raw, models.TypeLinkList)

		res, err := Encode(codecctx.Default, e, Options{})
		require.NoError(t, err)
		assert.Equal(t, "links:[#1:2,#1:3]", string(res.Bytes))

		v, _ := e.Get("links")
		assert.Same(t, raw, v)

		require.NotSame(t, e, res.Entity)
		v, _ = res.Entity.Get("links")
		assert.True(t, models.Equal(models.NewLinkList(models.NewRecordID(1, 2), models.NewRecordID(1, 3)), v))
		assert.Equal(t, models.TypeLinkList, res.Entity.Type("links"))
	})

	t.Run("pending ids resolved", func(t *testing.T) {
		pending := models.NewPendingRecordID(1)
		persisted := models.NewRecordID(12, 7)
		ids := models.NewIdentities()
		ids.Assign(pending, persisted)
		ctx := codecctx.New(codecctx.WithIdentities(ids))

		arena := models.NewArena()
		e := arena.New("")
		friend := arena.New("Person")
		require.NoError(t, friend.SetRID(pending))
		e.Set("friend", friend.Ref())
		e.Set("other", models.NewLink(pending))

		res, err := Encode(ctx, e, Options{})
		require.NoError(t, err)
		assert.Equal(t, "friend:#12:7,other:#12:7", string(res.Bytes))

		assert.Equal(t, pending, friend.RID())
		assertValue(t, models.NewLink(pending), e, "other")

		patchedFriend, ok := res.Entity.Arena().Get(friend.Handle())
		require.True(t, ok)
		assert.Equal(t, persisted, patchedFriend.RID())
		assertValue(t, models.NewLink(persisted), res.Entity, "other")
	})

	t.Run("unsaved entity adopted as embedded", func(t *testing.T) {
		arena := models.NewArena()
		e := arena.New("")
		child := arena.New("Address")
		child.Set("city", models.String("Rome"))
		e.Set("address", child.Ref())

		res, err := Encode(codecctx.Default, e, Options{})
		require.NoError(t, err)
		assert.Equal(t, `address:(Address@city:"Rome")`, string(res.Bytes))
		assert.False(t, child.IsEmbedded())

		patched, _ := res.Entity.Arena().Get(child.Handle())
		assert.True(t, patched.IsEmbedded())
		owner, _ := patched.Owner()
		assert.Equal(t, e.Handle(), owner)
	})

	t.Run("nothing to patch", func(t *testing.T) {
		e := models.NewArena().New("")
		e.Set("a", models.Integer(1))

		res, err := Encode(codecctx.Default, e, Options{})
		require.NoError(t, err)
		assert.Same(t, e, res.Entity)
	})
}

func TestEncodeErrors(t *testing.T) {
	t.Run("link list with a scalar", func(t *testing.T) {
		e := models.NewArena().New("")
		e.SetTyped("friends", models.NewList(models.NewLink(models.NewRecordID(1, 1)), models.String("x")), models.TypeLinkList)

		_, err := Encode(codecctx.Default, e, Options{})
		require.ErrorIs(t, err, constants.ErrLinkCast)
		assert.NotErrorIs(t, err, constants.ErrSerialization)

		var castErr *models.LinkCastError
		require.ErrorAs(t, err, &castErr)
		assert.Equal(t, 1, castErr.Index)
		assert.Equal(t, models.TypeString, castErr.Got)
	})

	t.Run("link to an unsaved entity", func(t *testing.T) {
		arena := models.NewArena()
		e := arena.New("")
		e.SetTyped("friend", arena.New("Person").Ref(), models.TypeLink)

		_, err := Encode(codecctx.Default, e, Options{})
		assert.ErrorIs(t, err, constants.ErrLinkCast)
	})

	t.Run("inconvertible scalar", func(t *testing.T) {
		e := models.NewArena().New("")
		e.SetTyped("age", models.Binary{1}, models.TypeInteger)

		_, err := Encode(codecctx.Default, e, Options{})
		require.ErrorIs(t, err, constants.ErrSerialization)
		assert.NotErrorIs(t, err, constants.ErrLinkCast)

		var serErr *models.SerializationError
		require.ErrorAs(t, err, &serErr)
		assert.Equal(t, "age", serErr.Field)
	})

	t.Run("embedded cycle", func(t *testing.T) {
		arena := models.NewArena()
		top := arena.New("")
		a := arena.NewEmbedded(top.Handle(), "")
		b := arena.NewEmbedded(a.Handle(), "")
		a.Set("b", b.Ref())
		b.Set("a", a.Ref())
		top.Set("a", a.Ref())

		_, err := Encode(codecctx.Default, top, Options{})
		assert.True(t, errors.Is(err, constants.ErrCyclicEmbedding))
	})
}

func TestEncodeSkipsTransient(t *testing.T) {
	e := models.NewArena().New("")
	e.SetTyped("cache", models.String("x"), models.TypeTransient)
	e.Set("a", models.Integer(1))

	assert.Equal(t, "a:1", encode(t, codecctx.Default, e))
}

func TestPadding(t *testing.T) {
	e := models.NewArena().New("")
	e.Set("a", models.Integer(1))

	res, err := Encode(codecctx.Default, e, Options{PadToSize: 64})
	require.NoError(t, err)
	assert.Len(t, res.Bytes, 64)

	out, err := Decode(codecctx.Default, res.Bytes, nil)
	require.NoError(t, err)
	assertValue(t, models.Integer(1), out, "a")

	res, err = Encode(codecctx.Default, e, Options{OverAllocation: 2})
	require.NoError(t, err)
	assert.Equal(t, "a:1   ", string(res.Bytes))

	res, err = Encode(codecctx.Default, e, Options{PadToSize: 2})
	require.NoError(t, err)
	assert.Equal(t, "a:1", string(res.Bytes))
}

func TestOmitClass(t *testing.T) {
	e := models.NewArena().New("Person")
	e.Set("a", models.Integer(1))

	res, err := Encode(codecctx.Default, e, Options{OmitClass: true})
	require.NoError(t, err)
	assert.Equal(t, "a:1", string(res.Bytes))
}

func TestCodecReportsMetrics(t *testing.T) {
	sink := metrics.NewBasic()
	ctx := codecctx.New(codecctx.WithMetrics(sink))

	e := models.NewArena().New("")
	e.Set("a", models.Integer(1))
	_, err := Encode(ctx, e, Options{})
	require.NoError(t, err)

	_, err = Decode(ctx, []byte("broken"), nil)
	require.Error(t, err)

	assert.Equal(t, int64(1), sink.Stats(metrics.OpEncode).Count)
	assert.Equal(t, int64(0), sink.Stats(metrics.OpEncode).Errors)
	assert.Equal(t, int64(1), sink.Stats(metrics.OpDecode).Errors)
}

func TestSmartSplit(t *testing.T) {
	assert.Equal(t,
		[]string{`a:"x,y"`, "b:[1,2]", "c:(d:1,e:2)", "f:%#1:2,#1:3%"},
		SmartSplit(`a:"x,y",b:[1,2],c:(d:1,e:2),f:%#1:2,#1:3%`, ','))
	assert.Equal(t, `a\"b\\c`, EscapeString(`a"b\c`))
	assert.Equal(t, `a"b\c`, UnescapeString(`a\"b\\c`))
}
