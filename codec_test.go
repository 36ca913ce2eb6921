package recordcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/recordcodec/pkg/codecctx"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
	"github.com/surrealdb/recordcodec/pkg/recordstore"
	"github.com/surrealdb/recordcodec/pkg/schema"
)

func TestSaveResolvesPendingLinks(t *testing.T) {
	store := recordstore.NewMemoryStore()
	codec := New(store)
	defer codec.Close()

	arena := models.NewArena()
	pending := models.NewPendingRecordID(1)
	author := arena.New("Author")
	require.NoError(t, author.SetRID(pending))
	author.Set("name", models.String("Ada"))

	book := arena.New("Book")
	book.Set("title", models.String("Notes"))
	book.Set("author", models.NewLink(pending))

	authorID, _, err := codec.Save(author, 3)
	require.NoError(t, err)
	assert.Equal(t, models.NewRecordID(3, 0), authorID)
	assert.Equal(t, authorID, author.RID())

	bookID, saved, err := codec.Save(book, 4)
	require.NoError(t, err)
	assert.Equal(t, models.NewRecordID(4, 0), bookID)
	require.NotSame(t, book, saved)
	assert.Equal(t, bookID, saved.RID())
	written, _ := saved.Get("author")
	assert.Equal(t, models.NewLink(authorID), written)
	original, _ := book.Get("author")
	assert.Equal(t, models.NewLink(pending), original)
	_, hasBaseline := saved.Baseline()
	assert.True(t, hasBaseline, "the written copy is clean")

	stored, err := store.Load(bookID)
	require.NoError(t, err)
	assert.Equal(t, `Book@title:"Notes",author:#3:0`, string(stored))

	loaded, err := codec.Load(bookID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Book", loaded.ClassName())
	assert.Equal(t, bookID, loaded.RID())
	link, _ := loaded.Get("author")
	assert.Equal(t, models.NewLink(authorID), link)

	_, hasBaseline = loaded.Baseline()
	assert.True(t, hasBaseline, "loaded entities are clean")
}

func TestSavePadsToPreviousSize(t *testing.T) {
	store := recordstore.NewMemoryStore()
	codec := New(store)

	e := models.NewArena().New("Note")
	e.Set("text", models.String("a rather long first draft"))
	rid, saved, err := codec.Save(e, 1)
	require.NoError(t, err)
	assert.Same(t, e, saved)
	first, err := store.Load(rid)
	require.NoError(t, err)

	e.Set("text", models.String("short"))
	again, _, err := codec.Save(e, 1)
	require.NoError(t, err)
	assert.Equal(t, rid, again)

	second, err := store.Load(rid)
	require.NoError(t, err)
	assert.Len(t, second, len(first))

	loaded, err := codec.Load(rid, nil)
	require.NoError(t, err)
	text, _ := loaded.Get("text")
	assert.Equal(t, models.String("short"), text)
}

func TestDeltaKeepsReplicaInSync(t *testing.T) {
	store := recordstore.NewMemoryStore()
	codec := New(store)

	source := models.NewArena().New("Counter")
	source.Set("count", models.Integer(1))
	source.Set("tags", models.NewList(models.String("a")))
	rid, _, err := codec.Save(source, 2)
	require.NoError(t, err)

	replica, err := codec.Load(rid, nil)
	require.NoError(t, err)

	source.Set("count", models.Integer(2))
	source.Set("tags", models.NewList(models.String("a"), models.String("b")))
	source.Set("extra", models.Boolean(true))
	changes, err := codec.Delta(source)
	require.NoError(t, err)
	require.NoError(t, codec.ApplyDelta(changes, replica))

	for _, name := range source.Names() {
		want, _ := source.Get(name)
		got, ok := replica.Get(name)
		require.True(t, ok, "field %q", name)
		assert.True(t, models.Equal(want, got), "field %q: want %#v, got %#v", name, want, got)
	}

	snapshot, err := codec.Snapshot(source)
	require.NoError(t, err)
	restored := models.NewArena().New("")
	require.NoError(t, codec.Restore(snapshot, restored))
	assert.Equal(t, source.Names(), restored.Names())
}

func TestNewKeepsCallerOptions(t *testing.T) {
	opts := make([]codecctx.Option, 1, 2)
	opts[0] = codecctx.WithSchema(schema.NewRegistry())

	first := New(nil, opts...)
	second := New(nil, opts...)
	assert.Len(t, opts, 1)
	assert.Nil(t, opts[:2][1], "spare capacity of the caller's slice is untouched")
	assert.NotSame(t, first.Identities(), second.Identities())

	pending := models.NewPendingRecordID(0)
	first.Identities().Assign(pending, models.NewRecordID(1, 1))
	_, ok := second.Context().ResolveIdentity(pending)
	assert.False(t, ok)
	_, ok = first.Context().ResolveIdentity(pending)
	assert.True(t, ok)
}

func TestCompareFieldUsesSchemaCollation(t *testing.T) {
	registry := schema.NewRegistry()
	require.NoError(t, registry.Define(schema.Class{
		Name:       "Person",
		Properties: []schema.Property{{Name: "name", Type: models.TypeString, Collate: "ci"}},
	}))
	codec := New(nil, codecctx.WithSchema(registry))

	arena := models.NewArena()
	a := arena.New("Person")
	a.Set("name", models.String("ADA"))
	b := arena.New("Person")
	b.Set("name", models.String("ada"))

	n, err := codec.CompareField(a, b, "name")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = codec.CompareField(a, b, "missing")
	assert.Error(t, err)
}

func TestJSONThroughCodec(t *testing.T) {
	codec := New(nil)
	e := models.NewArena().New("Tag")
	e.Set("label", models.String("go"))

	data, err := codec.ExportJSON(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"@class":"Tag","label":"go"}`, string(data))

	copied, err := codec.ImportJSON(data, nil)
	require.NoError(t, err)
	label, _ := copied.Get("label")
	assert.Equal(t, models.String("go"), label)
}

func TestCodecWithoutStore(t *testing.T) {
	codec := New(nil)
	e := models.NewArena().New("")

	_, _, err := codec.Save(e, 1)
	assert.ErrorIs(t, err, errNoStore)
	_, err = codec.Load(models.NewRecordID(1, 0), nil)
	assert.ErrorIs(t, err, errNoStore)
	assert.ErrorIs(t, codec.Delete(models.NewRecordID(1, 0)), errNoStore)
	assert.NoError(t, codec.Close())
}

func TestLoadMissingRecord(t *testing.T) {
	codec := New(recordstore.NewMemoryStore())

	_, err := codec.Load(models.NewRecordID(1, 0), nil)
	assert.ErrorIs(t, err, constants.ErrNotFound)

	embedded := models.NewArena().NewEmbedded(models.NoHandle, "Inner")
	_, _, err = codec.Save(embedded, 1)
	assert.ErrorIs(t, err, constants.ErrInvalidRecordID)
}
