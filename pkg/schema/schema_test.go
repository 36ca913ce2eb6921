package schema

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
)

const testSchema = `
classes:
  - name: Named
    properties:
      - name: name
        type: string
        collate: ci
  - name: Person
    superclass: Named
    over_size: 1.5
    properties:
      - name: age
        type: INTEGER
      - name: friends
        type: LINKLIST
        linked_class: Person
      - name: tags
        type: EMBEDDEDSET
        linked_type: STRING
`

func TestLoad(t *testing.T) {
	reg, err := Load(strings.NewReader(testSchema))
	require.NoError(t, err)

	assert.Equal(t, []string{"Named", "Person"}, reg.Classes())

	testcases := []struct {
		name       string
		class      string
		field      string
		found      bool
		typ        models.PropertyType
		linkedType models.PropertyType
		collate    string
	}{
		{name: "direct property", class: "Person", field: "age", found: true, typ: models.TypeInteger},
		{name: "inherited property", class: "Person", field: "name", found: true, typ: models.TypeString, collate: "ci"},
		{name: "linked type", class: "Person", field: "tags", found: true, typ: models.TypeEmbeddedSet, linkedType: models.TypeString},
		{name: "unknown field", class: "Person", field: "missing"},
		{name: "unknown class", class: "Ghost", field: "age"},
		{name: "schemaless", class: "", field: "age"},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := reg.Property(tc.class, tc.field)
			require.Equal(t, tc.found, ok)
			if !tc.found {
				return
			}
			assert.Equal(t, tc.typ, p.Type)
			assert.Equal(t, tc.linkedType, p.LinkedType)
			assert.Equal(t, tc.collate, p.Collate)
		})
	}

	assert.InDelta(t, 1.5, reg.OverSize("Person"), 1e-9)
	assert.Zero(t, reg.OverSize("Named"))
}

func TestLoadRejectsUnknownType(t *testing.T) {
	_, err := Load(strings.NewReader("classes:\n  - name: X\n    properties:\n      - name: a\n        type: NOPE\n"))
	require.ErrorIs(t, err, constants.ErrUnknownType)
}

func TestDefineValidates(t *testing.T) {
	reg := NewRegistry()
	require.Error(t, reg.Define(Class{}))
	require.Error(t, reg.Define(Class{Name: "A", Properties: []Property{{Name: "x"}, {Name: "x"}}}))

	_, err := reg.Class("A")
	require.ErrorIs(t, err, constants.ErrUnknownClass)
}

func TestSuperClassCycle(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(Class{Name: "A", SuperClass: "B"}))
	require.NoError(t, reg.Define(Class{Name: "B", SuperClass: "A"}))

	_, ok := reg.Property("A", "x")
	assert.False(t, ok)
}

func TestSaveLoad(t *testing.T) {
	reg, err := Load(strings.NewReader(testSchema))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, reg.Save(&buf))
	assert.Contains(t, buf.String(), "type: LINKLIST")

	again, err := Load(&buf)
	require.NoError(t, err)
	p, ok := again.Property("Person", "friends")
	require.True(t, ok)
	assert.Equal(t, "Person", p.LinkedClass)
}
