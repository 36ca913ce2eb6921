package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/surrealdb/recordcodec/pkg/constants"
)

type EntityTestSuite struct {
	suite.Suite
	arena  *Arena
	person *Entity
}

func TestEntitySuite(t *testing.T) {
	suite.Run(t, new(EntityTestSuite))
}

func (s *EntityTestSuite) SetupTest() {
	s.arena = NewArena()
	s.person = s.arena.New("Person")
	s.person.Set("name", String("Ada"))
	s.person.SetTyped("born", Long(1815), TypeLong)
	s.person.Set("alive", Boolean(false))
}

func (s *EntityTestSuite) TestFieldsKeepInsertionOrder() {
	s.person.Set("born", Long(1816))
	s.Equal([]string{"name", "born", "alive"}, s.person.Names())
	s.Equal(TypeLong, s.person.Type("born"))

	s.True(s.person.Remove("name"))
	s.False(s.person.Remove("name"))
	s.Equal([]string{"born", "alive"}, s.person.Names())

	v, ok := s.person.Get("alive")
	s.True(ok)
	s.Equal(Boolean(false), v)
}

func (s *EntityTestSuite) TestDeclareBeforeSet() {
	s.person.Declare("height", TypeFloat)
	s.Equal(TypeFloat, s.person.Type("height"))
	s.False(s.person.Has("height"))

	s.person.Set("height", Double(1.6))
	f, ok := s.person.Field("height")
	s.Require().True(ok)
	s.Equal(TypeFloat, f.Type)

	s.person.Declare("name", TypeString)
	s.Equal(TypeString, s.person.Type("name"))

	s.person.ClearType("name")
	s.Equal(TypeAny, s.person.Type("name"))
}

func (s *EntityTestSuite) TestIdentity() {
	s.False(s.person.Identifiable())

	s.Require().NoError(s.person.SetRID(NewPendingRecordID(0)))
	s.True(s.person.Identifiable())
	s.Require().NoError(s.person.SetRID(NewRecordID(5, 3)))
	s.Equal(NewRecordID(5, 3), s.person.RID())

	address := s.arena.NewEmbedded(s.person.Handle(), "Address")
	s.ErrorIs(address.SetRID(NewRecordID(5, 4)), constants.ErrInvalidRecordID)
	s.False(address.Identifiable())
}

func (s *EntityTestSuite) TestSetAdoptsEmbeddedEntities() {
	address := s.arena.NewEmbedded(NoHandle, "Address")
	_, owned := address.Owner()
	s.False(owned)

	s.person.Set("addresses", NewList(address.Ref()))
	owner, owned := address.Owner()
	s.True(owned)
	s.Equal(s.person.Handle(), owner)

	resolved, err := s.arena.Resolve(address.Ref())
	s.Require().NoError(err)
	s.Same(address, resolved)

	_, err = s.arena.Resolve(Record{Handle: 42})
	s.ErrorIs(err, constants.ErrUnknownHandle)
}

func (s *EntityTestSuite) TestMarkCleanSnapshotsEmbedded() {
	address := s.arena.NewEmbedded(NoHandle, "Address")
	address.Set("city", String("London"))
	s.person.Set("address", address.Ref())
	s.person.MarkClean()

	address.Set("city", String("Paris"))
	s.person.Clear()

	baseline, ok := s.person.Baseline()
	s.Require().True(ok)
	s.Equal("Person", baseline.Class)
	s.Len(baseline.Fields, 4)

	addressBaseline, ok := address.Baseline()
	s.Require().True(ok)
	city, ok := addressBaseline.Field("city")
	s.Require().True(ok)
	s.Equal(String("London"), city.Value)
}

func (s *EntityTestSuite) TestEmbeddedVisitsCyclesOnce() {
	first := s.arena.NewEmbedded(NoHandle, "")
	second := s.arena.NewEmbedded(NoHandle, "")
	first.Set("next", second.Ref())
	second.Set("next", first.Ref())
	s.person.Set("chain", first.Ref())

	s.Equal([]*Entity{s.person, first, second}, s.person.Embedded())
}

func (s *EntityTestSuite) TestArenaCloneIsIndependent() {
	tags := NewList(String("a"))
	s.person.Set("tags", tags)
	s.person.MarkClean()

	clone := s.arena.Clone()
	copied, ok := clone.Get(s.person.Handle())
	s.Require().True(ok)
	s.NotSame(s.person, copied)
	s.Same(clone, copied.Arena())

	tags.Items = append(tags.Items, String("b"))
	copied.Set("name", String("Grace"))

	v, _ := copied.Get("tags")
	s.Equal([]Value{String("a")}, v.(*List).Items)
	name, _ := s.person.Get("name")
	s.Equal(String("Ada"), name)
}

func TestValueEqualAndClone(t *testing.T) {
	original := NewMap(
		MapEntry{Key: "bytes", Value: Binary("abc")},
		MapEntry{Key: "links", Value: NewLinkSet(ridA, ridB, ridA)},
	)
	clone := CloneValue(original).(*Map)
	require.True(t, Equal(original, clone))

	b, _ := clone.Get("bytes")
	b.(Binary)[0] = 'z'
	assert.False(t, Equal(original, clone))

	links, _ := original.Get("links")
	assert.Len(t, links.(*LinkSet).Items, 2)

	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(Integer(1), Long(1)))
	assert.False(t, Equal(Integer(1), nil))
}
