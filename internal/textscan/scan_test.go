package textscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	testcases := []struct {
		name string
		in   string
		sep  byte
		want []string
	}{
		{name: "empty", in: "", sep: ',', want: nil},
		{name: "blank", in: "   ", sep: ',', want: nil},
		{name: "flat", in: "a:1,b:2", sep: ',', want: []string{"a:1", "b:2"}},
		{name: "trims", in: " a:1 , b:2 ", sep: ',', want: []string{"a:1", "b:2"}},
		{name: "nested list", in: "a:[1,2],b:3", sep: ',', want: []string{"a:[1,2]", "b:3"}},
		{name: "nested map", in: `a:{"x":1,"y":2},b:3`, sep: ',', want: []string{`a:{"x":1,"y":2}`, "b:3"}},
		{name: "embedded", in: "a:(x:1,y:(z:2)),b:3", sep: ',', want: []string{"a:(x:1,y:(z:2))", "b:3"}},
		{name: "set", in: "a:<1,2>,b:3", sep: ',', want: []string{"a:<1,2>", "b:3"}},
		{name: "bag", in: "a:%#1:2,#1:3%,b:3", sep: ',', want: []string{"a:%#1:2,#1:3%", "b:3"}},
		{name: "legacy bag", in: "a:%#1:2,#1:3;,b:3", sep: ',', want: []string{"a:%#1:2,#1:3;", "b:3"}},
		{name: "quoted separator", in: `a:"x,y",b:"(["`, sep: ',', want: []string{`a:"x,y"`, `b:"(["`}},
		{name: "escaped quote", in: `a:"say \"hi, there\"",b:1`, sep: ',', want: []string{`a:"say \"hi, there\""`, "b:1"}},
		{name: "trailing empty", in: "a,", sep: ',', want: []string{"a", ""}},
		{name: "colon separator", in: `"k":#10:3`, sep: ':', want: []string{`"k"`, "#10", "3"}},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Split(tc.in, tc.sep))
		})
	}
}

func TestIndexTopLevel(t *testing.T) {
	assert.Equal(t, 3, IndexTopLevel(`"k":#10:3`, ':'))
	assert.Equal(t, 9, IndexTopLevel(`"a:b\":c":1`, ':'))
	assert.Equal(t, -1, IndexTopLevel(`(a:1)`, ':'))
}

func TestEscapeRoundTrip(t *testing.T) {
	testcases := []string{"", "plain", `quote " inside`, `back\slash`, `\"`, "line\nbreak"}
	for _, s := range testcases {
		assert.Equal(t, s, Unquote(Quote(s)), "round trip of %q", s)
	}
	assert.Equal(t, `a\"b\\c`, Escape(`a"b\c`))
	assert.Equal(t, "a\tb", Unescape(`a\tb`))
}

func TestUnwrap(t *testing.T) {
	inner, ok := Unwrap("[1,2]", '[', ']')
	assert.True(t, ok)
	assert.Equal(t, "1,2", inner)

	_, ok = Unwrap("[1,2", '[', ']')
	assert.False(t, ok)
	_, ok = Unwrap("[", '[', ']')
	assert.False(t, ok)
}
