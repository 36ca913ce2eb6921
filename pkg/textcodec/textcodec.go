// Package textcodec reads and writes entities in the self-describing text
// record format:
//
//	Person@name:"Jay",age:20,oldAge:20l,tags:<"a","b">,friend:#10:3,address:(city:"Rome")
//
// Numbers carry a one letter type suffix unless they are INTEGER, strings
// are quoted, and composite values are framed by brackets, so a record can
// be decoded without a schema. When a schema is available through the
// codec context its declarations take precedence over what the tokens
// suggest.
package textcodec

import (
	"github.com/surrealdb/recordcodec/internal/textscan"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// Options tune Encode.
type Options struct {
	// PadToSize is the size the record occupied on disk before. The output
	// is padded with blanks up to it so the record can be updated in place.
	PadToSize int
	// OverAllocation pads the output to its length times the factor. Zero
	// falls back to the over-size factor of the entity's class.
	OverAllocation float64
	// OmitClass leaves out the class tag of the top-level entity.
	OmitClass bool
}

// Result is the outcome of Encode.
type Result struct {
	Bytes []byte
	// Entity is the entity the bytes describe. When encoding had to coerce
	// collections into link collections or replace pending record ids, it
	// is a patched copy living in a cloned arena. Otherwise it is the
	// entity that was passed in.
	Entity *models.Entity
}

// SmartSplit cuts s on sep, ignoring separators nested in quotes or
// brackets.
func SmartSplit(s string, sep byte) []string {
	return textscan.Split(s, sep)
}

func EscapeString(s string) string {
	return textscan.Escape(s)
}

func UnescapeString(s string) string {
	return textscan.Unescape(s)
}
