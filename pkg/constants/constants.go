package constants

// Framing characters of the text record format.
const (
	RecordSeparator = ','
	ClassSeparator  = '@'
	EntrySeparator  = ':'
	LinkPrefix      = '#'
	StringDelimiter = '"'
	EscapeChar      = '\\'
	BinaryDelimiter = '_'

	EmbeddedBegin = '('
	EmbeddedEnd   = ')'
	ListBegin     = '['
	ListEnd       = ']'
	SetBegin      = '<'
	SetEnd        = '>'
	MapBegin      = '{'
	MapEnd        = '}'
	BagDelimiter  = '%'

	// LegacyBagEnd terminates bags written by older releases.
	LegacyBagEnd = ';'
)

// ClassField is the pseudo field name that selects only the class tag in a
// partial decode.
const ClassField = "@class"

// MillisPerDay is used to convert DATE values between days and milliseconds.
const MillisPerDay int64 = 86_400_000
