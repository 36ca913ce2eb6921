// Package contrib holds tools and helpers built on the record codecs.
//
// Nothing under contrib is covered by the compatibility guarantees of the
// root package and may change between minor versions.
//
// [github.com/surrealdb/recordcodec/contrib/recordtool] is a command line
// for converting records between JSON and the text format, inferring field
// types, diffing documents into binary deltas and keeping records in a
// local Pebble store. [github.com/surrealdb/recordcodec/contrib/testenv]
// provides a deterministic slog handler for asserting codec logs in tests.
package contrib
