// The [recordcodec] package turns schema-flexible documents into bytes and back.
//
// # Entities
//
// A document is a [models.Entity] living in a [models.Arena]. Entities embed
// each other by handle, so an embedded document is a [models.Record] value
// and a reference to another stored document is a [models.Link].
//
// # Formats
//
// Records are stored in the self-describing text format of
// [github.com/surrealdb/recordcodec/pkg/textcodec]. Changes travel as deltas
// produced by [github.com/surrealdb/recordcodec/pkg/delta], which only carry
// what changed since the entity was last marked clean. Indexes compare single
// fields with [github.com/surrealdb/recordcodec/pkg/comparator], and
// [github.com/surrealdb/recordcodec/pkg/jsonbridge] converts documents to and
// from JSON.
//
// # Use Codec for most use cases
//
// [Codec] bundles these packages around one [codecctx.Context] and a
// [recordstore.Store], so that saving a new entity allocates its identity and
// later links to it are written with the allocated id.
//
// # Tools
//
// The [github.com/surrealdb/recordcodec/contrib] directory holds the
// recordtool command line and test helpers. They are not covered by the
// package's backward compatibility guarantee.
package recordcodec
