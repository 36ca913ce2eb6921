// Package models defines the in-memory record model shared by the codecs:
// property types, record ids, the [Value] union, and the [Arena] that owns
// entities and their embedded children.
//
// # Entities and handles
//
// Entities are created through an Arena and refer to each other with
// [Record] values holding a [Handle]. An embedded entity records the handle
// of its owner instead of a pointer, which keeps the graph acyclic from the
// garbage collector's point of view and lets [Arena.Clone] copy a tree
// without remapping references.
//
// # Null and absent
//
// A field that exists with a nil [Value] stores null. A field that does not
// exist is absent. Collections may hold nil elements.
package models
