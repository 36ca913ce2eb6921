package constants

import "errors"

// Errors
var (
	ErrSerialization   = errors.New("error serializing record field")
	ErrLinkCast        = errors.New("link collection element is not identifiable")
	ErrCyclicEmbedding = errors.New("embedded entity references itself")
	ErrMalformedRecord = errors.New("malformed record content")
)

var (
	ErrInvalidRecordID = errors.New("invalid record id")
	ErrUnknownType     = errors.New("unknown property type")
	ErrUnknownHandle   = errors.New("entity handle is not part of the arena")
	ErrIncomparable    = errors.New("values are not comparable")
	ErrMalformedField  = errors.New("malformed binary field")
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrStoreClosed  = errors.New("record store is closed")
	ErrUnknownClass = errors.New("class is not defined in the schema")
)
