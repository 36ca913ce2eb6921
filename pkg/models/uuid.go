package models

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
	"github.com/surrealdb/recordcodec/pkg/constants"
)

// UUID identifies a bag before it has been persisted.
//
// It travels as CBOR tag 37 so a delta that targets a freshly created
// bag can be matched with the bag instance it was computed from.
type UUID struct {
	uuid.UUID
}

// NewUUID returns a random version 4 identifier.
func NewUUID() UUID {
	return UUID{UUID: uuid.Must(uuid.NewV4())}
}

// ParseUUID accepts the canonical hyphenated form.
func ParseUUID(s string) (UUID, error) {
	id, err := uuid.FromString(s)
	if err != nil {
		return UUID{}, fmt.Errorf("%w: bag id %q: %v", constants.ErrMalformedRecord, s, err)
	}
	return UUID{UUID: id}, nil
}

func (u UUID) MarshalCBOR() ([]byte, error) {
	return getCborEncoder().Marshal(cbor.Tag{Number: TagBinaryUUID, Content: u.Bytes()})
}

func (u *UUID) UnmarshalCBOR(data []byte) error {
	var tag cbor.RawTag
	if err := getCborDecoder().Unmarshal(data, &tag); err != nil {
		return err
	}
	if tag.Number != TagBinaryUUID {
		return fmt.Errorf("%w: bag id has tag %d, want %d", constants.ErrMalformedRecord, tag.Number, TagBinaryUUID)
	}

	var raw []byte
	if err := getCborDecoder().Unmarshal(tag.Content, &raw); err != nil {
		return fmt.Errorf("%w: bag id: %v", constants.ErrMalformedRecord, err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: bag id: %v", constants.ErrMalformedRecord, err)
	}
	u.UUID = id
	return nil
}
