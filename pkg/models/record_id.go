package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/surrealdb/recordcodec/pkg/constants"
)

// RecordID addresses a top-level record by cluster and position.
//
// A RecordID with a negative cluster is a pending placeholder for a record
// that has not been assigned a position yet. The special value
// [UnresolvedRecordID] marks a reference that could not be parsed.
type RecordID struct {
	Cluster  int32
	Position int64
}

// UnresolvedRecordID is substituted for link tokens that fail to parse.
var UnresolvedRecordID = RecordID{Cluster: -1, Position: -1}

// pendingCluster is the cluster used by NewPendingRecordID.
const pendingCluster int32 = -2

func NewRecordID(cluster int32, position int64) RecordID {
	return RecordID{Cluster: cluster, Position: position}
}

// NewPendingRecordID returns the placeholder for the seq-th record created
// within a write.
func NewPendingRecordID(seq int64) RecordID {
	return RecordID{Cluster: pendingCluster, Position: seq}
}

// ParseRecordID parses the `#cluster:position` form. The leading `#` is
// optional.
func ParseRecordID(s string) (RecordID, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, string(constants.LinkPrefix))

	cluster, position, ok := strings.Cut(trimmed, string(constants.EntrySeparator))
	if !ok {
		return UnresolvedRecordID, fmt.Errorf("%w: %q, expected format is '#cluster:position'", constants.ErrInvalidRecordID, s)
	}

	c, err := strconv.ParseInt(cluster, 10, 32)
	if err != nil {
		return UnresolvedRecordID, fmt.Errorf("%w: cluster of %q: %v", constants.ErrInvalidRecordID, s, err)
	}
	p, err := strconv.ParseInt(position, 10, 64)
	if err != nil {
		return UnresolvedRecordID, fmt.Errorf("%w: position of %q: %v", constants.ErrInvalidRecordID, s, err)
	}

	return RecordID{Cluster: int32(c), Position: p}, nil
}

// IsPersistent reports whether the id addresses a stored record.
func (r RecordID) IsPersistent() bool {
	return r.Cluster >= 0 && r.Position >= 0
}

// IsPending reports whether the id is a placeholder awaiting allocation.
func (r RecordID) IsPending() bool {
	return r.Cluster < 0 && r != UnresolvedRecordID
}

// IsValid reports whether the id is either persistent or pending.
func (r RecordID) IsValid() bool {
	return r.IsPersistent() || r.IsPending()
}

// Compare orders ids by cluster, then position.
func (r RecordID) Compare(other RecordID) int {
	switch {
	case r.Cluster < other.Cluster:
		return -1
	case r.Cluster > other.Cluster:
		return 1
	case r.Position < other.Position:
		return -1
	case r.Position > other.Position:
		return 1
	}
	return 0
}

func (r RecordID) String() string {
	var sb strings.Builder
	sb.Grow(24)
	sb.WriteByte(constants.LinkPrefix)
	sb.WriteString(strconv.FormatInt(int64(r.Cluster), 10))
	sb.WriteByte(constants.EntrySeparator)
	sb.WriteString(strconv.FormatInt(r.Position, 10))
	return sb.String()
}

func (r RecordID) MarshalCBOR() ([]byte, error) {
	enc := getCborEncoder()

	return enc.Marshal(cbor.Tag{
		Number:  TagRecordID,
		Content: []int64{int64(r.Cluster), r.Position},
	})
}

func (r *RecordID) UnmarshalCBOR(data []byte) error {
	dec := getCborDecoder()

	var tag cbor.RawTag
	if err := dec.Unmarshal(data, &tag); err != nil {
		return err
	}
	if tag.Number != TagRecordID {
		return fmt.Errorf("%w: unexpected tag number %d", constants.ErrInvalidRecordID, tag.Number)
	}

	var temp []int64
	if err := dec.Unmarshal(tag.Content, &temp); err != nil {
		return err
	}
	if len(temp) != 2 {
		return fmt.Errorf("%w: expected 2 components, got %d", constants.ErrInvalidRecordID, len(temp))
	}

	r.Cluster = int32(temp[0])
	r.Position = temp[1]

	return nil
}
