// Package recordstore keeps encoded records by identity. It hands out
// record ids per cluster, stores and loads record bytes, and settles the
// pending ids of freshly created entities.
package recordstore

import (
	"fmt"

	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// Store persists encoded records.
type Store interface {
	// Allocate reserves the next position of cluster.
	Allocate(cluster int32) (models.RecordID, error)
	Put(rid models.RecordID, data []byte) error
	// Load returns the bytes stored under rid, or constants.ErrNotFound.
	Load(rid models.RecordID) ([]byte, error)
	Delete(rid models.RecordID) error
	// Scan calls fn for every record in id order until fn returns an
	// error.
	Scan(fn func(rid models.RecordID, data []byte) error) error
	Close() error
}

// Identify gives e a persistent identity in cluster when it has none yet.
// A pending id is recorded in identities, so links written with it
// resolve to the allocated one.
func Identify(s Store, e *models.Entity, cluster int32, identities *models.Identities) (models.RecordID, error) {
	current := e.RID()
	if current.IsPersistent() {
		return current, nil
	}
	if e.IsEmbedded() {
		return models.UnresolvedRecordID, fmt.Errorf("%w: embedded entity cannot be stored on its own", constants.ErrInvalidRecordID)
	}

	rid, err := s.Allocate(cluster)
	if err != nil {
		return models.UnresolvedRecordID, err
	}
	if current.IsPending() && identities != nil {
		identities.Assign(current, rid)
	}
	if err := e.SetRID(rid); err != nil {
		return models.UnresolvedRecordID, err
	}
	return rid, nil
}

func validate(rid models.RecordID) error {
	if !rid.IsPersistent() {
		return fmt.Errorf("%w: %s is not a persistent id", constants.ErrInvalidRecordID, rid)
	}
	return nil
}
