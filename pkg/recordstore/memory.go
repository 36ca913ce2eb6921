package recordstore

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// MemoryStore is a Store held in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[models.RecordID][]byte
	next    map[int32]int64
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[models.RecordID][]byte),
		next:    make(map[int32]int64),
	}
}

func (s *MemoryStore) Allocate(cluster int32) (models.RecordID, error) {
	if cluster < 0 {
		return models.UnresolvedRecordID, fmt.Errorf("%w: cluster %d", constants.ErrInvalidRecordID, cluster)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.UnresolvedRecordID, constants.ErrStoreClosed
	}
	position := s.next[cluster]
	s.next[cluster] = position + 1
	return models.NewRecordID(cluster, position), nil
}

func (s *MemoryStore) Put(rid models.RecordID, data []byte) error {
	if err := validate(rid); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return constants.ErrStoreClosed
	}
	s.records[rid] = bytes.Clone(data)
	if rid.Position >= s.next[rid.Cluster] {
		s.next[rid.Cluster] = rid.Position + 1
	}
	return nil
}

func (s *MemoryStore) Load(rid models.RecordID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, constants.ErrStoreClosed
	}
	data, ok := s.records[rid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrNotFound, rid)
	}
	return bytes.Clone(data), nil
}

func (s *MemoryStore) Delete(rid models.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return constants.ErrStoreClosed
	}
	if _, ok := s.records[rid]; !ok {
		return fmt.Errorf("%w: %s", constants.ErrNotFound, rid)
	}
	delete(s.records, rid)
	return nil
}

func (s *MemoryStore) Scan(fn func(rid models.RecordID, data []byte) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return constants.ErrStoreClosed
	}
	rids := slices.SortedFunc(maps.Keys(s.records), models.RecordID.Compare)
	snapshot := make([][]byte, len(rids))
	for i, rid := range rids {
		snapshot[i] = s.records[rid]
	}
	s.mu.RUnlock()

	for i, rid := range rids {
		if err := fn(rid, bytes.Clone(snapshot[i])); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
