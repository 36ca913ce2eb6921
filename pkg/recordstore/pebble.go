package recordstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
	"github.com/surrealdb/recordcodec/pkg/constants"
	"github.com/surrealdb/recordcodec/pkg/models"
)

// Key layout: 'r' cluster position for records, 'c' cluster for the next
// free position of a cluster. Both parts are big endian, so records
// iterate in id order.
const (
	recordPrefix  byte = 'r'
	counterPrefix byte = 'c'
)

// PebbleStore is a Store on a Pebble database. Record bytes are zstd
// compressed.
type PebbleStore struct {
	// mu guards the open state, alloc the cluster counters.
	mu     sync.RWMutex
	alloc  sync.Mutex
	closed bool

	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

var _ Store = (*PebbleStore)(nil)

type pebbleConfig struct {
	sync  bool
	level zstd.EncoderLevel
}

type PebbleOption func(*pebbleConfig)

// WithSync makes every write wait for the write-ahead log to reach disk.
func WithSync() PebbleOption {
	return func(c *pebbleConfig) {
		c.sync = true
	}
}

func WithCompressionLevel(level zstd.EncoderLevel) PebbleOption {
	return func(c *pebbleConfig) {
		c.level = level
	}
}

// OpenPebble opens or creates the store in dir.
func OpenPebble(dir string, opts ...PebbleOption) (*PebbleStore, error) {
	cfg := pebbleConfig{level: zstd.SpeedDefault}
	for _, opt := range opts {
		opt(&cfg)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(cfg.level))
	if err != nil {
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, err
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		_ = encoder.Close()
		decoder.Close()
		return nil, fmt.Errorf("open record store %s: %w", dir, err)
	}

	writeOpts := pebble.NoSync
	if cfg.sync {
		writeOpts = pebble.Sync
	}
	return &PebbleStore{db: db, writeOpts: writeOpts, encoder: encoder, decoder: decoder}, nil
}

func recordKey(rid models.RecordID) []byte {
	key := make([]byte, 13)
	key[0] = recordPrefix
	binary.BigEndian.PutUint32(key[1:], uint32(rid.Cluster))
	binary.BigEndian.PutUint64(key[5:], uint64(rid.Position))
	return key
}

func parseRecordKey(key []byte) (models.RecordID, bool) {
	if len(key) != 13 || key[0] != recordPrefix {
		return models.UnresolvedRecordID, false
	}
	cluster := int32(binary.BigEndian.Uint32(key[1:]))
	position := int64(binary.BigEndian.Uint64(key[5:]))
	return models.NewRecordID(cluster, position), true
}

func counterKey(cluster int32) []byte {
	key := make([]byte, 5)
	key[0] = counterPrefix
	binary.BigEndian.PutUint32(key[1:], uint32(cluster))
	return key
}

// get copies the value stored under key. Pebble only keeps the returned
// slice valid until the closer is closed.
func (s *PebbleStore) get(key []byte) ([]byte, bool, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), value...), true, nil
}

func (s *PebbleStore) counter(cluster int32) (int64, error) {
	value, ok, err := s.get(counterKey(cluster))
	if err != nil || !ok {
		return 0, err
	}
	if len(value) != 8 {
		return 0, fmt.Errorf("corrupt counter for cluster %d", cluster)
	}
	return int64(binary.BigEndian.Uint64(value)), nil
}

func counterValue(next int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(next))
}

func (s *PebbleStore) Allocate(cluster int32) (models.RecordID, error) {
	if cluster < 0 {
		return models.UnresolvedRecordID, fmt.Errorf("%w: cluster %d", constants.ErrInvalidRecordID, cluster)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return models.UnresolvedRecordID, constants.ErrStoreClosed
	}

	s.alloc.Lock()
	defer s.alloc.Unlock()
	next, err := s.counter(cluster)
	if err != nil {
		return models.UnresolvedRecordID, err
	}
	if err := s.db.Set(counterKey(cluster), counterValue(next+1), s.writeOpts); err != nil {
		return models.UnresolvedRecordID, err
	}
	return models.NewRecordID(cluster, next), nil
}

func (s *PebbleStore) Put(rid models.RecordID, data []byte) error {
	if err := validate(rid); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return constants.ErrStoreClosed
	}

	s.alloc.Lock()
	defer s.alloc.Unlock()
	next, err := s.counter(rid.Cluster)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(recordKey(rid), s.encoder.EncodeAll(data, nil), nil); err != nil {
		return err
	}
	if rid.Position >= next {
		if err := batch.Set(counterKey(rid.Cluster), counterValue(rid.Position+1), nil); err != nil {
			return err
		}
	}
	return batch.Commit(s.writeOpts)
}

func (s *PebbleStore) Load(rid models.RecordID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, constants.ErrStoreClosed
	}

	value, ok, err := s.get(recordKey(rid))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", constants.ErrNotFound, rid)
	}
	return s.decoder.DecodeAll(value, nil)
}

func (s *PebbleStore) Delete(rid models.RecordID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return constants.ErrStoreClosed
	}

	key := recordKey(rid)
	_, ok, err := s.get(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrNotFound, rid)
	}
	return s.db.Delete(key, s.writeOpts)
}

func (s *PebbleStore) Scan(fn func(rid models.RecordID, data []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return constants.ErrStoreClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{recordPrefix},
		UpperBound: []byte{recordPrefix + 1},
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rid, ok := parseRecordKey(iter.Key())
		if !ok {
			continue
		}
		data, err := s.decoder.DecodeAll(iter.Value(), nil)
		if err != nil {
			return fmt.Errorf("record %s: %w", rid, err)
		}
		if err := fn(rid, data); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.decoder.Close()
	if err := s.encoder.Close(); err != nil {
		return err
	}
	return s.db.Close()
}
