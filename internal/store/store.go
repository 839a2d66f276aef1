// Package store persists the paired-peer set in a BoltDB file so pairings
// survive restarts.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"poisync/internal/wire"
)

var peersBucket = []byte("peers")

// PairedPeer is one persisted pairing.
type PairedPeer struct {
	Endpoint string    `msgpack:"endpoint"`
	Name     string    `msgpack:"name"`
	PairedAt time.Time `msgpack:"paired_at"`
	LastSeen time.Time `msgpack:"last_seen"`
}

// Store wraps a bbolt database holding paired peers.
type Store struct {
	db  *bolt.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// New opens or creates a BoltDB file at the given path.
func New(path string, log zerolog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(peersBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating peers bucket: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or refreshes a pairing, keyed by endpoint. PairedAt is
// preserved across updates.
func (s *Store) Put(ep wire.Endpoint, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(peersBucket)
		key := ep[:]

		now := time.Now()
		record := PairedPeer{
			Endpoint: ep.String(),
			Name:     name,
			PairedAt: now,
			LastSeen: now,
		}

		if existing := b.Get(key); existing != nil {
			var prev PairedPeer
			if err := msgpack.Unmarshal(existing, &prev); err == nil {
				record.PairedAt = prev.PairedAt
			}
		} else {
			s.log.Info().
				Str("endpoint", record.Endpoint).
				Str("peer", name).
				Msg("Pairing saved")
		}

		data, err := msgpack.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling peer record: %w", err)
		}
		return b.Put(key, data)
	})
}

// Delete removes a pairing.
func (s *Store) Delete(ep wire.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(peersBucket).Delete(ep[:])
	})
}

// All returns every persisted pairing.
func (s *Store) All() ([]PairedPeer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []PairedPeer
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(peersBucket).ForEach(func(k, v []byte) error {
			var record PairedPeer
			if err := msgpack.Unmarshal(v, &record); err != nil {
				s.log.Warn().Err(err).Msg("Skipping corrupt peer record")
				return nil
			}
			records = append(records, record)
			return nil
		})
	})
	return records, err
}
