package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketSteps = []byte("steps")

// BoltStore implements Store using a single BoltDB bucket keyed by
// sessionID + big-endian sequence number, so ListSteps can scan a session's
// transcript in order with a bucket prefix cursor.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "sweenv.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSteps)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func stepKey(sessionID string, seq uint64) []byte {
	key := make([]byte, len(sessionID)+1+8)
	copy(key, sessionID)
	key[len(sessionID)] = '/'
	binary.BigEndian.PutUint64(key[len(sessionID)+1:], seq)
	return key
}

// RecordStep assigns the next sequence number for sessionID by scanning the
// highest existing key with that prefix, then writes the step under it.
func (s *BoltStore) RecordStep(sessionID string, step Step) (uint64, error) {
	var seq uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSteps)
		c := b.Cursor()
		prefix := []byte(sessionID + "/")

		last := uint64(0)
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			n := binary.BigEndian.Uint64(k[len(prefix):])
			if n > last {
				last = n
			}
		}
		seq = last + 1
		step.Seq = seq
		step.SessionID = sessionID

		data, err := json.Marshal(step)
		if err != nil {
			return err
		}
		return b.Put(stepKey(sessionID, seq), data)
	})
	return seq, err
}

// ListSteps returns every step recorded for sessionID in sequence order.
func (s *BoltStore) ListSteps(sessionID string) ([]Step, error) {
	var steps []Step
	prefix := []byte(sessionID + "/")

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSteps)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var step Step
			if err := json.Unmarshal(v, &step); err != nil {
				return err
			}
			steps = append(steps, step)
		}
		return nil
	})
	return steps, err
}

// Close closes the underlying BoltDB file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

var _ Store = (*BoltStore)(nil)
