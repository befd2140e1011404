package upload

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var chunksBucket = []byte("chunks")

// Journal records confirmed chunks in bbolt, keyed by
// (seed, kind, slot, offset).
type Journal struct {
	db *bolt.DB
}

// ChunkRecord is the persisted state of one confirmed chunk.
type ChunkRecord struct {
	Checksum  string `json:"checksum"`
	Signature string `json:"signature"`
}

// OpenJournal opens or creates an upload journal at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open upload journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chunksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init upload journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Close releases the journal database.
func (j *Journal) Close() error { return j.db.Close() }

func chunkKey(seed uint64, kind, slot uint8, offset uint32) []byte {
	key := make([]byte, 14)
	binary.BigEndian.PutUint64(key, seed)
	key[8] = kind
	key[9] = slot
	binary.BigEndian.PutUint32(key[10:], offset)
	return key
}

// segmentPrefix covers every chunk key of one segment.
func segmentPrefix(seed uint64, kind, slot uint8) []byte {
	prefix := make([]byte, 10)
	binary.BigEndian.PutUint64(prefix, seed)
	prefix[8] = kind
	prefix[9] = slot
	return prefix
}

// Load returns the record for a chunk, or nil when none exists.
func (j *Journal) Load(seed uint64, kind, slot uint8, offset uint32) (*ChunkRecord, error) {
	var rec *ChunkRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(chunksBucket).Get(chunkKey(seed, kind, slot, offset))
		if raw == nil {
			return nil
		}
		rec = &ChunkRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("upload journal load: %w", err)
	}
	return rec, nil
}

// Save persists the record for a chunk.
func (j *Journal) Save(seed uint64, kind, slot uint8, offset uint32, rec *ChunkRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("upload journal save: %w", err)
	}
	err = j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(chunksBucket).Put(chunkKey(seed, kind, slot, offset), raw)
	})
	if err != nil {
		return fmt.Errorf("upload journal save: %w", err)
	}
	return nil
}

// DeleteSegment drops every journaled chunk of one segment.
func (j *Journal) DeleteSegment(seed uint64, kind, slot uint8) error {
	prefix := segmentPrefix(seed, kind, slot)
	err := j.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(chunksBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload journal delete segment: %w", err)
	}
	return nil
}
