package runner

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// Journal persists run progress per VM seed so an interrupted run can
// resume with its adapted budget instead of starting cold.
type Journal struct {
	db *bolt.DB
}

// RunRecord is the persisted state of one run.
type RunRecord struct {
	Transactions  int    `json:"transactions"`
	Budget        uint64 `json:"budget"`
	LastSignature string `json:"last_signature,omitempty"`
	Halted        bool   `json:"halted"`
	UpdatedAt     string `json:"updated_at"`
}

// OpenJournal opens or creates a journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Close releases the journal database.
func (j *Journal) Close() error { return j.db.Close() }

func seedKey(seed uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seed)
	return key
}

// Load returns the record for a seed, or nil when none exists.
func (j *Journal) Load(seed uint64) (*RunRecord, error) {
	var rec *RunRecord
	err := j.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(runsBucket).Get(seedKey(seed))
		if raw == nil {
			return nil
		}
		rec = &RunRecord{}
		return json.Unmarshal(raw, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("journal load seed %d: %w", seed, err)
	}
	return rec, nil
}

// Save persists the record for a seed.
func (j *Journal) Save(seed uint64, rec *RunRecord) error {
	rec.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal save seed %d: %w", seed, err)
	}
	err = j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put(seedKey(seed), raw)
	})
	if err != nil {
		return fmt.Errorf("journal save seed %d: %w", seed, err)
	}
	return nil
}

// Delete removes the record for a seed, if any.
func (j *Journal) Delete(seed uint64) error {
	err := j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Delete(seedKey(seed))
	})
	if err != nil {
		return fmt.Errorf("journal delete seed %d: %w", seed, err)
	}
	return nil
}
