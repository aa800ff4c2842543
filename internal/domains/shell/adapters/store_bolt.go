package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
	"github.com/devflow/devflow/internal/domains/shell/ports"
	"github.com/devflow/devflow/internal/platform/errors"
)

// boltBucket mirrors the extension's storage area name.
var boltBucket = []byte("local")

// BoltHistoryStore keeps the conversation as one JSON value in a bbolt file.
type BoltHistoryStore struct {
	db *bolt.DB
}

func OpenBoltHistoryStore(path string) (*BoltHistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewIO("history: create dir", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.NewIO("history: open "+path, err)
	}
	return &BoltHistoryStore{db: db}, nil
}

func (s *BoltHistoryStore) Load() ([]contractchat.TurnV1, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(ports.HistoryKey)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewIO("history: read", err)
	}
	return decodeTurns(raw)
}

func (s *BoltHistoryStore) Save(turns []contractchat.TurnV1) error {
	enc, err := encodeTurns(turns)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(ports.HistoryKey), enc)
	})
	if err != nil {
		return errors.NewIO("history: write", err)
	}
	return nil
}

func (s *BoltHistoryStore) Remove() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(ports.HistoryKey))
	})
	if err != nil {
		return errors.NewIO("history: remove", err)
	}
	return nil
}

func (s *BoltHistoryStore) Close() error { return s.db.Close() }

////////////////////////////////////////////////////////////////////////////////
// Shared encoding
////////////////////////////////////////////////////////////////////////////////

func encodeTurns(turns []contractchat.TurnV1) ([]byte, error) {
	if turns == nil {
		turns = []contractchat.TurnV1{}
	}
	b, err := json.Marshal(turns)
	if err != nil {
		return nil, errors.NewInternal("history: encode", err)
	}
	return b, nil
}

// decodeTurns accepts only a JSON array; anything else restores as empty,
// the way the extension ignores a non-array chatHistory value.
func decodeTurns(raw []byte) ([]contractchat.TurnV1, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var turns []contractchat.TurnV1
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, nil
	}
	return turns, nil
}
