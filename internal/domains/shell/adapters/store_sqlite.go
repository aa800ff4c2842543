package adapters

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
	"github.com/devflow/devflow/internal/domains/shell/ports"
	"github.com/devflow/devflow/internal/platform/errors"
)

// SQLiteHistoryStore keeps the conversation in an ItemTable key/value table,
// the layout browsers use for extension local storage.
type SQLiteHistoryStore struct {
	db *sql.DB
}

func OpenSQLiteHistoryStore(path string) (*SQLiteHistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewIO("history: create dir", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewIO("history: open "+path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.NewIO("history: ping "+path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ItemTable (key TEXT PRIMARY KEY ON CONFLICT REPLACE, value BLOB NOT NULL)`); err != nil {
		db.Close()
		return nil, errors.NewIO("history: create table", err)
	}
	return &SQLiteHistoryStore{db: db}, nil
}

func (s *SQLiteHistoryStore) Load() ([]contractchat.TurnV1, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT value FROM ItemTable WHERE key = ?`, ports.HistoryKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIO("history: query", err)
	}
	return decodeTurns(raw)
}

func (s *SQLiteHistoryStore) Save(turns []contractchat.TurnV1) error {
	enc, err := encodeTurns(turns)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO ItemTable (key, value) VALUES (?, ?)`, ports.HistoryKey, enc); err != nil {
		return errors.NewIO("history: write", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) Remove() error {
	if _, err := s.db.Exec(`DELETE FROM ItemTable WHERE key = ?`, ports.HistoryKey); err != nil {
		return errors.NewIO("history: remove", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) Close() error { return s.db.Close() }
