package adapters

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/devflow/devflow/internal/domains/shell/ports"
	"github.com/devflow/devflow/internal/platform/errors"
)

const (
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
)

// DefaultHistoryPath is ~/.devflow/history.db, or ./.devflow/history.db when
// the home directory is unknown.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".devflow", "history.db")
}

// StoreKindForPath picks the backend from the file extension: .sqlite and
// .sqlite3 use SQLite, everything else bbolt.
func StoreKindForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sqlite", ".sqlite3":
		return StoreSQLite
	default:
		return StoreBolt
	}
}

// OpenHistoryStore opens the store at path. An empty kind is derived from path.
func OpenHistoryStore(path, kind string) (ports.HistoryStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultHistoryPath()
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = StoreKindForPath(path)
	}

	switch kind {
	case StoreBolt:
		return OpenBoltHistoryStore(path)
	case StoreSQLite:
		return OpenSQLiteHistoryStore(path)
	default:
		return nil, errors.NewConfig("unknown history store kind: " + kind + " (want bolt or sqlite)")
	}
}
