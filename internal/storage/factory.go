package storage

import (
	"fmt"
	"io"
)

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// NewStore opens the named backend. An empty kind selects the memory store;
// path is only used by sqlite.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store kind %q (want %s or %s)", kind, KindMemory, KindSQLite)
	}
}

// CloseIfSupported closes stores that hold external resources.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
