// Package store persists the administrative model override.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/academic-crs/internal/config"
)

// ErrPersistence is matched by every PersistenceError.
var ErrPersistence = eris.New("store: persistence failure")

// PersistenceError carries the backend's failure message.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is matches ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Store holds the process-wide model override. Reads see the last completed
// write; there is no further coordination between readers and writers.
type Store interface {
	// GetModelOverride returns the stored model name, or ok=false when none
	// is set.
	GetModelOverride(ctx context.Context) (name string, ok bool, err error)
	// SetModelOverride stores name. A blank name clears the override.
	SetModelOverride(ctx context.Context, name string) error

	Migrate(ctx context.Context) error
	Close() error
}

const keyModelName = "model_name"

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	case "file":
		return NewFile(cfg.DatabaseURL), nil
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}
