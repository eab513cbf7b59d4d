package recorder

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoRecording is returned when no recording has been saved.
var ErrNoRecording = errors.New("no saved recording")

// Store persists the most recent recording. Saving replaces any previous one.
type Store interface {
	Save(ctx context.Context, rec *Recording) error
	Load(ctx context.Context) (*Recording, error)
	Exists(ctx context.Context) (bool, error)
	Delete(ctx context.Context) error
	Close() error
}

// StoreConfig selects and locates the recording store.
type StoreConfig struct {
	Type string `mapstructure:"type"` // file | sqlite
	Path string `mapstructure:"path"`
}

// NewStore opens the store described by cfg.
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
