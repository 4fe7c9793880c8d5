// Package chunkdb persists encoded chunk records keyed by chunk position.
package chunkdb

import (
	"context"
	"fmt"

	"voxelstream.ai/internal/config"
	"voxelstream.ai/internal/voxel"
)

// ReadTable reads records inside a View or Update.
type ReadTable interface {
	// Get returns the stored record; ok is false when none exists.
	Get(pos voxel.ChunkPos) (value []byte, ok bool, err error)
}

// WriteTable writes records inside an Update. Writes become visible to other
// transactions only after the Update commits.
type WriteTable interface {
	ReadTable
	Put(pos voxel.ChunkPos, value []byte) error
	Delete(pos voxel.ChunkPos) error
}

// Store is a single-writer table of chunk records. View may run concurrently
// with other Views. Update commits iff fn returns nil.
type Store interface {
	View(ctx context.Context, fn func(ReadTable) error) error
	Update(ctx context.Context, fn func(WriteTable) error) error
	// Scan visits every record in position order. fn must not call back into
	// the store.
	Scan(ctx context.Context, fn func(pos voxel.ChunkPos, value []byte) error) error
	Close() error
}

// Open selects a backend from configuration.
func Open(cfg config.Storage) (Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "leveldb":
		return OpenLevelDB(cfg.Path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Get is a convenience single-record View.
func Get(ctx context.Context, s Store, pos voxel.ChunkPos) ([]byte, bool, error) {
	var (
		out []byte
		ok  bool
	)
	err := s.View(ctx, func(t ReadTable) error {
		var err error
		out, ok, err = t.Get(pos)
		return err
	})
	return out, ok, err
}

// Put is a convenience single-record Update.
func Put(ctx context.Context, s Store, pos voxel.ChunkPos, value []byte) error {
	return s.Update(ctx, func(t WriteTable) error { return t.Put(pos, value) })
}
