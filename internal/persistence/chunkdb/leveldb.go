package chunkdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"voxelstream.ai/internal/voxel"
)

var keyPrefix = []byte("c/")

type LevelDBStore struct {
	db *leveldb.DB
}

func OpenLevelDB(path string) (*LevelDBStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

// chunkKey encodes pos so that byte order matches (x, y, z) numeric order.
func chunkKey(pos voxel.ChunkPos) []byte {
	k := make([]byte, len(keyPrefix)+12)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint32(k[2:], uint32(pos.X)^0x80000000)
	binary.BigEndian.PutUint32(k[6:], uint32(pos.Y)^0x80000000)
	binary.BigEndian.PutUint32(k[10:], uint32(pos.Z)^0x80000000)
	return k
}

func parseKey(k []byte) (voxel.ChunkPos, bool) {
	if len(k) != len(keyPrefix)+12 {
		return voxel.ChunkPos{}, false
	}
	return voxel.ChunkPos{
		X: int32(binary.BigEndian.Uint32(k[2:]) ^ 0x80000000),
		Y: int32(binary.BigEndian.Uint32(k[6:]) ^ 0x80000000),
		Z: int32(binary.BigEndian.Uint32(k[10:]) ^ 0x80000000),
	}, true
}

type levelGetter interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
}

type levelTable struct {
	r  levelGetter
	tr *leveldb.Transaction
}

func (t levelTable) Get(pos voxel.ChunkPos) ([]byte, bool, error) {
	v, err := t.r.Get(chunkKey(pos), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get chunk %s: %w", pos, err)
	}
	return v, true, nil
}

func (t levelTable) Put(pos voxel.ChunkPos, value []byte) error {
	if err := t.tr.Put(chunkKey(pos), value, nil); err != nil {
		return fmt.Errorf("put chunk %s: %w", pos, err)
	}
	return nil
}

func (t levelTable) Delete(pos voxel.ChunkPos) error {
	if err := t.tr.Delete(chunkKey(pos), nil); err != nil {
		return fmt.Errorf("delete chunk %s: %w", pos, err)
	}
	return nil
}

func (s *LevelDBStore) View(ctx context.Context, fn func(ReadTable) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	return fn(levelTable{r: snap})
}

func (s *LevelDBStore) Update(ctx context.Context, fn func(WriteTable) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}
	if err := fn(levelTable{r: tr, tr: tr}); err != nil {
		tr.Discard()
		return err
	}
	return tr.Commit()
}

func (s *LevelDBStore) Scan(ctx context.Context, fn func(voxel.ChunkPos, []byte) error) error {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	iter := snap.NewIterator(util.BytesPrefix(keyPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		pos, ok := parseKey(iter.Key())
		if !ok {
			continue
		}
		if err := fn(pos, append([]byte(nil), iter.Value()...)); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *LevelDBStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
