package chunkdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"voxelstream.ai/internal/voxel"
)

type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (x, y, z)
	);`)
	return err
}

type sqliteTable struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t sqliteTable) Get(pos voxel.ChunkPos) ([]byte, bool, error) {
	var data []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT data FROM chunks WHERE x=? AND y=? AND z=?`, pos.X, pos.Y, pos.Z).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get chunk %s: %w", pos, err)
	}
	return data, true, nil
}

func (t sqliteTable) Put(pos voxel.ChunkPos, value []byte) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO chunks(x, y, z, data) VALUES(?, ?, ?, ?)
		ON CONFLICT(x, y, z) DO UPDATE SET data=excluded.data`,
		pos.X, pos.Y, pos.Z, value)
	if err != nil {
		return fmt.Errorf("put chunk %s: %w", pos, err)
	}
	return nil
}

func (t sqliteTable) Delete(pos voxel.ChunkPos) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM chunks WHERE x=? AND y=? AND z=?`, pos.X, pos.Y, pos.Z); err != nil {
		return fmt.Errorf("delete chunk %s: %w", pos, err)
	}
	return nil
}

func (s *SQLiteStore) View(ctx context.Context, fn func(ReadTable) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	return fn(sqliteTable{ctx: ctx, tx: tx})
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(WriteTable) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(sqliteTable{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Scan(ctx context.Context, fn func(voxel.ChunkPos, []byte) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT x, y, z, data FROM chunks ORDER BY x, y, z`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pos  voxel.ChunkPos
			data []byte
		)
		if err := rows.Scan(&pos.X, &pos.Y, &pos.Z, &data); err != nil {
			return err
		}
		if err := fn(pos, data); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
