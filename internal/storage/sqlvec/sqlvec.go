package sqlvec

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/0x5457/decl-index/internal/matrix"
	"github.com/0x5457/decl-index/internal/storage"
)

const Ext = ".sqlite"

type Factory struct{}

func NewFactory() *Factory {
	// enable sqlite-vec for all future connections
	sqlite_vec.Auto()
	return &Factory{}
}

func (f *Factory) Name() string              { return "sqlvec" }
func (f *Factory) Path(prefix string) string { return prefix + Ext }

// Create replaces any index at the prefix with an empty vec0 table.
func (f *Factory) Create(ctx context.Context, prefix string, dim int) (storage.IndexWriter, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dim=%d", matrix.ErrShape, dim)
	}
	path := f.Path(prefix)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot replace index %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db, dim); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dimension: dim}, nil
}

func (f *Factory) Open(ctx context.Context, prefix string, dim int) (storage.VectorIndex, error) {
	path := f.Path(prefix)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot open index %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, dimension: dim}
	var stored int
	if err := db.QueryRowContext(ctx, `SELECT dimension FROM vec_meta`).Scan(&stored); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot read index %s: %w", path, err)
	}
	if stored != dim {
		_ = db.Close()
		return nil, fmt.Errorf("%w: index %s has dimension %d, want %d", matrix.ErrShape, path, stored, dim)
	}
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM vec_embeddings`).Scan(&s.rows); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func migrate(ctx context.Context, db *sql.DB, dim int) error {
	// vec0 virtual table holds embeddings; dimension is fixed per table.
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
		embedding float32[%d]
	);`, dim)); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS vec_meta (dimension INTEGER NOT NULL);`); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `INSERT INTO vec_meta(dimension) VALUES(?)`, dim)
	return err
}

// Store is both the writer and the loaded index. Matrix row r is stored
// under rowid r+1.
type Store struct {
	db        *sql.DB
	dimension int
	rows      int
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Len() int { return s.rows }

func (s *Store) Add(ctx context.Context, start int64, vecs [][]float32) error {
	if start != int64(s.rows) {
		return fmt.Errorf("%w: add at row %d, next row is %d", matrix.ErrShape, start, s.rows)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vec_embeddings(rowid, embedding) VALUES(?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, vec := range vecs {
		if len(vec) != s.dimension {
			_ = tx.Rollback()
			return fmt.Errorf("%w: row %d has %d values, want %d", matrix.ErrShape, start+int64(i), len(vec), s.dimension)
		}
		v, err := sqlite_vec.SerializeFloat32(vec)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, start+int64(i)+1, v); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.rows += len(vecs)
	return nil
}

// Commit is a no-op: every Add commits its own transaction.
func (s *Store) Commit(ctx context.Context) error { return ctx.Err() }

func (s *Store) Search(ctx context.Context, query []float32, k int) ([]storage.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	if s.rows == 0 {
		return storage.PadNeighbors(nil, k), nil
	}
	v, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, err
	}
	// KNN via MATCH ... ORDER BY distance using sqlite-vec
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, distance
		FROM vec_embeddings
		WHERE embedding MATCH ?
		ORDER BY distance
		LIMIT ?
	`, v, k)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var hits []storage.Neighbor
	for rows.Next() {
		var rid int64
		var dist float64
		if err := rows.Scan(&rid, &dist); err != nil {
			return nil, err
		}
		// vec0 reports the L2 norm of the difference
		hits = append(hits, storage.Neighbor{Label: rid - 1, Distance: float32(dist * dist)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	storage.SortNeighbors(hits)
	return storage.PadNeighbors(hits, k), nil
}
