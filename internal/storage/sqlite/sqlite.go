package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/0x5457/decl-index/internal/models"
)

// Catalog stores the full corpus record of every matrix row.
type Catalog struct {
	db *sql.DB
}

// Create replaces any catalog at path with an empty one.
func Create(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot replace catalog %s: %w", path, err)
	}
	return New(path)
}

// Open opens an existing catalog.
func Open(path string) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot open catalog %s: %w", path, err)
	}
	return New(path)
}

func New(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		row_idx INTEGER PRIMARY KEY,
		id INTEGER NOT NULL,
		decl TEXT NOT NULL,
		type TEXT,
		doc TEXT,
		path TEXT,
		text TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_decl ON records(decl);
	CREATE INDEX IF NOT EXISTS idx_records_path ON records(path);`)
	return err
}

func (c *Catalog) Close() error { return c.db.Close() }

// PutRecords stores records at rows start, start+1, ...
func (c *Catalog) PutRecords(ctx context.Context, start int, records []models.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records(row_idx,id,decl,type,doc,path,text)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(row_idx) DO UPDATE SET
		id=excluded.id,
		decl=excluded.decl,
		type=excluded.type,
		doc=excluded.doc,
		path=excluded.path,
		text=excluded.text`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, r := range records {
		if _, err := stmt.ExecContext(ctx,
			start+i,
			r.ID,
			r.Decl,
			r.Type,
			r.Doc,
			r.Path,
			r.Text,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetRecord returns the record at row, or nil when the row is unknown.
func (c *Catalog) GetRecord(ctx context.Context, row int) (*models.Record, error) {
	r := c.db.QueryRowContext(ctx,
		`SELECT id,decl,type,doc,path,text FROM records WHERE row_idx = ?`,
		row,
	)
	var rec models.Record
	if err := r.Scan(&rec.ID, &rec.Decl, &rec.Type, &rec.Doc, &rec.Path, &rec.Text); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// FindByName returns the rows whose declaration name is decl.
func (c *Catalog) FindByName(ctx context.Context, decl string) ([]int, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT row_idx FROM records WHERE decl = ? ORDER BY row_idx`, decl)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []int
	for rows.Next() {
		var row int
		if err := rows.Scan(&row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM records`).Scan(&n)
	return n, err
}
