// Package matrix reads and writes headerless row-major float32 matrices.
package matrix

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// ErrShape is returned when a file or a row does not match the expected shape.
var ErrShape = errors.New("matrix: shape mismatch")

// RowBytes is the on-disk width of one row.
func RowBytes(dim int) int64 { return int64(dim) * 4 }

// Writer writes rows at explicit offsets into a file pre-sized to rows×dim.
type Writer struct {
	f    *os.File
	bw   *bufio.Writer
	path string
	rows int
	dim  int
	pos  int64
}

// Create truncates path and sizes it to exactly rows×dim×4 bytes.
func Create(path string, rows, dim int) (*Writer, error) {
	if dim <= 0 || rows < 0 {
		return nil, fmt.Errorf("%w: rows=%d dim=%d", ErrShape, rows, dim)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create matrix dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot create matrix %s: %w", path, err)
	}
	if err := f.Truncate(int64(rows) * RowBytes(dim)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("cannot size matrix %s: %w", path, err)
	}
	return &Writer{f: f, bw: bufio.NewWriterSize(f, 1<<20), path: path, rows: rows, dim: dim}, nil
}

func (w *Writer) Rows() int { return w.rows }
func (w *Writer) Dim() int  { return w.dim }

// WriteRows writes vecs starting at row. Sequential calls reuse the
// buffered stream; any other offset flushes and seeks first.
func (w *Writer) WriteRows(row int, vecs [][]float32) error {
	if row < 0 || row+len(vecs) > w.rows {
		return fmt.Errorf("%w: rows [%d,%d) outside [0,%d)", ErrShape, row, row+len(vecs), w.rows)
	}
	off := int64(row) * RowBytes(w.dim)
	if off != w.pos {
		if err := w.bw.Flush(); err != nil {
			return err
		}
		if _, err := w.f.Seek(off, io.SeekStart); err != nil {
			return fmt.Errorf("seek matrix %s: %w", w.path, err)
		}
		w.pos = off
	}
	buf := make([]byte, RowBytes(w.dim))
	for i, v := range vecs {
		if len(v) != w.dim {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, row+i, len(v), w.dim)
		}
		for j, x := range v {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(x))
		}
		if _, err := w.bw.Write(buf); err != nil {
			return fmt.Errorf("write matrix %s: %w", w.path, err)
		}
		w.pos += int64(len(buf))
	}
	return nil
}

// Sync flushes buffered rows and commits the file to stable storage.
func (w *Writer) Sync() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush matrix %s: %w", w.path, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync matrix %s: %w", w.path, err)
	}
	return nil
}

// Close syncs and closes the file.
func (w *Writer) Close() error {
	if err := w.Sync(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader reads contiguous row ranges from a matrix file.
type Reader struct {
	f    *os.File
	path string
	rows int
	dim  int
}

// Open opens path read-only; the row count is size / (dim×4).
func Open(path string, dim int) (*Reader, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dim=%d", ErrShape, dim)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open matrix %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("cannot stat matrix %s: %w", path, err)
	}
	if st.Size()%RowBytes(dim) != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s has %d bytes, not a multiple of %d", ErrShape, path, st.Size(), RowBytes(dim))
	}
	return &Reader{f: f, path: path, rows: int(st.Size() / RowBytes(dim)), dim: dim}, nil
}

func (r *Reader) Rows() int { return r.rows }
func (r *Reader) Dim() int  { return r.dim }

// ReadRows returns up to n rows starting at start.
func (r *Reader) ReadRows(start, n int) ([][]float32, error) {
	if start < 0 || start > r.rows {
		return nil, fmt.Errorf("%w: start %d outside [0,%d]", ErrShape, start, r.rows)
	}
	if start+n > r.rows {
		n = r.rows - start
	}
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, int64(n)*RowBytes(r.dim))
	if _, err := r.f.ReadAt(buf, int64(start)*RowBytes(r.dim)); err != nil {
		return nil, fmt.Errorf("read matrix %s: %w", r.path, err)
	}
	flat := make([]float32, n*r.dim)
	for i := range flat {
		flat[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = flat[i*r.dim : (i+1)*r.dim : (i+1)*r.dim]
	}
	return out, nil
}

func (r *Reader) Close() error { return r.f.Close() }
