// Package corpus reads the JSONL declaration corpus line by line.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/0x5457/decl-index/internal/models"
)

// ErrMissingText is returned for a line without a "text" field.
var ErrMissingText = errors.New("corpus: record has no text field")

// maxLine bounds a single record; mathlib type signatures can be long.
const maxLine = 64 << 20

// CountLines returns the number of lines in path. A final line without a
// trailing newline still counts.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("cannot open corpus %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1<<20)
	n := 0
	last := byte('\n')
	for {
		m, err := f.Read(buf)
		if m > 0 {
			n += bytes.Count(buf[:m], []byte{'\n'})
			last = buf[m-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read corpus %s: %w", path, err)
		}
	}
	if last != '\n' {
		n++
	}
	return n, nil
}

type line struct {
	ID   int     `json:"id"`
	Decl string  `json:"decl"`
	Type string  `json:"type"`
	Doc  string  `json:"doc"`
	Path string  `json:"path"`
	Text *string `json:"text"`
}

// Reader streams records in file order.
type Reader struct {
	f    *os.File
	sc   *bufio.Scanner
	path string
	line int
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open corpus %s: %w", path, err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), maxLine)
	return &Reader{f: f, sc: sc, path: path}, nil
}

// Next returns the next record, or io.EOF after the last line.
func (r *Reader) Next() (models.Record, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return models.Record{}, fmt.Errorf("read corpus %s: %w", r.path, err)
		}
		return models.Record{}, io.EOF
	}
	r.line++
	var l line
	if err := json.Unmarshal(r.sc.Bytes(), &l); err != nil {
		return models.Record{}, fmt.Errorf("corpus %s line %d: %w", r.path, r.line, err)
	}
	if l.Text == nil {
		return models.Record{}, fmt.Errorf("%w: %s line %d", ErrMissingText, r.path, r.line)
	}
	return models.Record{ID: l.ID, Decl: l.Decl, Type: l.Type, Doc: l.Doc, Path: l.Path, Text: *l.Text}, nil
}

// Line is the 1-based number of the last line returned by Next.
func (r *Reader) Line() int { return r.line }

func (r *Reader) Close() error { return r.f.Close() }

// Write encodes records as JSONL to w.
func Write(w io.Writer, records []models.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
