// Package leanparser extracts theorem, lemma and def headers from Lean
// sources with regular expressions.
package leanparser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/0x5457/decl-index/internal/models"
	"github.com/0x5457/decl-index/internal/parser"
)

var (
	// theorem|lemma|def name : <type> := ...
	declRe = regexp.MustCompile(`(?ms)^(theorem|lemma|def)\s+([A-Za-z0-9_\.]+)\s*(:.*?)?:=`)
	// /-! ... -/
	docBlockRe = regexp.MustCompile(`(?s)/-!\s*(.*?)\s*-/`)
	// --! ...
	docLineRe = regexp.MustCompile(`^\s*--!\s*(.*)`)
	// the first declaration following a doc comment
	nextDeclRe = regexp.MustCompile(`\b(theorem|lemma|def)\s+([^ :\n]+)`)
)

type LeanParser struct{}

func New() *LeanParser { return &LeanParser{} }

var _ parser.Parser = (*LeanParser)(nil)

func (p *LeanParser) ParseProject(root, subdir string) ([]models.Record, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var records []models.Record
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || d.Name() == ".lake" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".lean") {
			return nil
		}
		if subdir != "" && !slices.Contains(strings.Split(filepath.ToSlash(path), "/"), subdir) {
			return nil
		}
		recs, perr := p.ParseFile(path, ModuleName(root, path), root)
		if perr != nil {
			return perr
		}
		records = append(records, recs...)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	for i := range records {
		records[i].ID = i
		records[i].Text = models.EmbedText(records[i].Type, records[i].Doc)
	}
	return records, nil
}

// ModuleName turns root/A/B/C.lean into A.B.C.
func ModuleName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = strings.TrimSuffix(rel, ".lean")
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
}

func (p *LeanParser) ParseFile(path, module, root string) ([]models.Record, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	text := string(code)
	docs := docMap(text)

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	var records []models.Record
	for _, m := range declRe.FindAllStringSubmatch(text, -1) {
		name := m[2]
		typ := strings.TrimSpace(strings.TrimLeft(m[3], ":"))
		records = append(records, models.Record{
			Decl: module + "." + name,
			Type: typ,
			Doc:  docs[name],
			Path: filepath.ToSlash(rel),
		})
	}
	return records, nil
}

// docMap maps declaration names to the first line of the doc comment
// preceding them. Line comments win over blocks for the same name.
func docMap(text string) map[string]string {
	docs := map[string]string{}
	for _, loc := range docBlockRe.FindAllStringSubmatchIndex(text, -1) {
		doc := firstLine(strings.TrimSpace(text[loc[2]:loc[3]]))
		if n := nextDeclRe.FindStringSubmatch(text[loc[1]:]); n != nil {
			docs[n[2]] = doc
		}
	}
	for off := 0; off < len(text); {
		end := strings.IndexByte(text[off:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += off
		}
		if m := docLineRe.FindStringSubmatch(text[off:end]); m != nil {
			if n := nextDeclRe.FindStringSubmatch(text[end:]); n != nil {
				docs[n[2]] = strings.TrimSpace(m[1])
			}
		}
		off = end + 1
	}
	return docs
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
