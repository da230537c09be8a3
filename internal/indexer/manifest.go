package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/0x5457/decl-index/internal/constants"
)

// Manifest describes one index build.
type Manifest struct {
	BuildID      string         `json:"build_id"`
	CreatedAt    time.Time      `json:"created_at"`
	Model        string         `json:"model"`
	Dimension    int            `json:"dimension"`
	Rows         int            `json:"rows"`
	Backend      string         `json:"backend"`
	Params       map[string]int `json:"params,omitempty"`
	Corpus       string         `json:"corpus"`
	CorpusSHA256 string         `json:"corpus_sha256"`
}

func WriteManifest(path string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads path. A missing file returns (nil, nil).
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// MatrixInfo is written next to an embedding matrix by the run that
// filled it, so a later build records the model that produced the rows.
type MatrixInfo struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Rows      int       `json:"rows"`
	Corpus    string    `json:"corpus"`
}

func MatrixInfoPath(matrixPath string) string { return matrixPath + constants.MatrixInfoExt }

func WriteMatrixInfo(path string, info MatrixInfo) error {
	b, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("cannot write matrix info %s: %w", path, err)
	}
	return nil
}

// ReadMatrixInfo loads path. A missing file returns (nil, nil).
func ReadMatrixInfo(path string) (*MatrixInfo, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read matrix info %s: %w", path, err)
	}
	var info MatrixInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("invalid matrix info %s: %w", path, err)
	}
	return &info, nil
}

// FileSHA256 returns the hex digest of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
