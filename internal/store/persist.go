package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/docuflow/internal/models"
	"github.com/hyperjump/docuflow/internal/vector"
)

// Persister saves and restores the index and ledger as one unit. FilePersister
// rewrites both artifacts on every save; other strategies can replace it.
type Persister interface {
	// Exists reports which artifacts are present.
	Exists() (index, ledger bool, err error)
	// Load fills idx and returns the ledger.
	Load(idx vector.Index) ([]models.Fragment, error)
	// Save writes idx and ledger.
	Save(idx vector.Index, ledger []models.Fragment) error
}

// FilePersister keeps the index artifact and the JSON ledger side by side.
// Each artifact is written to a temporary file, synced, then renamed into place,
// so a reader never sees a partially written artifact.
type FilePersister struct {
	IndexPath    string
	MetadataPath string
}

// NewFilePersister returns a persister for the two artifact paths.
func NewFilePersister(indexPath, metadataPath string) *FilePersister {
	return &FilePersister{IndexPath: indexPath, MetadataPath: metadataPath}
}

// Exists reports which artifacts are present on disk.
func (p *FilePersister) Exists() (bool, bool, error) {
	idx, err := fileExists(p.IndexPath)
	if err != nil {
		return false, false, err
	}
	meta, err := fileExists(p.MetadataPath)
	if err != nil {
		return false, false, err
	}
	return idx, meta, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Load reads the index into idx and decodes the ledger.
func (p *FilePersister) Load(idx vector.Index) ([]models.Fragment, error) {
	if err := idx.Load(p.IndexPath); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	data, err := os.ReadFile(p.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var ledger []models.Fragment
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if ledger == nil {
		ledger = []models.Fragment{}
	}
	return ledger, nil
}

// Save rewrites both artifacts in full.
func (p *FilePersister) Save(idx vector.Index, ledger []models.Fragment) error {
	for _, path := range []string{p.IndexPath, p.MetadataPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	indexTmp := p.IndexPath + ".tmp"
	if err := idx.Save(indexTmp); err != nil {
		_ = os.Remove(indexTmp)
		return fmt.Errorf("write index: %w", err)
	}

	if ledger == nil {
		ledger = []models.Fragment{}
	}
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		_ = os.Remove(indexTmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	metaTmp := p.MetadataPath + ".tmp"
	if err := writeFileSync(metaTmp, data); err != nil {
		_ = os.Remove(indexTmp)
		_ = os.Remove(metaTmp)
		return fmt.Errorf("write metadata: %w", err)
	}

	// The ledger is renamed last: a crash in between leaves extra index
	// vectors, which Open truncates.
	if err := os.Rename(indexTmp, p.IndexPath); err != nil {
		_ = os.Remove(indexTmp)
		_ = os.Remove(metaTmp)
		return fmt.Errorf("replace index: %w", err)
	}
	if err := os.Rename(metaTmp, p.MetadataPath); err != nil {
		_ = os.Remove(metaTmp)
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
