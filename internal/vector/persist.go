package vector

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// IndexFileName is the matrix blob inside an index directory.
	IndexFileName = "index.faiss"
	// MetadataFileName is the identifier/dimension sidecar inside an index directory.
	MetadataFileName = "metadata.json"
)

// metadata is the sidecar stored next to the matrix blob.
type metadata struct {
	EmbeddingDim int      `json:"embedding_dim"`
	Identifiers  []string `json:"identifiers"`
}

// Save writes the store into dir using the fixed artifact names. dir is created if needed.
func (s *Store) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create index dir: %w", ErrIO, err)
	}
	return s.SaveFiles(filepath.Join(dir, IndexFileName), filepath.Join(dir, MetadataFileName))
}

// Load reads a store previously written by Save into dir.
func Load(dir string) (*Store, error) {
	return LoadFiles(filepath.Join(dir, IndexFileName), filepath.Join(dir, MetadataFileName))
}

// SaveFiles writes the matrix blob to indexPath and the sidecar to metadataPath, replacing
// any existing files. Each file is written to a temporary file and renamed into place.
func (s *Store) SaveFiles(indexPath, metadataPath string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := writeFileAtomic(indexPath, func(w io.Writer) error {
		return writeFlatIP(w, s.dimensions, s.data)
	}); err != nil {
		return fmt.Errorf("%w: save matrix %s: %w", ErrIO, indexPath, err)
	}

	meta := metadata{EmbeddingDim: s.dimensions, Identifiers: s.ids}
	if err := writeFileAtomic(metadataPath, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(meta)
	}); err != nil {
		return fmt.Errorf("%w: save metadata %s: %w", ErrIO, metadataPath, err)
	}
	return nil
}

// LoadFiles reads a store from a matrix blob and its sidecar. Both files must exist and
// agree on row count and dimension.
func LoadFiles(indexPath, metadataPath string) (*Store, error) {
	indexInfo, err := statArtifact(indexPath)
	if err != nil {
		return nil, err
	}
	if _, err := statArtifact(metadataPath); err != nil {
		return nil, err
	}

	meta, err := readMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open matrix: %w", ErrIO, err)
	}
	defer f.Close()
	dim, data, err := readFlatIP(bufio.NewReaderSize(f, 256*1024), indexInfo.Size())
	if err != nil {
		return nil, fmt.Errorf("load matrix %s: %w", indexPath, err)
	}

	if meta.EmbeddingDim != dim {
		return nil, fmt.Errorf("%w: matrix has dimension %d, metadata records %d", ErrCorruptData, dim, meta.EmbeddingDim)
	}
	if rows := len(data) / dim; rows != len(meta.Identifiers) {
		return nil, fmt.Errorf("%w: matrix has %d rows, metadata has %d identifiers", ErrCorruptData, rows, len(meta.Identifiers))
	}

	store, err := NewStore(dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	store.data = data
	store.ids = meta.Identifiers
	return store, nil
}

func statArtifact(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrCorruptData, path)
	}
	return info, nil
}

func readMetadata(path string) (*metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata: %w", ErrIO, err)
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode metadata %s: %v", ErrCorruptData, path, err)
	}
	if meta.Identifiers == nil {
		meta.Identifiers = make([]string, 0)
	}
	return &meta, nil
}

// writeFileAtomic writes through a temp file in the target directory, syncs it, and
// renames it over path.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if err := tmp.Chmod(0644); err != nil {
		return err
	}

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := write(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
