package vectorindex

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/54b3r/priorart-go/internal/embedder"
)

// fileVersion is bumped whenever the on-disk layout changes.
const fileVersion = 1

// indexFile is the persisted form of a Flat index.
type indexFile struct {
	Version   int
	Namespace string
	Dim       int
	Vectors   [][]float32
}

// Save writes the index to path atomically (temp file + rename). namespace
// records which embedding model produced the vectors.
func (f *Flat) Save(path, namespace string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorindex: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return fmt.Errorf("vectorindex: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(indexFile{
		Version:   fileVersion,
		Namespace: namespace,
		Dim:       f.dim,
		Vectors:   f.vectors,
	}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("vectorindex: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vectorindex: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("vectorindex: rename to %s: %w", path, err)
	}
	return nil
}

// LoadFile reads an index written by Save. The file must have been produced
// under namespace and hold exactly wantRows vectors; anything else means it
// is stale relative to the current corpus or model.
func LoadFile(path, namespace string, wantRows int, emb embedder.Embedder) (*Flat, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer fh.Close()

	var data indexFile
	if err := gob.NewDecoder(fh).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrLoad, path, err)
	}
	switch {
	case data.Version != fileVersion:
		return nil, fmt.Errorf("%w: %s has version %d, want %d", ErrLoad, path, data.Version, fileVersion)
	case data.Namespace != namespace:
		return nil, fmt.Errorf("%w: %s was built with %q, current embedder is %q", ErrLoad, path, data.Namespace, namespace)
	case len(data.Vectors) != wantRows:
		return nil, fmt.Errorf("%w: %s has %d vectors, corpus has %d records", ErrLoad, path, len(data.Vectors), wantRows)
	}

	f, err := NewFlat(emb, data.Vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return f, nil
}
