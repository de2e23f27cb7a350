// Package artifact persists a fitted vectorizer and its trained classifiers
// as gzip-compressed JSON under one directory:
//
//	manifest.json
//	vectorizer.json.gz
//	models/<name>.json.gz
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/jonesrussell/north-cloud/product-detector/internal/model"
	"github.com/jonesrussell/north-cloud/product-detector/internal/vectorizer"
)

const (
	ManifestFile   = "manifest.json"
	VectorizerFile = "vectorizer.json.gz"
	ModelsDir      = "models"
)

var (
	ErrVectorizerMissing = errors.New("artifact: vectorizer missing or unreadable")
	ErrInvalidName       = errors.New("artifact: invalid model name")
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Manifest describes a saved bundle.
type Manifest struct {
	CreatedAt time.Time    `json:"created_at"`
	Features  int          `json:"features"`
	FusedDim  int          `json:"fused_dim"`
	Models    []ModelEntry `json:"models"`
}

type ModelEntry struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	File     string   `json:"file"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

// Bundle is a loaded artifact set. Models that could not be read are in
// Failures, keyed by name.
type Bundle struct {
	Manifest   Manifest
	Vectorizer *vectorizer.Vectorizer
	Models     map[string]model.Classifier
	Failures   map[string]error
}

// Save writes the vectorizer and models to dir, replacing any previous
// bundle files. accuracy is optional per-model metadata.
func Save(dir string, v *vectorizer.Vectorizer, models map[string]model.Classifier, accuracy map[string]float64) error {
	if err := os.MkdirAll(filepath.Join(dir, ModelsDir), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	vec, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode vectorizer: %w", err)
	}
	if err := writeGzip(filepath.Join(dir, VectorizerFile), vec); err != nil {
		return err
	}

	manifest := Manifest{CreatedAt: time.Now().UTC(), Features: v.Dim(), FusedDim: v.FusedDim()}
	for _, name := range slices.Sorted(maps.Keys(models)) {
		if !namePattern.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		m := models[name]
		data, err := model.Encode(m)
		if err != nil {
			return fmt.Errorf("encode model %s: %w", name, err)
		}
		file := filepath.Join(ModelsDir, name+".json.gz")
		if err := writeGzip(filepath.Join(dir, file), data); err != nil {
			return err
		}
		entry := ModelEntry{Name: name, Kind: m.Kind(), File: file}
		if acc, ok := accuracy[name]; ok {
			entry.Accuracy = &acc
		}
		manifest.Models = append(manifest.Models, entry)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return writeAtomic(filepath.Join(dir, ManifestFile), data)
}

// Load reads the bundle in dir. A missing or unreadable vectorizer is
// fatal; each model is loaded independently and a bad one lands in
// Bundle.Failures.
func Load(dir string) (*Bundle, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	vecData, err := readGzip(filepath.Join(dir, VectorizerFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVectorizerMissing, err)
	}
	v := &vectorizer.Vectorizer{}
	if err := json.Unmarshal(vecData, v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVectorizerMissing, err)
	}

	b := &Bundle{
		Manifest:   manifest,
		Vectorizer: v,
		Models:     make(map[string]model.Classifier, len(manifest.Models)),
		Failures:   make(map[string]error),
	}
	for _, entry := range manifest.Models {
		m, err := loadModel(dir, entry, v.FusedDim())
		if err != nil {
			b.Failures[entry.Name] = err
			continue
		}
		b.Models[entry.Name] = m
	}
	return b, nil
}

func loadModel(dir string, entry ModelEntry, fusedDim int) (model.Classifier, error) {
	if !namePattern.MatchString(entry.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, entry.Name)
	}
	data, err := readGzip(filepath.Join(dir, filepath.Clean(entry.File)))
	if err != nil {
		return nil, err
	}
	m, err := model.Decode(data)
	if err != nil {
		return nil, err
	}
	if m.Dim() != fusedDim {
		return nil, fmt.Errorf("%w: model has %d features, vectorizer produces %d",
			model.ErrDimensionMismatch, m.Dim(), fusedDim)
	}
	return m, nil
}

func writeGzip(path string, data []byte) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("compress %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", path, err)
	}
	return writeAtomic(path, buf.Bytes())
}

func readGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return data, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
