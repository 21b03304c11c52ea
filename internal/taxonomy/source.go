// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package taxonomy

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"nutricompare/internal/apperrors"
	"nutricompare/internal/models"
)

// Store is a category table. Load returns a fresh snapshot on every call;
// nothing is cached across requests, so an admin toggle is visible to the
// next read. SetActive is the external write used by the admin toggle.
type Store interface {
	Load(ctx context.Context) ([]models.Category, error)
	SetActive(ctx context.Context, ids []string, active bool) error
}

// csvHeader is the column layout of the category table export.
var csvHeader = []string{"id", "parent_id", "name", "is_active"}

// ReadCSV parses the category table. The id and name columns are required;
// parent_id may be empty for roots. When the is_active column is missing
// every category is active; otherwise only the literal "True" (any case)
// is active.
func ReadCSV(r io.Reader) ([]models.Category, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read category header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, required := range []string{"id", "name"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("category csv: missing %q column", required)
		}
	}

	field := func(rec []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}

	var cats []models.Category
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read category line %d: %w", line, err)
		}

		id, _ := field(rec, "id")
		if id == "" {
			continue
		}
		name, _ := field(rec, "name")
		parent, _ := field(rec, "parent_id")

		active := true
		if _, hasColumn := col["is_active"]; hasColumn {
			v, _ := field(rec, "is_active")
			active = strings.EqualFold(v, "true")
		}

		cats = append(cats, models.Category{
			ID:       id,
			ParentID: models.ParentRef(parent),
			Name:     name,
			IsActive: active,
		})
	}
	return cats, nil
}

// WriteCSV writes categories in the layout ReadCSV expects, with the
// active flag as "True"/"False".
func WriteCSV(w io.Writer, categories []models.Category) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write category header: %w", err)
	}
	for _, c := range categories {
		active := "False"
		if c.IsActive {
			active = "True"
		}
		if err := writer.Write([]string{c.ID, c.Parent(), c.Name, active}); err != nil {
			return fmt.Errorf("write category %s: %w", c.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// applyActive sets the active flag of ids, returning how many rows matched.
func applyActive(categories []models.Category, ids []string, active bool) int {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	n := 0
	for i := range categories {
		if want[categories[i].ID] {
			categories[i].IsActive = active
			n++
		}
	}
	return n
}

// warnIntegrity logs malformed taxonomy data without failing the read.
func warnIntegrity(source string, categories []models.Category) {
	if err := CheckIntegrity(categories); err != nil {
		slog.Warn("category table integrity", "source", source, "error", err)
	}
}

// FileStore reads and writes the category table as a local CSV file.
type FileStore struct {
	mu   sync.Mutex // serialises read-modify-write cycles
	path string
}

// NewFileStore returns a store backed by the CSV file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the file on every call.
func (s *FileStore) Load(_ context.Context) ([]models.Category, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open category file: %w", err)
	}
	defer f.Close()

	cats, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("category file %s: %w", s.path, err)
	}
	warnIntegrity(s.path, cats)
	return cats, nil
}

// SetActive rewrites the file with the given ids updated. The new content
// is written to a temporary file and renamed over the original, so readers
// never observe a half-written table.
func (s *FileStore) SetActive(ctx context.Context, ids []string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.Load(ctx)
	if err != nil {
		return err
	}
	applyActive(cats, ids, active)

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".categories-*.csv")
	if err != nil {
		return fmt.Errorf("create temp category file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, cats); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp category file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace category file: %w", err)
	}
	return nil
}

// ObjectStorage is the subset of the S3 client the object store needs.
type ObjectStorage interface {
	Read(ctx context.Context, bucket, key string) ([]byte, error)
	Write(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error
}

// ObjectStore keeps the category CSV as an object in S3-compatible storage,
// so every replica reads the same table.
type ObjectStore struct {
	mu      sync.Mutex
	storage ObjectStorage
	bucket  string
	key     string
}

// NewObjectStore returns a store for the object bucket/key.
func NewObjectStore(storage ObjectStorage, bucket, key string) *ObjectStore {
	return &ObjectStore{storage: storage, bucket: bucket, key: key}
}

// Load downloads and parses the object on every call.
func (s *ObjectStore) Load(ctx context.Context) ([]models.Category, error) {
	if s.storage == nil {
		return nil, errors.New("category object store: storage not configured")
	}
	data, err := s.storage.Read(ctx, s.bucket, s.key)
	if errors.Is(err, apperrors.ErrNotFound) {
		// A missing table is a deployment fault, not a missing category.
		return nil, fmt.Errorf("category object %s/%s does not exist", s.bucket, s.key)
	}
	if err != nil {
		return nil, fmt.Errorf("download categories: %w", err)
	}
	cats, err := ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("category object %s/%s: %w", s.bucket, s.key, err)
	}
	warnIntegrity(s.bucket+"/"+s.key, cats)
	return cats, nil
}

// SetActive downloads, updates and re-uploads the table. The mutex only
// serialises writers within this process.
func (s *ObjectStore) SetActive(ctx context.Context, ids []string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats, err := s.Load(ctx)
	if err != nil {
		return err
	}
	applyActive(cats, ids, active)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, cats); err != nil {
		return err
	}
	if err := s.storage.Write(ctx, s.bucket, s.key, "text/csv", bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return fmt.Errorf("upload categories: %w", err)
	}
	return nil
}
