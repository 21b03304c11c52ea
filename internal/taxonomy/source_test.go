package taxonomy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nutricompare/internal/apperrors"
	"nutricompare/internal/models"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffid,parent_id,name,is_active\n" +
		"1,,Food,True\n" +
		"2,1,Dairy,true\n" +
		"3,2,Milk,False\n" +
		",1,No id,True\n" +
		"4,2, Cheese ,yes\n"

	cats, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(cats) != 4 {
		t.Fatalf("got %d categories, want 4 (row without id skipped)", len(cats))
	}

	tests := []struct {
		idx    int
		id     string
		parent string
		name   string
		active bool
	}{
		{0, "1", "", "Food", true},
		{1, "2", "1", "Dairy", true},
		{2, "3", "2", "Milk", false},
		{3, "4", "2", "Cheese", false},
	}
	for _, tt := range tests {
		c := cats[tt.idx]
		if c.ID != tt.id || c.Parent() != tt.parent || c.Name != tt.name || c.IsActive != tt.active {
			t.Errorf("row %d = %+v (parent %q), want id=%s parent=%q name=%s active=%v",
				tt.idx, c, c.Parent(), tt.id, tt.parent, tt.name, tt.active)
		}
	}
	if !cats[0].IsRoot() {
		t.Error("empty parent_id should be a root")
	}
}

func TestReadCSVWithoutActiveColumn(t *testing.T) {
	cats, err := ReadCSV(strings.NewReader("id,parent_id,name\n1,,Food\n2,1,Dairy\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	for _, c := range cats {
		if !c.IsActive {
			t.Errorf("%s inactive, want all active when column is missing", c.ID)
		}
	}
}

func TestReadCSVErrors(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("id,parent_id\n1,\n")); err == nil {
		t.Error("expected error for missing name column")
	}
	cats, err := ReadCSV(strings.NewReader(""))
	if err != nil || cats != nil {
		t.Errorf("empty input = %v, %v; want nil, nil", cats, err)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	want := sampleCategories()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, want); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "id,parent_id,name,is_active\n") {
		t.Errorf("unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("round trip: got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Parent() != want[i].Parent() ||
			got[i].Name != want[i].Name || got[i].IsActive != want[i].IsActive {
			t.Errorf("row %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func writeSampleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.csv")
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleCategories()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func activeByID(cats []models.Category) map[string]bool {
	m := make(map[string]bool, len(cats))
	for _, c := range cats {
		m[c.ID] = c.IsActive
	}
	return m
}

func TestFileStoreToggleCascade(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(writeSampleFile(t))

	res, err := ToggleActive(ctx, store, "2")
	if err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	if res.Active {
		t.Error("Dairy was active, toggle should deactivate it")
	}
	if len(res.Affected) != 4 {
		t.Errorf("affected = %v, want Dairy and its three children", res.Affected)
	}
	if got := res.Message(); got != "Category deactivated successfully (4 categories total including subcategories)" {
		t.Errorf("message = %q", got)
	}

	cats, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	active := activeByID(cats)
	for _, id := range []string{"2", "3", "4", "5"} {
		if active[id] {
			t.Errorf("%s still active after cascade", id)
		}
	}
	if !active["1"] || !active["6"] {
		t.Error("ancestor and sibling must be untouched")
	}

	// Reactivating touches only the node itself.
	res, err = ToggleActive(ctx, store, "2")
	if err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	if !res.Active || len(res.Affected) != 1 {
		t.Errorf("reactivate = %+v, want only the node", res)
	}
	if got := res.Message(); got != "Category activated successfully" {
		t.Errorf("message = %q", got)
	}
	cats, _ = store.Load(ctx)
	active = activeByID(cats)
	if !active["2"] || active["3"] || active["4"] {
		t.Errorf("after reactivate: %v", active)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.csv"))
	if _, err := store.Load(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestToggleUnknownCategory(t *testing.T) {
	store := NewFileStore(writeSampleFile(t))
	_, err := ToggleActive(context.Background(), store, "404")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// memoryObjects is an in-memory ObjectStorage.
type memoryObjects struct {
	objects map[string][]byte
	uploads int
}

func (m *memoryObjects) Read(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return data, nil
}

func (m *memoryObjects) Write(_ context.Context, bucket, key, _ string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+key] = data
	m.uploads++
	return nil
}

func TestObjectStore(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleCategories()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	objects := &memoryObjects{objects: map[string][]byte{"private/categories.csv": buf.Bytes()}}
	store := NewObjectStore(objects, "private", "categories.csv")

	cats, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cats) != 8 {
		t.Fatalf("got %d categories, want 8", len(cats))
	}

	if err := store.SetActive(ctx, []string{"7", "8"}, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if objects.uploads != 1 {
		t.Errorf("uploads = %d, want 1", objects.uploads)
	}
	cats, _ = store.Load(ctx)
	active := activeByID(cats)
	if active["7"] || active["8"] || !active["1"] {
		t.Errorf("after SetActive: %v", active)
	}

	missing := NewObjectStore(objects, "private", "nope.csv")
	_, err = missing.Load(ctx)
	if err == nil {
		t.Fatal("expected error for missing object")
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		t.Error("a missing table must not read as a missing category")
	}
}

func TestCount(t *testing.T) {
	got := Count(sampleCategories())
	if got != (Stats{Total: 8, Active: 7, Inactive: 1}) {
		t.Errorf("Count = %+v", got)
	}
}

func TestSearchKeepsAncestors(t *testing.T) {
	got := Search(sampleCategories(), "  CHEE ")
	var ids []string
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	if strings.Join(ids, ",") != "1,2,4" {
		t.Errorf("Search ids = %v, want [1 2 4]", ids)
	}
	if got := Search(sampleCategories(), ""); len(got) != 8 {
		t.Errorf("empty query returned %d, want all", len(got))
	}
	if got := Search(sampleCategories(), "zzz"); len(got) != 0 {
		t.Errorf("no match returned %v", got)
	}
}

func TestCheckIntegrity(t *testing.T) {
	if err := CheckIntegrity(sampleCategories()); err != nil {
		t.Errorf("clean taxonomy: %v", err)
	}

	bad := append(sampleCategories(),
		cat("20", "404", "Orphan", true),
		cat("30", "31", "Loop A", true),
		cat("31", "30", "Loop B", true),
	)
	err := CheckIntegrity(bad)
	if err == nil {
		t.Fatal("expected integrity error")
	}
	msg := err.Error()
	for _, want := range []string{"category 20: unknown parent 404", "category 30: parent cycle", "category 31: parent cycle"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	cats := sampleCategories()
	res, err := PlanToggle(cats, "7")
	if err != nil {
		t.Fatalf("PlanToggle: %v", err)
	}
	out := res.Apply(cats)
	if !cats[6].IsActive {
		t.Error("Apply mutated its input")
	}
	if out[6].IsActive || out[7].IsActive {
		t.Error("Apply did not deactivate Drinks subtree")
	}
}
