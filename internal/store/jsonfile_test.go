package store

import (
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := NewJSONFile(filepath.Join(dir, "nested", "data.json"))

	want := sample{Name: "alice", Count: 3}
	if err := f.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var got sample
	if err := f.Load(&got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	f := NewJSONFile(filepath.Join(dir, "missing.json"))

	var got sample
	if err := f.Load(&got); err != nil {
		t.Fatalf("Load on missing file should not error: %v", err)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	f := NewJSONFile(filepath.Join(dir, "data.json"))

	if err := f.Save(sample{Name: "v1", Count: 1}); err != nil {
		t.Fatal(err)
	}
	if err := f.Save(sample{Name: "v2", Count: 2}); err != nil {
		t.Fatal(err)
	}

	var got sample
	if err := f.Load(&got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "v2" {
		t.Fatalf("expected latest save to win, got %+v", got)
	}
}
