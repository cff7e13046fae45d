package merger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tanq16/rangepull/internal/fetcher"
)

func writePart(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write part %s: %v", path, err)
	}
}

func TestMergeHappyPath(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.bin")

	part0 := fetcher.PartPath(out, 0)
	part1 := fetcher.PartPath(out, 1)
	writePart(t, part0, []byte("hello "))
	writePart(t, part1, []byte("world"))

	results := []fetcher.Result{
		{ID: 1, PartPath: part1, BytesWritten: 5},
		{ID: 0, PartPath: part0, BytesWritten: 6},
	}
	if err := Merge(out, 11, results); err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read merged output: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("merged content = %q, want %q", got, "hello world")
	}
	if _, err := os.Stat(part0); !os.IsNotExist(err) {
		t.Error("expected part0 to be removed after merge")
	}
	if _, err := os.Stat(part1); !os.IsNotExist(err) {
		t.Error("expected part1 to be removed after merge")
	}
}

func TestMergeRejectsIncompleteChunks(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.bin")

	part0 := fetcher.PartPath(out, 0)
	writePart(t, part0, []byte("partial"))

	results := []fetcher.Result{
		{ID: 0, PartPath: part0, BytesWritten: 7},
		{ID: 1, Err: os.ErrClosed},
	}
	err := Merge(out, 100, results)
	if err == nil {
		t.Fatal("expected error for incomplete chunk set")
	}
	var incomplete *ErrIncompleteChunks
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected ErrIncompleteChunks, got %v (%T)", err, err)
	}
	if len(incomplete.FailedIDs) != 1 || incomplete.FailedIDs[0] != 1 {
		t.Errorf("FailedIDs = %v, want [1]", incomplete.FailedIDs)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("expected no output file to be created on incomplete merge")
	}
}

func TestMergeDetectsSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.bin")

	part0 := fetcher.PartPath(out, 0)
	writePart(t, part0, []byte("short"))

	results := []fetcher.Result{{ID: 0, PartPath: part0, BytesWritten: 5}}
	err := Merge(out, 999, results)
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("expected output file to be cleaned up after size mismatch")
	}
	if _, statErr := os.Stat(part0); !os.IsNotExist(statErr) {
		t.Error("expected part file to be cleaned up after failed merge")
	}
}

func TestCleanupPartsIgnoresMissingFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.bin")
	existing := fetcher.PartPath(out, 0)
	writePart(t, existing, []byte("x"))

	results := []fetcher.Result{
		{ID: 0, PartPath: existing},
		{ID: 1, PartPath: fetcher.PartPath(out, 1)},
		{ID: 2, PartPath: ""},
	}
	CleanupParts(results)
	if _, err := os.Stat(existing); !os.IsNotExist(err) {
		t.Error("expected existing part file to be removed")
	}
}
