package editor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"murmur/llm"
	"murmur/processor"
)

var editClock = func() time.Time {
	return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEditFileInPlace(t *testing.T) {
	fake := llm.NewFake("## Organized\n\n- point one")
	proc := processor.New(fake, processor.DocumentTemplates())
	path := writeInput(t, "point one scattered around")

	res, err := EditFile(context.Background(), path, proc, Options{Now: editClock})
	if err != nil {
		t.Fatalf("EditFile: %v", err)
	}

	if res.OutputPath != path {
		t.Errorf("output path = %q, want in-place", res.OutputPath)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "## Organized") {
		t.Errorf("edited content missing:\n%s", out)
	}
	if !strings.HasPrefix(string(out), "*Edited with murmur (organize mode) on 2024-01-01 10:00*\n\n---\n\n") {
		t.Errorf("provenance header missing or misplaced:\n%s", out)
	}

	backup, err := os.ReadFile(path + backupSuffix)
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != "point one scattered around" {
		t.Errorf("backup content = %q", backup)
	}

	if fake.Calls() != 1 {
		t.Errorf("completer calls = %d, want 1", fake.Calls())
	}
	if !strings.Contains(fake.Prompts()[0], "point one scattered around") {
		t.Errorf("prompt missing file content: %q", fake.Prompts()[0])
	}
}

func TestEditFileToOutputPath(t *testing.T) {
	fake := llm.NewFake("professional version")
	proc := processor.New(fake, processor.DocumentTemplates())
	path := writeInput(t, "casual draft")
	outPath := filepath.Join(filepath.Dir(path), "polished.md")

	res, err := EditFile(context.Background(), path, proc, Options{
		Mode:       processor.ModeProfessional,
		OutputPath: outPath,
		Now:        editClock,
	})
	if err != nil {
		t.Fatalf("EditFile: %v", err)
	}

	if res.BackupPath != "" {
		t.Errorf("backup written for non-destructive edit: %q", res.BackupPath)
	}
	// Original untouched.
	orig, _ := os.ReadFile(path)
	if string(orig) != "casual draft" {
		t.Errorf("original modified: %q", orig)
	}
	out, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if !strings.Contains(string(out), "professional version") {
		t.Errorf("output content = %q", out)
	}
}

func TestEditFileNoBackup(t *testing.T) {
	proc := processor.New(llm.NewFake("out"), processor.DocumentTemplates())
	path := writeInput(t, "content")

	res, err := EditFile(context.Background(), path, proc, Options{NoBackup: true, Now: editClock})
	if err != nil {
		t.Fatalf("EditFile: %v", err)
	}
	if res.BackupPath != "" {
		t.Errorf("backup path = %q, want none", res.BackupPath)
	}
	if _, err := os.Stat(path + backupSuffix); !os.IsNotExist(err) {
		t.Error("backup file exists despite NoBackup")
	}
}

func TestEditFileEmpty(t *testing.T) {
	proc := processor.New(llm.NewFake("out"), processor.DocumentTemplates())
	path := writeInput(t, "   \n\t\n")

	if _, err := EditFile(context.Background(), path, proc, Options{Now: editClock}); err == nil {
		t.Fatal("expected error for empty file")
	}
	if _, err := os.Stat(path + backupSuffix); !os.IsNotExist(err) {
		t.Error("backup written for empty file")
	}
}

func TestEditFileProcessError(t *testing.T) {
	fake := llm.NewFake("")
	fake.Err = errors.New("model offline")
	proc := processor.New(fake, processor.DocumentTemplates())
	path := writeInput(t, "content")

	_, err := EditFile(context.Background(), path, proc, Options{Now: editClock})
	if !errors.Is(err, fake.Err) {
		t.Fatalf("err = %v, want wrapped model error", err)
	}
	// File keeps its original content on failure.
	data, _ := os.ReadFile(path)
	if string(data) != "content" {
		t.Errorf("file modified on error: %q", data)
	}
}

func TestEditFileMissing(t *testing.T) {
	proc := processor.New(llm.NewFake("out"), processor.DocumentTemplates())
	if _, err := EditFile(context.Background(), filepath.Join(t.TempDir(), "nope.md"), proc, Options{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
