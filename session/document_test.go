package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"murmur/llm"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testStart = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func readDoc(t *testing.T, d *Document) string {
	t.Helper()
	data, err := os.ReadFile(d.Path())
	if err != nil {
		t.Fatalf("reading session file: %v", err)
	}
	return string(data)
}

func TestCreateWritesHeader(t *testing.T) {
	dir := t.TempDir()
	d, err := Create(dir, llm.NewFake("ignored"), WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	wantPath := filepath.Join(dir, "2024-01-01_10-00_session.md")
	if d.Path() != wantPath {
		t.Errorf("path = %q, want %q", d.Path(), wantPath)
	}

	content := readDoc(t, d)
	for _, want := range []string{
		"# Untitled Session",
		"**Session Started:** 2024-01-01 10:00",
		"## Raw Transcription",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("header missing %q:\n%s", want, content)
		}
	}
}

func TestFirstEntryInfersTitleAndRenames(t *testing.T) {
	dir := t.TempDir()
	fake := llm.NewFake("Greeting Note")
	d, err := Create(dir, fake, WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := d.AddEntry(context.Background(), "hi there", "Hi there."); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	if d.Title() != "Greeting Note" {
		t.Errorf("title = %q, want %q", d.Title(), "Greeting Note")
	}
	wantPath := filepath.Join(dir, "2024-01-01_10-00_Greeting_Note.md")
	if d.Path() != wantPath {
		t.Errorf("path = %q, want %q", d.Path(), wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}

	content := readDoc(t, d)
	if !strings.Contains(content, "# Greeting Note") {
		t.Errorf("header not retitled:\n%s", content)
	}
	if strings.Contains(content, "Untitled Session") {
		t.Errorf("placeholder title still present:\n%s", content)
	}
	if !strings.Contains(content, "**[10:00:00]** Hi there.") {
		t.Errorf("entry line missing:\n%s", content)
	}
	if len(d.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", d.Warnings())
	}
}

func TestTitlePromptSeededWithEntry(t *testing.T) {
	fake := llm.NewFake("Shopping List")
	d, err := Create(t.TempDir(), fake, WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.AddEntry(context.Background(), "", "milk eggs bread"); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	prompts := fake.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("calls = %d, want 1", len(prompts))
	}
	if !strings.Contains(prompts[0], "milk eggs bread") {
		t.Errorf("title prompt does not contain entry text: %q", prompts[0])
	}
}

func TestTitleSeedTruncatesWholeRunes(t *testing.T) {
	fake := llm.NewFake("Long Note")
	d, err := Create(t.TempDir(), fake, WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	long := strings.Repeat("ü", 300)
	if err := d.AddEntry(context.Background(), long, long); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	prompts := fake.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("calls = %d, want 1", len(prompts))
	}
	if !utf8.ValidString(prompts[0]) {
		t.Errorf("title prompt contains a split rune: %q", prompts[0])
	}
	if !strings.Contains(prompts[0], strings.Repeat("ü", 200)) {
		t.Errorf("title prompt missing 200-rune seed")
	}
	if strings.Contains(prompts[0], strings.Repeat("ü", 201)) {
		t.Errorf("title seed not capped at 200 runes")
	}
}

func TestNonASCIITitleSurvivesRename(t *testing.T) {
	dir := t.TempDir()
	fake := llm.NewFake("Café Überblick")
	d, err := Create(dir, fake, WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.AddEntry(context.Background(), "ordering coffee", "Ordering coffee."); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	if d.Title() != "Café Überblick" {
		t.Errorf("title = %q, want %q", d.Title(), "Café Überblick")
	}
	wantPath := filepath.Join(dir, "2024-01-01_10-00_Café_Überblick.md")
	if d.Path() != wantPath {
		t.Errorf("path = %q, want %q", d.Path(), wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
}

func TestOnlyFirstEntryTriggersInference(t *testing.T) {
	fake := llm.NewFake("First Entry")
	d, err := Create(t.TempDir(), fake, WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if err := d.AddEntry(context.Background(), text, text); err != nil {
			t.Fatalf("AddEntry(%q): %v", text, err)
		}
	}
	if fake.Calls() != 1 {
		t.Errorf("completer calls = %d, want 1", fake.Calls())
	}
	if d.EntryCount() != 3 {
		t.Errorf("entries = %d, want 3", d.EntryCount())
	}
}

func TestTitleFailureKeepsPlaceholder(t *testing.T) {
	fake := llm.NewFake("")
	fake.Err = errors.New("model offline")
	d, err := Create(t.TempDir(), fake, WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := d.AddEntry(context.Background(), "hello", "hello"); err != nil {
		t.Fatalf("AddEntry should not fail on title inference: %v", err)
	}

	if d.Title() != "Untitled Session" {
		t.Errorf("title = %q, want placeholder", d.Title())
	}
	if !strings.HasSuffix(d.Path(), "_session.md") {
		t.Errorf("path should keep provisional name, got %q", d.Path())
	}
	if len(d.Warnings()) == 0 {
		t.Error("expected a warning for failed inference")
	}
	// The entry itself must survive the failed inference.
	if !strings.Contains(readDoc(t, d), "hello") {
		t.Error("entry missing after inference failure")
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Meeting Notes", "Meeting Notes"},
		{`"Quoted: Title!"`, "Quoted Title"},
		{"  spaced   out  ", "spaced out"},
		{"dash-ok_under", "dash-ok_under"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
		{"Café Résumé Überblick", "Café Résumé Überblick"},
		{"日本語のメモ!", "日本語のメモ"},
		{strings.Repeat("é", 80), strings.Repeat("é", 50)},
		{"***", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeTitle(tt.in); got != tt.want {
			t.Errorf("sanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenameCollisionKeepsOldPath(t *testing.T) {
	dir := t.TempDir()
	// Occupy the target path with a directory so the rename fails.
	taken := filepath.Join(dir, "2024-01-01_10-00_Blocked.md")
	if err := os.Mkdir(taken, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(taken, "x"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	d, err := Create(dir, llm.NewFake("Blocked"), WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.AddEntry(context.Background(), "text", "text"); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	if !strings.HasSuffix(d.Path(), "_session.md") {
		t.Errorf("path = %q, want provisional name retained", d.Path())
	}
	// Header keeps the inferred title even though the rename failed.
	if !strings.Contains(readDoc(t, d), "# Blocked") {
		t.Error("header should carry the inferred title")
	}
	if len(d.Warnings()) == 0 {
		t.Error("expected a warning for failed rename")
	}
}

func TestFinalizeRaw(t *testing.T) {
	fake := llm.NewFake("Greeting Note")
	d, err := Create(t.TempDir(), fake, WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.AddEntry(context.Background(), "hi there", "Hi there."); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}

	calls := fake.Calls()
	if err := d.Finalize(context.Background(), false); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if fake.Calls() != calls {
		t.Error("raw finalize must not call the completer")
	}

	content := readDoc(t, d)
	if !strings.Contains(content, "## Organized Summary\n\nHi there.") {
		t.Errorf("summary section missing raw text:\n%s", content)
	}
	if !strings.Contains(content, "*Session ended: 2024-01-01 10:00*") {
		t.Errorf("footer missing:\n%s", content)
	}
}

func TestFinalizeOrganized(t *testing.T) {
	fake := llm.NewFake("Greeting Note")
	fake.Fn = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Organize and structure") {
			return "## Notes\n\n- Hi there.", nil
		}
		return "Greeting Note", nil
	}
	d, err := Create(t.TempDir(), fake, WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.AddEntry(context.Background(), "hi there", "Hi there."); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := d.Finalize(context.Background(), true); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	content := readDoc(t, d)
	if !strings.Contains(content, "## Notes\n\n- Hi there.") {
		t.Errorf("organized body missing:\n%s", content)
	}
}

func TestFinalizeOrganizeFailureFallsBackToRaw(t *testing.T) {
	fake := llm.NewFake("Greeting Note")
	fake.Fn = func(prompt string) (string, error) {
		if strings.Contains(prompt, "Organize and structure") {
			return "", errors.New("model offline")
		}
		return "Greeting Note", nil
	}
	d, err := Create(t.TempDir(), fake, WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.AddEntry(context.Background(), "hi", "Hi there."); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := d.Finalize(context.Background(), true); err != nil {
		t.Fatalf("Finalize should absorb organize failure: %v", err)
	}

	content := readDoc(t, d)
	if !strings.Contains(content, "Organization failed") {
		t.Errorf("fallback marker missing:\n%s", content)
	}
	if !strings.Contains(content, "Hi there.") {
		t.Errorf("raw text missing from fallback:\n%s", content)
	}
	if len(d.Warnings()) == 0 {
		t.Error("expected a warning for failed organize")
	}
}

func TestFinalizeEmptyIsNoop(t *testing.T) {
	d, err := Create(t.TempDir(), llm.NewFake("x"), WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := readDoc(t, d)
	if err := d.Finalize(context.Background(), true); err != nil {
		t.Fatalf("Finalize of empty session: %v", err)
	}
	if got := readDoc(t, d); got != before {
		t.Errorf("empty finalize changed the file:\n%s", got)
	}
}

func TestAddEntryAfterFinalize(t *testing.T) {
	d, err := Create(t.TempDir(), llm.NewFake("Title"), WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.AddEntry(context.Background(), "a", "a"); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := d.Finalize(context.Background(), false); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	before := readDoc(t, d)
	if err := d.AddEntry(context.Background(), "b", "b"); !errors.Is(err, ErrFinalized) {
		t.Errorf("AddEntry after finalize: err = %v, want ErrFinalized", err)
	}
	if err := d.Finalize(context.Background(), false); !errors.Is(err, ErrFinalized) {
		t.Errorf("second Finalize: err = %v, want ErrFinalized", err)
	}
	if got := readDoc(t, d); got != before {
		t.Errorf("file changed after finalize:\n%s", got)
	}
}

func TestAddEntryFallsBackToRawText(t *testing.T) {
	d, err := Create(t.TempDir(), llm.NewFake("Title"), WithClock(fixedClock(testStart)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.AddEntry(context.Background(), "raw words", ""); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if !strings.Contains(readDoc(t, d), "raw words") {
		t.Error("raw text not used when cleaned text is empty")
	}
}
