// Package session maintains the dictation session document: an append-only
// markdown file that accumulates utterances, infers its own title from the
// first entry, and closes with an organized summary.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"murmur/llm"
	"murmur/log"
)

const (
	placeholderTitle = "Untitled Session"

	stampFormat  = "2006-01-02_15-04"
	headerFormat = "2006-01-02 15:04"
	entryFormat  = "15:04:05"

	// Title inference: seed length from the first entry, caps on the
	// sanitized title and on the filename fragment.
	titleSeedLen    = 200
	titleMaxLen     = 50
	titleFileMaxLen = 30
)

// ErrFinalized rejects mutations after Finalize. A correct orchestration
// never triggers it; the check protects the file from corruption.
var ErrFinalized = errors.New("session document is finalized")

var (
	titleLineRe = regexp.MustCompile(`(?m)^# .*$`)
	unsafeRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
)

// Entry is one appended utterance. Immutable once appended.
type Entry struct {
	Time    time.Time
	Raw     string
	Cleaned string
}

// Document is a session document. Created -> titled after the first entry
// -> finalized; no transition back. Owned by a single session; the mutex
// only guards against display callbacks racing the dictation loop.
type Document struct {
	mu        sync.Mutex
	start     time.Time
	title     string
	path      string
	entries   []Entry
	finalized bool
	warnings  []string

	completer llm.Completer
	now       func() time.Time
}

type Option func(*Document)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Document) { d.now = now }
}

// Create writes a new session file under dir and returns its handle. The
// provisional filename derives from the start timestamp; the title is a
// placeholder until the first entry triggers inference.
func Create(dir string, completer llm.Completer, opts ...Option) (*Document, error) {
	d := &Document{
		title:     placeholderTitle,
		completer: completer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.start = d.now()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}

	d.path = filepath.Join(dir, d.start.Format(stampFormat)+"_session.md")

	header := fmt.Sprintf(`# %s

**Session Started:** %s

---

## Raw Transcription

`, d.title, d.start.Format(headerFormat))

	if err := os.WriteFile(d.path, []byte(header), 0644); err != nil {
		return nil, fmt.Errorf("creating session file: %w", err)
	}
	return d, nil
}

func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title
}

func (d *Document) Start() time.Time { return d.start }

func (d *Document) EntryCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Warnings reports degraded-path events (failed title inference, failed
// rename, failed organize) that were absorbed rather than surfaced.
func (d *Document) Warnings() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.warnings))
	copy(out, d.warnings)
	return out
}

func (d *Document) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.warnings = append(d.warnings, msg)
	log.Warn(msg)
}

func (d *Document) appendFile(text string) error {
	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening session file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("appending to session file: %w", err)
	}
	return nil
}

// AddEntry appends one utterance block to the document and its file. The
// first entry triggers title inference and a rename attempt; both failure
// modes degrade silently and the document keeps working.
func (d *Document) AddEntry(ctx context.Context, raw, cleaned string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finalized {
		return ErrFinalized
	}

	text := cleaned
	if text == "" {
		text = raw
	}

	entry := Entry{Time: d.now(), Raw: raw, Cleaned: text}
	if err := d.appendFile(fmt.Sprintf("**[%s]** %s\n\n", entry.Time.Format(entryFormat), text)); err != nil {
		return err
	}
	d.entries = append(d.entries, entry)

	if len(d.entries) == 1 {
		d.inferTitle(ctx, text)
	}
	return nil
}

const titlePrompt = `Generate a short, descriptive title (3-6 words) for a document that starts with:
"{text}"

Output ONLY the title, nothing else. No quotes, no punctuation at the end.

Title:`

// inferTitle asks the completion service for a title seeded with the first
// entry, updates the header line and renames the file. Caller holds d.mu.
func (d *Document) inferTitle(ctx context.Context, firstText string) {
	seed := truncateRunes(firstText, titleSeedLen)

	inferStart := time.Now()
	result, err := d.completer.Complete(ctx, strings.ReplaceAll(titlePrompt, "{text}", seed))
	if err != nil {
		d.warnf("title inference failed: %v", err)
		return
	}

	title := sanitizeTitle(result)
	if title == "" {
		d.warnf("title inference returned nothing usable: %q", result)
		return
	}
	d.title = title
	log.TitleInferred(title, float64(time.Since(inferStart).Milliseconds()))

	if err := d.rewriteHeaderTitle(); err != nil {
		d.warnf("header title update failed: %v", err)
		return
	}
	if err := d.renameForTitle(); err != nil {
		// Keep the provisional path; the document still works.
		d.warnf("session rename failed: %v", err)
	}
}

// rewriteHeaderTitle replaces the first "# ..." line with the current
// title. The title line is the only content ever rewritten in place.
func (d *Document) rewriteHeaderTitle() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return err
	}
	loc := titleLineRe.FindIndex(data)
	if loc == nil {
		return fmt.Errorf("no title line in %s", d.path)
	}
	updated := append([]byte{}, data[:loc[0]]...)
	updated = append(updated, []byte("# "+d.title)...)
	updated = append(updated, data[loc[1]:]...)
	return os.WriteFile(d.path, updated, 0644)
}

// renameForTitle moves the file to <stamp>_<title>.md. Two explicit steps:
// compute the desired path, then one atomic rename; on failure the old
// path stays valid. Caller holds d.mu.
func (d *Document) renameForTitle() error {
	safe := strings.ReplaceAll(sanitizeTitle(d.title), " ", "_")
	safe = truncateRunes(safe, titleFileMaxLen)
	if safe == "" {
		return nil
	}
	newPath := filepath.Join(filepath.Dir(d.path), d.start.Format(stampFormat)+"_"+safe+".md")
	if newPath == d.path {
		return nil
	}
	if err := os.Rename(d.path, newPath); err != nil {
		return err
	}
	d.path = newPath
	return nil
}

// sanitizeTitle strips everything outside letters, digits, underscores,
// spaces and hyphens, collapses whitespace and caps the length.
func sanitizeTitle(s string) string {
	s = unsafeRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(truncateRunes(s, titleMaxLen))
}

// truncateRunes caps s at max runes, never splitting a multi-byte rune.
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

const organizePrompt = `Organize and structure the following notes into a clear, readable document.
- Group related ideas together
- Add section headers if appropriate
- Remove redundancy
- Keep the original voice

Notes:
{text}

Organized document:`

// Finalize closes the document: a separator, an Organized Summary section
// (model-organized or the raw concatenation), and a closing footer. With
// zero entries it warns and does nothing. After Finalize the document is
// terminal.
func (d *Document) Finalize(ctx context.Context, organize bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finalized {
		return ErrFinalized
	}
	if len(d.entries) == 0 {
		log.Warn("finalize: session has no entries")
		return nil
	}

	parts := make([]string, len(d.entries))
	for i, e := range d.entries {
		parts[i] = e.Cleaned
	}
	allText := strings.Join(parts, "\n")

	var body string
	if organize {
		result, err := d.completer.Complete(ctx, strings.ReplaceAll(organizePrompt, "{text}", allText))
		if err != nil {
			// Degrade to the raw concatenation rather than losing the notes.
			d.warnf("organize failed: %v", err)
			body = fmt.Sprintf("(Organization failed: %v)\n\n%s", err, allText)
		} else {
			body = strings.TrimSpace(result)
		}
	} else {
		body = allText
	}

	closing := fmt.Sprintf("\n---\n\n## Organized Summary\n\n%s\n\n---\n\n*Session ended: %s*\n",
		body, d.now().Format(headerFormat))
	if err := d.appendFile(closing); err != nil {
		return err
	}

	d.finalized = true
	log.SessionEnd(len(d.entries), d.path)
	return nil
}
