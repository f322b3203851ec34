//go:build integration

// End-to-end tests that drive the built binary in headless test mode over
// stdin. Requires MURMUR_TEST_BIN and a running ollama instance for the
// processing modes that call the model.
package test_test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"murmur/clipboard"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("MURMUR_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "MURMUR_TEST_BIN not set; run: make test-integration")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runMurmur(t *testing.T, stdin string, args ...string) (logDir, sessionDir string) {
	t.Helper()
	logDir = t.TempDir()
	sessionDir = t.TempDir()
	cmdArgs := append([]string{"-test", "-tui=false", "-logpath", logDir, "-output", sessionDir}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("murmur exited with error: %v\noutput: %s", err, out)
	}
	return logDir, sessionDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func sessionFile(t *testing.T, sessionDir string) string {
	t.Helper()
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".md") {
			data, err := os.ReadFile(filepath.Join(sessionDir, e.Name()))
			if err != nil {
				t.Fatal(err)
			}
			return string(data)
		}
	}
	t.Fatal("no session document written")
	return ""
}

func TestRawUtterance(t *testing.T) {
	logDir, _ := runMurmur(t,
		cmds("SAY hello from the integration test", "KEYDOWN", "KEYUP", "WAIT", "QUIT"),
		"-mode", "raw", "-no-session", "-no-copy")

	dict := readLog(t, logDir, "dictation_log.txt")
	if !strings.Contains(dict, "hello from the integration test") {
		t.Errorf("dictation log missing utterance:\n%s", dict)
	}
}

func TestSessionDocumentWritten(t *testing.T) {
	_, sessionDir := runMurmur(t,
		cmds("SAY first note", "KEYDOWN", "KEYUP", "WAIT",
			"SAY second note", "KEYDOWN", "KEYUP", "WAIT", "QUIT"),
		"-mode", "raw", "-no-copy", "-organize=false")

	content := sessionFile(t, sessionDir)
	for _, want := range []string{"first note", "second note", "Session ended"} {
		if !strings.Contains(content, want) {
			t.Errorf("session document missing %q:\n%s", want, content)
		}
	}
}

func TestNoSpeechRound(t *testing.T) {
	logDir, _ := runMurmur(t,
		cmds("KEYDOWN", "SLEEP 100", "KEYUP", "WAIT", "QUIT"),
		"-mode", "raw", "-no-session", "-no-copy")

	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "no_speech") {
		t.Errorf("expected no_speech in diagnostics:\n%s", diag)
	}
}

func TestClipboardCopy(t *testing.T) {
	if err := clipboard.Copy("murmur-pretest"); err != nil {
		t.Skip("clipboard not available")
	}

	runMurmur(t,
		cmds("SAY copy me please", "KEYDOWN", "KEYUP", "WAIT", "QUIT"),
		"-mode", "raw", "-no-session")

	clip, err := clipboard.Read()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if !strings.Contains(clip, "copy me please") {
		t.Errorf("clipboard = %q, want utterance", clip)
	}
}

func TestCleanModeCallsModel(t *testing.T) {
	if os.Getenv("MURMUR_LLM_PROVIDER") == "" && os.Getenv("OLLAMA_MODEL") == "" {
		t.Skip("no completion provider configured")
	}
	logDir, _ := runMurmur(t,
		cmds("SAY um so basically this is uh a test", "KEYDOWN", "KEYUP", "WAIT", "QUIT"),
		"-mode", "clean", "-no-session", "-no-copy")

	dict := readLog(t, logDir, "dictation_log.txt")
	if strings.TrimSpace(dict) == "" {
		t.Error("dictation log empty after clean-mode round")
	}
}
