// Package doctor runs interactive system diagnostics: hotkey capture, the
// transcription daemon, the completion service, clipboard access and the
// session directory.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"murmur/clipboard"
	"murmur/engine"
	"murmur/hotkey"
	"murmur/llm"
)

// Run executes the diagnostic checks and returns an exit code (0=all pass,
// 1=any fail). sessionDir is the directory session documents go to.
func Run(sessionDir string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("murmur doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := true

	if !checkHotkey() {
		allPass = false
	}
	if !checkTranscription() {
		allPass = false
	}
	if !checkCompletion() {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}
	if !checkSessionDir(sessionDir) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[1/5] Hotkey detection")

	if msg, err := hotkey.Diagnose(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	} else {
		fmt.Printf("  %s\n", msg)
	}

	fmt.Println("Press Ctrl+Shift+Space...")

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		// Wait for keyup so the release does not leak into later checks
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkTranscription() bool {
	fmt.Println()
	fmt.Println("[2/5] Transcription daemon")

	url := os.Getenv("MURMUR_STT_URL")
	if url == "" {
		url = engine.DefaultServerURL
	}
	fmt.Printf("Connecting to %s...\n", url)

	sock := engine.NewSocket(url)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	onPartial := func(text string) {
		fmt.Printf("  live: %s\r", text)
	}
	if err := sock.Start(ctx, onPartial); err != nil {
		fmt.Printf("  FAIL: cannot connect: %v\n", err)
		fmt.Println("  Is the RealtimeSTT server running?")
		return false
	}
	defer sock.Stop()

	fmt.Println("Connected. Speak a sentence...")
	recCtx, recCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer recCancel()

	text, err := sock.Record(recCtx)
	if err != nil {
		fmt.Printf("\n  FAIL: no transcription received: %v\n", err)
		return false
	}
	fmt.Printf("\n  PASS: transcribed %q\n", text)
	return true
}

func checkCompletion() bool {
	fmt.Println()
	fmt.Println("[3/5] Completion service")

	provider, err := llm.FromEnv()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("Asking %s (%s)...\n", provider.Name(), provider.Model())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := provider.Complete(ctx, "Reply with the single word: ready")
	if err != nil {
		fmt.Printf("  FAIL: completion call failed: %v\n", err)
		fmt.Println("  Is the model server running? (ollama serve)")
		return false
	}
	fmt.Printf("  PASS: model replied %q\n", strings.TrimSpace(result))
	return true
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[4/5] Clipboard")

	testStr := fmt.Sprintf("murmur-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)")
		return false
	}
}

func checkSessionDir(dir string) bool {
	fmt.Println()
	fmt.Println("[5/5] Session directory")
	fmt.Printf("Checking %s...\n", dir)

	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("  FAIL: cannot create: %v\n", err)
		return false
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		fmt.Printf("  FAIL: not writable: %v\n", err)
		return false
	}
	os.Remove(probe)
	fmt.Println("  PASS: session directory writable")
	return true
}
