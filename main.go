package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"murmur/beep"
	"murmur/clipboard"
	"murmur/doctor"
	"murmur/editor"
	"murmur/engine"
	"murmur/hotkey"
	"murmur/llm"
	"murmur/log"
	"murmur/processor"
	"murmur/session"
	"murmur/shutdown"
	"murmur/update"
)

var version = "dev"

const (
	// Utterance processing can hang on a cold model load.
	processTimeout = 60 * time.Second
	// After key release, how long to wait for the daemon to flush the
	// final sentence before giving up on the utterance.
	finalGrace = 2 * time.Second
)

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "murmur-sessions"
	}
	return filepath.Join(home, "Documents", "murmur")
}

// app ties one dictation session together: the transcription adapter, the
// prompt pipeline, the session document and the display sink.
type app struct {
	adapter  *engine.Adapter
	proc     *processor.Processor
	mode     processor.Mode
	doc      *session.Document
	copyText bool
	sink     EventSink
	grace    time.Duration
}

func (a *app) sessionLine() string {
	if a.doc == nil {
		return "session: off"
	}
	return fmt.Sprintf("session: %s (%d entries)", a.doc.Title(), a.doc.EntryCount())
}

// cycle runs one press-to-release dictation round: record until the stop
// signal (plus a grace period for the final sentence), process the raw
// text, copy it and append it to the session document.
func (a *app) cycle(ctx context.Context, stop <-chan struct{}, toggled func() bool) {
	// Discard a stale release left over from a previous round.
	select {
	case <-stop:
	default:
	}

	a.sink.RecordingStart(toggled != nil && toggled())
	log.Info("recording_start")
	go beep.PlayStart()

	recCtx, cancel := context.WithCancel(ctx)
	recDone := make(chan struct{})

	if toggled != nil {
		// Surface the latch once a tap turns the hold into toggle mode.
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-recDone:
					return
				case <-ticker.C:
					if toggled() {
						a.sink.RecordingStart(true)
						return
					}
				}
			}
		}()
	}

	go func() {
		select {
		case <-stop:
			go beep.PlayEnd()
			select {
			case <-time.After(a.grace):
			case <-recDone:
			}
			cancel()
		case <-recDone:
		}
	}()

	recordStart := time.Now()
	raw, err := a.adapter.Record(recCtx)
	close(recDone)
	cancel()
	recordMs := float64(time.Since(recordStart).Milliseconds())

	a.sink.RecordingStop()
	a.sink.LivePartial("")

	if err != nil {
		if recCtx.Err() != nil {
			// Grace expired without a final sentence.
			log.Info("no_speech")
			a.sink.Utterance("(no speech detected)", false, true)
			return
		}
		log.Errorf("recording error: %v", err)
		a.sink.Error(err)
		go beep.PlayError()
		return
	}
	if raw == "" {
		log.Info("no_speech")
		a.sink.Utterance("(no speech detected)", false, true)
		return
	}

	// Stream the cleaned text into the live line as it arrives.
	processStart := time.Now()
	var out strings.Builder
	var perr error
	for chunk := range a.proc.ProcessStream(ctx, raw, a.mode) {
		if chunk.Err != nil {
			perr = chunk.Err
			break
		}
		out.WriteString(chunk.Text)
		a.sink.LivePartial(out.String())
	}
	a.sink.LivePartial("")
	processMs := float64(time.Since(processStart).Milliseconds())
	text := out.String()
	if perr != nil {
		// Keep the raw transcription rather than losing the utterance.
		log.Errorf("processing error: %v", perr)
		a.sink.Warning("processing failed, using raw text")
		text = raw
	}
	if text == "" {
		text = raw
	}

	copied := false
	if a.copyText {
		if cerr := clipboard.Copy(text); cerr != nil {
			log.Errorf("clipboard error: %v", cerr)
			a.sink.Warning("clipboard copy failed")
		} else {
			copied = true
		}
	}

	if a.doc != nil {
		if serr := a.doc.AddEntry(ctx, raw, text); serr != nil {
			log.Errorf("session append error: %v", serr)
			a.sink.Warning("session append failed")
		}
		for _, w := range a.doc.Warnings() {
			a.sink.Warning(w)
		}
	}

	log.Utterance(string(a.mode), a.adapter.Name(), len(raw), len(text), recordMs, processMs)
	log.DictationText(text)
	a.sink.Utterance(text, copied, false)
	a.sink.SessionLine(a.sessionLine())
}

// finish closes the session document and releases the engine. Finalize
// runs first so a daemon teardown cannot take the summary with it.
func (a *app) finish(ctx context.Context, organize bool) {
	if a.doc != nil && a.doc.EntryCount() > 0 {
		if err := a.doc.Finalize(ctx, organize); err != nil {
			log.Errorf("finalize error: %v", err)
		}
	}
	a.adapter.Stop()
}

func runUpdate() {
	if version == "dev" {
		fmt.Println("Dev build — cannot check for updates.")
		os.Exit(0)
	}
	fmt.Printf("murmur %s — checking for updates...\n", version)
	rel, err := update.CheckLatest(version)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if rel == nil {
		fmt.Println("Already up to date.")
		os.Exit(0)
	}
	fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
	fmt.Print("Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Aborted.")
		os.Exit(0)
	}
	fmt.Printf("Downloading %s...\n", rel.Version)
	if err := update.Apply(rel); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated to %s\n", rel.Version)
	os.Exit(0)
}

func runEdit(args []string) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	modeFlag := fs.String("mode", "organize", "Document mode: organize, professional, summarize, action_items")
	outFlag := fs.String("o", "", "Write result to this path instead of editing in place")
	noBackupFlag := fs.Bool("no-backup", false, "Skip the .backup copy on in-place edits")
	llmFlag := fs.String("llm", "", "Completion provider (default: MURMUR_LLM_PROVIDER or ollama)")
	modelFlag := fs.String("llm-model", "", "Model name (default: OLLAMA_MODEL or llama3.2)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: murmur edit [-mode m] [-o out] [-no-backup] <file>")
		os.Exit(1)
	}

	provider, err := newProvider(*llmFlag, *modelFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	proc := processor.New(provider, processor.DocumentTemplates(), processor.WithTimeout(processTimeout))

	res, err := editor.EditFile(context.Background(), fs.Arg(0), proc, editor.Options{
		Mode:       processor.ParseMode(*modeFlag),
		OutputPath: *outFlag,
		NoBackup:   *noBackupFlag,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d -> %d chars)\n", res.OutputPath, res.InChars, res.OutChars)
	if res.BackupPath != "" {
		fmt.Printf("Original saved to %s\n", res.BackupPath)
	}
	os.Exit(0)
}

func newProvider(name, model string) (*llm.Provider, error) {
	if name == "" && model == "" {
		return llm.FromEnv()
	}
	if name == "" {
		name = "ollama"
	}
	return llm.New(name, model)
}

func run() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "update":
			runUpdate()
		case "edit":
			runEdit(os.Args[2:])
		}
	}

	modeFlag := flag.String("mode", "clean", "Utterance mode: clean, rewrite, bullets, email, raw")
	noCopyFlag := flag.Bool("no-copy", false, "Do not copy processed text to the clipboard")
	noSessionFlag := flag.Bool("no-session", false, "Do not write a session document")
	outputFlag := flag.String("output", "", "Session document directory (default: ~/Documents/murmur)")
	organizeFlag := flag.Bool("organize", true, "Organize session notes with the model on exit")
	llmFlag := flag.String("llm", "", "Completion provider (default: MURMUR_LLM_PROVIDER or ollama)")
	modelFlag := flag.String("llm-model", "", "Model name (default: OLLAMA_MODEL or llama3.2)")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Long-press threshold for hold vs tap (e.g., 350ms)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	sessionDir := *outputFlag
	if sessionDir == "" {
		sessionDir = defaultSessionDir()
	}

	if *doctorFlag {
		os.Exit(doctor.Run(sessionDir))
	}

	provider, err := newProvider(*llmFlag, *modelFlag)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	mode := processor.ParseMode(*modeFlag)
	proc := processor.New(provider, processor.UtteranceTemplates(), processor.WithTimeout(processTimeout))

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !*tuiFlag && !*testFlag && os.Getenv("_MURMUR_BG") == "" {
		exe, _ := os.Executable()
		cmd := exec.Command(exe, os.Args[1:]...)
		cmd.Env = append(os.Environ(), "_MURMUR_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart("socket", provider.Name(), provider.Model(), string(mode))

	if *testFlag {
		runTestMode(provider, proc, mode, sessionDir, !*noSessionFlag, !*noCopyFlag, *organizeFlag)
		return
	}

	var sink EventSink
	if *tuiFlag {
		sink = startTUI()
	} else {
		sink = &consoleSink{}
	}

	a := &app{
		proc:     proc,
		mode:     mode,
		copyText: !*noCopyFlag,
		sink:     sink,
		grace:    finalGrace,
	}
	a.adapter = engine.NewAdapter(engine.New(), func(text string) {
		sink.LivePartial(text)
	})

	ctx := context.Background()
	if err := a.adapter.Start(ctx); err != nil {
		log.Errorf("engine init error: %v", err)
		fmt.Printf("Error: %v\n", err)
		fmt.Println("Is the RealtimeSTT server running? (see README)")
		os.Exit(1)
	}

	if !*noSessionFlag {
		a.doc, err = session.Create(sessionDir, provider)
		if err != nil {
			log.Errorf("session create error: %v", err)
			fmt.Printf("Error creating session document: %v\n", err)
			a.adapter.Stop()
			os.Exit(1)
		}
	}

	update.StartBackgroundCheck(version, log.Dir(), func(rel update.Release) {
		log.Info("update_available: " + rel.Version)
		sink.Warning("update available: " + rel.Version + " (run 'murmur update')")
	})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-tuiDone:
		}
		log.Info("shutdown")
		a.finish(context.Background(), *organizeFlag)
		log.Close()
		shutdownTUI()
		os.Exit(0)
	}()

	go beep.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey: %v\n", err)
		a.finish(ctx, *organizeFlag)
		os.Exit(1)
	}
	defer hk.Unregister()

	sink.ModeLine(fmt.Sprintf("[%s | %s %s]", mode, provider.Name(), provider.Model()))
	sink.SessionLine(a.sessionLine())

	hy := hotkey.NewHybrid(hk, *longPressFlag)
	for range hy.Start() {
		a.cycle(ctx, hy.StopChan(), hy.IsToggle)
	}
}
