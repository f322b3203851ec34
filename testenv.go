package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"murmur/beep"
	"murmur/engine"
	"murmur/hotkey"
	"murmur/llm"
	"murmur/log"
	"murmur/processor"
	"murmur/session"
)

// runTestMode drives the dictation loop from stdin with a fake engine and
// a fake hotkey: SAY <text> queues an utterance, KEYDOWN/KEYUP press the
// key, WAIT blocks until the current round finishes, SLEEP <ms> pauses,
// QUIT finalizes the session and exits.
func runTestMode(provider *llm.Provider, proc *processor.Processor, mode processor.Mode, sessionDir string, withSession, copyText, organize bool) {
	beep.Disable()
	defer log.Close()

	eng := engine.NewFake()
	sink := &consoleSink{}
	a := &app{
		proc:     proc,
		mode:     mode,
		copyText: copyText,
		sink:     sink,
		grace:    200 * time.Millisecond,
	}
	a.adapter = engine.NewAdapter(eng, func(text string) {
		fmt.Println("live: " + text)
	})

	ctx := context.Background()
	if err := a.adapter.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if withSession {
		doc, err := session.Create(sessionDir, provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating session document: %v\n", err)
			os.Exit(1)
		}
		a.doc = doc
	}

	hk := hotkey.NewFake()
	cycleDone := make(chan struct{}, 1)

	// Stdin driver in background -- sends hotkey events, handles WAIT/SLEEP/QUIT
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch {
			case cmd == "KEYDOWN":
				hk.SimKeydown()
			case cmd == "KEYUP":
				hk.SimKeyup()
			case cmd == "WAIT":
				<-cycleDone
			case cmd == "QUIT":
				a.finish(ctx, organize)
				if a.doc != nil {
					fmt.Println("session: " + a.doc.Path())
				}
				log.Close()
				os.Exit(0)
			case strings.HasPrefix(cmd, "SAY "):
				eng.Say(cmd[4:])
			case strings.HasPrefix(cmd, "SLEEP "):
				if ms, err := strconv.Atoi(cmd[6:]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		}
		a.finish(ctx, organize)
		os.Exit(0)
	}()

	// Event loop -- same shape as run(), without the tap-to-toggle layer
	for {
		<-hk.Keydown()
		a.cycle(ctx, hk.Keyup(), nil)
		select {
		case cycleDone <- struct{}{}:
		default:
		}
	}
}
