// Package editor applies a document processing mode to a whole file on
// disk, backing up the original before rewriting it.
package editor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"murmur/log"
	"murmur/processor"
)

const backupSuffix = ".backup"

type Options struct {
	// Mode selects the document template; defaults to organize.
	Mode processor.Mode
	// OutputPath writes the result elsewhere instead of rewriting in place.
	OutputPath string
	// NoBackup skips the backup copy on in-place edits.
	NoBackup bool
	// Now substitutes the wall clock, for tests.
	Now func() time.Time
}

type Result struct {
	OutputPath string
	// BackupPath is empty when no backup was written.
	BackupPath string
	InChars    int
	OutChars   int
}

// EditFile reads path, runs its content through proc under the selected
// document mode and writes the result. In-place edits keep a .backup copy
// of the original unless disabled.
func EditFile(ctx context.Context, path string, proc *processor.Processor, opts Options) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = processor.ModeOrganize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%s is empty, nothing to edit", path)
	}

	outPath := opts.OutputPath
	if outPath == "" {
		outPath = path
	}

	res := &Result{OutputPath: outPath, InChars: len(content)}

	if outPath == path && !opts.NoBackup {
		res.BackupPath = path + backupSuffix
		if err := os.WriteFile(res.BackupPath, data, 0644); err != nil {
			return nil, fmt.Errorf("writing backup: %w", err)
		}
	}

	start := time.Now()
	edited, err := proc.Process(ctx, content, opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("processing %s: %w", path, err)
	}
	log.Infof("edited %s mode=%s in=%d out=%d took=%dms",
		path, opts.Mode, len(content), len(edited), time.Since(start).Milliseconds())

	stamped := fmt.Sprintf("*Edited with murmur (%s mode) on %s*\n\n---\n\n%s\n",
		opts.Mode, opts.Now().Format("2006-01-02 15:04"), edited)

	if err := os.WriteFile(outPath, []byte(stamped), 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", outPath, err)
	}
	res.OutChars = len(edited)
	return res, nil
}
