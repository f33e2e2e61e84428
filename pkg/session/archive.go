// Package session keeps the artifacts and history of search sessions.
package session

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gwillem/trackbot/pkg/clock"
	"github.com/gwillem/trackbot/pkg/config"
	"github.com/gwillem/trackbot/pkg/detect"
)

// Archiver moves the files a session produced into a directory of their own.
type Archiver struct {
	sources []string
	root    string
	clock   clock.Clock

	// DetectionLog is put back as an empty log when it is archived, since
	// the inference writer only creates it at start-up.
	DetectionLog string

	// Logf receives archival failures from Finalize. Nil mutes.
	Logf func(format string, args ...any)
}

// NewArchiver creates an archiver for the configured directories.
func NewArchiver(cfg config.Archive, clk clock.Clock) *Archiver {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Archiver{
		sources: cfg.SourceDirs,
		root:    cfg.Root,
		clock:   clk,
		Logf:    log.Printf,
	}
}

// DirName returns the archive directory name for session id started at the
// archiver's current time, e.g. session_20240101_120000_1a2b3c4d.
func (a *Archiver) DirName(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("session_%s_%s", a.clock.Now().Format("20060102_150405"), short)
}

// Archive moves every entry of the source directories into
// <root>/<DirName(id)>/<source dir name>/ and leaves the source directories
// empty. It returns the archive directory, or "" if there was nothing to move.
func (a *Archiver) Archive(id string) (string, error) {
	pending := make(map[string][]os.DirEntry)
	for _, src := range a.sources {
		entries, err := os.ReadDir(src)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("read %s: %w", src, err)
		}
		if len(entries) > 0 {
			pending[src] = entries
		}
	}
	if len(pending) == 0 {
		return "", nil
	}

	dest := filepath.Join(a.root, a.DirName(id))
	var errs []error
	for _, src := range a.sources {
		entries, ok := pending[src]
		if !ok {
			continue
		}
		target := filepath.Join(dest, filepath.Base(filepath.Clean(src)))
		if err := os.MkdirAll(target, 0755); err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", target, err))
			continue
		}
		resetLog := false
		for _, e := range entries {
			from := filepath.Join(src, e.Name())
			if err := os.Rename(from, filepath.Join(target, e.Name())); err != nil {
				errs = append(errs, fmt.Errorf("move %s: %w", from, err))
				continue
			}
			if a.DetectionLog != "" && filepath.Clean(from) == filepath.Clean(a.DetectionLog) {
				resetLog = true
			}
		}
		if err := os.MkdirAll(src, 0755); err != nil {
			errs = append(errs, fmt.Errorf("recreate %s: %w", src, err))
			continue
		}
		if resetLog {
			if err := detect.WriteLog(a.DetectionLog, detect.Log{}); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return dest, errors.Join(errs...)
}

// Finalize archives session id and logs the outcome. It never fails.
func (a *Archiver) Finalize(id string) {
	dest, err := a.Archive(id)
	switch {
	case err != nil:
		a.logf("Archive session %s: %v", id, err)
	case dest == "":
		a.logf("Session %s left no artifacts", id)
	default:
		a.logf("Session %s archived to %s", id, dest)
	}
}

func (a *Archiver) logf(format string, args ...any) {
	if a.Logf != nil {
		a.Logf(format, args...)
	}
}
