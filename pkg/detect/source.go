package detect

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Source reads the detection log file. The file is rewritten by another
// process, so every read parses it from scratch.
type Source struct {
	path string

	// Logf receives read failures from ReadLatest. Nil mutes.
	Logf func(format string, args ...any)
}

// NewSource creates a source for the detection log at path.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Path returns the path of the detection log.
func (s *Source) Path() string {
	return s.path
}

// Read parses the whole detection log. A missing file wraps ErrNoData and
// unparseable content wraps ErrMalformed.
func (s *Source) Read() (Log, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, s.path)
		}
		return nil, fmt.Errorf("read detection log: %w", err)
	}

	var log Log
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	return log, nil
}

// ReadLatest returns the current log, or false if there is nothing usable
// yet. Failures are not errors here: the next poll simply tries again.
func (s *Source) ReadLatest() (Log, bool) {
	log, err := s.Read()
	if err != nil {
		if s.Logf != nil && !errors.Is(err, ErrNoData) {
			s.Logf("Detection log unavailable: %v", err)
		}
		return nil, false
	}
	return log, true
}

// WriteLog replaces the log at path atomically, the way a well-behaved
// writer should.
func WriteLog(path string, log Log) error {
	if log == nil {
		log = Log{}
	}
	data, err := json.MarshalIndent(log, "", "    ")
	if err != nil {
		return fmt.Errorf("encode detection log: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".detections-*.json")
	if err != nil {
		return fmt.Errorf("write detection log: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write detection log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write detection log: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write detection log: %w", err)
	}
	return nil
}
