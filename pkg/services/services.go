// Package services switches the camera services that belong to each
// controller mode.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/gwillem/trackbot/pkg/config"
)

// Mode is a controller mode selected with a button.
type Mode int

const (
	// Idle means no mode has been selected since start-up.
	Idle Mode = iota
	StreamNetwork
	StreamFile
	Search
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case StreamNetwork:
		return "stream-network"
	case StreamFile:
		return "stream-file"
	case Search:
		return "search"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Switcher brings up the services for a mode.
type Switcher interface {
	Switch(ctx context.Context, mode Mode) error
}

// RunFunc runs a command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Exec runs the command with os/exec.
func Exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Systemctl switches modes by stopping and starting systemd units.
type Systemctl struct {
	cfg config.Services
	Run RunFunc
}

// NewSystemctl creates a switcher for the configured units.
func NewSystemctl(cfg config.Services) *Systemctl {
	return &Systemctl{cfg: cfg, Run: Exec}
}

// Units returns the units to stop and start for mode.
func (s *Systemctl) Units(mode Mode) (config.ServiceUnits, error) {
	switch mode {
	case StreamNetwork:
		return s.cfg.StreamNetwork, nil
	case StreamFile:
		return s.cfg.StreamFile, nil
	case Search:
		return s.cfg.Search, nil
	}
	return config.ServiceUnits{}, fmt.Errorf("unknown mode %v", mode)
}

// Switch stops the units the mode excludes, then starts the ones it needs.
// Every unit is attempted; the returned error joins all failures.
func (s *Systemctl) Switch(ctx context.Context, mode Mode) error {
	units, err := s.Units(mode)
	if err != nil {
		return err
	}

	var errs []error
	for _, u := range units.Stop {
		errs = append(errs, s.systemctl(ctx, "stop", u))
	}
	for _, u := range units.Start {
		errs = append(errs, s.systemctl(ctx, "start", u))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("switch to %s: %w", mode, err)
	}
	return nil
}

func (s *Systemctl) systemctl(ctx context.Context, action, unit string) error {
	name, args := "systemctl", []string{action, unit}
	if s.cfg.Sudo {
		name, args = "sudo", append([]string{"systemctl"}, args...)
	}
	out, err := s.Run(ctx, name, args...)
	if err != nil {
		if msg := string(bytes.TrimSpace(out)); msg != "" {
			return fmt.Errorf("%s %s: %w: %s", action, unit, err, msg)
		}
		return fmt.Errorf("%s %s: %w", action, unit, err)
	}
	return nil
}

// Recorder is a Switcher that remembers the modes it was asked for.
type Recorder struct {
	mu    sync.Mutex
	modes []Mode
	Err   error
}

// Switch records mode and returns r.Err.
func (r *Recorder) Switch(_ context.Context, mode Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, mode)
	return r.Err
}

// Modes returns the recorded modes in order.
func (r *Recorder) Modes() []Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mode(nil), r.modes...)
}

// String lists the recorded modes, for test failure messages.
func (r *Recorder) String() string {
	modes := r.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.String()
	}
	return strings.Join(names, ",")
}
