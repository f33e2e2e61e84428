// Package search implements the autonomous search-and-approach behavior:
// rotate in short bursts, pause to sample the detection log, and drive toward
// the best match while keeping it centered.
package search

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gwillem/trackbot/pkg/clock"
	"github.com/gwillem/trackbot/pkg/config"
	"github.com/gwillem/trackbot/pkg/detect"
	"github.com/gwillem/trackbot/pkg/robot"
)

// Phase is the current step of a search session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRotating
	PhaseSampling
	PhaseApproaching
	PhaseStopped
	PhaseInterrupted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseRotating:
		return "ROTATING"
	case PhaseSampling:
		return "SAMPLING"
	case PhaseApproaching:
		return "APPROACHING"
	case PhaseStopped:
		return "STOPPED"
	case PhaseInterrupted:
		return "INTERRUPTED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Terminal reports whether the session has ended.
func (p Phase) Terminal() bool {
	return p == PhaseStopped || p == PhaseInterrupted
}

// Driver is the part of the track drive the search uses.
type Driver interface {
	RotateInPlace(speed float64) robot.DriveCommand
	SteerToward(offset float64) robot.DriveCommand
	Stop()
}

// Detections provides the latest detection log.
type Detections interface {
	ReadLatest() (detect.Log, bool)
}

// Config holds the search policy.
type Config struct {
	TargetClass   string
	MinConfidence float64
	FrameWidth    float64
	NewestFirst   bool

	RotateSpeed      float64
	RotateBurst      time.Duration
	SamplePause      time.Duration
	ApproachCycles   int
	ApproachInterval time.Duration
	MaxScans         int // 0 = scan until cancelled
}

// FromConfig builds the search policy from the configuration file sections.
func FromConfig(d config.Detection, s config.Search) Config {
	return Config{
		TargetClass:      d.TargetClass,
		MinConfidence:    d.MinConfidence,
		FrameWidth:       float64(d.FrameWidth),
		NewestFirst:      d.NewestFirst,
		RotateSpeed:      s.RotateSpeed,
		RotateBurst:      config.Seconds(s.RotateBurstSeconds),
		SamplePause:      config.Seconds(s.SamplePauseSeconds),
		ApproachCycles:   s.ApproachCycles,
		ApproachInterval: config.Seconds(s.ApproachIntervalSeconds),
		MaxScans:         s.MaxScans,
	}
}

// DefaultConfig returns the policy from the default configuration.
func DefaultConfig() Config {
	d := config.Default()
	return FromConfig(d.Detection, d.Search)
}

// Status is a snapshot of a running session.
type Status struct {
	Phase  Phase
	Target *detect.Match
	Offset float64
	Scans  int
	Cycles int
}

// Machine runs one search session. It is not reusable: create a new Machine
// for every session.
type Machine struct {
	cfg    Config
	drive  Driver
	source Detections
	clock  clock.Clock

	// Logf receives diagnostics. Defaults to log.Printf; nil mutes.
	Logf func(format string, args ...any)
	// OnStatus, if set, is called on every phase change and approach cycle.
	OnStatus func(Status)

	mu     sync.Mutex
	phase  Phase
	target *detect.Match
	offset float64
	scans  int
	cycles int
}

// New creates a search machine in the Idle phase.
func New(cfg Config, drive Driver, source Detections, clk clock.Clock) *Machine {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Machine{
		cfg:    cfg,
		drive:  drive,
		source: source,
		clock:  clk,
		Logf:   log.Printf,
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Status returns a snapshot of the session.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Run drives the session from its current phase until it stops or observes
// cancellation of ctx. The chassis is stopped when Run returns.
//
// Cancellation is checked when entering Rotating and while waiting in
// Rotating and Sampling. An approach, once started, runs its full bounded
// number of cycles.
func (m *Machine) Run(ctx context.Context) Status {
	defer m.drive.Stop()
	for !m.Phase().Terminal() {
		m.Step(ctx)
	}
	return m.Status()
}

// Step executes the current phase once and returns the phase that follows.
func (m *Machine) Step(ctx context.Context) Phase {
	switch m.Phase() {
	case PhaseIdle:
		m.setPhase(PhaseRotating)
	case PhaseRotating:
		m.rotate(ctx)
	case PhaseSampling:
		m.sample(ctx)
	case PhaseApproaching:
		m.approach()
	}
	return m.Phase()
}

func (m *Machine) rotate(ctx context.Context) {
	if ctx.Err() != nil {
		m.interrupt()
		return
	}
	if m.cfg.MaxScans > 0 && m.scanCount() >= m.cfg.MaxScans {
		m.logf("No %q found after %d scans", m.cfg.TargetClass, m.cfg.MaxScans)
		m.drive.Stop()
		m.setPhase(PhaseStopped)
		return
	}

	m.drive.RotateInPlace(m.cfg.RotateSpeed)
	ok := m.wait(ctx, m.cfg.RotateBurst)
	m.drive.Stop()
	if !ok {
		m.interrupt()
		return
	}

	m.mu.Lock()
	m.scans++
	m.mu.Unlock()
	m.setPhase(PhaseSampling)
}

func (m *Machine) sample(ctx context.Context) {
	if !m.wait(ctx, m.cfg.SamplePause) {
		m.interrupt()
		return
	}

	match, ok, err := m.safePoll()
	if err != nil {
		m.logf("Sampling: %v", err)
	}
	if !ok {
		m.setPhase(PhaseRotating)
		return
	}

	m.logf("Found %q (%.2f) in %s", match.Detection.ClassName, match.Detection.Confidence, match.ImageFile)
	m.mu.Lock()
	m.target = &match
	m.mu.Unlock()
	m.setPhase(PhaseApproaching)
}

func (m *Machine) approach() {
	for i := 0; i < m.cfg.ApproachCycles; i++ {
		offset, err := m.safeCycle(i)
		if err != nil {
			m.logf("Approach cycle %d: %v, driving straight", i+1, err)
			offset = 0
		}
		m.drive.SteerToward(offset)

		m.mu.Lock()
		m.cycles++
		m.offset = offset
		m.mu.Unlock()
		m.notify()

		m.clock.Sleep(m.cfg.ApproachInterval)
	}
	m.drive.Stop()
	m.setPhase(PhaseStopped)
}

// safeCycle runs one approach cycle, turning a panic into an error so a bad
// cycle cannot end the session.
func (m *Machine) safeCycle(i int) (offset float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return m.cycle(i)
}

// cycle picks the current target and returns its horizontal offset. The
// first cycle reuses the detection that started the approach.
func (m *Machine) cycle(i int) (float64, error) {
	m.mu.Lock()
	target := m.target
	m.mu.Unlock()

	if i > 0 || target == nil {
		match, ok := m.poll()
		if !ok {
			return 0, fmt.Errorf("no %q detection in log", m.cfg.TargetClass)
		}
		target = &match
		m.mu.Lock()
		m.target = target
		m.mu.Unlock()
	}

	return target.Detection.Offset(m.cfg.FrameWidth)
}

// safePoll is poll with a panic turned into an error and no match.
func (m *Machine) safePoll() (match detect.Match, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match, ok, err = detect.Match{}, false, fmt.Errorf("panic: %v", r)
		}
	}()
	match, ok = m.poll()
	return match, ok, nil
}

func (m *Machine) poll() (detect.Match, bool) {
	entries, ok := m.source.ReadLatest()
	if !ok {
		return detect.Match{}, false
	}
	if m.cfg.NewestFirst {
		return detect.FindLatestMatch(entries, m.cfg.TargetClass, m.cfg.MinConfidence)
	}
	return detect.FindBestMatch(entries, m.cfg.TargetClass, m.cfg.MinConfidence)
}

// wait pauses for d and reports false if ctx was cancelled before or during
// the wait.
func (m *Machine) wait(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-m.clock.After(d):
		return ctx.Err() == nil
	}
}

func (m *Machine) interrupt() {
	m.drive.Stop()
	m.setPhase(PhaseInterrupted)
}

func (m *Machine) scanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans
}

func (m *Machine) setPhase(p Phase) {
	m.mu.Lock()
	changed := m.phase != p
	m.phase = p
	m.mu.Unlock()
	if changed {
		m.notify()
	}
}

func (m *Machine) notify() {
	if m.OnStatus != nil {
		m.OnStatus(m.Status())
	}
}

func (m *Machine) statusLocked() Status {
	s := Status{
		Phase:  m.phase,
		Offset: m.offset,
		Scans:  m.scans,
		Cycles: m.cycles,
	}
	if m.target != nil {
		t := *m.target
		s.Target = &t
	}
	return s
}

func (m *Machine) logf(format string, args ...any) {
	if m.Logf != nil {
		m.Logf(format, args...)
	}
}
