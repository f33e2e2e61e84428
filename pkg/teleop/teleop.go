// Package teleop arbitrates between manual driving and the autonomous search.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gwillem/trackbot/pkg/clock"
	"github.com/gwillem/trackbot/pkg/config"
	"github.com/gwillem/trackbot/pkg/input"
	"github.com/gwillem/trackbot/pkg/robot"
	"github.com/gwillem/trackbot/pkg/search"
	"github.com/gwillem/trackbot/pkg/services"
)

// State represents the current state of the controller.
type State struct {
	Autonomous bool
	Mode       services.Mode
	Drive      robot.DriveCommand
	SessionID  string
	Search     *search.Status // latest session, nil before the first one
	Timestamp  time.Time
}

// Archiver moves a finished session's artifacts away.
type Archiver interface {
	Finalize(id string)
}

// Journal records session history.
type Journal interface {
	Begin(id string, started time.Time, targetClass string) error
	End(id string, ended time.Time, st search.Status) error
}

// Bindings maps controller inputs to actions.
type Bindings struct {
	ForwardAxis uint16
	TurnAxis    uint16
	Range       robot.AxisRange

	StreamNetworkButton uint16
	StreamFileButton    uint16
	SearchButton        uint16
}

// BindingsFromConfig reads the bindings from the input section.
func BindingsFromConfig(in config.Input) Bindings {
	return Bindings{
		ForwardAxis:         in.ForwardAxis,
		TurnAxis:            in.TurnAxis,
		Range:               robot.AxisRange{Min: in.AxisMin, Max: in.AxisMax},
		StreamNetworkButton: in.StreamNetworkButton,
		StreamFileButton:    in.StreamFileButton,
		SearchButton:        in.SearchButton,
	}
}

// Session is a handle on one autonomous search run.
type Session struct {
	id      string
	started time.Time
	machine *search.Machine
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	final   search.Status
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Done is closed once the session has stopped and been finalized.
func (s *Session) Done() <-chan struct{} { return s.done }

// Status returns the live status, or the final one after Done.
func (s *Session) Status() search.Status {
	select {
	case <-s.done:
		return s.final
	default:
		return s.machine.Status()
	}
}

// Controller dispatches input events. Axis events drive the tracks directly
// unless a search session owns them; buttons always switch modes.
type Controller struct {
	drive    *robot.TrackDrive
	source   search.Detections
	bindings Bindings
	policy   search.Config

	// Optional collaborators.
	Services services.Switcher
	Archiver Archiver
	Journal  Journal
	Clock    clock.Clock

	// Logf receives every log line. Defaults to log.Printf; nil mutes.
	Logf func(format string, args ...any)
	// NewID generates session ids. Defaults to uuid.NewString.
	NewID func() string

	// opMu serializes mode transitions; it is held while joining a session.
	opMu sync.Mutex

	mu         sync.Mutex
	autonomous bool
	mode       services.Mode
	forward    int32
	turn       int32
	current    *Session
	last       *search.Status
	lastID     string

	stateCh chan State
	logCh   chan string
}

// NewController creates a controller in manual mode.
func NewController(drive *robot.TrackDrive, source search.Detections, bindings Bindings, policy search.Config) *Controller {
	return &Controller{
		drive:    drive,
		source:   source,
		bindings: bindings,
		policy:   policy,
		Clock:    clock.Real{},
		Logf:     log.Printf,
		NewID:    uuid.NewString,
		stateCh:  make(chan State, 1),
		logCh:    make(chan string, 32),
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Autonomous reports whether a search session owns the tracks.
func (c *Controller) Autonomous() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autonomous
}

// Current returns the running session, or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	s := State{
		Autonomous: c.autonomous,
		Mode:       c.mode,
		SessionID:  c.lastID,
		Search:     c.last,
	}
	cur := c.current
	c.mu.Unlock()

	if cur != nil {
		st := cur.Status()
		s.SessionID = cur.id
		s.Search = &st
	}
	s.Drive = c.drive.Last()
	s.Timestamp = c.Clock.Now()
	return s
}

// Printf writes a line to the controller log. It can be handed to other
// components as their log sink.
func (c *Controller) Printf(format string, args ...any) {
	c.log(format, args...)
}

func (c *Controller) log(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
	msg := fmt.Sprintf("[%s] %s", c.Clock.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Run reads events from src and dispatches them until ctx is cancelled or
// the source ends. Cancelling ctx closes src to unblock the pending read.
func (c *Controller) Run(ctx context.Context, src input.Source) error {
	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()

	c.log("Listening for controller input")
	for {
		e, err := src.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				c.log("Input closed")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		c.dispatch(ctx, e)
	}
}

// dispatch handles one event. A failure never escapes to the input loop.
func (c *Controller) dispatch(ctx context.Context, e input.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log("Error handling %v: %v", e, r)
			c.drive.Stop()
		}
	}()
	c.HandleEvent(ctx, e)
}

// HandleEvent applies a single input event.
func (c *Controller) HandleEvent(ctx context.Context, e input.Event) {
	switch e.Kind {
	case input.KindAxis:
		c.handleAxis(e)
	case input.KindButton:
		if !e.Pressed() {
			return
		}
		switch e.Code {
		case c.bindings.StreamNetworkButton:
			c.SelectStream(ctx, services.StreamNetwork)
		case c.bindings.StreamFileButton:
			c.SelectStream(ctx, services.StreamFile)
		case c.bindings.SearchButton:
			c.StartSearch(ctx)
		}
	}
}

func (c *Controller) handleAxis(e input.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.autonomous {
		return
	}
	switch e.Code {
	case c.bindings.ForwardAxis:
		c.forward = e.Value
	case c.bindings.TurnAxis:
		c.turn = e.Value
	default:
		return
	}
	cmd := c.drive.Drive(c.bindings.Range.Normalize(int(c.forward)), c.bindings.Range.Normalize(int(c.turn)))
	c.sendState(State{
		Mode:      c.mode,
		Drive:     cmd,
		SessionID: c.lastID,
		Search:    c.last,
		Timestamp: c.Clock.Now(),
	})
}

// StartSearch stops the chassis, takes the tracks away from manual control
// and starts a new search session. A session that is still running is
// cancelled and joined first.
func (c *Controller) StartSearch(ctx context.Context) *Session {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.autonomous = true
	c.forward, c.turn = 0, 0
	prev := c.current
	c.current = nil
	c.mu.Unlock()

	// Hand the tracks back if the session never gets going.
	started := false
	defer func() {
		if started {
			return
		}
		c.mu.Lock()
		if c.current == nil {
			c.autonomous = false
		}
		c.mu.Unlock()
	}()

	c.drive.Stop()
	if prev != nil {
		c.log("Superseding search session %s", prev.id)
		c.join(prev)
	}
	c.switchServices(ctx, services.Search)

	runCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:      c.NewID(),
		started: c.Clock.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.machine = search.New(c.policy, c.drive, c.source, c.Clock)
	s.machine.Logf = c.log
	s.machine.OnStatus = func(search.Status) { c.sendState(c.Snapshot()) }

	if c.Journal != nil {
		if err := c.Journal.Begin(s.id, s.started, c.policy.TargetClass); err != nil {
			c.log("Journal: %v", err)
		}
	}

	c.mu.Lock()
	c.current = s
	c.mode = services.Search
	c.mu.Unlock()
	started = true

	c.log("Search session %s started, looking for %q", s.id, c.policy.TargetClass)
	go c.supervise(runCtx, s)
	return s
}

// SelectStream leaves autonomous mode, if active, and switches the camera to
// a streaming mode. The chassis is stopped and any session is cancelled and
// finalized before manual control resumes.
func (c *Controller) SelectStream(ctx context.Context, mode services.Mode) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.drive.Stop()
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s != nil {
		c.log("Cancelling search session %s", s.id)
		c.join(s)
	}

	c.mu.Lock()
	c.autonomous = false
	c.mode = mode
	c.forward, c.turn = 0, 0
	c.mu.Unlock()
	c.drive.Stop()

	c.switchServices(ctx, mode)
	c.log("Mode: %s", mode)
	c.sendState(c.Snapshot())
}

// Close cancels and joins any session and stops the chassis.
func (c *Controller) Close() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	s := c.current
	c.current = nil
	c.autonomous = false
	c.mu.Unlock()

	if s != nil {
		c.join(s)
	}
	c.drive.Stop()
	c.log("Controller stopped")
	return nil
}

// join cancels s and waits until it has stopped and been finalized.
func (c *Controller) join(s *Session) {
	s.cancel()
	<-s.done
}

func (c *Controller) supervise(ctx context.Context, s *Session) {
	st := c.runSession(ctx, s)
	c.drive.Stop()
	c.finalize(s, st)
	close(s.done)

	c.mu.Lock()
	if c.current == s {
		c.current = nil
		c.autonomous = false
	}
	c.mu.Unlock()
	c.sendState(c.Snapshot())
}

func (c *Controller) runSession(ctx context.Context, s *Session) (st search.Status) {
	defer func() {
		if r := recover(); r != nil {
			c.log("Search session %s failed: %v", s.id, r)
			st = s.machine.Status()
			st.Phase = search.PhaseInterrupted
		}
	}()
	return s.machine.Run(ctx)
}

// finalize records the outcome of s and archives its artifacts, once.
func (c *Controller) finalize(s *Session, st search.Status) {
	s.once.Do(func() {
		s.final = st
		c.log("Search session %s ended: %s after %d scans, %d approach cycles", s.id, st.Phase, st.Scans, st.Cycles)

		c.mu.Lock()
		c.last = &st
		c.lastID = s.id
		c.mu.Unlock()

		if c.Journal != nil {
			if err := c.Journal.End(s.id, c.Clock.Now(), st); err != nil {
				c.log("Journal: %v", err)
			}
		}
		if c.Archiver != nil {
			c.Archiver.Finalize(s.id)
		}
	})
}

func (c *Controller) switchServices(ctx context.Context, mode services.Mode) {
	if c.Services == nil {
		return
	}
	if err := c.Services.Switch(ctx, mode); err != nil {
		c.log("Warning: %v", err)
	}
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}
