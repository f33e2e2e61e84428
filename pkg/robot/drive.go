package robot

import (
	"fmt"
	"log"
	"math"
	"sync"
)

// Mixing policy for manual driving.
const (
	// DeadZone is the forward stick magnitude at or below which the chassis
	// rotates in place instead of driving.
	DeadZone = 0.2
	// TurnWeight scales how much the turn stick slows the inside track.
	TurnWeight = 0.9
	// RotateGain scales the turn stick when rotating in place.
	RotateGain = 0.75
)

// Mix converts normalized forward and turn intents into track speeds.
//
// Outside the dead-zone the inside track is slowed by TurnWeight*|turn| while
// the outside track keeps the forward intent. A positive turn slows the left
// track. Inside the dead-zone the chassis spins in place at RotateGain*turn,
// a positive turn driving the left track forward and the right track back.
func Mix(forward, turn float64) DriveCommand {
	if math.Abs(forward) <= DeadZone {
		speed := RotateGain * turn
		return DriveCommand{Left: speed, Right: -speed}.Clamped()
	}

	full := ClampUnit(math.Abs(forward))
	reduced := ClampUnit(math.Abs(forward) - TurnWeight*math.Abs(turn))
	dir := 1.0
	if forward < 0 {
		dir = -1
	}
	if turn > 0 {
		return DriveCommand{Left: dir * reduced, Right: dir * full}
	}
	return DriveCommand{Left: dir * full, Right: dir * reduced}
}

// Steer converts a horizontal target offset in [-1, 1] into forward track
// speeds. The track on the side the target drifted toward is slowed by the
// offset, the other one stays at full speed.
func Steer(offset float64) DriveCommand {
	offset = Clamp(offset, -1, 1)
	left, right := 1.0, 1.0
	if offset > 0 {
		right = 1 - offset
	} else {
		left = 1 + offset
	}
	return DriveCommand{Left: ClampUnit(left), Right: ClampUnit(right)}
}

// TrackDrive issues drive commands to the left and right tracks.
//
// Motor errors never reach the caller: they are logged and followed by a
// best-effort stop.
type TrackDrive struct {
	left  Track
	right Track

	// Logf receives diagnostics. Defaults to log.Printf; nil mutes.
	Logf func(format string, args ...any)

	mu   sync.Mutex
	last DriveCommand
}

// NewTrackDrive creates a drive controller for the two tracks.
func NewTrackDrive(left, right Track) *TrackDrive {
	return &TrackDrive{
		left:  left,
		right: right,
		Logf:  log.Printf,
	}
}

// Drive applies skid-steer mixing of forward and turn intents.
func (d *TrackDrive) Drive(forward, turn float64) DriveCommand {
	return d.Apply(Mix(forward, turn))
}

// RotateInPlace spins the chassis at a constant signed speed.
// Positive speeds rotate clockwise.
func (d *TrackDrive) RotateInPlace(speed float64) DriveCommand {
	return d.Apply(DriveCommand{Left: speed, Right: -speed})
}

// SteerToward drives forward while correcting toward a horizontal offset.
func (d *TrackDrive) SteerToward(offset float64) DriveCommand {
	return d.Apply(Steer(offset))
}

// Stop sets both tracks to zero. It is safe to call at any time.
func (d *TrackDrive) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// Apply clamps cmd and sends it to the tracks. It returns the command that
// is in effect afterwards, which is a stop if a track failed.
func (d *TrackDrive) Apply(cmd DriveCommand) DriveCommand {
	cmd = cmd.Clamped()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := setTrack(d.left, cmd.Left); err != nil {
		d.logf("Drive error: left track: %v", err)
		d.stopLocked()
		return d.last
	}
	if err := setTrack(d.right, cmd.Right); err != nil {
		d.logf("Drive error: right track: %v", err)
		d.stopLocked()
		return d.last
	}
	d.last = cmd
	return cmd
}

// Last returns the last command in effect.
func (d *TrackDrive) Last() DriveCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func (d *TrackDrive) stopLocked() {
	if err := d.left.Stop(); err != nil {
		d.logf("Stop error: left track: %v", err)
	}
	if err := d.right.Stop(); err != nil {
		d.logf("Stop error: right track: %v", err)
	}
	d.last = DriveCommand{}
}

func (d *TrackDrive) logf(format string, args ...any) {
	if d.Logf != nil {
		d.Logf(format, args...)
	}
}

func setTrack(t Track, speed float64) error {
	var err error
	switch {
	case speed > 0:
		err = t.Forward(speed)
	case speed < 0:
		err = t.Backward(-speed)
	default:
		err = t.Stop()
	}
	if err != nil {
		return fmt.Errorf("set speed %.3f: %w", speed, err)
	}
	return nil
}
