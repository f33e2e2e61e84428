package robot

import (
	"errors"
	"sync"
)

// ErrTrackFault is returned by a FakeTrack that has been told to fail.
var ErrTrackFault = errors.New("track fault")

// FakeTrack records the speed it was last set to. It backs dry runs and tests.
type FakeTrack struct {
	mu    sync.Mutex
	speed float64
	calls int
	fail  bool
}

// Forward sets a positive speed.
func (t *FakeTrack) Forward(speed float64) error { return t.set(speed) }

// Backward sets a negative speed.
func (t *FakeTrack) Backward(speed float64) error { return t.set(-speed) }

// Stop sets the speed to zero. It fails only if the track is failing.
func (t *FakeTrack) Stop() error { return t.set(0) }

// Speed returns the signed speed the track is running at.
func (t *FakeTrack) Speed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speed
}

// Calls returns how many commands the track received.
func (t *FakeTrack) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// SetFailing makes every following command return ErrTrackFault.
func (t *FakeTrack) SetFailing(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = fail
}

func (t *FakeTrack) set(speed float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.fail {
		return ErrTrackFault
	}
	t.speed = speed
	return nil
}

// NewFakeDrive returns a TrackDrive over two fake tracks.
func NewFakeDrive() (*TrackDrive, *FakeTrack, *FakeTrack) {
	left, right := &FakeTrack{}, &FakeTrack{}
	d := NewTrackDrive(left, right)
	d.Logf = nil
	return d, left, right
}
