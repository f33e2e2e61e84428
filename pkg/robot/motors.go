// Package robot provides abstractions for driving a two-track chassis.
package robot

// TrackName identifies a track of the chassis.
type TrackName string

// Track names for a skid-steer chassis.
const (
	LeftTrack  TrackName = "left"
	RightTrack TrackName = "right"
)

// AllTracks returns all track names in order (left, right).
func AllTracks() []TrackName {
	return []TrackName{
		LeftTrack,
		RightTrack,
	}
}

// Track is one independently driven track. Speeds are in [0, 1].
type Track interface {
	Forward(speed float64) error
	Backward(speed float64) error
	Stop() error
}

// DriveCommand is a pair of signed track speeds in [-1, 1].
// Positive values drive the track forward.
type DriveCommand struct {
	Left  float64
	Right float64
}

// Clamped returns the command with both tracks bounded to [-1, 1].
func (c DriveCommand) Clamped() DriveCommand {
	return DriveCommand{
		Left:  Clamp(c.Left, -1, 1),
		Right: Clamp(c.Right, -1, 1),
	}
}

// Speed returns the speed of the named track.
func (c DriveCommand) Speed(name TrackName) float64 {
	if name == RightTrack {
		return c.Right
	}
	return c.Left
}
