package robot

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// SerialTracks talks to a motor controller board that drives both tracks.
//
// Each command is one line: "<L|R> <F|B|S> <speed>", for example "L F 0.500".
type SerialTracks struct {
	mu   sync.Mutex
	port io.WriteCloser

	Left  Track
	Right Track
}

// OpenSerialTracks opens the motor controller on a serial port.
func OpenSerialTracks(port string, baudRate int) (*SerialTracks, error) {
	if baudRate <= 0 {
		baudRate = 115200
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open motor port %s: %w", port, err)
	}
	return NewSerialTracks(p), nil
}

// NewSerialTracks wraps an already open link to the motor controller.
func NewSerialTracks(port io.WriteCloser) *SerialTracks {
	s := &SerialTracks{port: port}
	s.Left = serialTrack{link: s, id: 'L'}
	s.Right = serialTrack{link: s, id: 'R'}
	return s
}

// Close stops both tracks and closes the link.
func (s *SerialTracks) Close() error {
	var errs []error
	for _, t := range []Track{s.Left, s.Right} {
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.port.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func (s *SerialTracks) send(id, op byte, speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.port, "%c %c %.3f\n", id, op, ClampUnit(speed)); err != nil {
		return fmt.Errorf("write motor command: %w", err)
	}
	return nil
}

type serialTrack struct {
	link *SerialTracks
	id   byte
}

func (t serialTrack) Forward(speed float64) error  { return t.link.send(t.id, 'F', speed) }
func (t serialTrack) Backward(speed float64) error { return t.link.send(t.id, 'B', speed) }
func (t serialTrack) Stop() error                  { return t.link.send(t.id, 'S', 0) }
