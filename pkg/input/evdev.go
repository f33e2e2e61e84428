package input

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/holoplot/go-evdev"
)

// Key value the kernel reports for autorepeat; 0 and 1 are release and press.
const keyRepeat = 2

// DeviceInfo describes an input device found on the system.
type DeviceInfo struct {
	Path string
	Name string
}

// ListDevices returns the event devices the current user can see.
func ListDevices() ([]DeviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		devices = append(devices, DeviceInfo{Path: p.Path, Name: p.Name})
	}
	return devices, nil
}

// FindDevice returns the path of the first device whose name matches name,
// ignoring case.
func FindDevice(name string) (string, error) {
	devices, err := ListDevices()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if strings.EqualFold(strings.TrimSpace(d.Name), strings.TrimSpace(name)) {
			return d.Path, nil
		}
	}
	return "", fmt.Errorf("input device %q not found", name)
}

// Device reads events from a Linux event device.
type Device struct {
	path string
	name string
	dev  *evdev.InputDevice

	closeOnce sync.Once
	closed    chan struct{}
}

// Open opens the event device at path.
func Open(path string) (*Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", path, err)
	}
	name, err := dev.Name()
	if err != nil {
		name = path
	}
	return &Device{
		path:   path,
		name:   name,
		dev:    dev,
		closed: make(chan struct{}),
	}, nil
}

// Path returns the device path.
func (d *Device) Path() string { return d.path }

// Name returns the name the device reports.
func (d *Device) Name() string { return d.name }

// ReadEvent blocks until the next axis or button event. Sync events, key
// autorepeat and other event types are skipped.
func (d *Device) ReadEvent() (Event, error) {
	for {
		raw, err := d.dev.ReadOne()
		if err != nil {
			select {
			case <-d.closed:
				return Event{}, io.EOF
			default:
			}
			if errors.Is(err, os.ErrClosed) {
				return Event{}, io.EOF
			}
			return Event{}, fmt.Errorf("read input device %s: %w", d.path, err)
		}
		if e, ok := translate(raw.Type, uint16(raw.Code), raw.Value); ok {
			e.Time = time.Now()
			return e, nil
		}
	}
}

// Close releases the device and unblocks a pending ReadEvent.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)
		err = d.dev.Close()
	})
	return err
}

func translate(typ evdev.EvType, code uint16, value int32) (Event, bool) {
	switch typ {
	case evdev.EV_ABS:
		return Event{Kind: KindAxis, Code: code, Value: value}, true
	case evdev.EV_KEY:
		if value == keyRepeat {
			return Event{}, false
		}
		return Event{Kind: KindButton, Code: code, Value: value}, true
	}
	return Event{}, false
}
