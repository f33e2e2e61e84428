// Package config holds the trackbot configuration file and its defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "trackbot.json"

// Config holds the robot configuration
type Config struct {
	Input     Input     `json:"input" yaml:"input"`
	Motors    Motors    `json:"motors" yaml:"motors"`
	Detection Detection `json:"detection" yaml:"detection"`
	Search    Search    `json:"search" yaml:"search"`
	Archive   Archive   `json:"archive" yaml:"archive"`
	Services  Services  `json:"services" yaml:"services"`
}

// Input describes the game controller and its event codes.
type Input struct {
	Device     string `json:"device" yaml:"device"`           // event device path, e.g. /dev/input/event4
	DeviceName string `json:"device_name" yaml:"device_name"` // used when Device is empty

	ForwardAxis uint16 `json:"forward_axis" yaml:"forward_axis"`
	TurnAxis    uint16 `json:"turn_axis" yaml:"turn_axis"`
	AxisMin     int    `json:"axis_min" yaml:"axis_min"`
	AxisMax     int    `json:"axis_max" yaml:"axis_max"`

	StreamNetworkButton uint16 `json:"stream_network_button" yaml:"stream_network_button"`
	StreamFileButton    uint16 `json:"stream_file_button" yaml:"stream_file_button"`
	SearchButton        uint16 `json:"search_button" yaml:"search_button"`
}

// Motors holds the serial link to the track motor controller.
type Motors struct {
	Port     string `json:"port" yaml:"port"`
	BaudRate int    `json:"baud_rate" yaml:"baud_rate"`
}

// Detection describes the detection log and what counts as a target.
type Detection struct {
	LogPath       string  `json:"log_path" yaml:"log_path"`
	TargetClass   string  `json:"target_class" yaml:"target_class"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	FrameWidth    int     `json:"frame_width" yaml:"frame_width"`
	NewestFirst   bool    `json:"newest_first" yaml:"newest_first"`
}

// Search holds the timing policy of the autonomous search.
type Search struct {
	RotateSpeed             float64 `json:"rotate_speed" yaml:"rotate_speed"`
	RotateBurstSeconds      float64 `json:"rotate_burst_seconds" yaml:"rotate_burst_seconds"`
	SamplePauseSeconds      float64 `json:"sample_pause_seconds" yaml:"sample_pause_seconds"`
	ApproachCycles          int     `json:"approach_cycles" yaml:"approach_cycles"`
	ApproachIntervalSeconds float64 `json:"approach_interval_seconds" yaml:"approach_interval_seconds"`
	MaxScans                int     `json:"max_scans" yaml:"max_scans"` // 0 = scan until cancelled
}

// Archive says where session artifacts live and where they are moved to.
type Archive struct {
	SourceDirs []string `json:"source_dirs" yaml:"source_dirs"`
	Root       string   `json:"root" yaml:"root"`
	Journal    string   `json:"journal" yaml:"journal"`
}

// ServiceUnits lists the systemd units to stop and start when entering a mode.
type ServiceUnits struct {
	Stop  []string `json:"stop" yaml:"stop"`
	Start []string `json:"start" yaml:"start"`
}

// Services maps each controller mode to its camera services.
type Services struct {
	Sudo          bool         `json:"sudo" yaml:"sudo"`
	StreamNetwork ServiceUnits `json:"stream_network" yaml:"stream_network"`
	StreamFile    ServiceUnits `json:"stream_file" yaml:"stream_file"`
	Search        ServiceUnits `json:"search" yaml:"search"`
}

// Default returns the configuration used for a Switch Pro controller on a
// Raspberry Pi with the rpicam services.
func Default() Config {
	return Config{
		Input: Input{
			DeviceName:          "Nintendo Switch Pro Controller",
			ForwardAxis:         1, // ABS_Y
			TurnAxis:            3, // ABS_RX
			AxisMin:             -32768,
			AxisMax:             32767,
			StreamNetworkButton: 305, // BTN_EAST
			StreamFileButton:    304, // BTN_SOUTH
			SearchButton:        307, // BTN_NORTH
		},
		Motors: Motors{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Detection: Detection{
			LogPath:       "frame_annotated/annotations.json",
			TargetClass:   "target",
			MinConfidence: 0.08,
			FrameWidth:    640,
		},
		Search: Search{
			RotateSpeed:             0.6,
			RotateBurstSeconds:      0.2,
			SamplePauseSeconds:      1.5,
			ApproachCycles:          16,
			ApproachIntervalSeconds: 0.25,
		},
		Archive: Archive{
			SourceDirs: []string{"frame_annotated", "frame_debug"},
			Root:       "sessions",
			Journal:    "trackbot.db",
		},
		Services: Services{
			Sudo: true,
			StreamNetwork: ServiceUnits{
				Stop:  []string{"rpicam-file.service", "rpicam-infer.service"},
				Start: []string{"rpicam-vid.service"},
			},
			StreamFile: ServiceUnits{
				Stop:  []string{"rpicam-vid.service", "rpicam-infer.service"},
				Start: []string{"rpicam-file.service"},
			},
			Search: ServiceUnits{
				Stop:  []string{"rpicam-vid.service"},
				Start: []string{"rpicam-file.service", "rpicam-infer.service"},
			},
		},
	}
}

// Seconds converts a configured number of seconds to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Validate reports configuration values the robot cannot run with.
func (c *Config) Validate() error {
	if c.Input.AxisMax <= c.Input.AxisMin {
		return fmt.Errorf("input.axis_max (%d) must be greater than input.axis_min (%d)", c.Input.AxisMax, c.Input.AxisMin)
	}
	if c.Detection.FrameWidth <= 0 {
		return fmt.Errorf("detection.frame_width must be > 0")
	}
	if c.Detection.TargetClass == "" {
		return fmt.Errorf("detection.target_class must be set")
	}
	if c.Search.ApproachCycles < 0 || c.Search.MaxScans < 0 {
		return fmt.Errorf("search cycle counts must not be negative")
	}
	return nil
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Values missing
// from the file keep their defaults. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Exists returns true if the config file exists
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
