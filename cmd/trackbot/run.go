package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/trackbot/pkg/config"
	"github.com/gwillem/trackbot/pkg/detect"
	"github.com/gwillem/trackbot/pkg/input"
	"github.com/gwillem/trackbot/pkg/robot"
	"github.com/gwillem/trackbot/pkg/search"
	"github.com/gwillem/trackbot/pkg/services"
	"github.com/gwillem/trackbot/pkg/session"
	"github.com/gwillem/trackbot/pkg/teleop"
)

type RunCommand struct {
	Device     string `long:"device" description:"Input event device (default: look up the configured device name)"`
	Port       string `long:"port" description:"Motor controller serial port"`
	Target     string `long:"target" description:"Target class to search for"`
	DryRun     bool   `long:"dry-run" description:"Drive simulated tracks instead of the motor controller"`
	Headless   bool   `long:"headless" description:"Log to stderr instead of showing the dashboard"`
	NoServices bool   `long:"no-services" description:"Do not stop or start camera services on mode changes"`
	LogFile    string `long:"log-file" description:"Append log lines to this file"`
}

func (c *RunCommand) apply(cfg *config.Config) {
	if c.Device != "" {
		cfg.Input.Device = c.Device
	}
	if c.Port != "" {
		cfg.Motors.Port = c.Port
	}
	if c.Target != "" {
		cfg.Detection.TargetClass = c.Target
	}
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	c.apply(cfg)

	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		if c.Headless {
			log.SetOutput(io.MultiWriter(os.Stderr, f))
		} else {
			log.SetOutput(f)
		}
	}

	// Motors
	var left, right robot.Track
	if c.DryRun {
		left, right = &robot.FakeTrack{}, &robot.FakeTrack{}
	} else {
		tracks, err := robot.OpenSerialTracks(cfg.Motors.Port, cfg.Motors.BaudRate)
		if err != nil {
			log.Fatalf("Failed to open motor controller: %v", err)
		}
		defer tracks.Close()
		left, right = tracks.Left, tracks.Right
	}
	drive := robot.NewTrackDrive(left, right)

	// Input
	path := cfg.Input.Device
	if path == "" {
		path, err = input.FindDevice(cfg.Input.DeviceName)
		if err != nil {
			log.Fatalf("Failed to find controller: %v", err)
		}
	}
	dev, err := input.Open(path)
	if err != nil {
		log.Fatalf("Failed to open controller: %v", err)
	}
	defer dev.Close()

	source := detect.NewSource(cfg.Detection.LogPath)
	ctrl := teleop.NewController(drive, source, teleop.BindingsFromConfig(cfg.Input), search.FromConfig(cfg.Detection, cfg.Search))
	if c.Headless || c.LogFile != "" {
		ctrl.Logf = log.Printf
	} else {
		ctrl.Logf = nil
	}
	drive.Logf = ctrl.Printf
	source.Logf = ctrl.Printf

	if !c.NoServices {
		ctrl.Services = services.NewSystemctl(cfg.Services)
	}
	archiver := session.NewArchiver(cfg.Archive, nil)
	archiver.Logf = ctrl.Printf
	archiver.DetectionLog = cfg.Detection.LogPath
	ctrl.Archiver = archiver

	if cfg.Archive.Journal != "" {
		journal, err := session.OpenJournal(cfg.Archive.Journal)
		if err != nil {
			ctrl.Printf("Warning: session journal disabled: %v", err)
		} else {
			defer journal.Close()
			ctrl.Journal = journal
		}
	}

	ctrl.Printf("Controller %s on %s, target %q", dev.Name(), dev.Path(), cfg.Detection.TargetClass)
	if c.DryRun {
		ctrl.Printf("Dry run: tracks are simulated")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Headless {
		err := ctrl.Run(ctx, dev)
		ctrl.Close()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("controller: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newDashboard(ctrl, cfg), tea.WithAltScreen())

	done := make(chan error, 1)
	go func() {
		err := ctrl.Run(ctx, dev)
		done <- err
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
	cancel()
	err = <-done
	ctrl.Close()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("controller: %w", err)
	}
	return nil
}
