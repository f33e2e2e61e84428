package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.bug.st/serial"

	"github.com/gwillem/trackbot/pkg/config"
	"github.com/gwillem/trackbot/pkg/input"
	"github.com/gwillem/trackbot/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const nudgeSpeed = 0.3

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("trackbot Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := config.Default()
	if config.Exists(opts.ConfigFile) {
		existing, err := config.LoadConfigFrom(opts.ConfigFile)
		if err != nil {
			return err
		}
		cfg = *existing
		fmt.Printf("Editing %s\n\n", opts.ConfigFile)
	}

	// Step 1: Game controller
	fmt.Println(subHeaderStyle.Render("━━━ Game Controller ━━━"))
	chooseController(&cfg.Input)

	// Step 2: Motor controller
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Motor Controller ━━━"))
	chooseMotorPort(&cfg.Motors)
	checkTracks(cfg.Motors)

	// Step 3: Target
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Search Target ━━━"))
	chooseTarget(&cfg.Detection)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.SaveTo(opts.ConfigFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.ConfigFile)
	fmt.Println()
	fmt.Println("Start driving with: " + headerStyle.Render("trackbot run"))

	return nil
}

func chooseController(in *config.Input) {
	devices, err := input.ListDevices()
	if err != nil {
		fmt.Printf("Error listing input devices: %v\n", err)
	}
	if len(devices) == 0 {
		fmt.Printf("No input devices found; the controller will be looked up as %q at start-up.\n", in.DeviceName)
		return
	}

	options := []huh.Option[string]{
		huh.NewOption(fmt.Sprintf("Look up %q at start-up", in.DeviceName), ""),
	}
	names := make(map[string]string, len(devices))
	for _, d := range devices {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", d.Name, d.Path), d.Path))
		names[d.Path] = d.Name
	}

	path := in.Device
	runForm(huh.NewSelect[string]().
		Title("Which device is the game controller?").
		Description("Device numbers can change between boots; looking up by name is more robust").
		Options(options...).
		Value(&path))

	in.Device = path
	if name, ok := names[path]; ok {
		in.DeviceName = name
	}
}

func chooseMotorPort(m *config.Motors) {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
	}

	var options []huh.Option[string]
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		options = append(options, huh.NewOption(port, port))
	}

	if len(options) == 0 {
		fmt.Println("No serial ports found.")
		runForm(huh.NewInput().
			Title("Motor controller port").
			Value(&m.Port))
		return
	}
	runForm(huh.NewSelect[string]().
		Title("Which port is the motor controller on?").
		Options(options...).
		Value(&m.Port))
}

// checkTracks nudges each track forward so the user can verify the wiring.
func checkTracks(m config.Motors) {
	var nudge bool
	runForm(huh.NewConfirm().
		Title("Nudge the tracks to check the wiring?").
		Description("Lift the robot off the ground first").
		Value(&nudge))
	if !nudge {
		return
	}

	tracks, err := robot.OpenSerialTracks(m.Port, m.BaudRate)
	if err != nil {
		fmt.Printf("  Error opening %s: %v\n", m.Port, err)
		return
	}
	defer tracks.Close()

	for _, name := range robot.AllTracks() {
		track := tracks.Left
		if name == robot.RightTrack {
			track = tracks.Right
		}
		fmt.Printf("  Nudging %s track forward...\n", name)
		if err := track.Forward(nudgeSpeed); err != nil {
			fmt.Printf("  Error: %v\n", err)
			return
		}
		time.Sleep(600 * time.Millisecond)
		track.Stop()
		time.Sleep(400 * time.Millisecond)
	}

	ok := true
	runForm(huh.NewConfirm().
		Title("Did the left track move forward first, then the right one?").
		Affirmative("Yes").
		Negative("No").
		Value(&ok))
	if !ok {
		fmt.Println(dimStyle.Render("  Swap the track or motor leads on the motor controller and run setup again."))
	}
}

func chooseTarget(d *config.Detection) {
	confidence := strconv.FormatFloat(d.MinConfidence, 'f', -1, 64)

	runForm(
		huh.NewInput().
			Title("Target class").
			Description("Class name as written by the vision pipeline").
			Value(&d.TargetClass).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("target class is required")
				}
				return nil
			}),
		huh.NewInput().
			Title("Minimum confidence").
			Value(&confidence).
			Validate(func(s string) error {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil || v < 0 || v > 1 {
					return errors.New("enter a number between 0 and 1")
				}
				return nil
			}),
		huh.NewInput().
			Title("Detection log").
			Value(&d.LogPath),
	)

	d.TargetClass = strings.TrimSpace(d.TargetClass)
	if v, err := strconv.ParseFloat(confidence, 64); err == nil {
		d.MinConfidence = v
	}
}

func runForm(fields ...huh.Field) {
	form := huh.NewForm(huh.NewGroup(fields...))
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
}
