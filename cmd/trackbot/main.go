package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/trackbot/pkg/config"
)

type Options struct {
	ConfigFile string `short:"c" long:"config" default:"trackbot.json" description:"Configuration file (.json or .yaml)"`

	Setup      SetupCommand      `command:"setup" description:"Pick the controller, motor port and target, and save the configuration"`
	Run        RunCommand        `command:"run" alias:"drive" description:"Drive with the game controller; the search button starts the autonomous search"`
	Detections DetectionsCommand `command:"detections" alias:"det" description:"Show the best target per frame in the detection log"`
	Sessions   SessionsCommand   `command:"sessions" description:"List recent search sessions"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "trackbot - tank-drive robot with manual control and autonomous target search"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, falling back to defaults when it
// does not exist yet.
func loadConfig() (*config.Config, error) {
	if !config.Exists(opts.ConfigFile) {
		fmt.Fprintf(os.Stderr, "No configuration at %s, using defaults. Run 'trackbot setup' to create one.\n", opts.ConfigFile)
		cfg := config.Default()
		return &cfg, nil
	}
	cfg, err := config.LoadConfigFrom(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", opts.ConfigFile, err)
	}
	return cfg, nil
}
