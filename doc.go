// Package trackbot drives a two-track ground robot from a game controller and
// can hand the motors over to an autonomous search-and-approach behavior.
//
// In manual mode the left stick (forward) and right stick (turn) are mixed into
// left/right track speeds. Pressing the search button rotates the robot in
// short bursts, polls the detection log written by an external vision
// pipeline, and drives toward the best match while keeping it centered.
//
// # Installation
//
//	go install github.com/gwillem/trackbot/cmd/trackbot@latest
//
// # Usage
//
// First, run setup to pick the controller, the motor port and the target class:
//
//	trackbot setup
//
// Then start the robot:
//
//	trackbot run
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/trackbot: CLI with setup, run, detections and sessions commands
//   - pkg/config: configuration file and policy defaults
//   - pkg/robot: axis normalization, track mixing and motor backends
//   - pkg/detect: detection log reading and target selection
//   - pkg/search: autonomous search-and-approach state machine
//   - pkg/teleop: manual/autonomous arbitration controller
//   - pkg/input: controller event source
//   - pkg/session: session archival and journal
//   - pkg/services: camera service mode switching
//   - pkg/clock: time source for testable waits
package trackbot
