package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/trackbot/pkg/config"
)

func recordRuns(fail map[string]bool) (RunFunc, *[]string) {
	var cmds []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		cmd := strings.Join(append([]string{name}, args...), " ")
		cmds = append(cmds, cmd)
		if fail[cmd] {
			return []byte("Unit not found.\n"), errors.New("exit status 5")
		}
		return nil, nil
	}
	return run, &cmds
}

func TestSystemctl_Switch(t *testing.T) {
	tests := []struct {
		mode Mode
		want []string
	}{
		{StreamNetwork, []string{
			"sudo systemctl stop rpicam-file.service",
			"sudo systemctl stop rpicam-infer.service",
			"sudo systemctl start rpicam-vid.service",
		}},
		{StreamFile, []string{
			"sudo systemctl stop rpicam-vid.service",
			"sudo systemctl stop rpicam-infer.service",
			"sudo systemctl start rpicam-file.service",
		}},
		{Search, []string{
			"sudo systemctl stop rpicam-vid.service",
			"sudo systemctl start rpicam-file.service",
			"sudo systemctl start rpicam-infer.service",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			s := NewSystemctl(config.Default().Services)
			run, cmds := recordRuns(nil)
			s.Run = run

			require.NoError(t, s.Switch(context.Background(), tt.mode))
			assert.Equal(t, tt.want, *cmds)
		})
	}
}

func TestSystemctl_NoSudo(t *testing.T) {
	cfg := config.Services{
		StreamFile: config.ServiceUnits{Start: []string{"cam.service"}},
	}
	s := NewSystemctl(cfg)
	run, cmds := recordRuns(nil)
	s.Run = run

	require.NoError(t, s.Switch(context.Background(), StreamFile))
	assert.Equal(t, []string{"systemctl start cam.service"}, *cmds)
}

func TestSystemctl_FailureAttemptsEveryUnit(t *testing.T) {
	s := NewSystemctl(config.Default().Services)
	run, cmds := recordRuns(map[string]bool{"sudo systemctl stop rpicam-file.service": true})
	s.Run = run

	err := s.Switch(context.Background(), StreamNetwork)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop rpicam-file.service")
	assert.Contains(t, err.Error(), "Unit not found.")
	assert.Len(t, *cmds, 3)
}

func TestSystemctl_UnknownMode(t *testing.T) {
	s := NewSystemctl(config.Default().Services)
	assert.Error(t, s.Switch(context.Background(), Mode(9)))
	assert.Error(t, s.Switch(context.Background(), Idle))
}

func TestMode_ZeroValueIsIdle(t *testing.T) {
	var m Mode
	assert.Equal(t, Idle, m)
	assert.Equal(t, "idle", m.String())
	assert.Equal(t, "stream-network", StreamNetwork.String())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Switch(context.Background(), Search))
	require.NoError(t, r.Switch(context.Background(), StreamFile))
	assert.Equal(t, []Mode{Search, StreamFile}, r.Modes())
	assert.Equal(t, "search,stream-file", r.String())
}
