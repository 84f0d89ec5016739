package screen

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool drops an executable shell script standing in for the external
// remote-control CLI and returns its path.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fakevnc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func newLive(t *testing.T, script string) (*Live, string) {
	t.Helper()
	tool := fakeTool(t, script)
	l := NewLive(Options{Host: "clinic.tailnet", Port: 5901, Tool: tool, CallTimeout: 2})
	return l, filepath.Join(filepath.Dir(tool), "calls.log")
}

func TestLiveRequiresConnect(t *testing.T) {
	l, _ := newLive(t, "exit 0")

	assert.ErrorIs(t, l.Click(1, 2), ErrNotConnected)
	_, err := l.CaptureFrame()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestLiveConnectFailsWhenToolMissing(t *testing.T) {
	l := NewLive(Options{Host: "clinic.tailnet", Tool: filepath.Join(t.TempDir(), "not-installed")})
	err := l.Connect()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolMissing)
}

func TestLivePassesTargetAndArguments(t *testing.T) {
	l, log := newLive(t, `echo "$@" >> "$(dirname "$0")/calls.log"`)
	require.NoError(t, l.Connect())

	require.NoError(t, l.Click(10, 20))
	require.NoError(t, l.TypeText("6211C"))
	require.NoError(t, l.Key("ctrl+s"))

	data, err := os.ReadFile(log)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "-s clinic.tailnet::5901 move 10 20 click 1", lines[0])
	assert.Equal(t, "-s clinic.tailnet::5901 type 6211C", lines[1])
	assert.Equal(t, "-s clinic.tailnet::5901 key ctrl+s", lines[2])
}

func TestLiveCaptureFrameReadsToolOutput(t *testing.T) {
	// args: -s <target> capture <path>
	l, _ := newLive(t, `printf 'not-really-a-png' > "$4"`)
	require.NoError(t, l.Connect())

	data, err := l.CaptureFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("not-really-a-png"), data)
}

func TestLiveClassifiesExitFailure(t *testing.T) {
	l, _ := newLive(t, `echo "connection refused" >&2; exit 1`)
	require.NoError(t, l.Connect())

	err := l.Click(1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited 1")
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotErrorIs(t, err, ErrCallTimeout)
}

func TestLiveClassifiesCallTimeout(t *testing.T) {
	l, _ := newLive(t, "sleep 30")
	l.callTimeout = 100 * time.Millisecond
	require.NoError(t, l.Connect())

	err := l.Click(1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCallTimeout)
}

func TestLiveScrollMapsToWheelButtons(t *testing.T) {
	l, log := newLive(t, `echo "$@" >> "$(dirname "$0")/calls.log"`)
	require.NoError(t, l.Connect())

	require.NoError(t, l.Scroll(50, 60, ScrollDown, 2))

	data, err := os.ReadFile(log)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "-s clinic.tailnet::5901 move 50 60", lines[0])
	assert.Equal(t, "-s clinic.tailnet::5901 click 5", lines[1])
	assert.Equal(t, "-s clinic.tailnet::5901 click 5", lines[2])

	assert.Error(t, l.Scroll(0, 0, "diagonal", 1))
}
