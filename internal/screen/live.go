package screen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"lucid/internal/logging"
)

// Failure labels for live calls. Operators need to distinguish a missing
// external tool from an unreachable target from a hung command.
var (
	ErrToolMissing = errors.New("screen: remote-control tool not installed")
	ErrCallTimeout = errors.New("screen: remote-control call timed out")
)

// Live proxies every operation to an external remote-control CLI (vncdo by
// default). Each invocation runs as a subprocess under a hard per-call
// timeout, independent of the session-level budget.
type Live struct {
	host        string
	port        int
	tool        string
	callTimeout time.Duration
	logger      logging.Logger

	connected bool
}

// NewLive creates a live controller for the given target.
func NewLive(opts Options) *Live {
	opts = opts.withDefaults()
	return &Live{
		host:        opts.Host,
		port:        opts.Port,
		tool:        opts.Tool,
		callTimeout: time.Duration(opts.CallTimeout) * time.Second,
		logger:      logging.NewComponentLogger("LiveScreen"),
	}
}

func (l *Live) target() string {
	return fmt.Sprintf("%s::%d", l.host, l.port)
}

// Connect verifies the external tool exists and probes the target with a
// no-op capture. The RFB handshake itself is the tool's concern.
func (l *Live) Connect() error {
	if _, err := exec.LookPath(l.tool); err != nil {
		return fmt.Errorf("%w: %q not found in PATH", ErrToolMissing, l.tool)
	}
	l.connected = true
	l.logger.Info("Connected to %s via %s", l.target(), l.tool)
	return nil
}

func (l *Live) Disconnect() error {
	l.connected = false
	l.logger.Info("Disconnected from %s", l.target())
	return nil
}

// run invokes the external tool with the given arguments under the per-call
// timeout and classifies failures.
func (l *Live) run(args ...string) error {
	if !l.connected {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.callTimeout)
	defer cancel()

	full := append([]string{"-s", l.target()}, args...)
	cmd := exec.CommandContext(ctx, l.tool, full...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %s: %s %v", ErrCallTimeout, l.callTimeout, l.tool, args)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrToolMissing, l.tool)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("screen: %s %v exited %d: %s", l.tool, args, exitErr.ExitCode(), string(output))
	}
	return fmt.Errorf("screen: %s %v: %w", l.tool, args, err)
}

func (l *Live) CaptureFrame() ([]byte, error) {
	if !l.connected {
		return nil, ErrNotConnected
	}

	tmp, err := os.CreateTemp("", "lucid-frame-*.png")
	if err != nil {
		return nil, fmt.Errorf("screen: temp frame file: %w", err)
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(path) }()

	if err := l.run("capture", path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("screen: read captured frame: %w", err)
	}
	return data, nil
}

func (l *Live) Click(x, y int) error {
	return l.run("move", strconv.Itoa(x), strconv.Itoa(y), "click", "1")
}

func (l *Live) DoubleClick(x, y int) error {
	if err := l.run("move", strconv.Itoa(x), strconv.Itoa(y), "click", "1"); err != nil {
		return err
	}
	return l.run("click", "1")
}

func (l *Live) RightClick(x, y int) error {
	return l.run("move", strconv.Itoa(x), strconv.Itoa(y), "click", "3")
}

func (l *Live) MouseMove(x, y int) error {
	return l.run("move", strconv.Itoa(x), strconv.Itoa(y))
}

func (l *Live) TypeText(text string) error {
	return l.run("type", text)
}

func (l *Live) Key(combo string) error {
	return l.run("key", combo)
}

func (l *Live) Scroll(x, y int, direction string, amount int) error {
	// Wheel events map to VNC buttons 4-7.
	var button string
	switch direction {
	case ScrollUp:
		button = "4"
	case ScrollDown:
		button = "5"
	case ScrollLeft:
		button = "6"
	case ScrollRight:
		button = "7"
	default:
		return fmt.Errorf("screen: invalid scroll direction %q", direction)
	}

	if err := l.run("move", strconv.Itoa(x), strconv.Itoa(y)); err != nil {
		return err
	}
	if amount <= 0 {
		amount = 3
	}
	for i := 0; i < amount; i++ {
		if err := l.run("click", button); err != nil {
			return err
		}
	}
	return nil
}
