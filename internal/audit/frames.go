// Package audit persists the per-session frame trail. Every action the agent
// takes leaves a PNG on disk, keyed by session and step, so operators can
// replay exactly what happened.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"lucid/internal/errors"
	"lucid/internal/logging"
)

const maxActionLabelLen = 30

// Frame describes one stored capture.
type Frame struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Step      int       `json:"step"`
	Action    string    `json:"action"`
	SizeBytes int64     `json:"size_bytes"`
	Timestamp time.Time `json:"timestamp"`
}

// FrameLogger writes and enumerates audit frames under a base directory,
// one subdirectory per session id. Directories are append-only; frames are
// never modified after being written.
type FrameLogger struct {
	baseDir string
	logger  logging.Logger
}

// NewFrameLogger creates the base directory if needed.
func NewFrameLogger(baseDir string) (*FrameLogger, error) {
	if strings.HasPrefix(baseDir, "~/") {
		home, _ := os.UserHomeDir()
		baseDir = filepath.Join(home, baseDir[2:])
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	return &FrameLogger{
		baseDir: baseDir,
		logger:  logging.NewComponentLogger("FrameLogger"),
	}, nil
}

// BaseDir returns the root of the frame store.
func (f *FrameLogger) BaseDir() string {
	return f.baseDir
}

func (f *FrameLogger) sessionDir(sessionID string) string {
	return filepath.Join(f.baseDir, sessionID)
}

// sanitizeAction keeps filenames portable: alphanumerics, dash and
// underscore survive, everything else becomes an underscore.
func sanitizeAction(action string) string {
	var b strings.Builder
	for _, r := range action {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > maxActionLabelLen {
		s = s[:maxActionLabelLen]
	}
	return s
}

// Write stores one frame and returns its path relative to the base dir
// (e.g. "42/0001_left_click.png").
func (f *FrameLogger) Write(sessionID string, step int, pngBytes []byte, action string) (string, error) {
	dir := f.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create session frames dir: %w", err)
	}

	filename := fmt.Sprintf("%04d_%s.png", step, sanitizeAction(action))
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, pngBytes, 0644); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}

	f.logger.Info("Frame saved: %s (%d bytes)", path, len(pngBytes))
	return filepath.Join(sessionID, filename), nil
}

// List returns all frames for a session ordered by step.
func (f *FrameLogger) List(sessionID string) ([]Frame, error) {
	dir := f.sessionDir(sessionID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Frame{}, nil
		}
		return nil, fmt.Errorf("read session frames dir: %w", err)
	}

	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		stem := strings.TrimSuffix(name, ".png")
		step := 0
		action := ""
		if idx := strings.Index(stem, "_"); idx >= 0 {
			if n, convErr := strconv.Atoi(stem[:idx]); convErr == nil {
				step = n
			}
			action = stem[idx+1:]
		} else if n, convErr := strconv.Atoi(stem); convErr == nil {
			step = n
		}

		frames = append(frames, Frame{
			Filename:  name,
			Path:      filepath.Join(sessionID, name),
			Step:      step,
			Action:    action,
			SizeBytes: info.Size(),
			Timestamp: info.ModTime(),
		})
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].Step < frames[j].Step })
	return frames, nil
}

// Count returns the number of frames stored for a session.
func (f *FrameLogger) Count(sessionID string) int {
	frames, err := f.List(sessionID)
	if err != nil {
		return 0
	}
	return len(frames)
}

// Read returns the raw bytes of one frame. The filename is validated to stay
// inside the session directory.
func (f *FrameLogger) Read(sessionID, filename string) ([]byte, error) {
	if filepath.Base(filename) != filename {
		return nil, errors.NotFoundf("frame not found: %s", filename)
	}
	path := filepath.Join(f.sessionDir(sessionID), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("frame not found: %s", filename)
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return data, nil
}

// CleanupOlderThan deletes session frame directories whose newest content is
// older than the retention window. Returns the number removed.
func (f *FrameLogger) CleanupOlderThan(retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return 0, fmt.Errorf("read frames dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(f.baseDir, entry.Name())); err != nil {
				f.logger.Warn("Failed to remove old frame dir %s: %v", entry.Name(), err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		f.logger.Info("Cleaned up %d old frame directories (retention %s)", removed, retention)
	}
	return removed, nil
}
