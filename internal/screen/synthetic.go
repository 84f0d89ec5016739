package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"lucid/internal/logging"
)

// ActionRecord is one entry in the synthetic controller's internal log.
type ActionRecord struct {
	Step   int
	Action string
	Detail string
}

// Synthetic is a deterministic in-memory controller. Every call succeeds on
// valid input and each capture renders a distinguishable frame reflecting the
// most recent action.
type Synthetic struct {
	width  int
	height int
	logger logging.Logger

	mu        sync.Mutex
	connected bool
	step      int
	actions   []ActionRecord
}

// NewSynthetic creates a synthetic controller with the given display size.
func NewSynthetic(width, height int) *Synthetic {
	return &Synthetic{
		width:  width,
		height: height,
		logger: logging.NewComponentLogger("SyntheticScreen"),
	}
}

func (s *Synthetic) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.logger.Info("Connected to synthetic display %dx%d", s.width, s.height)
	return nil
}

func (s *Synthetic) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.logger.Info("Disconnected from synthetic display")
	return nil
}

// Actions returns a copy of the internal action log.
func (s *Synthetic) Actions() []ActionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActionRecord, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *Synthetic) record(action, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.step++
	s.actions = append(s.actions, ActionRecord{Step: s.step, Action: action, Detail: detail})
	s.logger.Debug("Step %d: %s %s", s.step, action, detail)
	return nil
}

func (s *Synthetic) CaptureFrame() ([]byte, error) {
	if err := s.record("screenshot", ""); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked()
}

func (s *Synthetic) Click(x, y int) error {
	return s.record("left_click", fmt.Sprintf("(%d,%d)", x, y))
}

func (s *Synthetic) DoubleClick(x, y int) error {
	return s.record("double_click", fmt.Sprintf("(%d,%d)", x, y))
}

func (s *Synthetic) RightClick(x, y int) error {
	return s.record("right_click", fmt.Sprintf("(%d,%d)", x, y))
}

func (s *Synthetic) MouseMove(x, y int) error {
	return s.record("mouse_move", fmt.Sprintf("(%d,%d)", x, y))
}

func (s *Synthetic) TypeText(text string) error {
	return s.record("type", text)
}

func (s *Synthetic) Key(combo string) error {
	return s.record("key", combo)
}

func (s *Synthetic) Scroll(x, y int, direction string, amount int) error {
	switch direction {
	case ScrollUp, ScrollDown, ScrollLeft, ScrollRight:
	default:
		return fmt.Errorf("screen: invalid scroll direction %q", direction)
	}
	return s.record("scroll", fmt.Sprintf("(%d,%d) %s x%d", x, y, direction, amount))
}

// renderLocked draws a mock practice-management screen. The last action and
// step counter are painted in so frames differ call to call.
func (s *Synthetic) renderLocked() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))

	fill := func(r image.Rectangle, c color.RGBA) {
		draw.Draw(img, r, &image.Uniform{c}, image.Point{}, draw.Src)
	}

	background := color.RGBA{240, 240, 245, 255}
	titleBar := color.RGBA{0, 51, 102, 255}
	menuBar := color.RGBA{220, 220, 225, 255}
	rowEven := color.RGBA{255, 255, 255, 255}
	rowOdd := color.RGBA{245, 245, 250, 255}
	banner := color.RGBA{255, 255, 230, 255}

	fill(img.Bounds(), background)
	fill(image.Rect(0, 0, s.width, 30), titleBar)
	fill(image.Rect(0, 30, s.width, 55), menuBar)
	fill(image.Rect(10, 65, s.width-10, 90), titleBar)

	s.drawText(img, 10, 20, "EZBIS Office - Patient Management (SYNTHETIC)", color.White)
	menus := []string{"File", "Edit", "View", "Patient", "Schedule", "Reports"}
	for i, m := range menus {
		s.drawText(img, 15+i*90, 48, m, color.RGBA{30, 30, 30, 255})
	}
	s.drawText(img, 20, 82, "Account    Name                 Phone           Last Visit   Status", color.White)

	rows := []string{
		"6211C      Steve Dahlkamp       (555) 123-4567  2024-08-15   Active",
		"7845A      Mary Johnson         (555) 234-5678  2024-06-20   Warm",
		"3021B      Robert Williams      (555) 345-6789  2023-11-10   Cool",
		"9182D      Patricia Brown       (555) 456-7890  2023-03-05   Cold",
		"4567E      James Davis          (555) 567-8901  2022-01-15   Dormant",
	}
	for j, row := range rows {
		y := 95 + j*25
		bg := rowEven
		if j%2 == 1 {
			bg = rowOdd
		}
		fill(image.Rect(10, y, s.width-10, y+24), bg)
		s.drawText(img, 20, y+16, row, color.RGBA{30, 30, 30, 255})
	}

	if n := len(s.actions); n > 0 {
		last := s.actions[n-1]
		fill(image.Rect(10, s.height-35, s.width-10, s.height-5), banner)
		caption := fmt.Sprintf("Last action: %s %s", last.Action, last.Detail)
		s.drawText(img, 15, s.height-15, caption, color.RGBA{100, 100, 0, 255})
	}
	s.drawText(img, s.width-120, 20, fmt.Sprintf("Step: %d", s.step), color.RGBA{200, 200, 200, 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Synthetic) drawText(img *image.RGBA, x, y int, text string, c color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
