// Package agent drives the bounded computer-use conversation: it exchanges
// turns with the model, translates requested tool actions into screen
// operations, and captures an audit frame for every step taken.
package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"lucid/internal/audit"
	"lucid/internal/llm"
	"lucid/internal/logging"
	"lucid/internal/screen"
)

// Outcome statuses. Timeout and max_iterations are distinct from failed
// because the session may have made partial legitimate progress.
const (
	OutcomeSuccess       = "success"
	OutcomeMaxIterations = "max_iterations"
	OutcomeTimeout       = "timeout"
	OutcomeFailed        = "failed"
)

// Outcome is the result of one control-loop run. The conversation is
// preserved on every exit path for audit.
type Outcome struct {
	Status     string
	Iterations int
	Steps      int
	Messages   []llm.Message
	FinalText  string
	Err        string
}

// ComputerTool is the single tool exposed to the model.
func ComputerTool(width, height int) llm.Tool {
	return llm.Tool{
		"type":              "computer_20250124",
		"name":              "computer",
		"display_width_px":  width,
		"display_height_px": height,
		"display_number":    1,
	}
}

// Loop runs one governed computer-use session against a screen controller.
type Loop struct {
	client    llm.Client
	screen    screen.Controller
	frames    *audit.FrameLogger
	sessionID string
	logger    logging.Logger

	maxIterations int
	maxDuration   time.Duration
	settleDelay   time.Duration
	displayWidth  int
	displayHeight int

	step       int
	iterations int
	startTime  time.Time
}

// LoopConfig bundles the budgets and display geometry.
type LoopConfig struct {
	MaxIterations int
	MaxDuration   time.Duration
	SettleDelay   time.Duration
	DisplayWidth  int
	DisplayHeight int
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 30 * time.Minute
	}
	if c.DisplayWidth <= 0 {
		c.DisplayWidth = 1024
	}
	if c.DisplayHeight <= 0 {
		c.DisplayHeight = 768
	}
	return c
}

// NewLoop wires a loop for one session.
func NewLoop(client llm.Client, controller screen.Controller, frames *audit.FrameLogger, sessionID string, cfg LoopConfig) *Loop {
	cfg = cfg.withDefaults()
	return &Loop{
		client:        client,
		screen:        controller,
		frames:        frames,
		sessionID:     sessionID,
		logger:        logging.NewComponentLogger("ControlLoop"),
		maxIterations: cfg.MaxIterations,
		maxDuration:   cfg.MaxDuration,
		settleDelay:   cfg.SettleDelay,
		displayWidth:  cfg.DisplayWidth,
		displayHeight: cfg.DisplayHeight,
	}
}

// Run executes the bounded conversation. It returns success when the model
// stops requesting actions, max_iterations when the iteration budget runs
// out, timeout when the wall-clock budget is exceeded, and failed on any
// loop-level error (model service failure, controller setup failure,
// cancellation). Per-action failures do not abort the run; they are fed back
// to the model as error-tagged tool results.
func (l *Loop) Run(ctx context.Context, systemPrompt, taskPrompt string) *Outcome {
	l.startTime = time.Now()
	l.step = 0
	l.iterations = 0

	tools := []llm.Tool{ComputerTool(l.displayWidth, l.displayHeight)}
	messages := []llm.Message{
		{Role: "user", Content: []llm.ContentBlock{llm.TextBlock(taskPrompt)}},
	}
	finalText := ""

	outcome := func(status, errText string) *Outcome {
		return &Outcome{
			Status:     status,
			Iterations: l.iterations,
			Steps:      l.step,
			Messages:   messages,
			FinalText:  finalText,
			Err:        errText,
		}
	}

	for l.iterations < l.maxIterations {
		// Cancellation and budgets are observed only at iteration
		// boundaries; in-flight model and screen calls run to completion.
		if err := ctx.Err(); err != nil {
			l.logger.Warn("Session %s interrupted: %v", l.sessionID, err)
			return outcome(OutcomeFailed, err.Error())
		}
		if elapsed := time.Since(l.startTime); elapsed > l.maxDuration {
			l.logger.Warn("Session %s exceeded %s budget (%s elapsed)", l.sessionID, l.maxDuration, elapsed.Round(time.Second))
			return outcome(OutcomeTimeout, fmt.Sprintf("session exceeded %s limit (%s elapsed)", l.maxDuration, elapsed.Round(time.Second)))
		}

		l.iterations++
		l.logger.Info("Session %s iteration %d/%d", l.sessionID, l.iterations, l.maxIterations)

		resp, err := l.client.CreateMessage(ctx, llm.Request{
			System:   systemPrompt,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			l.logger.Error("Session %s model call failed: %v", l.sessionID, err)
			return outcome(OutcomeFailed, err.Error())
		}

		if text := resp.Text(); text != "" {
			finalText = text
		}
		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content})

		toolUses := resp.ToolUses()
		if len(toolUses) == 0 {
			l.logger.Info("Session %s complete after %d iterations, %d steps", l.sessionID, l.iterations, l.step)
			return outcome(OutcomeSuccess, "")
		}

		// Actions execute strictly in the order the model requested them.
		// A failing action yields an error-tagged result instead of
		// aborting the session.
		results := make([]llm.ContentBlock, 0, len(toolUses))
		for _, use := range toolUses {
			content, err := l.executeAction(use.Input)
			if err != nil {
				l.logger.Error("Session %s action failed: %v", l.sessionID, err)
				results = append(results, llm.ContentBlock{
					Type:      "tool_result",
					ToolUseID: use.ID,
					Content:   []llm.ContentBlock{llm.TextBlock("Error: " + err.Error())},
					IsError:   true,
				})
				continue
			}
			results = append(results, llm.ContentBlock{
				Type:      "tool_result",
				ToolUseID: use.ID,
				Content:   content,
			})
		}
		messages = append(messages, llm.Message{Role: "user", Content: results})
	}

	l.logger.Warn("Session %s reached max iterations (%d)", l.sessionID, l.maxIterations)
	return outcome(OutcomeMaxIterations, fmt.Sprintf("reached max iterations (%d)", l.maxIterations))
}

// executeAction dispatches one requested action to the screen controller and
// returns the tool result content. Every executed action ends with exactly
// one capture persisted to the audit trail: the screenshot action's capture
// is itself the result; every other action gets a follow-up capture after a
// settle delay. Unknown actions return a text result without touching the
// controller or advancing the step counter.
func (l *Loop) executeAction(input map[string]any) ([]llm.ContentBlock, error) {
	action, _ := input["action"].(string)
	if action == "" {
		return []llm.ContentBlock{llm.TextBlock("Unknown action: (missing)")}, nil
	}

	switch action {
	case "screenshot":
	case "left_click", "double_click", "right_click", "mouse_move", "type", "key", "scroll":
	default:
		l.logger.Warn("Session %s unknown action %q", l.sessionID, action)
		return []llm.ContentBlock{llm.TextBlock("Unknown action: " + action)}, nil
	}

	l.step++
	l.logger.Info("Session %s step %d: %s", l.sessionID, l.step, action)

	if action == "screenshot" {
		return l.captureStep("screenshot")
	}

	var err error
	switch action {
	case "left_click":
		x, y := coordinate(input)
		err = l.screen.Click(x, y)
	case "double_click":
		x, y := coordinate(input)
		err = l.screen.DoubleClick(x, y)
	case "right_click":
		x, y := coordinate(input)
		err = l.screen.RightClick(x, y)
	case "mouse_move":
		x, y := coordinate(input)
		err = l.screen.MouseMove(x, y)
	case "type":
		text, _ := input["text"].(string)
		err = l.screen.TypeText(text)
	case "key":
		combo, _ := input["text"].(string)
		err = l.screen.Key(combo)
	case "scroll":
		x, y := coordinate(input)
		direction, _ := input["scroll_direction"].(string)
		if direction == "" {
			direction = screen.ScrollDown
		}
		amount := intValue(input["scroll_amount"], 3)
		err = l.screen.Scroll(x, y, direction, amount)
	}
	if err != nil {
		return nil, err
	}

	// Let the UI settle before the follow-up capture.
	if l.settleDelay > 0 {
		time.Sleep(l.settleDelay)
	}
	return l.captureStep(action)
}

// captureStep captures one frame, persists it under the current step, and
// returns it as image content for the model.
func (l *Loop) captureStep(action string) ([]llm.ContentBlock, error) {
	png, err := l.screen.CaptureFrame()
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}
	if _, err := l.frames.Write(l.sessionID, l.step, png, action); err != nil {
		return nil, fmt.Errorf("persist frame: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(png)
	return []llm.ContentBlock{llm.ImageBlock(b64)}, nil
}

func coordinate(input map[string]any) (int, int) {
	raw, ok := input["coordinate"].([]any)
	if !ok || len(raw) < 2 {
		return 0, 0
	}
	return intValue(raw[0], 0), intValue(raw[1], 0)
}

func intValue(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return fallback
}
