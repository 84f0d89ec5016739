package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucid/internal/audit"
	"lucid/internal/llm"
	"lucid/internal/screen"
)

func newTestFrames(t *testing.T) *audit.FrameLogger {
	t.Helper()
	frames, err := audit.NewFrameLogger(t.TempDir())
	require.NoError(t, err)
	return frames
}

func newConnectedSynthetic(t *testing.T) *screen.Synthetic {
	t.Helper()
	s := screen.NewSynthetic(640, 480)
	require.NoError(t, s.Connect())
	return s
}

func toolUseResponse(id, action string, extra map[string]any) *llm.Response {
	input := map[string]any{"action": action}
	for k, v := range extra {
		input[k] = v
	}
	return &llm.Response{
		Content: []llm.ContentBlock{
			{Type: "tool_use", ID: id, Name: "computer", Input: input},
		},
		StopReason: "tool_use",
	}
}

func completionResponse(text string) *llm.Response {
	return &llm.Response{
		Content:    []llm.ContentBlock{llm.TextBlock(text)},
		StopReason: "end_turn",
	}
}

func TestRunSuccessCapturesOneFramePerStep(t *testing.T) {
	client := llm.NewScriptedClient(llm.MockAgentScript()...)
	controller := newConnectedSynthetic(t)
	frames := newTestFrames(t)

	loop := NewLoop(client, controller, frames, "sess-1", LoopConfig{MaxIterations: 10})
	outcome := loop.Run(context.Background(), "system", "do the task")

	assert.Equal(t, OutcomeSuccess, outcome.Status)
	assert.Equal(t, 4, outcome.Iterations)
	assert.Equal(t, 3, outcome.Steps)
	assert.Empty(t, outcome.Err)
	assert.Contains(t, outcome.FinalText, "Task completed successfully")

	stored, err := frames.List("sess-1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, frame := range stored {
		assert.Equal(t, i+1, frame.Step, "frame trail must be contiguous from step 1")
	}
	assert.Equal(t, "screenshot", stored[0].Action)
	assert.Equal(t, "left_click", stored[1].Action)
	assert.Equal(t, "type", stored[2].Action)
}

func TestRunStopsAtMaxIterations(t *testing.T) {
	client := llm.NewScriptedClient(
		toolUseResponse("t1", "screenshot", nil),
		toolUseResponse("t2", "screenshot", nil),
		toolUseResponse("t3", "screenshot", nil),
	)
	controller := newConnectedSynthetic(t)
	frames := newTestFrames(t)

	loop := NewLoop(client, controller, frames, "sess-2", LoopConfig{MaxIterations: 2})
	outcome := loop.Run(context.Background(), "system", "task")

	assert.Equal(t, OutcomeMaxIterations, outcome.Status)
	assert.Equal(t, 2, outcome.Iterations)
	assert.Equal(t, 2, outcome.Steps)
	assert.Contains(t, outcome.Err, "max iterations (2)")
	assert.Equal(t, 2, frames.Count("sess-2"))
}

func TestRunTimesOutAtWallClockBudget(t *testing.T) {
	client := llm.NewScriptedClient(llm.MockAgentScript()...)
	controller := newConnectedSynthetic(t)
	frames := newTestFrames(t)

	loop := NewLoop(client, controller, frames, "sess-3", LoopConfig{
		MaxIterations: 10,
		MaxDuration:   time.Nanosecond,
	})
	outcome := loop.Run(context.Background(), "system", "task")

	assert.Equal(t, OutcomeTimeout, outcome.Status)
	assert.Equal(t, 0, outcome.Iterations)
	assert.Contains(t, outcome.Err, "limit")
	assert.Empty(t, client.Calls(), "budget is checked before the model is called")
}

func TestRunFailsOnModelError(t *testing.T) {
	client := llm.NewScriptedClient().FailWith(errors.New("api down"))
	controller := newConnectedSynthetic(t)
	frames := newTestFrames(t)

	loop := NewLoop(client, controller, frames, "sess-4", LoopConfig{MaxIterations: 5})
	outcome := loop.Run(context.Background(), "system", "task")

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, "api down", outcome.Err)
}

func TestRunObservesCancellationAtIterationBoundary(t *testing.T) {
	client := llm.NewScriptedClient(llm.MockAgentScript()...)
	controller := newConnectedSynthetic(t)
	frames := newTestFrames(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := NewLoop(client, controller, frames, "sess-5", LoopConfig{MaxIterations: 5})
	outcome := loop.Run(ctx, "system", "task")

	assert.Equal(t, OutcomeFailed, outcome.Status)
	assert.Equal(t, context.Canceled.Error(), outcome.Err)
	assert.Equal(t, 0, outcome.Iterations)
}

// failingScreen wraps the synthetic controller and rejects clicks, simulating
// a flaky remote channel.
type failingScreen struct {
	*screen.Synthetic
	clickErr error
}

func (f *failingScreen) Click(x, y int) error {
	return f.clickErr
}

func TestRunFeedsActionFailureBackToModel(t *testing.T) {
	client := llm.NewScriptedClient(
		toolUseResponse("t1", "left_click", map[string]any{
			"coordinate": []any{float64(10), float64(20)},
		}),
		completionResponse("Reported the failure."),
	)
	controller := &failingScreen{
		Synthetic: newConnectedSynthetic(t),
		clickErr:  errors.New("channel reset"),
	}
	frames := newTestFrames(t)

	loop := NewLoop(client, controller, frames, "sess-6", LoopConfig{MaxIterations: 5})
	outcome := loop.Run(context.Background(), "system", "task")

	// The failing action does not abort the session; the model sees the error
	// and finishes its report.
	assert.Equal(t, OutcomeSuccess, outcome.Status)
	assert.Equal(t, 2, outcome.Iterations)
	assert.Equal(t, 0, frames.Count("sess-6"), "a failed action leaves no capture")

	// messages: task prompt, assistant tool_use, tool_result, assistant final.
	require.Len(t, outcome.Messages, 4)
	result := outcome.Messages[2].Content[0]
	assert.Equal(t, "tool_result", result.Type)
	assert.Equal(t, "t1", result.ToolUseID)
	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, "channel reset")
}

func TestRunIgnoresUnknownActions(t *testing.T) {
	client := llm.NewScriptedClient(
		toolUseResponse("t1", "teleport", nil),
		completionResponse("Done."),
	)
	controller := newConnectedSynthetic(t)
	frames := newTestFrames(t)

	loop := NewLoop(client, controller, frames, "sess-7", LoopConfig{MaxIterations: 5})
	outcome := loop.Run(context.Background(), "system", "task")

	assert.Equal(t, OutcomeSuccess, outcome.Status)
	assert.Equal(t, 0, outcome.Steps, "unknown actions never advance the step counter")
	assert.Equal(t, 0, frames.Count("sess-7"))
	assert.Empty(t, controller.Actions(), "unknown actions never reach the controller")

	result := outcome.Messages[2].Content[0]
	assert.Equal(t, "tool_result", result.Type)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "Unknown action: teleport", result.Content[0].Text)
}

func TestRunScreenshotCaptureIsItsOwnResult(t *testing.T) {
	client := llm.NewScriptedClient(
		toolUseResponse("t1", "screenshot", nil),
		completionResponse("Done."),
	)
	controller := newConnectedSynthetic(t)
	frames := newTestFrames(t)

	loop := NewLoop(client, controller, frames, "sess-8", LoopConfig{MaxIterations: 5})
	outcome := loop.Run(context.Background(), "system", "task")

	assert.Equal(t, OutcomeSuccess, outcome.Status)
	assert.Equal(t, 1, frames.Count("sess-8"), "exactly one frame per screenshot, no follow-up capture")

	result := outcome.Messages[2].Content[0]
	require.Len(t, result.Content, 1)
	require.NotNil(t, result.Content[0].Source)
	assert.Equal(t, "base64", result.Content[0].Source.Type)
	assert.Equal(t, "image/png", result.Content[0].Source.MediaType)
}

func TestComputerToolGeometry(t *testing.T) {
	tool := ComputerTool(1024, 768)
	assert.Equal(t, "computer_20250124", tool["type"])
	assert.Equal(t, "computer", tool["name"])
	assert.Equal(t, 1024, tool["display_width_px"])
	assert.Equal(t, 768, tool["display_height_px"])
}
