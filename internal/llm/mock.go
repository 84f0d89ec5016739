package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient replays a fixed sequence of responses. It backs mock mode
// and the control-loop tests.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []*Response
	err       error
	calls     []Request
	model     string
}

// NewScriptedClient returns a client that yields the given responses in
// order. Once exhausted it returns an error.
func NewScriptedClient(responses ...*Response) *ScriptedClient {
	return &ScriptedClient{responses: responses, model: "scripted"}
}

// FailWith makes every subsequent call return err instead of a response.
func (c *ScriptedClient) FailWith(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	return c
}

// Calls returns the requests observed so far.
func (c *ScriptedClient) Calls() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *ScriptedClient) Model() string {
	return c.model
}

func (c *ScriptedClient) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, req)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.responses) == 0 {
		return nil, fmt.Errorf("scripted client: no responses left (call %d)", len(c.calls))
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

// MockAgentScript builds the response sequence mock mode runs against the
// synthetic controller: a reconnaissance screenshot, a click, a typed entry,
// then a completion turn. Three frames end up in the audit trail.
func MockAgentScript() []*Response {
	return []*Response{
		{
			Content: []ContentBlock{
				TextBlock("Taking a screenshot to see the current state."),
				{Type: "tool_use", ID: "toolu_mock_01", Name: "computer", Input: map[string]any{
					"action": "screenshot",
				}},
			},
			StopReason: "tool_use",
		},
		{
			Content: []ContentBlock{
				TextBlock("Opening the patient list."),
				{Type: "tool_use", ID: "toolu_mock_02", Name: "computer", Input: map[string]any{
					"action":     "left_click",
					"coordinate": []any{float64(120), float64(82)},
				}},
			},
			StopReason: "tool_use",
		},
		{
			Content: []ContentBlock{
				TextBlock("Entering the account id."),
				{Type: "tool_use", ID: "toolu_mock_03", Name: "computer", Input: map[string]any{
					"action": "type",
					"text":   "6211C",
				}},
			},
			StopReason: "tool_use",
		},
		{
			Content: []ContentBlock{
				TextBlock("Task completed successfully. Simulated run against the synthetic screen."),
			},
			StopReason: "end_turn",
		},
	}
}
