package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedClientReplaysInOrder(t *testing.T) {
	c := NewScriptedClient(
		&Response{Content: []ContentBlock{TextBlock("first")}},
		&Response{Content: []ContentBlock{TextBlock("second")}},
	)

	resp, err := c.CreateMessage(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text())

	resp, err = c.CreateMessage(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Text())

	_, err = c.CreateMessage(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responses left")

	assert.Len(t, c.Calls(), 3)
}

func TestScriptedClientFailWith(t *testing.T) {
	boom := errors.New("boom")
	c := NewScriptedClient(&Response{}).FailWith(boom)

	_, err := c.CreateMessage(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)
}

func TestScriptedClientHonorsContext(t *testing.T) {
	c := NewScriptedClient(&Response{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CreateMessage(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.Calls())
}

func TestMockAgentScriptShape(t *testing.T) {
	script := MockAgentScript()
	require.Len(t, script, 4)

	// Three action turns, then a completion turn with no tool use.
	for i := 0; i < 3; i++ {
		uses := script[i].ToolUses()
		require.Len(t, uses, 1, "turn %d", i)
		assert.Equal(t, "computer", uses[0].Name)
	}
	assert.Equal(t, "screenshot", script[0].ToolUses()[0].Input["action"])
	assert.Equal(t, "left_click", script[1].ToolUses()[0].Input["action"])
	assert.Equal(t, "type", script[2].ToolUses()[0].Input["action"])

	assert.Empty(t, script[3].ToolUses())
	assert.Contains(t, script[3].Text(), "Task completed successfully")
}

func TestContentBlockHelpers(t *testing.T) {
	text := TextBlock("hello")
	assert.Equal(t, "text", text.Type)
	assert.Equal(t, "hello", text.Text)

	img := ImageBlock("aGVsbG8=")
	assert.Equal(t, "image", img.Type)
	require.NotNil(t, img.Source)
	assert.Equal(t, "base64", img.Source.Type)
	assert.Equal(t, "image/png", img.Source.MediaType)
	assert.Equal(t, "aGVsbG8=", img.Source.Data)
}

func TestResponseAccessors(t *testing.T) {
	resp := &Response{Content: []ContentBlock{
		TextBlock("part one. "),
		{Type: "tool_use", ID: "t1", Name: "computer"},
		TextBlock("part two."),
		{Type: "tool_use", ID: "t2", Name: "computer"},
	}}

	assert.Equal(t, "part one. part two.", resp.Text())
	uses := resp.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "t1", uses[0].ID)
	assert.Equal(t, "t2", uses[1].ID)
}
