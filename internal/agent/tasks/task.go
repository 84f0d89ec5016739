// Package tasks defines the fixed automation procedures the agent may run.
// Each kind is a static policy object: system prompt, parameter validator,
// prompt builder, and result parser.
package tasks

import (
	"fmt"

	"lucid/internal/agent"
)

// baseSystemPrompt carries the ground rules shared by every task kind.
const baseSystemPrompt = "You are an AI agent operating EZBIS chiropractic clinic software via screen control. " +
	"You can see the screen, click, type, and use keyboard shortcuts. " +
	"EZBIS is a Windows desktop application for patient management.\n\n" +
	"RULES:\n" +
	"- Always take a screenshot first to see the current state\n" +
	"- After clicking or typing, take a screenshot to verify the result\n" +
	"- If you see an unexpected screen or dialog, STOP and report it\n" +
	"- Never delete any patient records\n" +
	"- Never access billing or insurance claims screens\n" +
	"- If you are unsure about any action, STOP and describe what you see\n" +
	"- Report completion clearly when the task is done\n"

// Definition is the static policy for one task kind.
type Definition interface {
	Kind() string
	Description() string
	// RequiresConfirmation marks write operations that need a human
	// go-ahead before execution starts.
	RequiresConfirmation() bool
	SystemPrompt() string
	// Validate rejects bad parameter bags with a descriptive error.
	Validate(params map[string]any) error
	// BuildPrompt renders the parameters into the task instruction.
	BuildPrompt(params map[string]any) string
	// ParseResult extracts task-specific structured facts from the
	// loop outcome.
	ParseResult(outcome *agent.Outcome) map[string]any
}

var registry = map[string]Definition{}

func register(d Definition) {
	registry[d.Kind()] = d
}

func init() {
	register(&SyncPatients{})
	register(&BookAppointment{})
	register(&UpdateRecord{})
}

// Lookup returns the definition for a task kind.
func Lookup(kind string) (Definition, bool) {
	d, ok := registry[kind]
	return d, ok
}

// Kinds lists the registered task kinds in a stable order.
func Kinds() []string {
	return []string{"sync_patients", "book_appointment", "update_record"}
}

// baseResult carries the facts every task reports.
func baseResult(kind string, outcome *agent.Outcome) map[string]any {
	return map[string]any{
		"task_kind":  kind,
		"final_text": outcome.FinalText,
		"iterations": outcome.Iterations,
		"steps":      outcome.Steps,
	}
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func requiredParam(params map[string]any, key string) error {
	if stringParam(params, key) == "" {
		return fmt.Errorf("%s is required", key)
	}
	return nil
}
