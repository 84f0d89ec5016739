package tasks

import (
	"fmt"
	"sort"
	"strings"

	"lucid/internal/agent"
	"lucid/internal/errors"
)

// allowedUpdateFields is the fixed allow-list of mutable contact fields.
// Requests touching anything outside it are rejected before a session is
// created.
var allowedUpdateFields = map[string]bool{
	"cell_phone": true,
	"alt_phone":  true,
	"work_phone": true,
	"email":      true,
	"address":    true,
	"city":       true,
	"state":      true,
	"zip":        true,
}

// UpdateRecord updates a patient's contact information. A write operation,
// so it requires confirmation before execution.
type UpdateRecord struct{}

func (t *UpdateRecord) Kind() string { return "update_record" }

func (t *UpdateRecord) Description() string {
	return "Update patient contact information in EZBIS"
}

func (t *UpdateRecord) RequiresConfirmation() bool { return true }

func (t *UpdateRecord) SystemPrompt() string {
	return baseSystemPrompt +
		"\n## TASK CONTEXT: Patient Record Update\n" +
		"You are updating a patient's contact information in EZBIS.\n\n" +
		"Steps:\n" +
		"1. Open the patient record by account ID\n" +
		"2. Navigate to the contact information section\n" +
		"3. Update ONLY the specified fields\n" +
		"4. VERIFY the changes are correct before saving\n" +
		"5. Save the record\n" +
		"6. Take a final screenshot confirming the update\n\n" +
		"IMPORTANT:\n" +
		"- Only update the fields specified — do NOT change anything else\n" +
		"- Do NOT modify clinical data, billing, or insurance information\n" +
		"- Verify the patient account ID matches before making changes\n" +
		"- Report exactly what was changed when done\n"
}

func (t *UpdateRecord) Validate(params map[string]any) error {
	if err := requiredParam(params, "patient_account_id"); err != nil {
		return errors.Validationf("%v", err)
	}

	fields, _ := params["fields"].(map[string]any)
	if len(fields) == 0 {
		return errors.Validationf("fields is required with at least one field to update")
	}

	var invalid []string
	for name := range fields {
		if !allowedUpdateFields[name] {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		allowed := make([]string, 0, len(allowedUpdateFields))
		for name := range allowedUpdateFields {
			allowed = append(allowed, name)
		}
		sort.Strings(allowed)
		return errors.Validationf("cannot update restricted fields: %s. Allowed: %s",
			strings.Join(invalid, ", "), strings.Join(allowed, ", "))
	}
	return nil
}

func (t *UpdateRecord) BuildPrompt(params map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please update the following contact information in EZBIS for patient account %s",
		stringParam(params, "patient_account_id"))
	if name := stringParam(params, "patient_name"); name != "" {
		fmt.Fprintf(&b, " (%s)", name)
	}
	b.WriteString(":\n\n")

	fields, _ := params["fields"].(map[string]any)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %v\n", name, fields[name])
	}

	b.WriteString("\nStart by taking a screenshot to see the current state. " +
		"Then open this patient's record and update only the fields listed above. " +
		"Verify the changes before saving.")
	return b.String()
}

func (t *UpdateRecord) ParseResult(outcome *agent.Outcome) map[string]any {
	result := baseResult(t.Kind(), outcome)
	result["updated"] = outcome.Status == agent.OutcomeSuccess
	return result
}
