package tasks

import (
	"fmt"
	"strings"

	"lucid/internal/agent"
	"lucid/internal/errors"
)

// BookAppointment books a patient into the EZBIS scheduler. A write
// operation, so it requires confirmation before execution.
type BookAppointment struct{}

func (t *BookAppointment) Kind() string { return "book_appointment" }

func (t *BookAppointment) Description() string {
	return "Book an appointment for a patient in EZBIS"
}

func (t *BookAppointment) RequiresConfirmation() bool { return true }

func (t *BookAppointment) SystemPrompt() string {
	return baseSystemPrompt +
		"\n## TASK CONTEXT: Appointment Booking\n" +
		"You are booking an appointment in the EZBIS scheduling system.\n\n" +
		"Steps:\n" +
		"1. Open the EZBIS scheduler/appointment book\n" +
		"2. Navigate to the requested date\n" +
		"3. Find the patient by account ID or name\n" +
		"4. Select an available time slot\n" +
		"5. Fill in the appointment details\n" +
		"6. VERIFY the details are correct before saving\n" +
		"7. Save the appointment\n" +
		"8. Take a final screenshot confirming the booking\n\n" +
		"IMPORTANT:\n" +
		"- Double-check the patient name and date before saving\n" +
		"- If the requested time slot is not available, report back with alternatives\n" +
		"- Do NOT book if you are unsure about any details\n" +
		"- Report the confirmed date, time, and provider when done\n"
}

func (t *BookAppointment) Validate(params map[string]any) error {
	if err := requiredParam(params, "patient_account_id"); err != nil {
		return errors.Validationf("%v", err)
	}
	if err := requiredParam(params, "date"); err != nil {
		return errors.Validationf("%v", err)
	}
	return nil
}

func (t *BookAppointment) BuildPrompt(params map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please book an appointment in EZBIS for the following patient:\n\n")
	fmt.Fprintf(&b, "- Patient Account ID: %s\n", stringParam(params, "patient_account_id"))
	fmt.Fprintf(&b, "- Patient Name: %s\n", stringParam(params, "patient_name"))
	fmt.Fprintf(&b, "- Requested Date: %s\n", stringParam(params, "date"))

	if at := stringParam(params, "time"); at != "" {
		fmt.Fprintf(&b, "- Requested Time: %s\n", at)
	} else {
		b.WriteString("- Time: First available slot\n")
	}
	if provider := stringParam(params, "provider"); provider != "" {
		fmt.Fprintf(&b, "- Provider: %s\n", provider)
	}

	b.WriteString("\nStart by taking a screenshot to see the current state. " +
		"Then navigate to the EZBIS scheduler and book this appointment. " +
		"Verify all details before saving.")
	return b.String()
}

func (t *BookAppointment) ParseResult(outcome *agent.Outcome) map[string]any {
	result := baseResult(t.Kind(), outcome)
	result["booked"] = outcome.Status == agent.OutcomeSuccess
	return result
}
