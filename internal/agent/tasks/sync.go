package tasks

import (
	"fmt"

	"lucid/internal/agent"
	"lucid/internal/errors"
)

var allowedTiers = map[string]bool{
	"active":  true,
	"warm":    true,
	"cool":    true,
	"cold":    true,
	"dormant": true,
}

// SyncPatients exports patient data from EZBIS. Read-only, so it runs
// without confirmation.
type SyncPatients struct{}

func (t *SyncPatients) Kind() string { return "sync_patients" }

func (t *SyncPatients) Description() string {
	return "Sync patient data from EZBIS to the Lucid database"
}

func (t *SyncPatients) RequiresConfirmation() bool { return false }

func (t *SyncPatients) SystemPrompt() string {
	return baseSystemPrompt +
		"\n## TASK CONTEXT: Patient Data Sync\n" +
		"You are syncing patient data from EZBIS. This is a READ-ONLY operation.\n\n" +
		"EZBIS Survey Generator is the tool used to export patient data:\n" +
		"1. From the EZBIS main menu, click 'Reports' or 'Survey Generator'\n" +
		"2. In Survey Generator, select 'All Patients' or the appropriate filter\n" +
		"3. Click the export/generate button to create the data file\n" +
		"4. The export file (EZMERGE.DAT) will be saved to the configured location\n\n" +
		"IMPORTANT:\n" +
		"- Do NOT modify any patient records during this process\n" +
		"- Do NOT change any EZBIS settings\n" +
		"- If you encounter any errors, take a screenshot and report them\n" +
		"- Report the number of records exported when complete\n"
}

func (t *SyncPatients) Validate(params map[string]any) error {
	if tier := stringParam(params, "filter_tier"); tier != "" && !allowedTiers[tier] {
		return errors.Validationf("invalid tier filter: %s", tier)
	}
	return nil
}

func (t *SyncPatients) BuildPrompt(params map[string]any) string {
	prompt := "Please sync patient data from EZBIS by exporting via the Survey Generator. " +
		"Start by taking a screenshot to see the current state of the screen. " +
		"Then navigate to the Survey Generator in EZBIS and export all patient data. " +
		"Report back when the export is complete, including the number of records exported."

	if tier := stringParam(params, "filter_tier"); tier != "" {
		prompt += fmt.Sprintf("\nOnly export patients in the '%s' tier.", tier)
	}
	return prompt
}

func (t *SyncPatients) ParseResult(outcome *agent.Outcome) map[string]any {
	result := baseResult(t.Kind(), outcome)
	// Record counts come from parsing the export report in the final text;
	// until the EZMERGE ingest lands this stays zero.
	result["records_synced"] = 0
	return result
}
