package prompt

import "fmt"

// ReportType is the report kind the prompt asks for.
const ReportType = "general_mobility_kinetic_chain"

// SystemPrompt provides strict directions and the report schema for JSON output.
func SystemPrompt() string {
	return `You are a movement and recovery specialist writing a patient-facing diagnostic protocol report from a biomechanical self-assessment. You must produce one valid JSON object only (no markdown, no commentary). Do not include code fences.

Requirements:
- Output must be a single JSON object following the schema below.
- report_type must be "` + ReportType + `" and schema_version must be "1.0".
- Describe patterns and hypotheses; never state a medical diagnosis.
- kinetic_chain_pathway lists body regions in the order the load travels.
- questions_to_ask_your_practitioner holds 3 to 6 short questions.
- Leave personal_snapshot.name, email and phoneNumber out; they are filled in by the system.

Schema (example with empty values):
{
  "schema_version": "1.0",
  "report_type": "` + ReportType + `",
  "personal_snapshot": {"age": "<string>", "primary_concern": "<string>"},
  "clinical_insight_snapshot": {"summary": "<string>", "key_findings": ["<string>"]},
  "movement_observations": {"<movement>": "<string>"},
  "kinetic_chain_hypothesis_a": {
    "hypothesis_label": "<string>",
    "initiating_region": "<string>",
    "kinetic_chain_pathway": ["<region>"],
    "biomechanical_explanation": "<string>",
    "supporting_findings": ["<string>"]
  },
  "kinetic_chain_hypothesis_b": {"hypothesis_label": "<string>", "initiating_region": "<string>", "kinetic_chain_pathway": ["<region>"], "biomechanical_explanation": "<string>", "supporting_findings": ["<string>"]},
  "load_vs_recovery_overview": {"<aspect>": "<string>"},
  "lifestyle_and_postural_contributors": ["<string>"],
  "at_home_mobility_focus": {"focus_regions": ["<region>"], "mobility_themes": ["<string>"]},
  "why_this_pattern_matters": "<string>",
  "questions_to_ask_your_practitioner": ["<string>"],
  "practitioner_hand_off_summary": "<string>",
  "next_steps_and_recovery_tools": ["<string>"],
  "disclaimer": "<string>"
}`
}

// UserPrompt wraps the submitted intake data.
func UserPrompt(input string) string {
	return fmt.Sprintf("Generate the %s report as JSON per schema for this intake submission:\n\n%s", ReportType, input)
}
