package ingest

import (
	"fmt"
	"strings"
)

const factSchema = `Focus on:
- pump_model: solar pump model name or number
- manufacturer
- error_codes: list of {code, description, troubleshooting_steps}
- maintenance_schedule: list of recurring tasks
- required_tools_parts: list of tools and spare parts
- typical_costs: object of part name to INR cost
- safety_precautions: list
- efficiency_tips: list
- gov_schemes: list of {name, eligibility, application_process, documents_required}
- category: short topic label for the page`

func extractionPrompt(topic, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert in %s.\n", topic)
	b.WriteString("Extract structured information from the text below.\n\n")
	b.WriteString(factSchema)
	b.WriteString("\n\nReturn a single JSON object. Omit fields that are not present in the text.\n\nText:\n")
	b.WriteString(text)
	return b.String()
}
