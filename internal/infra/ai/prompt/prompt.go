package prompt

import "fmt"

// GetSystemPrompt provides strict directions and the response schema.
// The schema matches the one returned by the /predict service.
func GetSystemPrompt() string {
	return `You are a dermatology triage assistant. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- "prediction" is a short condition name, e.g. "Acne" or "Eczema".
- "severity" is one of: Mild, Moderate, Severe.
- "common_symptoms" lists typical symptoms; order is not important.
- "treatment_recommendations" lists steps in the order they should be followed.
- "disclaimer" states that this is not a medical diagnosis.
- If the image does not show skin, use "Unknown" as prediction and leave lists empty.

Schema (example with empty values):
{
  "prediction": "<string>",
  "severity": "<Mild|Moderate|Severe>",
  "about": "<string>",
  "common_symptoms": ["<string>"],
  "treatment_recommendations": ["<string>"],
  "disclaimer": "<string>"
}`
}

// GetUserPrompt is the text sent alongside the image.
func GetUserPrompt(imageBytes int) string {
	return fmt.Sprintf("Analyze the attached skin photo (%d bytes, JPEG) and respond with the JSON per schema.", imageBytes)
}
