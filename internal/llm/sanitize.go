package llm

import (
	"encoding/json"
	"strings"

	"github.com/factura-labs/invoice-pipeline/internal/entity"
)

// StripFences removes a surrounding markdown code fence from model output.
// Models occasionally wrap the JSON in ```json blocks despite being told
// not to.
func StripFences(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// CheckRequiredKeys verifies the response object carries every required
// top-level key (null values are fine). It returns the missing keys.
func CheckRequiredKeys(data []byte) ([]string, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	var missing []string
	for _, k := range entity.RequiredKeys {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}
