package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/licitia/atesta/internal/models"
)

// parseRows extracts the JSON row array from a model response. Models
// wrap their output in markdown fences, prose or a containing object
// often enough that all three are tolerated.
func parseRows(s string) ([]models.VisionRow, error) {
	s = stripFences(s)

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start >= 0 && end > start {
		var rows []models.VisionRow
		if err := json.Unmarshal([]byte(s[start:end+1]), &rows); err == nil {
			return rows, nil
		}
	}

	var wrapper struct {
		Rows   []models.VisionRow `json:"rows"`
		Linhas []models.VisionRow `json:"linhas"`
	}
	if err := json.Unmarshal([]byte(s), &wrapper); err == nil {
		if len(wrapper.Rows) > 0 {
			return wrapper.Rows, nil
		}
		if len(wrapper.Linhas) > 0 {
			return wrapper.Linhas, nil
		}
	}

	return nil, fmt.Errorf("no parsable JSON rows in response")
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
