package audit

import (
	"encoding/json"
	"fmt"
)

// formatValue renders non-string parameter values compactly. JSON for
// anything structured, fmt for scalars.
func formatValue(v any) string {
	switch v.(type) {
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
