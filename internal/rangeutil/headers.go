package rangeutil

import "strings"

// ParseHeaderArgs turns "Key: Value" CLI strings into a header map.
func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string, len(headers))
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key != "" {
			result[key] = value
		}
	}
	return result
}
