package memegen

import "strings"

// ParseFields reads "key: value" lines into a map. Lines are split on the first
// ": "; keys and values are trimmed and lines without the separator are ignored.
// A later duplicate key wins.
func ParseFields(text string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields
}
