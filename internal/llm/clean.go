package llm

import "strings"

// cleanModelJSON strips the wrappers models add despite instructions:
// Markdown fences, prose before or after the array. The result should start
// at the first '[' and end at the last ']'.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			// Single-line weirdness; just return as-is.
			return s
		}
		s = strings.TrimSpace(s)
	}

	// Remove trailing ``` if present.
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: if there's still junk around the JSON array,
	// try to keep only from the first '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = s[start : end+1]
			s = strings.TrimSpace(s)
		}
	}

	return s
}

// repairTruncatedArray recovers the complete objects from an array the
// model cut off mid-element after hitting its output token limit: the text
// is cut at the last complete object and the array is closed. Without a
// single complete object the input comes back unchanged and fails decoding
// downstream.
func repairTruncatedArray(s string) string {
	if idx := strings.LastIndex(s, "},"); idx != -1 {
		return s[:idx+1] + "]"
	}
	return s
}
