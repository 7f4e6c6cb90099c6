package llm

import "strings"

// ExtractJSON returns the best-effort JSON payload of a model response.
// Models often wrap JSON in prose or code fences; the substring from the
// first '{' to the last '}' is the payload in those cases. When no such
// substring exists the whole response is returned for the caller's decoder
// to reject.
func ExtractJSON(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}
