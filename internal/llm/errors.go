package llm

import "strings"

// IsQuota reports whether err looks like a rate-limit or quota-exhaustion
// failure from the provider. These are surfaced to callers as a distinct
// terminal status so they can show wait-time guidance instead of a generic
// error. Matches the provider's HTTP 429 status and "quota" markers.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "429")
}
