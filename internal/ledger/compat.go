package ledger

import "strings"

// FailureFromMessage derives a FailureKind from free-form oracle error text.
// Older gateways only report failures as strings; this is the single place
// that interprets them. Matching is case-insensitive and ordered.
func FailureFromMessage(msg string) FailureKind {
	if msg == "" {
		return FailureNone
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "hash does not match"):
		return FailureHashMismatch
	case strings.Contains(lower, "no transaction hash"):
		return FailureNotAnchored
	default:
		return FailureOther
	}
}
