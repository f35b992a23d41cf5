package notify

import (
	"strings"

	"leadgen-agent/internal/domain"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// estimatePriorityKeywords decide whether an estimate request pages the
// owner by SMS. Tuned separately from the chat qualifier in usecase.
var estimatePriorityKeywords = []string{
	"commercial", "business", "office", "retail", "restaurant", "warehouse",
	"industrial", "property management", "multi-family", "apartment", "hoa",
	"whole house", "entire house", "exterior", "cabinet", "new construction",
	"urgent", "asap",
}

// PriorityFor classifies a payload. Chat leads are always high, call
// conversions never are, and estimates are high only on a keyword match.
func PriorityFor(p domain.Payload) Priority {
	switch v := p.(type) {
	case domain.HighValueChatLead:
		return PriorityHigh
	case domain.EstimateRequest:
		if IsHighValueEstimate(v.Service, v.Message) {
			return PriorityHigh
		}
		return PriorityNormal
	default:
		return PriorityNormal
	}
}

// IsHighValueEstimate matches service and message, case-insensitive, against
// the estimate priority keywords.
func IsHighValueEstimate(service, message string) bool {
	text := strings.ToLower(service + " " + message)
	for _, kw := range estimatePriorityKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
