package usecase

import "strings"

// chatLeadKeywords gate the high_value_chat_lead notification. This list is
// tuned independently of notify's estimate priority keywords; keep them apart.
var chatLeadKeywords = []string{
	// commercial context
	"commercial", "business", "office", "retail", "restaurant", "warehouse",
	"property manager", "property management", "hoa", "apartment", "condo",
	"church", "school",
	// whole property
	"whole house", "entire house", "whole home", "entire home", "full house", "every room",
	// exterior / siding
	"exterior", "siding", "stucco", "trim", "deck", "fence",
	// pricing / estimate
	"quote", "estimate", "price", "pricing", "cost", "how much",
	// scheduling
	"schedule", "appointment", "availability", "available", "book", "start date",
	// budget / timeline
	"budget", "timeline", "deadline", "asap", "urgent", "this week", "next week",
}

// QualificationResult is the chat-turn qualifier outcome plus the evidence.
type QualificationResult struct {
	HighValue bool
	Matched   []string
}

// QualifyChatLead reports whether the user's message contains any chat-lead
// keyword (case-insensitive substring match). The reply is accepted for the
// call contract but never matched: the assistant is prompted to steer every
// visitor toward an estimate, so its wording carries no buying signal.
func QualifyChatLead(userMessage, _ string) QualificationResult {
	text := strings.ToLower(userMessage)
	var matched []string
	for _, kw := range chatLeadKeywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return QualificationResult{HighValue: len(matched) > 0, Matched: matched}
}
