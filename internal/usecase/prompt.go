package usecase

import (
	"fmt"
	"strings"

	"leadgen-agent/internal/domain"
)

// BusinessProfile feeds the fixed system prompt.
type BusinessProfile struct {
	Name        string
	Phone       string
	ServiceArea string
}

func buildPromptMessages(profile BusinessProfile, history []domain.Turn, user domain.ChatMessage) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: buildSystemPrompt(profile)})
	for _, t := range history {
		if m, ok := historyToPromptMessage(t); ok {
			messages = append(messages, m)
		}
	}
	return append(messages, user)
}

// historyToPromptMessage replays a stored turn as plain text. Images from
// earlier turns are not re-sent; only the current turn may carry one.
func historyToPromptMessage(t domain.Turn) (domain.ChatMessage, bool) {
	content := strings.TrimSpace(t.Content)
	if content == "" {
		return domain.ChatMessage{}, false
	}
	switch t.Role {
	case domain.RoleUser, domain.RoleAssistant:
		return domain.ChatMessage{Role: t.Role, Content: content}, true
	default:
		return domain.ChatMessage{}, false
	}
}

func buildSystemPrompt(p BusinessProfile) string {
	return strings.Join([]string{
		"Role:",
		fmt.Sprintf("You are the friendly virtual assistant for %s, a residential and commercial painting contractor serving %s.", orDefault(p.Name, "our company"), orDefault(p.ServiceArea, "the local area")),
		"",
		"Domain Knowledge:",
		domainKnowledge(),
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Contact:",
		contactInstruction(p.Phone),
	}, "\n")
}

func domainKnowledge() string {
	return strings.Join([]string{
		"- Services: interior painting, exterior painting, cabinet refinishing, deck and fence staining, drywall repair, commercial repaints.",
		"- Typical prep: surface cleaning, scraping, patching, caulking, priming where needed, and protecting floors and furniture.",
		"- Exterior work depends on weather; most projects are scheduled one to three weeks out.",
		"- Estimates are free and are given after a short on-site or photo review.",
		"- If the visitor shares a photo, describe what you see and what preparation it likely needs.",
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer only the visitor's current question; keep replies under 120 words.",
		"2) Never quote a firm price. Give ranges only when asked, and say a free estimate confirms the number.",
		"3) Stay on painting and home-improvement topics; politely decline anything else.",
		"4) Do not invent availability, warranties or licenses.",
	}, "\n")
}

func contactInstruction(phone string) string {
	if strings.TrimSpace(phone) == "" {
		return "When the visitor shows interest, invite them to request a free estimate with the form on this page."
	}
	return fmt.Sprintf("When the visitor shows interest, invite them to request a free estimate with the form on this page or to call %s.", strings.TrimSpace(phone))
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
