package domain

// Turn is one entry of a session's persisted history.
type Turn struct {
	Role     string
	Content  string
	ImageRef string
}

// UserTurn and AssistantTurn build the two turns appended per successful chat call.
func UserTurn(content, imageRef string) Turn {
	return Turn{Role: RoleUser, Content: content, ImageRef: imageRef}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// AppendExchange returns a new slice holding history followed by the user and
// assistant turns. The input slice is never mutated.
func AppendExchange(history []Turn, user, assistant Turn) []Turn {
	out := make([]Turn, 0, len(history)+2)
	out = append(out, history...)
	return append(out, user, assistant)
}
