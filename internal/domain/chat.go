package domain

import (
	"encoding/json"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentPart is one element of a composite (text + image) message body.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// ChatMessage is the provider-agnostic chat message shape used by the
// orchestrator and completion integrations. When Parts is non-empty the
// message is sent as a composite body and Content is ignored.
type ChatMessage struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// TextAndImage builds a composite user message carrying text and an image URL.
func TextAndImage(role, text, imageURL string) ChatMessage {
	return ChatMessage{
		Role: role,
		Parts: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		},
	}
}

// CompletionRequest is the input of one chat-completion call.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

type wireChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if len(m.Parts) > 0 {
		content, err = json.Marshal(m.Parts)
	} else {
		content, err = json.Marshal(m.Content)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireChatMessage{Role: m.Role, Content: content})
}

// UnmarshalJSON accepts string content only; provider responses carrying
// any other content shape are rejected as protocol errors.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var w wireChatMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var content string
	if len(w.Content) > 0 && string(w.Content) != "null" {
		if err := json.Unmarshal(w.Content, &content); err != nil {
			return errors.New("domain: chat message content is not a string")
		}
	}
	m.Role = w.Role
	m.Content = content
	m.Parts = nil
	return nil
}
