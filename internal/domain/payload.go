package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PayloadKind tags the notification payload union on the wire ("type" field).
type PayloadKind string

const (
	KindEstimateRequest   PayloadKind = "estimate_request"
	KindHighValueChatLead PayloadKind = "high_value_chat_lead"
	KindCallConversion    PayloadKind = "call_conversion"
)

// ErrMalformedPayload marks a queue body that cannot be decoded or validated.
var ErrMalformedPayload = errors.New("domain: malformed notification payload")

// Payload is an immutable notification event produced once per triggering
// event and consumed from the queue.
type Payload interface {
	Kind() PayloadKind
	OccurredAt() time.Time
}

type EstimateRequest struct {
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Service   string    `json:"service"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (EstimateRequest) Kind() PayloadKind       { return KindEstimateRequest }
func (p EstimateRequest) OccurredAt() time.Time { return p.Timestamp }

type HighValueChatLead struct {
	Message   string    `json:"message"`
	Reply     string    `json:"reply"`
	Page      string    `json:"page"`
	Timestamp time.Time `json:"timestamp"`
}

func (HighValueChatLead) Kind() PayloadKind       { return KindHighValueChatLead }
func (p HighValueChatLead) OccurredAt() time.Time { return p.Timestamp }

type CallConversion struct {
	Page      string    `json:"page"`
	Timestamp time.Time `json:"timestamp"`
}

func (CallConversion) Kind() PayloadKind       { return KindCallConversion }
func (p CallConversion) OccurredAt() time.Time { return p.Timestamp }

type envelope struct {
	Type PayloadKind `json:"type"`
}

// EncodePayload renders a payload as a flat JSON object tagged with "type".
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, errors.New("domain: payload must not be nil")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("domain: marshal payload: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("domain: marshal payload: %w", err)
	}
	kind, _ := json.Marshal(p.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}

// DecodePayload parses a queue body. Any failure wraps ErrMalformedPayload.
func DecodePayload(body []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	switch env.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedPayload)
	case KindEstimateRequest:
		var p EstimateRequest
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Email) == "" {
			return nil, fmt.Errorf("%w: estimate_request requires name and email", ErrMalformedPayload)
		}
		return p, nil
	case KindHighValueChatLead:
		var p HighValueChatLead
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if strings.TrimSpace(p.Message) == "" {
			return nil, fmt.Errorf("%w: high_value_chat_lead requires message", ErrMalformedPayload)
		}
		return p, nil
	case KindCallConversion:
		var p CallConversion
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedPayload, env.Type)
	}
}
