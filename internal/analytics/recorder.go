// Package analytics records one business event per queued lead payload.
// Recording is observational: sink errors and panics are logged and dropped.
package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"leadgen-agent/internal/domain"
	"leadgen-agent/internal/logging"
)

const (
	EventHighValueChat   = "high_value_chat_detected"
	EventPhoneCall       = "phone_call_conversion"
	EventFormSubmission  = "form_submission"
	categoryLeadGen      = "lead_generation"
	categoryConversion   = "conversion"
	weightHighValueChat  = 50
	weightPhoneCall      = 100
	weightFormSubmission = 75
)

// Event is a single analytics record.
type Event struct {
	Name     string
	Category string
	Label    string
	Value    float64
	Params   map[string]string
}

type Sink interface {
	Track(ctx context.Context, e Event) error
}

type Recorder struct {
	sink Sink
	log  *slog.Logger
}

// NewRecorder returns a Recorder. A nil sink makes Record a no-op.
func NewRecorder(sink Sink, log *slog.Logger) *Recorder {
	return &Recorder{sink: sink, log: logging.OrDefault(log)}
}

// EventFor maps a payload to its business event.
func EventFor(p domain.Payload) (Event, bool) {
	switch v := p.(type) {
	case domain.HighValueChatLead:
		return Event{
			Name:     EventHighValueChat,
			Category: categoryLeadGen,
			Label:    v.Page,
			Value:    weightHighValueChat,
			Params:   map[string]string{"page": v.Page},
		}, true
	case domain.CallConversion:
		return Event{
			Name:     EventPhoneCall,
			Category: categoryConversion,
			Label:    v.Page,
			Value:    weightPhoneCall,
			Params:   map[string]string{"page": v.Page},
		}, true
	case domain.EstimateRequest:
		return Event{
			Name:     EventFormSubmission,
			Category: categoryConversion,
			Label:    v.Service,
			Value:    weightFormSubmission,
			Params:   map[string]string{"form": "estimate", "service": v.Service},
		}, true
	default:
		return Event{}, false
	}
}

// Record tracks the event for p. It never fails the caller.
func (r *Recorder) Record(ctx context.Context, p domain.Payload) {
	if r == nil || r.sink == nil || p == nil {
		return
	}
	log := logging.FromContext(ctx, r.log)
	e, ok := EventFor(p)
	if !ok {
		log.Warn("no analytics event for payload", "kind", p.Kind())
		return
	}
	if err := r.track(ctx, e); err != nil {
		log.Warn("analytics event not recorded", "event", e.Name, "err", err)
	}
}

func (r *Recorder) track(ctx context.Context, e Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("analytics: sink panic: %v", rec)
		}
	}()
	return r.sink.Track(ctx, e)
}
