package consumer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"leadgen-agent/internal/logging"
)

// SQSHandler adapts Processor to a Lambda SQS trigger with
// ReportBatchItemFailures enabled: only Retry messages are reported.
type SQSHandler struct {
	proc  *Processor
	drain func(context.Context) error
	log   *slog.Logger
}

// NewSQSHandler returns a handler. drain, when set, runs before the
// invocation returns so background analytics finish while the sandbox is live.
func NewSQSHandler(proc *Processor, drain func(context.Context) error, log *slog.Logger) (*SQSHandler, error) {
	if proc == nil {
		return nil, errors.New("consumer: processor must not be nil")
	}
	return &SQSHandler{proc: proc, drain: drain, log: logging.OrDefault(log)}, nil
}

func (h *SQSHandler) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	msgs := make([]Message, 0, len(ev.Records))
	for _, r := range ev.Records {
		msgs = append(msgs, Message{
			ID:        r.MessageId,
			Timestamp: sentTimestamp(r.Attributes),
			Body:      []byte(r.Body),
		})
	}

	results := h.proc.Process(ctx, msgs)

	resp := events.SQSEventResponse{}
	for _, res := range results {
		if res.Outcome == Retry {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: res.ID})
		}
	}

	if h.drain != nil {
		if err := h.drain(ctx); err != nil {
			h.log.Warn("background tasks still running at invocation end", "err", err)
		}
	}

	h.log.Info("queue batch processed", "received", len(msgs), "retry", len(resp.BatchItemFailures))
	return resp, nil
}

func sentTimestamp(attrs map[string]string) time.Time {
	ms, err := strconv.ParseInt(attrs["SentTimestamp"], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
