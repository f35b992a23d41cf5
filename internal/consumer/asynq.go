package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// AsynqHandler treats each asynq task as a batch of one. Retry becomes a
// returned error so asynq applies its own retry policy.
type AsynqHandler struct {
	proc *Processor
}

func NewAsynqHandler(proc *Processor) (*AsynqHandler, error) {
	if proc == nil {
		return nil, errors.New("consumer: processor must not be nil")
	}
	return &AsynqHandler{proc: proc}, nil
}

func (h *AsynqHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	id, _ := asynq.GetTaskID(ctx)
	res := h.proc.Process(ctx, []Message{{ID: id, Body: t.Payload()}})[0]
	if res.Outcome == Ack {
		return nil
	}
	if res.Err == nil {
		return fmt.Errorf("consumer: task %s marked for retry", id)
	}
	return fmt.Errorf("consumer: task %s: %w", id, res.Err)
}
