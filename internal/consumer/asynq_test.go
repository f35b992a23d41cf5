package consumer

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"leadgen-agent/internal/domain"
	"leadgen-agent/internal/integrations/queue"
	"leadgen-agent/internal/notify"
)

func TestAsynqHandler_AckAndRetry(t *testing.T) {
	mail := &countingEmail{ok: true}
	proc, err := NewProcessor(notify.NewDispatcher(recipients, notify.WithEmail(mail)))
	require.NoError(t, err)
	h, err := NewAsynqHandler(proc)
	require.NoError(t, err)

	good := asynq.NewTask(queue.TaskLeadNotification, mustEncode(t, domain.CallConversion{Page: "/"}))
	require.NoError(t, h.ProcessTask(context.Background(), good))
	require.Equal(t, 1, mail.count())

	bad := asynq.NewTask(queue.TaskLeadNotification, []byte(`{"type":"mystery"}`))
	err = h.ProcessTask(context.Background(), bad)
	require.ErrorIs(t, err, domain.ErrMalformedPayload)
	require.Equal(t, 1, mail.count())
}

func TestNewAsynqHandler_RequiresProcessor(t *testing.T) {
	_, err := NewAsynqHandler(nil)
	require.Error(t, err)
}
