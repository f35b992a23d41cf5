package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"leadgen-agent/internal/analytics"
	"leadgen-agent/internal/async"
	"leadgen-agent/internal/domain"
	"leadgen-agent/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingSMS struct {
	mu    sync.Mutex
	ok    bool
	calls int
}

func (s *countingSMS) SendSMS(context.Context, notify.SMSMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.ok
}

func (s *countingSMS) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type countingEmail struct {
	mu    sync.Mutex
	ok    bool
	calls int
}

func (e *countingEmail) SendEmail(context.Context, notify.EmailMessage) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.ok
}

func (e *countingEmail) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type failingAnalytics struct {
	mu    sync.Mutex
	calls int
	panic bool
}

func (f *failingAnalytics) Track(context.Context, analytics.Event) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panic {
		panic("analytics exploded")
	}
	return errors.New("analytics: status 500")
}

type erroringDispatcher struct{}

func (erroringDispatcher) Dispatch(context.Context, domain.Payload) (notify.Report, error) {
	return notify.Report{}, errors.New("notify: render failed")
}

type panickingDispatcher struct{}

func (panickingDispatcher) Dispatch(context.Context, domain.Payload) (notify.Report, error) {
	panic("boom")
}

var recipients = notify.Recipients{SMSFrom: "+15550000000", SMSTo: "+15551111111", EmailFrom: "a@example.com", EmailTo: "b@example.com"}

func mustEncode(t *testing.T, p domain.Payload) []byte {
	t.Helper()
	b, err := domain.EncodePayload(p)
	require.NoError(t, err)
	return b
}

func TestProcess_MissingTypeRetriesWithoutCallingSinks(t *testing.T) {
	sms := &countingSMS{ok: true}
	mail := &countingEmail{ok: true}
	proc, err := NewProcessor(notify.NewDispatcher(recipients, notify.WithSMS(sms), notify.WithEmail(mail)))
	require.NoError(t, err)

	results := proc.Process(context.Background(), []Message{{ID: "m1", Body: []byte(`{"message":"commercial job","page":"/"}`)}})
	require.Len(t, results, 1)
	require.Equal(t, Retry, results[0].Outcome)
	require.ErrorIs(t, results[0].Err, domain.ErrMalformedPayload)
	require.Zero(t, sms.count())
	require.Zero(t, mail.count())
}

func TestProcess_FailingSMSStillAcks(t *testing.T) {
	sms := &countingSMS{ok: false}
	mail := &countingEmail{ok: true}
	proc, err := NewProcessor(notify.NewDispatcher(recipients, notify.WithSMS(sms), notify.WithEmail(mail)))
	require.NoError(t, err)

	results := proc.Process(context.Background(), []Message{
		{ID: "m1", Body: mustEncode(t, domain.HighValueChatLead{Message: "need an exterior quote", Page: "/"})},
	})
	require.Equal(t, []Result{{ID: "m1", Outcome: Ack}}, results)
	require.Equal(t, 1, sms.count())
	require.Equal(t, 1, mail.count())
}

func TestProcess_AnalyticsFailureNeverRetries(t *testing.T) {
	for _, panics := range []bool{false, true} {
		t.Run(fmt.Sprintf("panic=%v", panics), func(t *testing.T) {
			sink := &failingAnalytics{panic: panics}
			runner := async.NewRunner(nil, 0)
			proc, err := NewProcessor(
				notify.NewDispatcher(recipients, notify.WithEmail(&countingEmail{ok: true})),
				WithAnalytics(analytics.NewRecorder(sink, nil), runner),
			)
			require.NoError(t, err)

			results := proc.Process(context.Background(), []Message{
				{ID: "m1", Body: mustEncode(t, domain.CallConversion{Page: "/contact"})},
				{ID: "m2", Body: mustEncode(t, domain.EstimateRequest{Name: "n", Email: "e@example.com", Service: "Interior"})},
			})
			require.NoError(t, runner.Wait(context.Background()))
			require.Equal(t, []Result{{ID: "m1", Outcome: Ack}, {ID: "m2", Outcome: Ack}}, results)
			require.Equal(t, 2, sink.calls)
		})
	}
}

func TestProcess_MixedBatchKeepsInputOrder(t *testing.T) {
	proc, err := NewProcessor(notify.NewDispatcher(recipients, notify.WithEmail(&countingEmail{ok: true})), WithConcurrency(2))
	require.NoError(t, err)

	var msgs []Message
	for i := 0; i < 10; i++ {
		body := mustEncode(t, domain.CallConversion{Page: fmt.Sprintf("/p%d", i)})
		if i%3 == 0 {
			body = []byte(`not json`)
		}
		msgs = append(msgs, Message{ID: fmt.Sprintf("m%d", i), Body: body})
	}

	results := proc.Process(context.Background(), msgs)
	require.Len(t, results, 10)
	for i, res := range results {
		require.Equal(t, fmt.Sprintf("m%d", i), res.ID)
		if i%3 == 0 {
			require.Equal(t, Retry, res.Outcome)
		} else {
			require.Equal(t, Ack, res.Outcome)
		}
	}
}

func TestProcess_DispatchErrorsAndPanicsRetry(t *testing.T) {
	body := mustEncode(t, domain.CallConversion{Page: "/"})

	proc, err := NewProcessor(erroringDispatcher{})
	require.NoError(t, err)
	res := proc.Process(context.Background(), []Message{{ID: "m1", Body: body}})
	require.Equal(t, Retry, res[0].Outcome)

	proc, err = NewProcessor(panickingDispatcher{})
	require.NoError(t, err)
	res = proc.Process(context.Background(), []Message{{ID: "m2", Body: body}})
	require.Equal(t, Retry, res[0].Outcome)
	require.ErrorContains(t, res[0].Err, "panic")
}

func TestNewProcessor_Validation(t *testing.T) {
	_, err := NewProcessor(nil)
	require.Error(t, err)
	_, err = NewProcessor(erroringDispatcher{}, WithAnalytics(analytics.NewRecorder(nil, nil), nil))
	require.Error(t, err)
}
