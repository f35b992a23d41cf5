package usecase

import (
	"context"
	"errors"
	"sync"

	"leadgen-agent/internal/domain"
)

type fakeCompleter struct {
	reply    string
	err      error
	captured []domain.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, in domain.CompletionRequest) (string, error) {
	f.captured = append(f.captured, in)
	return f.reply, f.err
}

type memoryStore struct {
	sessions map[string][]domain.Turn
	getErr   error
	putErr   error
	puts     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: map[string][]domain.Turn{}}
}

func (m *memoryStore) GetHistory(_ context.Context, sessionID string) ([]domain.Turn, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.sessions[sessionID], nil
}

func (m *memoryStore) PutHistory(_ context.Context, sessionID string, turns []domain.Turn) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.sessions[sessionID] = turns
	return nil
}

type recordingQueue struct {
	mu       sync.Mutex
	payloads []domain.Payload
	err      error
}

func (q *recordingQueue) Enqueue(_ context.Context, p domain.Payload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, p)
	return q.err
}

func (q *recordingQueue) all() []domain.Payload {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Payload(nil), q.payloads...)
}

// inlineRunner runs tasks synchronously and records their errors.
type inlineRunner struct {
	names []string
	errs  []error
}

func (r *inlineRunner) Go(ctx context.Context, name string, fn func(context.Context) error) {
	r.names = append(r.names, name)
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		r.errs = append(r.errs, err)
	}
}

type fakeResolver struct {
	url string
	err error
}

func (f fakeResolver) Resolve(_ context.Context, ref string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.url != "" {
		return f.url, nil
	}
	return "https://cdn.example.com/" + ref, nil
}

type fakeLeadLog struct {
	leads []LeadRecord
	err   error
}

func (f *fakeLeadLog) Record(_ context.Context, lead LeadRecord) error {
	f.leads = append(f.leads, lead)
	return f.err
}

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return "upstream failed" }
func (e *statusErr) HTTPStatusCode() int { return e.code }

var errBoom = errors.New("boom")
