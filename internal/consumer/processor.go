// Package consumer drains the lead notification queue.
//
// Every delivered message ends in exactly one Outcome. Ack removes it from
// the queue; Retry hands it back to the transport, whose own backoff and
// redelivery limit apply.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"leadgen-agent/internal/domain"
	"leadgen-agent/internal/logging"
	"leadgen-agent/internal/notify"
)

const defaultConcurrency = 4

type Outcome int

const (
	Ack Outcome = iota
	Retry
)

func (o Outcome) String() string {
	if o == Ack {
		return "ack"
	}
	return "retry"
}

// Message is one queue delivery.
type Message struct {
	ID        string
	Timestamp time.Time
	Body      []byte
}

type Result struct {
	ID      string
	Outcome Outcome
	Err     error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, p domain.Payload) (notify.Report, error)
}

type Recorder interface {
	Record(ctx context.Context, p domain.Payload)
}

type BackgroundRunner interface {
	Go(ctx context.Context, name string, fn func(context.Context) error)
}

type Processor struct {
	dispatcher  Dispatcher
	recorder    Recorder
	runner      BackgroundRunner
	concurrency int
	log         *slog.Logger
}

type Option func(*Processor)

// WithAnalytics records one analytics event per acknowledged message on runner.
func WithAnalytics(r Recorder, runner BackgroundRunner) Option {
	return func(p *Processor) {
		p.recorder = r
		p.runner = runner
	}
}

func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.log = l }
}

func NewProcessor(d Dispatcher, opts ...Option) (*Processor, error) {
	if d == nil {
		return nil, errors.New("consumer: dispatcher must not be nil")
	}
	p := &Processor{dispatcher: d, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(p)
	}
	if p.recorder != nil && p.runner == nil {
		return nil, errors.New("consumer: analytics requires a background runner")
	}
	p.log = logging.OrDefault(p.log)
	return p, nil
}

// Process handles a batch. Messages run concurrently and independently;
// results are returned in input order, one per message.
func (p *Processor) Process(ctx context.Context, msgs []Message) []Result {
	results := make([]Result, len(msgs))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, m := range msgs {
		g.Go(func() error {
			results[i] = p.processOne(ctx, m)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Processor) processOne(ctx context.Context, m Message) (res Result) {
	log := logging.FromContext(ctx, p.log).With("message_id", m.ID)
	if !m.Timestamp.IsZero() {
		log = log.With("enqueued_at", m.Timestamp)
	}
	res = Result{ID: m.ID, Outcome: Retry}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("message processing panicked", "panic", rec, "stack", string(debug.Stack()))
			res = Result{ID: m.ID, Outcome: Retry, Err: fmt.Errorf("consumer: panic: %v", rec)}
		}
	}()

	payload, err := domain.DecodePayload(m.Body)
	if err != nil {
		log.Warn("malformed queue message", "err", err)
		res.Err = err
		return res
	}
	log = log.With("kind", payload.Kind())

	if _, err := p.dispatcher.Dispatch(ctx, payload); err != nil {
		log.Warn("notification dispatch failed before any channel call", "err", err)
		res.Err = err
		return res
	}

	if p.recorder != nil {
		p.runner.Go(ctx, "record_analytics", func(ctx context.Context) error {
			p.recorder.Record(ctx, payload)
			return nil
		})
	}
	return Result{ID: m.ID, Outcome: Ack}
}
