package queue

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"leadgen-agent/internal/domain"
)

// TaskLeadNotification is the asynq task type carrying an encoded payload.
const TaskLeadNotification = "lead:notification"

const (
	DefaultQueueName = "notifications"
	defaultMaxRetry  = 8
	defaultTimeout   = 2 * time.Minute
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type AsynqProducer struct {
	client taskEnqueuer
	queue  string
}

func NewAsynqProducer(client taskEnqueuer, queueName string) (*AsynqProducer, error) {
	if client == nil {
		return nil, errors.New("queue: asynq client must not be nil")
	}
	queueName = strings.TrimSpace(queueName)
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &AsynqProducer{client: client, queue: queueName}, nil
}

func (p *AsynqProducer) Enqueue(ctx context.Context, payload domain.Payload) error {
	body, err := domain.EncodePayload(payload)
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	task := asynq.NewTask(TaskLeadNotification, body)
	if _, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queue),
		asynq.MaxRetry(defaultMaxRetry),
		asynq.Timeout(defaultTimeout),
	); err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", payload.Kind(), err)
	}
	return nil
}

// RedisClientOpt converts a redis:// or rediss:// URL into asynq connection options.
func RedisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("queue: parse redis url: %w", err)
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
