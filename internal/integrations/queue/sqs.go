// Package queue publishes lead notification payloads to the durable queue:
// SQS when running on Lambda, asynq over Redis in server mode.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"leadgen-agent/internal/domain"
)

const kindAttribute = "kind"

// sqsAPI is the minimal SQS interface used by SQSProducer.
// *sqs.Client from aws-sdk-go-v2 satisfies this interface.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSProducer struct {
	api      sqsAPI
	queueURL string
}

func NewSQSProducer(api sqsAPI, queueURL string) (*SQSProducer, error) {
	if api == nil {
		return nil, errors.New("queue: sqs api must not be nil")
	}
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, errors.New("queue: queue url must not be empty")
	}
	return &SQSProducer{api: api, queueURL: queueURL}, nil
}

func (p *SQSProducer) Enqueue(ctx context.Context, payload domain.Payload) error {
	body, err := domain.EncodePayload(payload)
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	_, err = p.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			kindAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(payload.Kind())),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("queue: send %s: %w", payload.Kind(), err)
	}
	return nil
}
