package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"leadgen-agent/internal/domain"
)

const (
	skHistory   = "HISTORY"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client stores one history snapshot per session in a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// GetHistory returns the persisted turns for a session in occurrence order.
// A session that was never written yields an empty history.
func (c *Client) GetHistory(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("repository: GetHistory: session id is required")
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skHistory},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return []domain.Turn{}, nil
	}

	turns, err := itemToTurns(out.Item)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory decode: %w", err)
	}
	return turns, nil
}

// PutHistory overwrites the session item with the full history snapshot.
func (c *Client) PutHistory(ctx context.Context, sessionID string, turns []domain.Turn) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: PutHistory: session id is required")
	}
	now := c.now().UTC()
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK":        &types.AttributeValueMemberS{Value: skHistory},
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
			"turns":     turnsAttr(turns),
			"turnCount": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", len(turns))},
			"updatedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(ttlDuration).Unix())},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutHistory: %w", err)
	}
	return nil
}

func turnsAttr(turns []domain.Turn) *types.AttributeValueMemberL {
	list := make([]types.AttributeValue, 0, len(turns))
	for _, t := range turns {
		m := map[string]types.AttributeValue{
			"role":    &types.AttributeValueMemberS{Value: t.Role},
			"content": &types.AttributeValueMemberS{Value: t.Content},
		}
		if t.ImageRef != "" {
			m["imageRef"] = &types.AttributeValueMemberS{Value: t.ImageRef}
		}
		list = append(list, &types.AttributeValueMemberM{Value: m})
	}
	return &types.AttributeValueMemberL{Value: list}
}

func itemToTurns(item map[string]types.AttributeValue) ([]domain.Turn, error) {
	raw, ok := item["turns"]
	if !ok {
		return []domain.Turn{}, nil
	}
	list, ok := raw.(*types.AttributeValueMemberL)
	if !ok {
		return nil, errors.New(`repository: attribute "turns" is not a list`)
	}

	turns := make([]domain.Turn, 0, len(list.Value))
	for i, v := range list.Value {
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("repository: turn %d is not a map", i)
		}
		role, err := strAttr(m.Value, "role")
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		content, err := strAttr(m.Value, "content")
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
		imageRef, _ := strAttr(m.Value, "imageRef") // optional
		turns = append(turns, domain.Turn{Role: role, Content: content, ImageRef: imageRef})
	}
	return turns, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
