// Package leadlog keeps a durable Postgres log of submitted estimate requests.
package leadlog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadgen-agent/internal/usecase"
)

//go:embed schema.sql
var schemaSQL string

const insertLead = `
	INSERT INTO estimate_leads (id, name, email, phone, service, message, page, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Store struct {
	db execer
}

func New(db execer) (*Store, error) {
	if db == nil {
		return nil, errors.New("leadlog: database must not be nil")
	}
	return &Store{db: db}, nil
}

// NewPool opens a small pool sized for a Lambda or single-instance server.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, errors.New("leadlog: database url must not be empty")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("leadlog: parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("leadlog: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("leadlog: ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the estimate_leads table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("leadlog: ensure schema: %w", err)
	}
	return nil
}

// Record inserts one lead. Redelivered ids are ignored.
func (s *Store) Record(ctx context.Context, lead usecase.LeadRecord) error {
	id, err := uuid.Parse(lead.ID)
	if err != nil {
		return fmt.Errorf("leadlog: invalid lead id %q: %w", lead.ID, err)
	}
	createdAt := lead.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.Exec(ctx, insertLead,
		id, lead.Name, lead.Email, lead.Phone, lead.Service, lead.Message, lead.Page, createdAt,
	)
	if err != nil {
		return fmt.Errorf("leadlog: insert lead: %w", err)
	}
	return nil
}
