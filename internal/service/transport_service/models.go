package transport_service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	defaultHTTPTimeout  = 10 * time.Second
	defaultBreakerLimit = 3
	tracerName          = "github.com/tcp_snm/slotpager/transport"
)

type HTTPOptions struct {
	// Name identifies the upstream in logs, metrics and the circuit breaker.
	Name    string
	Timeout time.Duration
	// Token is sent as a bearer token unless the request context carries
	// the caller's own token and ForwardAuth is set.
	Token       string
	ForwardAuth bool
	// consecutive failures before the breaker opens
	BreakerLimit uint32
	// how long the breaker stays open
	BreakerTimeout time.Duration
}

// upstream response body. "data" is what the judge api sends, "items" is
// accepted from other services.
type wireDataSet[T any] struct {
	Data  []T  `json:"data"`
	Items []T  `json:"items"`
	Total *int `json:"total"`
}

// Querier is the part of pgxpool.Pool the postgres transport needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGTable describes how a resource path maps onto a table.
type PGTable struct {
	Name     string   `json:"name" validate:"required"`
	IDColumn string   `json:"id_column" validate:"required"`
	Columns  []string `json:"columns" validate:"required,min=1"`
	// query parameter -> column, compared for equality
	Filters    map[string]string `json:"filters"`
	CountTotal bool              `json:"count_total"`
}
