package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	"github.com/tcp_snm/slotpager/internal/service/browse_service"
	"github.com/tcp_snm/slotpager/internal/service/pagination_service"
	"github.com/tcp_snm/slotpager/internal/service/transport_service"
)

// pgTables maps the upstream resource paths onto judge tables when slots
// are read straight from postgres.
var pgTables = map[string]transport_service.PGTable{
	browse_service.DefaultResources[browse_service.ResourceContest]: {
		Name:       "contests",
		IDColumn:   "id",
		Columns:    []string{"id", "title", "start_time", "end_time", "group_id"},
		Filters:    map[string]string{"groupId": "group_id"},
		CountTotal: true,
	},
	browse_service.DefaultResources[browse_service.ResourceProblem]: {
		Name:       "problems",
		IDColumn:   "id",
		Columns:    []string{"id", "title", "difficulty", "contest_id"},
		Filters:    map[string]string{"contestId": "contest_id"},
		CountTotal: true,
	},
	browse_service.DefaultResources[browse_service.ResourceSubmission]: {
		Name:     "submissions",
		IDColumn: "id",
		Columns:  []string{"id", "problem_id", "user_name", "language", "verdict", "created_at"},
		Filters: map[string]string{
			"problemId": "problem_id",
			"userName":  "user_name",
		},
	},
	browse_service.DefaultResources[browse_service.ResourceNotice]: {
		Name:     "notices",
		IDColumn: "id",
		Columns:  []string{"id", "title", "body", "created_at"},
	},
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Warnf("invalid %s %q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func defaultConfig() pagination_service.Config {
	return pagination_service.Config{
		ItemsPerPage: envInt("ITEMS_PER_PAGE", pagination_service.DefaultItemsPerPage),
		PagesPerSlot: envInt("PAGES_PER_SLOT", pagination_service.DefaultPagesPerSlot),
	}
}

func initDatabase(ctx context.Context, dbURL string) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		panic(err)
	}
	return pool
}

// initTransport reads slots from postgres when DB_URL is set and from the
// upstream api otherwise. The returned func releases what the transport holds.
func initTransport(ctx context.Context, forwardAuth bool) (
	pagination_service.Transport[pagination_service.Record],
	func(),
) {
	if dbURL := os.Getenv("DB_URL"); dbURL != "" {
		log.Info("reading slots from postgres")
		pool := initDatabase(ctx, dbURL)
		transport, err := transport_service.NewPGTransport[pagination_service.Record](pool, pgTables)
		if err != nil {
			panic(err)
		}
		return transport, pool.Close
	}

	upstream := os.Getenv("UPSTREAM_URL")
	if upstream == "" {
		panic("neither DB_URL nor UPSTREAM_URL found in environment")
	}
	log.Infof("reading slots from %s", upstream)
	transport, err := transport_service.NewHTTPTransport[pagination_service.Record](
		upstream,
		transport_service.HTTPOptions{
			Timeout:     time.Duration(envInt("UPSTREAM_TIMEOUT_SECONDS", 10)) * time.Second,
			Token:       os.Getenv("UPSTREAM_TOKEN"),
			ForwardAuth: forwardAuth,
		},
	)
	if err != nil {
		panic(err)
	}
	return transport, func() {}
}
