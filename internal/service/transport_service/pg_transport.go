package transport_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
	"github.com/tcp_snm/slotpager/internal/metrics"
	"github.com/tcp_snm/slotpager/internal/service"
	"github.com/tcp_snm/slotpager/internal/service/pagination_service"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	pgErrMsgs = map[string]string{
		flux_errors.CodeInvalidTextRepr: "cursor or filter value does not match the column type",
		flux_errors.CodeUndefinedColumn: "configured column does not exist",
		flux_errors.CodeUndefinedTable:  "configured table does not exist",
	}
)

// PGTransport reads slots straight from postgres using keyset pagination.
// The cursor row itself is never returned: a forward query reads the rows
// after it, a backward query the rows right before it, both in ascending
// id order.
type PGTransport[T pagination_service.Item] struct {
	DB     Querier
	Tables map[string]PGTable
	logger *logrus.Entry
}

func NewPGTransport[T pagination_service.Item](
	db Querier,
	tables map[string]PGTable,
) (*PGTransport[T], error) {
	if db == nil {
		return nil, fmt.Errorf("%w, pg transport expects non-nil db", flux_errors.ErrInvalidRequest)
	}
	for path, table := range tables {
		if err := service.ValidateInput(table); err != nil {
			return nil, fmt.Errorf("%w, table for %s", err, path)
		}
	}
	return &PGTransport[T]{
		DB:     db,
		Tables: tables,
		logger: logrus.WithField("from", "pg transport"),
	}, nil
}

func (p *PGTransport[T]) Fetch(
	ctx context.Context,
	path string,
	query pagination_service.Query,
) (pagination_service.DataSet[T], error) {
	table, ok := p.Tables[path]
	if !ok {
		return pagination_service.DataSet[T]{}, fmt.Errorf(
			"%w, no table is configured for %s",
			flux_errors.ErrNotFound,
			path,
		)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "PGTransport.Fetch")
	span.SetAttributes(
		attribute.String("db.table", table.Name),
		attribute.Int("slot.take", query.Take()),
	)
	defer span.End()

	data, err := p.fetch(ctx, table, query)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("postgres", metrics.StatusError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return pagination_service.DataSet[T]{}, err
	}
	metrics.UpstreamRequests.WithLabelValues("postgres", metrics.StatusOK).Inc()
	return data, nil
}

func (p *PGTransport[T]) fetch(
	ctx context.Context,
	table PGTable,
	query pagination_service.Query,
) (pagination_service.DataSet[T], error) {
	sql, args := buildSlotQuery(table, query)
	rows, err := p.DB.Query(ctx, sql, args...)
	if err != nil {
		return pagination_service.DataSet[T]{}, p.wrap(err, table, "cannot query slot")
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return pagination_service.DataSet[T]{}, p.wrap(err, table, "cannot read slot rows")
	}

	items := make([]T, 0, len(raw))
	for _, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			err = fmt.Errorf("%w, cannot decode row of %s, %w", flux_errors.ErrInternal, table.Name, err)
			p.logger.Error(err)
			return pagination_service.DataSet[T]{}, err
		}
		items = append(items, item)
	}

	data := pagination_service.DataSet[T]{Items: items}
	if table.CountTotal {
		sql, args := buildCountQuery(table, query)
		var total int
		if err := p.DB.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
			return pagination_service.DataSet[T]{}, p.wrap(err, table, "cannot count rows")
		}
		data.Total = &total
	}
	return data, nil
}

func (p *PGTransport[T]) wrap(err error, table PGTable, msg string) error {
	err = flux_errors.HandleDBErrors(err, pgErrMsgs, fmt.Sprintf("%s of %s", msg, table.Name))
	if errors.Is(err, flux_errors.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w, %w", flux_errors.ErrTransport, err)
}

// filterClause builds the equality conditions coming from the base query.
// Placeholders start after the ones already in args.
func filterClause(table PGTable, query pagination_service.Query, args []any) ([]string, []any) {
	keys := make([]string, 0, len(table.Filters))
	for key := range table.Filters {
		keys = append(keys, key)
	}
	// stable placeholder numbering
	slices.Sort(keys)

	conds := make([]string, 0, len(keys))
	for _, key := range keys {
		value := query.Base.Get(key)
		if value == "" {
			continue
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(table.Filters[key]), len(args)))
	}
	return conds, args
}

func buildSlotQuery(table PGTable, query pagination_service.Query) (string, []any) {
	conds, args := filterClause(table, query, nil)

	id := pq.QuoteIdentifier(table.IDColumn)
	order := "ASC"
	if query.Cursor != "" {
		args = append(args, query.Cursor)
		op := ">"
		if query.Direction == pagination_service.Backward {
			op = "<"
		}
		conds = append(conds, fmt.Sprintf("%s %s $%d", id, op, len(args)))
	}
	if query.Direction == pagination_service.Backward {
		order = "DESC"
	}

	columns := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		columns = append(columns, pq.QuoteIdentifier(c))
	}
	if !slices.Contains(table.Columns, table.IDColumn) {
		columns = append(columns, id)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, query.Limit)
	inner := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY %s %s LIMIT $%d",
		strings.Join(columns, ", "),
		pq.QuoteIdentifier(table.Name),
		where,
		id,
		order,
		len(args),
	)
	// rows are always handed out in ascending order
	sql := fmt.Sprintf("SELECT row_to_json(s) FROM (%s) s ORDER BY s.%s ASC", inner, id)
	return sql, args
}

func buildCountQuery(table PGTable, query pagination_service.Query) (string, []any) {
	conds, args := filterClause(table, query, nil)
	sql := fmt.Sprintf("SELECT count(*) FROM %s", pq.QuoteIdentifier(table.Name))
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	return sql, args
}
