package transport_service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
	"github.com/tcp_snm/slotpager/internal/metrics"
	"github.com/tcp_snm/slotpager/internal/service"
	"github.com/tcp_snm/slotpager/internal/service/pagination_service"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxErrorBody = 512

// errUpstreamRejected marks 4xx answers. They follow from the caller's
// query, not from the upstream's health.
var errUpstreamRejected = errors.New("upstream rejected the request")

// HTTPTransport fetches slots from a json api that understands the
// cursor/take query parameters.
type HTTPTransport[T pagination_service.Item] struct {
	baseURL *url.URL
	client  *http.Client
	options HTTPOptions
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Entry
}

func NewHTTPTransport[T pagination_service.Item](
	baseURL string,
	options HTTPOptions,
) (*HTTPTransport[T], error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w, invalid upstream url %q", flux_errors.ErrInvalidRequest, baseURL)
	}

	if options.Name == "" {
		options.Name = parsed.Host
	}
	if options.Timeout <= 0 {
		options.Timeout = defaultHTTPTimeout
	}
	if options.BreakerLimit == 0 {
		options.BreakerLimit = defaultBreakerLimit
	}
	if options.BreakerTimeout <= 0 {
		options.BreakerTimeout = 30 * time.Second
	}

	t := &HTTPTransport[T]{
		baseURL: parsed,
		client:  &http.Client{Timeout: options.Timeout},
		options: options,
		logger: logrus.WithFields(logrus.Fields{
			"from":     "http transport",
			"upstream": options.Name,
		}),
	}
	t.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        options.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     options.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= options.BreakerLimit
		},
		// a caller giving up or sending a bad query is not the upstream's fault
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, errUpstreamRejected)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			t.logger.Warnf("circuit breaker %s changed from %s to %s", name, from, to)
		},
	})
	return t, nil
}

func (t *HTTPTransport[T]) Fetch(
	ctx context.Context,
	path string,
	query pagination_service.Query,
) (pagination_service.DataSet[T], error) {
	ctx, span := otel.Tracer(tracerName).Start(
		ctx,
		"HTTPTransport.Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("slot.path", path),
			attribute.String("slot.cursor", query.Cursor),
			attribute.Int("slot.take", query.Take()),
		),
	)
	defer span.End()

	result, err := t.breaker.Execute(func() (any, error) {
		data, err := t.do(ctx, path, query)
		if err != nil && errors.Is(ctx.Err(), context.Canceled) && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w, %w", err, context.Canceled)
		}
		return data, err
	})
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("http", metrics.StatusError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w, upstream %s is unavailable, %w", flux_errors.ErrTransport, t.options.Name, err)
		} else if !errors.Is(err, flux_errors.ErrTransport) {
			err = flux_errors.WrapTransportError(err)
		}
		t.logger.WithField("path", path).Error(err)
		return pagination_service.DataSet[T]{}, err
	}

	metrics.UpstreamRequests.WithLabelValues("http", metrics.StatusOK).Inc()
	data := result.(pagination_service.DataSet[T])
	span.SetAttributes(attribute.Int("slot.items", len(data.Items)))
	return data, nil
}

func (t *HTTPTransport[T]) do(
	ctx context.Context,
	path string,
	query pagination_service.Query,
) (pagination_service.DataSet[T], error) {
	target := t.baseURL.JoinPath(path)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return pagination_service.DataSet[T]{}, fmt.Errorf("%w, cannot build request, %w", flux_errors.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if token := t.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := t.client.Do(req)
	if err != nil {
		return pagination_service.DataSet[T]{}, flux_errors.WrapTransportError(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		err = fmt.Errorf(
			"%w, %w, upstream responded with %d, %s",
			flux_errors.ErrTransport,
			flux_errors.ErrHttpResponse,
			res.StatusCode,
			bytes.TrimSpace(body),
		)
		if res.StatusCode >= 400 && res.StatusCode < 500 {
			err = fmt.Errorf("%w, %w", err, errUpstreamRejected)
		}
		return pagination_service.DataSet[T]{}, err
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return pagination_service.DataSet[T]{}, flux_errors.WrapTransportError(err)
	}
	return decodeDataSet[T](body)
}

func (t *HTTPTransport[T]) token(ctx context.Context) string {
	if t.options.ForwardAuth {
		if token := service.GetBearerTokenFromContext(ctx); token != "" {
			return token
		}
	}
	return t.options.Token
}

// decodeDataSet accepts an object with a data (or items) array, or a bare
// array of items.
func decodeDataSet[T pagination_service.Item](body []byte) (pagination_service.DataSet[T], error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return pagination_service.DataSet[T]{}, fmt.Errorf(
				"%w, %w, cannot decode item list, %w",
				flux_errors.ErrTransport,
				flux_errors.ErrHttpResponse,
				err,
			)
		}
		return pagination_service.DataSet[T]{Items: items}, nil
	}

	var wire wireDataSet[T]
	if err := json.Unmarshal(body, &wire); err != nil {
		return pagination_service.DataSet[T]{}, fmt.Errorf(
			"%w, %w, cannot decode data set, %w",
			flux_errors.ErrTransport,
			flux_errors.ErrHttpResponse,
			err,
		)
	}
	items := wire.Data
	if items == nil {
		items = wire.Items
	}
	return pagination_service.DataSet[T]{Items: items, Total: wire.Total}, nil
}
