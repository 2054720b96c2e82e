package pagination_service

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
)

// Query describes one slot fetch. The signed take used on the wire is
// derived from Direction and Limit only when the query is encoded.
type Query struct {
	Base      url.Values
	Cursor    string
	Direction Direction
	Limit     int
}

type wireParams struct {
	Cursor string `url:"cursor,omitempty"`
	Take   int    `url:"take"`
}

// Take returns the signed take of the wire format: positive reads after
// the cursor, negative reads before it.
func (q Query) Take() int {
	if q.Direction == Backward {
		return -q.Limit
	}
	return q.Limit
}

// Values merges the base query with the cursor parameters.
func (q Query) Values() url.Values {
	values := make(url.Values, len(q.Base)+2)
	for k, v := range q.Base {
		if k == keyCursor || k == keyTake {
			continue
		}
		values[k] = append([]string(nil), v...)
	}

	// query.Values only fails for non struct input
	wire, _ := query.Values(wireParams{Cursor: q.Cursor, Take: q.Take()})
	for k, v := range wire {
		values[k] = v
	}
	return values
}

func (q Query) Encode() string {
	return q.Values().Encode()
}

// ParseQuery decodes a serialized slot query. take is mandatory and non zero.
func ParseQuery(raw string) (Query, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return Query{}, fmt.Errorf("%w, malformed query %q, %w", flux_errors.ErrInvalidRequest, raw, err)
	}

	take, err := strconv.Atoi(values.Get(keyTake))
	if err != nil || take == 0 {
		return Query{}, fmt.Errorf(
			"%w, take must be a non zero integer, found %q",
			flux_errors.ErrInvalidRequest,
			values.Get(keyTake),
		)
	}

	q := Query{
		Cursor:    values.Get(keyCursor),
		Direction: Forward,
		Limit:     take,
	}
	if take < 0 {
		q.Direction = Backward
		q.Limit = -take
	}

	values.Del(keyCursor)
	values.Del(keyTake)
	q.Base = values
	return q, nil
}

// SplitURL separates a url into the resource path and its base query.
func SplitURL(rawURL string) (path string, baseQuery string) {
	path, baseQuery, _ = strings.Cut(rawURL, "?")
	return path, baseQuery
}
