package pagination_service

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

type problem struct {
	ID int `json:"id"`
}

func (p problem) CursorID() string {
	return strconv.Itoa(p.ID)
}

func problems(from, to int) []problem {
	out := make([]problem, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, problem{ID: id})
	}
	return out
}

func ids(items []problem) []int {
	out := make([]int, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

// keysetTransport serves ids in ascending order the same way the judge
// server does: cursor excluded, positive take reads after it, negative
// take reads the records right before it.
type keysetTransport struct {
	sync.Mutex
	rows    []problem
	queries []Query
	err     error
}

func (k *keysetTransport) Fetch(ctx context.Context, path string, q Query) (DataSet[problem], error) {
	k.Lock()
	defer k.Unlock()
	k.queries = append(k.queries, q)
	if k.err != nil {
		return DataSet[problem]{}, k.err
	}

	start, end := 0, len(k.rows)
	if q.Cursor != "" {
		cursor, err := strconv.Atoi(q.Cursor)
		if err != nil {
			return DataSet[problem]{}, errors.New("bad cursor")
		}
		idx := 0
		for idx < len(k.rows) && k.rows[idx].ID < cursor {
			idx++
		}
		if q.Direction == Forward {
			start = idx
			if idx < len(k.rows) && k.rows[idx].ID == cursor {
				start = idx + 1
			}
		} else {
			end = idx
		}
	}

	var out []problem
	if q.Direction == Forward {
		out = k.rows[start:min(start+q.Limit, end)]
	} else {
		out = k.rows[max(end-q.Limit, start):end]
	}
	total := len(k.rows)
	return DataSet[problem]{Items: append([]problem(nil), out...), Total: &total}, nil
}

func (k *keysetTransport) calls() int {
	k.Lock()
	defer k.Unlock()
	return len(k.queries)
}
