package pagination_service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tcp_snm/slotpager/internal/flux_errors"
)

// Record is an arbitrary JSON object paginated by its "id" field. It is
// used where the item shape is owned by the upstream server.
type Record struct {
	ID  string
	Raw json.RawMessage
}

func (r Record) CursorID() string {
	return r.ID
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return fmt.Errorf("%w, record is not a json object, %w", flux_errors.ErrHttpResponse, err)
	}
	if len(probe.ID) == 0 || bytes.Equal(probe.ID, []byte("null")) {
		return fmt.Errorf("%w, record has no id", flux_errors.ErrHttpResponse)
	}

	// ids are either strings or numbers
	var id string
	if err := json.Unmarshal(probe.ID, &id); err != nil {
		var num json.Number
		if err := json.Unmarshal(probe.ID, &num); err != nil {
			return fmt.Errorf("%w, unsupported id %s", flux_errors.ErrHttpResponse, probe.ID)
		}
		id = num.String()
	}

	r.ID = id
	r.Raw = append(json.RawMessage(nil), b...)
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}
