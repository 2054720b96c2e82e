package pagination_service

import (
	"context"
)

const (
	DefaultItemsPerPage = 10
	DefaultPagesPerSlot = 5
	keyCursor           = "cursor"
	keyTake             = "take"
)

// Item is a record with a stable unique id usable as a pagination cursor.
// The order of items must match the order the transport returns them in.
type Item interface {
	CursorID() string
}

// DataSet is the result of a single slot fetch. Total is informational only.
type DataSet[T Item] struct {
	Items []T  `json:"data"`
	Total *int `json:"total,omitempty"`
}

// Transport fetches one batch of items for path.
type Transport[T Item] interface {
	Fetch(ctx context.Context, path string, query Query) (DataSet[T], error)
}

// TransportFunc adapts a plain function to Transport.
type TransportFunc[T Item] func(ctx context.Context, path string, query Query) (DataSet[T], error)

func (f TransportFunc[T]) Fetch(ctx context.Context, path string, query Query) (DataSet[T], error) {
	return f(ctx, path, query)
}

type Config struct {
	ItemsPerPage int `json:"items_per_page" validate:"gt=0,lte=1000"`
	PagesPerSlot int `json:"pages_per_slot" validate:"gt=0,lte=100"`
}

// Capacity is the number of items a full slot displays.
func (c Config) Capacity() int {
	return c.ItemsPerPage * c.PagesPerSlot
}

// Take is the number of records requested per slot, one more than the
// capacity so the presence of an adjacent slot can be detected.
func (c Config) Take() int {
	return c.Capacity() + 1
}

// Direction is the side of the cursor a query reads from.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// SlotDirection names the adjacent slot a consumer wants to move to.
type SlotDirection string

const (
	SlotPrev SlotDirection = "prev"
	SlotNext SlotDirection = "next"
)

type SlotBounds struct {
	FirstPage int `json:"first_page"`
	PageCount int `json:"page_count"`
}

// SlotCursors holds the serialized queries that load the adjacent slots.
// An empty string means no such slot is known to exist.
type SlotCursors struct {
	PrevQuery string `json:"prev_query"`
	NextQuery string `json:"next_query"`
}

type PageInfo struct {
	First   int `json:"first"`
	Count   int `json:"count"`
	Current int `json:"current"`
}

type SlotInfo struct {
	CanGotoPrev bool `json:"can_goto_prev"`
	CanGotoNext bool `json:"can_goto_next"`
}
