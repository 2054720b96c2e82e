package pagination_service

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/tcp_snm/slotpager/internal/flux_errors"
)

// NavigationState is the complete slot/page bookkeeping of one paginated
// view. It is a value: every transition returns a new state and leaves the
// receiver untouched.
type NavigationState[T Item] struct {
	Config      Config      `json:"config"`
	BaseQuery   url.Values  `json:"-"`
	CurrentPage int         `json:"current_page"`
	CurrentSlot int         `json:"current_slot"`
	SlotItems   DataSet[T]  `json:"slot_items"`
	SlotBounds  SlotBounds  `json:"slot_bounds"`
	SlotCursors SlotCursors `json:"slot_cursors"`
	Loaded      bool        `json:"loaded"`
}

func NewNavigationState[T Item](config Config, baseQuery url.Values) NavigationState[T] {
	return NavigationState[T]{
		Config:      config,
		BaseQuery:   baseQuery,
		CurrentPage: 1,
		CurrentSlot: 0,
	}
}

// InitialQuery loads the first slot.
func (s NavigationState[T]) InitialQuery() Query {
	return Query{
		Base:      s.BaseQuery,
		Direction: Forward,
		Limit:     s.Config.Take(),
	}
}

func (s NavigationState[T]) slotOf(page int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) / s.Config.PagesPerSlot
}

// BeginSlot moves the current page just outside the loaded slot in dir and
// returns the query that loads the slot holding it. ok is false when no
// slot is known to exist in that direction.
func (s NavigationState[T]) BeginSlot(dir SlotDirection) (next NavigationState[T], q Query, ok bool, err error) {
	var raw string
	switch dir {
	case SlotPrev:
		raw = s.SlotCursors.PrevQuery
	case SlotNext:
		raw = s.SlotCursors.NextQuery
	default:
		return s, Query{}, false, fmt.Errorf(
			"%w, slot direction must be one of [%s %s], found %q",
			flux_errors.ErrInvalidRequest,
			SlotPrev,
			SlotNext,
			dir,
		)
	}
	if raw == "" {
		return s, Query{}, false, nil
	}

	q, err = ParseQuery(raw)
	if err != nil {
		return s, Query{}, false, err
	}

	next = s
	if dir == SlotPrev {
		next.CurrentPage = s.SlotBounds.FirstPage - 1
	} else {
		next.CurrentPage = s.SlotBounds.FirstPage + s.SlotBounds.PageCount
	}
	next.CurrentSlot = next.slotOf(next.CurrentPage)
	next.Loaded = false
	return next, q, true, nil
}

// trimProbe drops the boundary record of a full response and anything the
// server returned beyond the slot capacity.
func trimProbe[T Item](items []T, q Query, capacity int) (trimmed []T, full bool) {
	full = len(items) > 0 && len(items) >= q.Limit
	trimmed = items
	if full {
		if q.Direction == Forward {
			trimmed = trimmed[:len(trimmed)-1]
		} else {
			trimmed = trimmed[1:]
		}
	}
	if len(trimmed) > capacity {
		if q.Direction == Forward {
			trimmed = trimmed[:capacity]
		} else {
			trimmed = trimmed[len(trimmed)-capacity:]
		}
	}
	return slices.Clone(trimmed), full
}

// ApplySlot installs the response of q as the loaded slot, replacing items,
// bounds and cursors together.
func (s NavigationState[T]) ApplySlot(q Query, data DataSet[T]) NavigationState[T] {
	items, full := trimProbe(data.Items, q, s.Config.Capacity())
	if items == nil {
		items = make([]T, 0)
	}
	forward := q.Direction == Forward

	next := s
	next.SlotItems = DataSet[T]{Items: items, Total: data.Total}
	next.SlotBounds = SlotBounds{
		FirstPage: s.CurrentSlot*s.Config.PagesPerSlot + 1,
		PageCount: min(
			(len(items)+s.Config.ItemsPerPage-1)/s.Config.ItemsPerPage,
			s.Config.PagesPerSlot,
		),
	}

	// a backward response can only prove a previous slot exists, a forward
	// one only a next slot. the other side is where we came from.
	// page numbers cannot go below 1, so slot 0 never has a previous slot.
	next.SlotCursors = SlotCursors{}
	if len(items) > 0 {
		if s.CurrentSlot > 0 && (forward || full) {
			next.SlotCursors.PrevQuery = Query{
				Base:      s.BaseQuery,
				Cursor:    items[0].CursorID(),
				Direction: Backward,
				Limit:     s.Config.Take(),
			}.Encode()
		}
		if !forward || full {
			next.SlotCursors.NextQuery = Query{
				Base:      s.BaseQuery,
				Cursor:    items[len(items)-1].CursorID(),
				Direction: Forward,
				Limit:     s.Config.Take(),
			}.Encode()
		}
	}

	// the slot may hold fewer pages than the one we left
	first, count := next.SlotBounds.FirstPage, next.SlotBounds.PageCount
	switch {
	case count == 0:
		next.CurrentPage = first
	case next.CurrentPage < first:
		next.CurrentPage = first
	case next.CurrentPage > first+count-1:
		next.CurrentPage = first + count - 1
	}
	next.CurrentSlot = next.slotOf(next.CurrentPage)
	next.Loaded = true
	return next
}

// GotoPage moves to page inside the loaded slot.
func (s NavigationState[T]) GotoPage(page int) (NavigationState[T], []T, error) {
	if !s.Loaded {
		return s, nil, flux_errors.ErrNotLoaded
	}
	first, count := s.SlotBounds.FirstPage, s.SlotBounds.PageCount
	if page < first || page >= first+count {
		return s, nil, fmt.Errorf(
			"%w, page %d requested but slot %d holds pages [%d, %d)",
			flux_errors.ErrPreconditionViolation,
			page,
			s.CurrentSlot,
			first,
			first+count,
		)
	}

	next := s
	next.CurrentPage = page
	return next, next.PageItems(), nil
}

// PageItems slices the current page out of the loaded slot. It returns nil
// while no slot is loaded.
func (s NavigationState[T]) PageItems() []T {
	if !s.Loaded {
		return nil
	}
	items := s.SlotItems.Items
	start := ((s.CurrentPage - s.SlotBounds.FirstPage) % s.Config.PagesPerSlot) * s.Config.ItemsPerPage
	if start < 0 || start >= len(items) {
		return make([]T, 0)
	}
	end := min(start+s.Config.ItemsPerPage, len(items))
	return slices.Clone(items[start:end])
}

func (s NavigationState[T]) PageInfo() PageInfo {
	return PageInfo{
		First:   s.SlotBounds.FirstPage,
		Count:   s.SlotBounds.PageCount,
		Current: s.CurrentPage,
	}
}

func (s NavigationState[T]) SlotInfo() SlotInfo {
	return SlotInfo{
		CanGotoPrev: s.SlotCursors.PrevQuery != "",
		CanGotoNext: s.SlotCursors.NextQuery != "",
	}
}
