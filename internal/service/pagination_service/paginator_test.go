package pagination_service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newLoaded(t *testing.T, transport Transport[problem], opts ...Option) *Paginator[problem] {
	t.Helper()
	p, err := New(transport, "/problem", "", opts...)
	require.NoError(t, err)
	require.NoError(t, p.Initialize(t.Context()))
	return p
}

func TestNewValidatesConfig(t *testing.T) {
	transport := &keysetTransport{}
	for _, opts := range [][]Option{
		{WithItemsPerPage(0)},
		{WithPagesPerSlot(0)},
		{WithItemsPerPage(-3), WithPagesPerSlot(2)},
	} {
		_, err := New[problem](transport, "/problem", "", opts...)
		assert.ErrorIs(t, err, flux_errors.ErrInvalidRequest)
	}

	_, err := New[problem](nil, "/problem", "")
	assert.ErrorIs(t, err, flux_errors.ErrInvalidRequest)
}

func TestItemsUndefinedUntilLoaded(t *testing.T) {
	p, err := New[problem](&keysetTransport{rows: problems(1, 3)}, "/problem", "")
	require.NoError(t, err)

	_, ok := p.Items()
	assert.False(t, ok)

	require.NoError(t, p.Initialize(t.Context()))
	items, ok := p.Items()
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2, 3}, ids(items))
}

func TestInitializeRequestsOneExtraRecord(t *testing.T) {
	transport := &keysetTransport{rows: problems(1, 100)}
	p, err := New[problem](transport, "/contest", "groupId=1", WithItemsPerPage(4), WithPagesPerSlot(3))
	require.NoError(t, err)
	require.NoError(t, p.Initialize(t.Context()))

	require.Len(t, transport.queries, 1)
	q := transport.queries[0]
	assert.Equal(t, 13, q.Limit)
	assert.Equal(t, Forward, q.Direction)
	assert.Empty(t, q.Cursor)
	assert.Equal(t, "1", q.Base.Get("groupId"))
}

func TestScenarioFullSlotThenSingleRecord(t *testing.T) {
	transport := &keysetTransport{rows: problems(1, 51)}
	p := newLoaded(t, transport)

	assert.Equal(t, PageInfo{First: 1, Count: 5, Current: 1}, p.PageInfo())
	assert.Equal(t, SlotInfo{CanGotoPrev: false, CanGotoNext: true}, p.SlotInfo())

	require.NoError(t, p.GotoSlot(t.Context(), SlotNext))
	assert.Equal(t, 2, transport.calls())

	last := transport.queries[1]
	assert.Equal(t, "50", last.Cursor)
	assert.Equal(t, 51, last.Limit)

	assert.Equal(t, PageInfo{First: 6, Count: 1, Current: 6}, p.PageInfo())
	assert.Equal(t, SlotInfo{CanGotoPrev: true, CanGotoNext: false}, p.SlotInfo())
	assert.Equal(t, 1, p.State().CurrentSlot)

	items, ok := p.Items()
	require.True(t, ok)
	assert.Equal(t, []int{51}, ids(items))
}

func TestGotoPageServesFromMemory(t *testing.T) {
	transport := &keysetTransport{rows: problems(1, 200)}
	p := newLoaded(t, transport)

	first, err := p.GotoPage(4)
	require.NoError(t, err)
	second, err := p.GotoPage(4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, ids(problems(31, 40)), ids(first))
	assert.Equal(t, 1, transport.calls())
	assert.Equal(t, 4, p.PageInfo().Current)

	_, err = p.GotoPage(6)
	assert.ErrorIs(t, err, flux_errors.ErrPreconditionViolation)
	assert.Equal(t, 4, p.PageInfo().Current)
}

func TestGotoSlotWithoutCursorIsNoop(t *testing.T) {
	transport := &keysetTransport{rows: problems(1, 20)}
	p := newLoaded(t, transport)

	require.NoError(t, p.GotoSlot(t.Context(), SlotNext))
	require.NoError(t, p.GotoSlot(t.Context(), SlotPrev))
	assert.Equal(t, 1, transport.calls())

	_, ok := p.Items()
	assert.True(t, ok)
}

func TestEmptyDatasetScenario(t *testing.T) {
	p := newLoaded(t, &keysetTransport{})

	assert.Equal(t, 0, p.PageInfo().Count)
	assert.Equal(t, SlotInfo{}, p.SlotInfo())

	items, ok := p.Items()
	assert.True(t, ok)
	assert.Empty(t, items)

	_, err := p.GotoPage(1)
	assert.ErrorIs(t, err, flux_errors.ErrPreconditionViolation)
}

func TestTransportErrorKeepsPreviousSlot(t *testing.T) {
	transport := &keysetTransport{rows: problems(1, 120)}
	p := newLoaded(t, transport)
	before := p.State()

	transport.err = errors.New("connection reset by peer")
	err := p.GotoSlot(t.Context(), SlotNext)
	assert.ErrorIs(t, err, flux_errors.ErrTransport)

	_, ok := p.Items()
	assert.False(t, ok, "items stay undefined after a failed fetch")
	assert.Equal(t, before, p.State())
	assert.True(t, p.SlotInfo().CanGotoNext)

	// retrying the same operation works once the transport recovers
	transport.err = nil
	require.NoError(t, p.GotoSlot(t.Context(), SlotNext))
	assert.Equal(t, PageInfo{First: 6, Count: 5, Current: 6}, p.PageInfo())
}

func TestFirstLoadFailure(t *testing.T) {
	transport := &keysetTransport{err: errors.New("no route to host")}
	p, err := New[problem](transport, "/problem", "")
	require.NoError(t, err)

	err = p.Initialize(t.Context())
	assert.ErrorIs(t, err, flux_errors.ErrTransport)
	_, ok := p.Items()
	assert.False(t, ok)
	assert.False(t, p.State().Loaded)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	rows := &keysetTransport{rows: problems(1, 200)}
	started := make(chan struct{})
	var blocked atomic.Bool

	transport := TransportFunc[problem](func(ctx context.Context, path string, q Query) (DataSet[problem], error) {
		if q.Cursor == "50" && blocked.CompareAndSwap(false, true) {
			close(started)
			<-ctx.Done()
			return DataSet[problem]{}, ctx.Err()
		}
		return rows.Fetch(ctx, path, q)
	})
	p := newLoaded(t, transport)

	first := make(chan error, 1)
	go func() {
		first <- p.GotoSlot(context.Background(), SlotNext)
	}()
	<-started

	_, ok := p.Items()
	assert.False(t, ok)
	assert.Equal(t, 6, p.PageInfo().Current)

	// the second request cancels the first one and wins
	require.NoError(t, p.GotoSlot(t.Context(), SlotNext))
	assert.ErrorIs(t, <-first, flux_errors.ErrSuperseded)

	items, ok := p.Items()
	require.True(t, ok)
	assert.Equal(t, ids(problems(51, 60)), ids(items))
	assert.Equal(t, PageInfo{First: 6, Count: 5, Current: 6}, p.PageInfo())
}

func TestGotoPageRejectedWhileLoading(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	rows := &keysetTransport{rows: problems(1, 200)}
	var calls atomic.Int32

	transport := TransportFunc[problem](func(ctx context.Context, path string, q Query) (DataSet[problem], error) {
		if calls.Add(1) == 2 {
			close(started)
			<-release
		}
		return rows.Fetch(ctx, path, q)
	})
	p := newLoaded(t, transport)

	done := make(chan error, 1)
	go func() {
		done <- p.GotoSlot(context.Background(), SlotNext)
	}()
	<-started

	_, err := p.GotoPage(1)
	assert.ErrorIs(t, err, flux_errors.ErrNotLoaded)

	close(release)
	require.NoError(t, <-done)
	_, err = p.GotoPage(7)
	assert.NoError(t, err)
}

func TestSlotChangeHook(t *testing.T) {
	var seen []PageInfo
	p := newLoaded(
		t,
		&keysetTransport{rows: problems(1, 120)},
		WithSlotChangeHook(func(info PageInfo) { seen = append(seen, info) }),
	)
	require.NoError(t, p.GotoSlot(t.Context(), SlotNext))
	require.NoError(t, p.GotoSlot(t.Context(), SlotPrev))

	assert.Equal(t, []PageInfo{
		{First: 1, Count: 5, Current: 1},
		{First: 6, Count: 5, Current: 6},
		{First: 1, Count: 5, Current: 5},
	}, seen)
}

func TestSlotArithmeticHoldsWhileWalking(t *testing.T) {
	transport := &keysetTransport{rows: problems(1, 137)}
	p := newLoaded(t, transport, WithItemsPerPage(3), WithPagesPerSlot(4))

	var walked []int
	for {
		state := p.State()
		assert.Equal(t, (state.CurrentPage-1)/4, state.CurrentSlot)
		info := p.PageInfo()
		for page := info.First; page < info.First+info.Count; page++ {
			items, err := p.GotoPage(page)
			require.NoError(t, err)
			walked = append(walked, ids(items)...)
		}
		if !p.SlotInfo().CanGotoNext {
			break
		}
		require.NoError(t, p.GotoSlot(t.Context(), SlotNext))
	}
	assert.Equal(t, ids(problems(1, 137)), walked)
}

func TestClose(t *testing.T) {
	p := newLoaded(t, &keysetTransport{rows: problems(1, 120)})
	p.Close()

	_, ok := p.Items()
	assert.False(t, ok)
	assert.ErrorIs(t, p.GotoSlot(t.Context(), SlotNext), flux_errors.ErrNotFound)
	assert.ErrorIs(t, p.Initialize(t.Context()), flux_errors.ErrNotFound)
}
