package pagination_servicetest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcp_snm/slotpager/internal/service/pagination_service"
)

func idsOf(items []notice) []int {
	out := make([]int, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}

func TestWalkForwardThenBackOverHTTP(t *testing.T) {
	// group 2 holds the even ids 2..90
	p := newPaginator(
		t,
		"groupId=2",
		pagination_service.WithItemsPerPage(4),
		pagination_service.WithPagesPerSlot(3),
	)
	assert.Equal(t, "2", api.lastRequest().Base.Get("groupId"))
	assert.Equal(t, 13, api.lastRequest().Limit)

	var forward []int
	for {
		info := p.PageInfo()
		for page := info.First; page < info.First+info.Count; page++ {
			items, err := p.GotoPage(page)
			require.NoError(t, err)
			for _, n := range items {
				assert.Equal(t, 2, n.GroupID)
			}
			forward = append(forward, idsOf(items)...)
		}
		if !p.SlotInfo().CanGotoNext {
			break
		}
		require.NoError(t, p.GotoSlot(t.Context(), pagination_service.SlotNext))
	}
	require.Len(t, forward, 45)
	assert.Equal(t, 2, forward[0])
	assert.Equal(t, 90, forward[44])

	// 45 notices at 12 per slot leave 9 in the last slot
	last := p.PageInfo()
	assert.Equal(t, pagination_service.PageInfo{First: 10, Count: 3, Current: 12}, last)
	assert.True(t, p.SlotInfo().CanGotoPrev)

	var backward []int
	for p.SlotInfo().CanGotoPrev {
		require.NoError(t, p.GotoSlot(t.Context(), pagination_service.SlotPrev))
		assert.Equal(t, pagination_service.Backward, api.lastRequest().Direction)

		info := p.PageInfo()
		assert.Equal(t, info.First+info.Count-1, info.Current)
		slot := []int{}
		for page := info.First; page < info.First+info.Count; page++ {
			items, err := p.GotoPage(page)
			require.NoError(t, err)
			slot = append(slot, idsOf(items)...)
		}
		backward = append(slot, backward...)
	}
	assert.Equal(t, forward[:len(backward)], backward)
	assert.Equal(t, 0, p.State().CurrentSlot)
	assert.False(t, p.SlotInfo().CanGotoPrev)
}

func TestPreviousSlotRequestUsesFirstCursor(t *testing.T) {
	p := newPaginator(t, "", pagination_service.WithItemsPerPage(10), pagination_service.WithPagesPerSlot(2))

	require.NoError(t, p.GotoSlot(t.Context(), pagination_service.SlotNext))
	assert.Equal(t, "20", api.lastRequest().Cursor)

	items, ok := p.Items()
	require.True(t, ok)
	assert.Equal(t, 21, items[0].ID)

	require.NoError(t, p.GotoSlot(t.Context(), pagination_service.SlotPrev))
	q := api.lastRequest()
	assert.Equal(t, "21", q.Cursor)
	assert.Equal(t, pagination_service.Backward, q.Direction)
	assert.Equal(t, 21, q.Limit)

	items, ok = p.Items()
	require.True(t, ok)
	assert.Equal(t, []int{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, idsOf(items))
	assert.Equal(t, pagination_service.PageInfo{First: 1, Count: 2, Current: 2}, p.PageInfo())
}
