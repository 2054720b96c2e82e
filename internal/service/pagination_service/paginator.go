package pagination_service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
	"github.com/tcp_snm/slotpager/internal/metrics"
	"github.com/tcp_snm/slotpager/internal/service"
)

type options struct {
	config       Config
	resource     string
	onSlotChange func(PageInfo)
}

type Option func(*options)

func WithItemsPerPage(n int) Option {
	return func(o *options) { o.config.ItemsPerPage = n }
}

func WithPagesPerSlot(n int) Option {
	return func(o *options) { o.config.PagesPerSlot = n }
}

// WithResourceName labels metrics and logs of the paginator.
func WithResourceName(name string) Option {
	return func(o *options) { o.resource = name }
}

// WithSlotChangeHook registers fn to run after every slot load, e.g. to
// scroll the consuming view back to the top. fn runs under the paginator's
// lock and must not call back into it.
func WithSlotChangeHook(fn func(PageInfo)) Option {
	return func(o *options) { o.onSlotChange = fn }
}

// Paginator serves pages of a cursor paginated resource. Page changes
// inside the loaded slot never touch the network; crossing a slot boundary
// issues one fetch. Only the latest fetch may update the state.
type Paginator[T Item] struct {
	sync.Mutex
	transport    Transport[T]
	path         string
	resource     string
	baseQuery    url.Values
	config       Config
	onSlotChange func(PageInfo)
	logger       *logrus.Entry

	// last successfully applied state
	state NavigationState[T]
	// state of the outstanding fetch, nil when idle
	pending    *NavigationState[T]
	items      []T
	ready      bool
	generation uint64
	cancel     context.CancelFunc
	closed     bool
}

func New[T Item](
	transport Transport[T],
	path string,
	baseQuery string,
	opts ...Option,
) (*Paginator[T], error) {
	if transport == nil {
		return nil, fmt.Errorf("%w, paginator expects non-nil transport", flux_errors.ErrInvalidRequest)
	}

	o := options{
		config: Config{
			ItemsPerPage: DefaultItemsPerPage,
			PagesPerSlot: DefaultPagesPerSlot,
		},
		resource: path,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := service.ValidateInput(o.config); err != nil {
		return nil, err
	}

	base, err := url.ParseQuery(baseQuery)
	if err != nil {
		return nil, fmt.Errorf("%w, malformed base query %q, %w", flux_errors.ErrInvalidRequest, baseQuery, err)
	}
	base.Del(keyCursor)
	base.Del(keyTake)

	p := &Paginator[T]{
		transport:    transport,
		path:         path,
		resource:     o.resource,
		baseQuery:    base,
		config:       o.config,
		onSlotChange: o.onSlotChange,
		state:        NewNavigationState[T](o.config, base),
	}
	p.logger = logrus.WithFields(logrus.Fields{
		"from":     "paginator",
		"resource": p.resource,
	})
	return p, nil
}

// Initialize loads the first slot and shows page 1. Calling it again starts
// over from the first slot.
func (p *Paginator[T]) Initialize(ctx context.Context) error {
	p.Lock()
	if p.closed {
		p.Unlock()
		return fmt.Errorf("%w, paginator is closed", flux_errors.ErrNotFound)
	}
	fresh := NewNavigationState[T](p.config, p.baseQuery)
	ctx, cancel, gen := p.begin(ctx, fresh)
	p.Unlock()
	defer cancel()

	// a failed first load leaves nothing to fall back to
	return p.load(ctx, gen, fresh.InitialQuery(), fresh, fresh)
}

// GotoPage shows page of the loaded slot.
func (p *Paginator[T]) GotoPage(page int) ([]T, error) {
	p.Lock()
	defer p.Unlock()

	if p.pending != nil {
		return nil, fmt.Errorf("%w, a slot fetch is in progress", flux_errors.ErrNotLoaded)
	}
	next, items, err := p.state.GotoPage(page)
	if err != nil {
		p.logger.WithField("page_info", p.state.PageInfo()).Error(err)
		return nil, err
	}

	p.state = next
	p.items = items
	p.ready = true
	metrics.PageChanges.WithLabelValues(p.resource).Inc()
	return items, nil
}

// GotoSlot loads the slot adjacent to the current one. It is a no-op when
// no slot is known to exist in dir.
func (p *Paginator[T]) GotoSlot(ctx context.Context, dir SlotDirection) error {
	p.Lock()
	if p.closed {
		p.Unlock()
		return fmt.Errorf("%w, paginator is closed", flux_errors.ErrNotFound)
	}
	next, q, ok, err := p.state.BeginSlot(dir)
	if err != nil {
		p.Unlock()
		return err
	}
	if !ok {
		p.Unlock()
		p.logger.Debugf("no %s slot to go to", dir)
		return nil
	}
	rollback := p.state
	ctx, cancel, gen := p.begin(ctx, next)
	p.Unlock()
	defer cancel()

	return p.load(ctx, gen, q, next, rollback)
}

// begin marks pending as the outstanding request, cancelling the previous
// one. Must be called with the lock held.
func (p *Paginator[T]) begin(
	ctx context.Context,
	pending NavigationState[T],
) (context.Context, context.CancelFunc, uint64) {
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.pending = &pending
	p.items = nil
	p.ready = false
	return ctx, cancel, p.generation
}

func (p *Paginator[T]) load(
	ctx context.Context,
	gen uint64,
	q Query,
	pending NavigationState[T],
	rollback NavigationState[T],
) error {
	start := time.Now()
	data, fetchErr := p.transport.Fetch(ctx, p.path, q)
	metrics.SlotFetchDuration.WithLabelValues(p.resource).Observe(time.Since(start).Seconds())

	p.Lock()
	defer p.Unlock()

	if gen != p.generation {
		metrics.SlotFetches.WithLabelValues(p.resource, q.Direction.String(), metrics.StatusSuperseded).Inc()
		p.logger.Debugf("discarding response of request %d, latest is %d", gen, p.generation)
		return fmt.Errorf("%w, request %d replaced by %d", flux_errors.ErrSuperseded, gen, p.generation)
	}
	p.pending = nil
	p.cancel = nil

	if fetchErr != nil {
		metrics.SlotFetches.WithLabelValues(p.resource, q.Direction.String(), metrics.StatusError).Inc()
		if !errors.Is(fetchErr, flux_errors.ErrTransport) {
			fetchErr = flux_errors.WrapTransportError(fetchErr)
		}
		p.logger.WithField("query", q.Encode()).Error(fetchErr)
		p.state = rollback
		return fetchErr
	}

	metrics.SlotFetches.WithLabelValues(p.resource, q.Direction.String(), metrics.StatusOK).Inc()
	if len(data.Items) > 0 && len(data.Items) >= q.Limit {
		metrics.ProbeRecordsTrimmed.WithLabelValues(p.resource).Inc()
	}

	p.state = pending.ApplySlot(q, data)
	p.items = p.state.PageItems()
	p.ready = true
	p.logger.WithFields(logrus.Fields{
		"slot":      p.state.CurrentSlot,
		"page_info": p.state.PageInfo(),
		"slot_info": p.state.SlotInfo(),
	}).Debug("slot loaded")

	if p.onSlotChange != nil {
		p.onSlotChange(p.state.PageInfo())
	}
	return nil
}

// Items returns the current page. ok is false while the page is loading
// or after a failed fetch.
func (p *Paginator[T]) Items() (items []T, ok bool) {
	p.Lock()
	defer p.Unlock()
	if !p.ready {
		return nil, false
	}
	return p.items, true
}

func (p *Paginator[T]) PageInfo() PageInfo {
	p.Lock()
	defer p.Unlock()
	info := p.state.PageInfo()
	if p.pending != nil {
		info.Current = p.pending.CurrentPage
	}
	return info
}

func (p *Paginator[T]) SlotInfo() SlotInfo {
	p.Lock()
	defer p.Unlock()
	return p.state.SlotInfo()
}

// State returns a snapshot of the last applied navigation state.
func (p *Paginator[T]) State() NavigationState[T] {
	p.Lock()
	defer p.Unlock()
	return p.state
}

// Close cancels any outstanding fetch and discards the state.
func (p *Paginator[T]) Close() {
	p.Lock()
	defer p.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
	p.closed = true
	p.pending = nil
	p.items = nil
	p.ready = false
	p.state = NewNavigationState[T](p.config, p.baseQuery)
}
