package browse_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
	"github.com/tcp_snm/slotpager/internal/metrics"
	"github.com/tcp_snm/slotpager/internal/service"
	"github.com/tcp_snm/slotpager/internal/service/pagination_service"
)

// Start prepares the session store. Least recently used sessions are
// discarded once more than cacheSize are open.
func (b *BrowseService) Start(cacheSize int) error {
	if b.Transport == nil {
		panic("browse service expects non-nil transport")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultSessionCacheSize
	}
	if b.Resources == nil {
		b.Resources = DefaultResources
	}
	if b.Defaults.ItemsPerPage == 0 {
		b.Defaults.ItemsPerPage = pagination_service.DefaultItemsPerPage
	}
	if b.Defaults.PagesPerSlot == 0 {
		b.Defaults.PagesPerSlot = pagination_service.DefaultPagesPerSlot
	}

	b.logger = logrus.WithField("from", "browse service")

	sessions, err := lru.NewWithEvict(cacheSize, func(id uuid.UUID, s *session) {
		s.paginator.Close()
		metrics.ActiveSessions.Dec()
		b.logger.WithFields(logrus.Fields{
			"session_id": id,
			"owner":      s.owner,
		}).Debug("session discarded")
	})
	if err != nil {
		return fmt.Errorf("%w, cannot create session cache, %w", flux_errors.ErrInternal, err)
	}
	b.sessions = sessions
	b.logger.Infof("started with a cache of %d sessions", cacheSize)
	return nil
}

// Open creates a browse session on a resource and loads its first slot.
func (b *BrowseService) Open(ctx context.Context, req OpenSessionRequest) (SessionView, error) {
	claims, err := service.GetClaimsFromContext(ctx)
	if err != nil {
		return SessionView{}, err
	}
	if err = service.ValidateInput(req); err != nil {
		return SessionView{}, err
	}

	path, ok := b.Resources[req.Resource]
	if !ok {
		return SessionView{}, fmt.Errorf(
			"%w, unknown resource %q",
			flux_errors.ErrNotFound,
			req.Resource,
		)
	}

	config := b.Defaults
	if req.ItemsPerPage > 0 {
		config.ItemsPerPage = req.ItemsPerPage
	}
	if req.PagesPerSlot > 0 {
		config.PagesPerSlot = req.PagesPerSlot
	}

	paginator, err := pagination_service.New(
		b.Transport,
		path,
		req.Query,
		pagination_service.WithItemsPerPage(config.ItemsPerPage),
		pagination_service.WithPagesPerSlot(config.PagesPerSlot),
		pagination_service.WithResourceName(req.Resource),
	)
	if err != nil {
		return SessionView{}, err
	}
	if err = paginator.Initialize(ctx); err != nil {
		paginator.Close()
		return SessionView{}, err
	}

	s := &session{
		id:        uuid.New(),
		owner:     claims.UserName,
		resource:  req.Resource,
		paginator: paginator,
		createdAt: time.Now(),
	}
	b.sessions.Add(s.id, s)
	metrics.ActiveSessions.Inc()

	b.logger.WithFields(logrus.Fields{
		"session_id": s.id,
		"owner":      s.owner,
		"resource":   s.resource,
	}).Info("session opened")
	return s.view(), nil
}

// Current returns the page the session is on.
func (b *BrowseService) Current(ctx context.Context, id uuid.UUID) (SessionView, error) {
	s, err := b.lookup(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(), nil
}

func (b *BrowseService) GotoPage(ctx context.Context, id uuid.UUID, page int) (SessionView, error) {
	s, err := b.lookup(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	if _, err = s.paginator.GotoPage(page); err != nil {
		return SessionView{}, err
	}
	return s.view(), nil
}

func (b *BrowseService) GotoSlot(ctx context.Context, id uuid.UUID, req GotoSlotRequest) (SessionView, error) {
	if err := service.ValidateInput(req); err != nil {
		return SessionView{}, err
	}
	s, err := b.lookup(ctx, id)
	if err != nil {
		return SessionView{}, err
	}

	err = s.paginator.GotoSlot(ctx, pagination_service.SlotDirection(req.Direction))
	if err != nil && !errors.Is(err, flux_errors.ErrSuperseded) {
		return SessionView{}, err
	}
	// a superseded request reports whatever the newer one produced
	return s.view(), nil
}

// Close discards the session and its navigation state.
func (b *BrowseService) Close(ctx context.Context, id uuid.UUID) error {
	if _, err := b.lookup(ctx, id); err != nil {
		return err
	}
	b.sessions.Remove(id)
	return nil
}

// Len is the number of open sessions.
func (b *BrowseService) Len() int {
	return b.sessions.Len()
}

// lookup finds a session owned by the caller. Sessions of other users are
// reported as missing.
func (b *BrowseService) lookup(ctx context.Context, id uuid.UUID) (*session, error) {
	claims, err := service.GetClaimsFromContext(ctx)
	if err != nil {
		return nil, err
	}

	s, ok := b.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w, no browse session with id %s", flux_errors.ErrNotFound, id)
	}
	if s.owner != claims.UserName {
		b.logger.Warnf("user %s tried to access session %s of %s", claims.UserName, id, s.owner)
		return nil, fmt.Errorf("%w, no browse session with id %s", flux_errors.ErrNotFound, id)
	}
	return s, nil
}

func (s *session) view() SessionView {
	items, loaded := s.paginator.Items()
	state := s.paginator.State()
	return SessionView{
		SessionID: s.id,
		Resource:  s.resource,
		Items:     items,
		Loaded:    loaded,
		PageInfo:  s.paginator.PageInfo(),
		SlotInfo:  state.SlotInfo(),
		Total:     state.SlotItems.Total,
		CreatedAt: s.createdAt,
	}
}
