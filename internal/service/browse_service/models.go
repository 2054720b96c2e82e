package browse_service

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/tcp_snm/slotpager/internal/service/pagination_service"
)

const (
	ResourceContest    = "contest"
	ResourceProblem    = "problem"
	ResourceSubmission = "submission"
	ResourceNotice     = "notice"

	DefaultSessionCacheSize = 1024
)

// DefaultResources maps browsable resources to their upstream paths.
var DefaultResources = map[string]string{
	ResourceContest:    "/contest",
	ResourceProblem:    "/problem",
	ResourceSubmission: "/submission",
	ResourceNotice:     "/notice",
}

type BrowseService struct {
	Transport pagination_service.Transport[pagination_service.Record]
	Resources map[string]string
	Defaults  pagination_service.Config

	sessions *lru.Cache[uuid.UUID, *session]
	logger   *logrus.Entry
}

type session struct {
	id        uuid.UUID
	owner     string
	resource  string
	paginator *pagination_service.Paginator[pagination_service.Record]
	createdAt time.Time
}

type OpenSessionRequest struct {
	Resource     string `json:"resource" validate:"required"`
	Query        string `json:"query"`
	ItemsPerPage int    `json:"items_per_page" validate:"omitempty,gt=0,lte=100"`
	PagesPerSlot int    `json:"pages_per_slot" validate:"omitempty,gt=0,lte=20"`
}

type GotoSlotRequest struct {
	Direction string `json:"direction" validate:"required,oneof=prev next"`
}

// SessionView is what a consumer needs to render the current page.
// Items is null while the page is not loaded.
type SessionView struct {
	SessionID uuid.UUID                   `json:"session_id"`
	Resource  string                      `json:"resource"`
	Items     []pagination_service.Record `json:"items"`
	Loaded    bool                        `json:"loaded"`
	PageInfo  pagination_service.PageInfo `json:"page_info"`
	SlotInfo  pagination_service.SlotInfo `json:"slot_info"`
	Total     *int                        `json:"total,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
}
