package api

import (
	"github.com/tcp_snm/slotpager/internal/service/browse_service"
)

type Api struct {
	BrowseServiceConfig *browse_service.BrowseService
}
