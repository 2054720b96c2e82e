package main

import (
	"github.com/go-chi/chi/v5"
	"github.com/tcp_snm/slotpager/middleware"
)

func NewV1Router() *chi.Mux {
	v1 := chi.NewRouter()

	v1.Get("/healthz", apiConfig.HandlerReadiness)

	// browse layer
	v1.Post("/browse", middleware.JWTMiddleware(apiConfig.HandlerOpenBrowseSession))
	// current page, or ?page=N inside the loaded slot
	v1.Get("/browse/{session_id}", middleware.JWTMiddleware(apiConfig.HandlerGetBrowsePage))
	// cross to the previous or next slot
	v1.Post("/browse/{session_id}/slot", middleware.JWTMiddleware(apiConfig.HandlerGotoBrowseSlot))
	v1.Delete("/browse/{session_id}", middleware.JWTMiddleware(apiConfig.HandlerCloseBrowseSession))

	return v1
}
