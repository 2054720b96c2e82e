package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
	"github.com/tcp_snm/slotpager/internal/service/browse_service"
)

const KeySessionIDParam = "session_id"

func (a *Api) HandlerOpenBrowseSession(w http.ResponseWriter, r *http.Request) {
	var request browse_service.OpenSessionRequest
	if err := decodeJsonBody(r.Body, &request); err != nil {
		msg := fmt.Sprintf("invalid request payload, %s", err.Error())
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	view, err := a.BrowseServiceConfig.Open(r.Context(), request)
	if err != nil {
		handlerError(err, w)
		return
	}
	writeView(w, http.StatusCreated, view)
}

// HandlerGetBrowsePage returns the current page, or switches to the page in
// the page query param first. Switching never leaves the loaded slot.
func (a *Api) HandlerGetBrowsePage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var (
		view browse_service.SessionView
		err  error
	)
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, convErr := strconv.Atoi(pageStr)
		if convErr != nil {
			http.Error(w, "invalid page, page must be an integer", http.StatusBadRequest)
			return
		}
		view, err = a.BrowseServiceConfig.GotoPage(r.Context(), id, page)
	} else {
		view, err = a.BrowseServiceConfig.Current(r.Context(), id)
	}
	if err != nil {
		handlerError(err, w)
		return
	}
	writeView(w, http.StatusOK, view)
}

func (a *Api) HandlerGotoBrowseSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var request browse_service.GotoSlotRequest
	if err := decodeJsonBody(r.Body, &request); err != nil {
		msg := fmt.Sprintf("invalid request payload, %s", err.Error())
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	view, err := a.BrowseServiceConfig.GotoSlot(r.Context(), id, request)
	if err != nil {
		handlerError(err, w)
		return
	}
	writeView(w, http.StatusOK, view)
}

func (a *Api) HandlerCloseBrowseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := a.BrowseServiceConfig.Close(r.Context(), id); err != nil {
		handlerError(err, w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, KeySessionIDParam))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeView(w http.ResponseWriter, status int, view browse_service.SessionView) {
	response, err := json.Marshal(view)
	if err != nil {
		log.WithField("session_id", view.SessionID).Errorf("cannot marshal session view, %v", err)
		http.Error(w, flux_errors.ErrInternal.Error(), http.StatusInternalServerError)
		return
	}
	respondWithJson(w, status, response)
}
