package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
)

const maxBodyBytes = 1 << 20

func decodeJsonBody(body io.Reader, v any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("cannot decode request body, %w", err)
	}
	return nil
}

func respondWithJson(w http.ResponseWriter, status int, response []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		log.Errorf("cannot write response, %v", err)
	}
}

// handlerError writes the status matching the sentinel err wraps. The
// message of unknown errors never reaches the client.
func handlerError(err error, w http.ResponseWriter) {
	switch {
	case errors.Is(err, flux_errors.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, flux_errors.ErrInvalidRequest),
		errors.Is(err, flux_errors.ErrPreconditionViolation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, flux_errors.ErrNotLoaded):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, flux_errors.ErrTransport):
		http.Error(w, flux_errors.ErrTransport.Error(), http.StatusBadGateway)
	default:
		log.Errorf("unhandled error, %v", err)
		http.Error(w, flux_errors.ErrInternal.Error(), http.StatusInternalServerError)
	}
}
