package flux_errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

const (
	CodeUndefinedTable  = "42P01"
	CodeUndefinedColumn = "42703"
	CodeInvalidTextRepr = "22P02"
)

var (
	ErrInternal                  = errors.New("internal service error. please try again later")
	ErrInvalidRequest            = errors.New("invalid request")
	ErrInvalidRequestCredentials = errors.New("invalid request credentials")
	ErrNotFound                  = errors.New("entity not found")
	ErrHttpResponse              = errors.New("error occurred with http response")
	ErrTransport                 = errors.New("unable to fetch the requested slot")
	ErrPreconditionViolation     = errors.New("page is outside the loaded slot")
	ErrSuperseded                = errors.New("slot fetch was superseded by a newer request")
	ErrNotLoaded                 = errors.New("no slot has been loaded yet")
)

// HandleDBErrors converts errors coming out of a pgx query into the
// sentinel errors above. errMsgs maps a pg error code to a user facing message.
func HandleDBErrors(
	err error,
	errMsgs map[string]string,
	contextMessage string,
) error {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		log.Error(fmt.Sprintf("%s, %v", contextMessage, ErrNotFound))
		return ErrNotFound
	}

	// check if its a pg error
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		err = fmt.Errorf("%w, %s, %w", ErrTransport, contextMessage, err)
		log.Error(err)
		return err
	}

	msg, ok := errMsgs[pgErr.Code]
	if !ok {
		// unknown error
		err = fmt.Errorf("%w, %s, %w", ErrInternal, contextMessage, pgErr)
		log.Error(err)
		return err
	}

	err = fmt.Errorf("%w, %s", ErrInvalidRequest, msg)
	log.WithField("pg_code", pgErr.Code).Error(err)
	return err
}

// WrapTransportError marks err as a failed fetch, keeping the network
// details when the failure came from the socket layer.
func WrapTransportError(err error) error {
	var opError *net.OpError
	if errors.As(err, &opError) {
		err = fmt.Errorf(
			"%w, error occurred during \"%s\" operation, network: %s, dest: %s, %w",
			ErrTransport,
			opError.Op,
			opError.Net,
			opError.Addr,
			err,
		)
		return err
	}

	// unknown error
	err = fmt.Errorf(
		"%w, %w", ErrTransport, err,
	)
	return err
}
