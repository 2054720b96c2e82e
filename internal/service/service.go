package service

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/tcp_snm/slotpager/internal/flux_errors"
)

type contextKey string

const (
	KeyJWTSecret                    = "JWT_SECRET"
	KeyCtxUserCredClaims contextKey = "UserCredClaims"
	KeyCtxBearerToken    contextKey = "BearerToken"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func InitializeServices() {
	validateOnce.Do(func() {
		validate = initValidator() // used for validating struct fields
	})
}

func initValidator() *validator.Validate {
	log.Info("initializing validator")
	validate := validator.New(validator.WithRequiredStructEnabled())

	// This makes error.Field() return "first_name" instead of "FirstName"
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func GetClaimsFromContext(
	ctx context.Context,
) (claims UserCredentialClaims, err error) {
	claimsValue := ctx.Value(KeyCtxUserCredClaims)
	claims, ok := claimsValue.(UserCredentialClaims)
	if !ok {
		err = fmt.Errorf(
			"%w, unable to parse claims to service.UserCredentialClaims, type of claims found is %T",
			flux_errors.ErrInternal,
			claimsValue,
		)
		log.Error(err)
	}
	return
}

// GetBearerTokenFromContext returns the raw token the caller authenticated
// with, or an empty string for anonymous requests.
func GetBearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(KeyCtxBearerToken).(string)
	return token
}
