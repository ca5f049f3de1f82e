package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/logging"
	"github.com/gin-gonic/gin"
)

// errorResponse is the body of every failed request. Trace carries the full
// wrapped error chain outside production.
type errorResponse struct {
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// responder writes error responses. It is the only place where errors are
// turned into status codes.
type responder struct {
	production bool
	logger     logging.Logger
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrDuplicateIdentity),
		errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrVerificationRequired),
		errors.Is(err, common.ErrInvalidLink):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrExternalStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error, status int) string {
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	switch status {
	case http.StatusNotFound:
		// "post not found: not found" reads as "post not found".
		msg, _, _ := strings.Cut(err.Error(), ": ")
		return msg
	case http.StatusBadGateway:
		return common.ErrExternalStore.Error()
	case http.StatusInternalServerError:
		return "internal server error"
	}

	for _, sentinel := range []error{
		common.ErrDuplicateIdentity, common.ErrInvalidCredentials, common.ErrVerificationRequired,
		common.ErrInvalidLink, common.ErrTokenExpired, common.ErrInvalidToken, common.ErrUnauthorized,
		common.ErrForbidden,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func (r *responder) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "status", status, "error", err)
	}

	resp := errorResponse{Message: messageFor(err, status)}
	if !r.production {
		resp.Trace = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}
