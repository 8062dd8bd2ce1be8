package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrWong99/aurasync/internal/assist"
	"github.com/MrWong99/aurasync/internal/gateway"
	"github.com/MrWong99/aurasync/internal/observe"
	"github.com/MrWong99/aurasync/internal/profile"
	"github.com/MrWong99/aurasync/internal/response"
)

// Error codes carried in [errorBody].
const (
	codeInvalidInput   = "invalid_input"
	codeNotFound       = "not_found"
	codeMalformed      = "malformed_model_output"
	codeUnavailable    = "provider_unavailable"
	codeTimeout        = "timeout"
	codeTooLarge       = "body_too_large"
	codeInternal       = "internal"
	codeDuplicateID    = "duplicate_id"
	internalErrMessage = "internal error"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps a pipeline or store error to its HTTP status and code.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, assist.ErrInvalidInput), errors.Is(err, profile.ErrInvalid):
		return http.StatusBadRequest, codeInvalidInput
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, profile.ErrDuplicateID):
		return http.StatusConflict, codeDuplicateID
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, codeTooLarge
	case errors.Is(err, response.ErrMalformed):
		return http.StatusBadGateway, codeMalformed
	case errors.Is(err, gateway.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, codeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeTimeout
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// respondError writes err as a JSON error body. Internal errors are logged
// and replaced with a generic message.
func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	log := observe.Logger(c.Request.Context())
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Warn("request failed", "route", c.FullPath(), "status", status, "err", err)
		if status == http.StatusInternalServerError {
			msg = internalErrMessage
		}
	} else {
		log.Debug("request rejected", "route", c.FullPath(), "status", status, "err", err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: msg, Code: codeInvalidInput})
}

// bind decodes the JSON body into v, answering 400 (or 413) on failure.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, err)
			return false
		}
		badRequest(c, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
