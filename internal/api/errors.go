package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gym-access-backend/internal/access"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Hint  string `json:"hint,omitempty"`
}

func statusFor(kind access.Kind) int {
	switch kind {
	case access.KindResourceNotFound, access.KindSessionNotFound, access.KindQueueEntryNotFound:
		return http.StatusNotFound
	case access.KindResourceUnavailable, access.KindResourceIdle, access.KindAlreadyActive,
		access.KindAlreadyQueued, access.KindInvalidTransition:
		return http.StatusConflict
	case access.KindNotOwner:
		return http.StatusForbidden
	case access.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case access.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Only coordinator messages reach the
// client; anything else is logged and reported as an internal error.
func (h *Handler) fail(c *gin.Context, err error) {
	var ae *access.Error
	if !errors.As(err, &ae) {
		h.logger.Error("unexpected handler error", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
		return
	}

	msg := ae.Message
	if ae.Kind == access.KindStoreUnavailable {
		msg = "service temporarily unavailable"
	}
	if msg == "" {
		msg = string(ae.Kind)
	}
	c.AbortWithStatusJSON(statusFor(ae.Kind), errorResponse{Error: msg, Code: string(ae.Kind), Hint: ae.Hint})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Code: string(access.KindInvalidArgument)})
}
