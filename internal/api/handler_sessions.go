package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/mw"
)

// Claim handles POST /api/equipment/:id/claim.
func (h *Handler) Claim(c *gin.Context) {
	s, err := h.svc.ClaimResource(c.Request.Context(), c.Param("id"), mw.MemberID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// Release handles POST /api/sessions/:session_id/release. The body may
// carry measurements taken during the session.
func (h *Handler) Release(c *gin.Context) {
	var m *model.Measurements
	if c.Request.ContentLength != 0 {
		m = &model.Measurements{}
		if err := c.ShouldBindJSON(m); err != nil {
			badRequest(c, "invalid measurements")
			return
		}
	}

	s, err := h.svc.ReleaseResource(c.Request.Context(), c.Param("session_id"), mw.MemberID(c), m)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetActiveSession handles GET /api/equipment/:id/session. With ?mine=true
// only the caller's own session is returned.
func (h *Handler) GetActiveSession(c *gin.Context) {
	memberID := ""
	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		memberID = mw.MemberID(c)
		if memberID == "" {
			badRequest(c, mw.HeaderMemberID+" header is required with mine=true")
			return
		}
	}

	s, err := h.svc.GetActiveSession(c.Request.Context(), c.Param("id"), memberID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// ListMySessions handles GET /api/me/sessions?limit=.
func (h *Handler) ListMySessions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.svc.ListMemberSessions(c.Request.Context(), mw.MemberID(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []model.UsageSession{}
	}
	c.JSON(http.StatusOK, sessions)
}
