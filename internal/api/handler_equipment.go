package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/mw"
)

// ListEquipment handles GET /api/equipment?category=.
func (h *Handler) ListEquipment(c *gin.Context) {
	items, err := h.svc.ListEquipment(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if items == nil {
		items = []model.Equipment{}
	}
	c.JSON(http.StatusOK, items)
}

// GetEquipment handles GET /api/equipment/:id.
func (h *Handler) GetEquipment(c *gin.Context) {
	eq, err := h.svc.GetEquipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, eq)
}

type createEquipmentRequest struct {
	ID       string                `json:"id"`
	Name     string                `json:"name" binding:"required"`
	Category string                `json:"category" binding:"required"`
	Location string                `json:"location"`
	Status   model.EquipmentStatus `json:"status"`
}

// CreateEquipment handles POST /api/equipment.
func (h *Handler) CreateEquipment(c *gin.Context) {
	var req createEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	eq, err := h.svc.CreateEquipment(c.Request.Context(), &model.Equipment{
		ID:       req.ID,
		Name:     req.Name,
		Category: req.Category,
		Location: req.Location,
		Status:   req.Status,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, eq)
}

type setStatusRequest struct {
	Status model.EquipmentStatus `json:"status" binding:"required"`
}

// SetEquipmentStatus handles PUT /api/equipment/:id/status.
func (h *Handler) SetEquipmentStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	eq, err := h.svc.SetEquipmentStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, eq)
}

type statsResponse struct {
	EquipmentID           string `json:"equipmentId"`
	AverageSessionSeconds int64  `json:"averageSessionSeconds"`
	AverageWaitSeconds    int64  `json:"averageWaitSeconds"`
	SessionSamples        int    `json:"sessionSamples"`
	WaitSamples           int    `json:"waitSamples"`
}

// GetStats handles GET /api/equipment/:id/stats.
func (h *Handler) GetStats(c *gin.Context) {
	id := c.Param("id")
	st, err := h.svc.EquipmentStats(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statsResponse{
		EquipmentID:           id,
		AverageSessionSeconds: int64(st.AverageSession.Seconds()),
		AverageWaitSeconds:    int64(st.AverageWait.Seconds()),
		SessionSamples:        st.SessionSamples,
		WaitSamples:           st.WaitSamples,
	})
}

type reportIssueRequest struct {
	Severity    model.IssueSeverity `json:"severity" binding:"required"`
	Description string              `json:"description"`
}

// ReportIssue handles POST /api/equipment/:id/issues.
func (h *Handler) ReportIssue(c *gin.Context) {
	var req reportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	issue, err := h.svc.ReportIssue(c.Request.Context(), c.Param("id"), mw.MemberID(c), req.Severity, req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}
