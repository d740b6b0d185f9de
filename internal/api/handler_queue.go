package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/mw"
)

type queueEntryResponse struct {
	model.QueueEntry
	EstimatedWaitSeconds int64 `json:"estimatedWaitSeconds"`
}

type queueResponse struct {
	EquipmentID string               `json:"equipmentId"`
	Length      int                  `json:"length"`
	Entries     []queueEntryResponse `json:"entries"`
}

// GetQueue handles GET /api/equipment/:id/queue.
func (h *Handler) GetQueue(c *gin.Context) {
	view, err := h.svc.GetQueue(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := queueResponse{
		EquipmentID: view.EquipmentID,
		Length:      view.Length,
		Entries:     make([]queueEntryResponse, len(view.Entries)),
	}
	for i, e := range view.Entries {
		resp.Entries[i] = queueEntryResponse{
			QueueEntry:           e.QueueEntry,
			EstimatedWaitSeconds: int64(e.EstimatedWait.Seconds()),
		}
	}
	c.JSON(http.StatusOK, resp)
}

// JoinQueue handles POST /api/equipment/:id/queue.
func (h *Handler) JoinQueue(c *gin.Context) {
	entry, err := h.svc.JoinQueue(c.Request.Context(), c.Param("id"), mw.MemberID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// LeaveQueue handles DELETE /api/queue/:entry_id.
func (h *Handler) LeaveQueue(c *gin.Context) {
	entry, err := h.svc.LeaveQueue(c.Request.Context(), c.Param("entry_id"), mw.MemberID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
