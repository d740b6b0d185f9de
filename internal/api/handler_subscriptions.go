package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/mw"
	"gym-access-backend/internal/notification"
)

type putSubscriptionRequest struct {
	Endpoint            string   `json:"endpoint" binding:"required"`
	P256DH              string   `json:"p256dh" binding:"required"`
	Auth                string   `json:"auth" binding:"required"`
	SubscribedEquipment []string `json:"subscribed_equipment"`
}

// PutSubscription creates or replaces the caller's push subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "push subscriptions are disabled", Code: "unavailable"})
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		MemberID: mw.MemberID(c),
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"member_id", "p256dh", "auth"}),
		}).Omit("Equipment").Create(&subscription).Error; err != nil {
			return err
		}

		var equipment []model.Equipment
		if len(req.SubscribedEquipment) > 0 {
			if err := tx.Where("id IN ?", req.SubscribedEquipment).Find(&equipment).Error; err != nil {
				return err
			}
		}
		watched := make([]*model.Equipment, len(equipment))
		for i := range equipment {
			watched[i] = &equipment[i]
		}
		return tx.Model(&subscription).Association("Equipment").Replace(watched)
	})
	if err != nil {
		h.logger.Error("failed to save push subscription", "member_id", subscription.MemberID, "error", err)
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "could not save subscription", Code: "store_unavailable"})
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a push subscription and its watch list.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "push subscriptions are disabled", Code: "unavailable"})
		return
	}

	if err := notification.DeleteSubscription(c.Request.Context(), h.db, req.Endpoint); err != nil {
		h.logger.Error("failed to delete push subscription", "error", err)
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "could not delete subscription", Code: "store_unavailable"})
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam reads a query value without URL-decoding it; push endpoints
// are stored exactly as the browser reported them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription returns the equipment watched by a push subscription.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		badRequest(c, "endpoint is required")
		return
	}
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "push subscriptions are disabled", Code: "unavailable"})
		return
	}

	var subscription model.PushSubscription
	err := h.db.WithContext(c.Request.Context()).Preload("Equipment").
		First(&subscription, "endpoint = ? AND member_id = ?", raw, mw.MemberID(c)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "subscription not found", Code: "subscription_not_found"})
		} else {
			h.logger.Error("failed to load push subscription", "error", err)
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "could not load subscription", Code: "store_unavailable"})
		}
		return
	}

	ids := make([]string, len(subscription.Equipment))
	for i, eq := range subscription.Equipment {
		ids[i] = eq.ID
	}
	c.JSON(http.StatusOK, gin.H{"subscribed_equipment": ids})
}

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "vapid keys are not configured", Code: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
