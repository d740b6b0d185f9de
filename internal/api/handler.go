package api

import (
	"context"
	"io"
	"log/slog"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"gym-access-backend/internal/access"
	"gym-access-backend/internal/analytics"
	"gym-access-backend/internal/model"
	"gym-access-backend/internal/notification"
)

// Service is the coordinator surface the handlers call.
type Service interface {
	ClaimResource(ctx context.Context, equipmentID, memberID string) (*model.UsageSession, error)
	ReleaseResource(ctx context.Context, sessionID, memberID string, m *model.Measurements) (*model.UsageSession, error)
	JoinQueue(ctx context.Context, equipmentID, memberID string) (*model.QueueEntry, error)
	LeaveQueue(ctx context.Context, entryID, memberID string) (*model.QueueEntry, error)
	GetQueue(ctx context.Context, equipmentID string) (*access.QueueView, error)
	GetActiveSession(ctx context.Context, equipmentID, memberID string) (*model.UsageSession, error)
	CreateEquipment(ctx context.Context, eq *model.Equipment) (*model.Equipment, error)
	GetEquipment(ctx context.Context, id string) (*model.Equipment, error)
	ListEquipment(ctx context.Context, category string) ([]model.Equipment, error)
	SetEquipmentStatus(ctx context.Context, equipmentID string, status model.EquipmentStatus) (*model.Equipment, error)
	ReportIssue(ctx context.Context, equipmentID, memberID string, severity model.IssueSeverity, description string) (*model.EquipmentIssue, error)
	ListMemberSessions(ctx context.Context, memberID string, limit int) ([]model.UsageSession, error)
	EquipmentStats(ctx context.Context, equipmentID string) (*analytics.Stats, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	svc     Service
	db      *gorm.DB
	webpush *webpush.Options
	hub     *notification.Hub
	logger  *slog.Logger
}

// NewHandler creates a new API handler. db backs the push subscription
// endpoints; hub backs the realtime stream. Either may be nil.
func NewHandler(svc Service, db *gorm.DB, webpushOptions *webpush.Options, hub *notification.Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		svc:     svc,
		db:      db,
		webpush: webpushOptions,
		hub:     hub,
		logger:  logger.With("component", "api"),
	}
}
