package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Event Event  `json:"event"`
}

// PushSink delivers directed events to the member's browsers and
// "now available" broadcasts to members watching the equipment.
type PushSink struct {
	db      *gorm.DB
	options *webpush.Options
	sender  NotificationSender
	logger  *slog.Logger
}

// NewPushSink creates a push sink backed by the subscriptions table.
func NewPushSink(db *gorm.DB, options *webpush.Options, logger *slog.Logger) *PushSink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PushSink{
		db:      db,
		options: options,
		sender:  &WebPushSender{}, // Use the real sender by default
		logger:  logger,
	}
}

func (p *PushSink) Name() string { return "webpush" }

func (p *PushSink) Deliver(ctx context.Context, ev Event) error {
	subscriptions, err := p.recipients(ctx, ev)
	if err != nil {
		return err
	}
	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{Title: title(ev), Body: body(ev), Event: ev})
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	p.logger.Debug("sending push notifications", "count", len(subscriptions), "type", ev.Type, "equipment_id", ev.EquipmentID)
	for _, sub := range subscriptions {
		p.send(ctx, sub, payload)
	}
	return nil
}

func (p *PushSink) recipients(ctx context.Context, ev Event) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	switch {
	case ev.Directed():
		err := p.db.WithContext(ctx).
			Where("member_id = ?", ev.MemberID).
			Find(&subscriptions).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch subscriptions for member %s: %w", ev.MemberID, err)
		}
	case ev.Type == EventAvailable:
		err := p.db.WithContext(ctx).
			Joins("JOIN subscription_equipment_mapping sem ON sem.push_subscription_endpoint = push_subscriptions.endpoint").
			Where("sem.equipment_id = ?", ev.EquipmentID).
			Find(&subscriptions).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch subscriptions for equipment %s: %w", ev.EquipmentID, err)
		}
	}
	return subscriptions, nil
}

// send sends a single web push notification.
func (p *PushSink) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.options)
	if err != nil {
		p.logger.Warn("failed to send push notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		p.logger.Info("push subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := DeleteSubscription(ctx, p.db, sub.Endpoint); err != nil {
			p.logger.Warn("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
	}
}

func title(ev Event) string {
	name := ev.EquipmentName
	if name == "" {
		name = ev.EquipmentID
	}
	switch ev.Type {
	case EventYourTurn:
		return "Your turn on " + name
	case EventAvailable:
		return name + " is available"
	case EventClaimExpired:
		return "Your claim on " + name + " expired"
	case EventAutoReleased:
		return "Your session on " + name + " ended"
	case EventIssueReported:
		return "Issue reported on " + name
	default:
		return name + " is now " + string(ev.Status)
	}
}

func body(ev Event) string {
	if ev.Message != "" {
		return ev.Message
	}
	if ev.Type == EventYourTurn && ev.ClaimDeadline != nil {
		return "Claim it before " + ev.ClaimDeadline.Format("15:04")
	}
	return ""
}

// DeleteSubscription removes a subscription and its equipment watch list.
func DeleteSubscription(ctx context.Context, db *gorm.DB, endpoint string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM subscription_equipment_mapping WHERE push_subscription_endpoint = ?", endpoint).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}
