// Package rewards credits points for completed sessions on the external
// points service. Calls are one-way: failures are logged and never reach
// the caller that closed the session.
package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gym-access-backend/internal/model"
)

// IncrementRequest is the body of POST /api/points/increment.
type IncrementRequest struct {
	MemberID  string `json:"member_id"`
	Points    int    `json:"points"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

type Client struct {
	base    string
	h       *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a client for the points service at base.
func New(base string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:    strings.TrimSuffix(base, "/"),
		h:       &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Increment credits points to a member.
func (c *Client) Increment(ctx context.Context, in IncrementRequest) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	u := c.base + "/api/points/increment"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.h.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("points service %s returned %d: %s", u, resp.StatusCode, string(b))
	}
	return nil
}

// SessionCompleted credits the calories of a closed session in the background.
func (c *Client) SessionCompleted(s model.UsageSession) {
	if s.CaloriesBurned <= 0 {
		return
	}
	reason := "equipment_session"
	if s.AutoReleased {
		reason = "equipment_session_auto_released"
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		err := c.Increment(ctx, IncrementRequest{
			MemberID:  s.MemberID,
			Points:    s.CaloriesBurned,
			Reason:    reason,
			Reference: s.ID,
		})
		if err != nil {
			c.logger.Warn("failed to credit session points", "session_id", s.ID, "member_id", s.MemberID, "error", err)
			return
		}
		c.logger.Debug("credited session points", "session_id", s.ID, "points", s.CaloriesBurned)
	}()
}
