package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/resend/resend-go/v2"
)

// Action kinds forwarded to the rewards/achievement system.
const (
	ActionCompetitionScore = "competition_score"
	ActionCompetitionPrize = "competition_prize"
	ActionChallengeReward  = "challenge_reward"
)

// Notification is a user-facing message delivered through the gateway.
type Notification struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Icon    string `json:"icon,omitempty"`
}

// RewardGateway is the engine's door to the external rewards and notification
// systems. Both paths are best-effort: callers log failures and never let them
// corrupt competition state.
type RewardGateway interface {
	// RecordUserAction forwards a scoring or prize event to the achievement
	// system (fire-and-forget).
	RecordUserAction(ctx context.Context, userID uint, actionKind string, data map[string]interface{}) error

	// SendNotification delivers a message to the user.
	SendNotification(ctx context.Context, userID uint, notification Notification) error
}

// LogGateway is the standalone-mode gateway: every call is logged and
// succeeds. Used when no delivery backend is configured and in tests.
type LogGateway struct{}

// RecordUserAction implements RewardGateway for LogGateway.
func (g *LogGateway) RecordUserAction(ctx context.Context, userID uint, actionKind string, data map[string]interface{}) error {
	log.Printf("[Gateway] action user=%d kind=%s data=%v", userID, actionKind, data)
	return nil
}

// SendNotification implements RewardGateway for LogGateway.
func (g *LogGateway) SendNotification(ctx context.Context, userID uint, n Notification) error {
	log.Printf("[Gateway] notify user=%d kind=%s title=%q", userID, n.Kind, n.Title)
	return nil
}

// EmailLookup resolves a user id to a deliverable address. The engine has no
// user store of its own; the directory comes from configuration or an
// upstream service.
type EmailLookup func(userID uint) (string, bool)

// ResendGateway delivers notifications as email via the Resend REST API.
// Actions are logged only; the achievement system consumes them elsewhere.
type ResendGateway struct {
	from   string
	client *resend.Client
	lookup EmailLookup
}

// NewResendGateway creates an email-backed gateway.
func NewResendGateway(apiKey, from string, lookup EmailLookup) (*ResendGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if lookup == nil {
		return nil, fmt.Errorf("email lookup is required")
	}
	return &ResendGateway{
		from:   from,
		client: resend.NewClient(apiKey),
		lookup: lookup,
	}, nil
}

// RecordUserAction implements RewardGateway for ResendGateway.
func (g *ResendGateway) RecordUserAction(ctx context.Context, userID uint, actionKind string, data map[string]interface{}) error {
	log.Printf("[Gateway] action user=%d kind=%s data=%v", userID, actionKind, data)
	return nil
}

// SendNotification implements RewardGateway for ResendGateway. Users without
// a known address are skipped, not failed.
func (g *ResendGateway) SendNotification(ctx context.Context, userID uint, n Notification) error {
	to, ok := g.lookup(userID)
	if !ok {
		log.Printf("[Gateway] no address for user %d, skipping notification %q", userID, n.Title)
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    g.from,
		To:      []string{to},
		Subject: n.Title,
		Text:    n.Message,
	}

	options := &resend.SendEmailOptions{}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := g.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * 500 * time.Millisecond):
				continue
			}
		}
		return fmt.Errorf("resend send failed: %w", err)
	}
	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}
