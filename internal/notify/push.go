package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/guardwatch/guardwatch/internal/domain"
	"github.com/guardwatch/guardwatch/internal/repo"
)

// Push posts events to an FCM-style webhook, addressed by the recipient's
// device token. A user without a token is unreachable; the protocol layer
// treats that as non-fatal.
type Push struct {
	Webhook string
	APIKey  string
	Tokens  repo.UserStore
	Client  *http.Client
}

func NewPush(webhook, apiKey string, tokens repo.UserStore) *Push {
	if webhook == "" {
		return nil
	}
	return &Push{
		Webhook: webhook,
		APIKey:  apiKey,
		Tokens:  tokens,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type pushMessage struct {
	To            string         `json:"to"`
	Event         Event          `json:"event"`
	AlertID       domain.AlertID `json:"alert_id"`
	GuardianEmail string         `json:"guardian_email"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
}

func (s *Push) Send(ctx context.Context, userID string, ev Event, p Payload) error {
	if s == nil || s.Webhook == "" {
		return errors.New("push disabled")
	}
	token, err := s.Tokens.DeviceToken(ctx, userID)
	if err != nil {
		return err
	}
	if token == "" {
		return domain.ErrGuardianUnreachable
	}

	body, _ := json.Marshal(pushMessage{
		To:            token,
		Event:         ev,
		AlertID:       p.AlertID,
		GuardianEmail: p.GuardianEmail,
		Title:         p.Title,
		Body:          p.Body,
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.New("push non-2xx")
	}
	return nil
}
