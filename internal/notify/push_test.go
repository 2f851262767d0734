package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guardwatch/guardwatch/internal/clock"
	"github.com/guardwatch/guardwatch/internal/domain"
	"github.com/guardwatch/guardwatch/internal/repo/memory"
)

func TestPush_PostsTokenAddressedMessage(t *testing.T) {
	var got pushMessage
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	store := memory.New(clock.NewManual(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)), domain.DefaultCancelWindow)
	store.SetDeviceToken("u1", "tok-123")

	p := NewPush(ts.URL, "key-1", store)
	err := p.Send(context.Background(), "u1", EventCancelled, Payload{
		AlertID:       "a1",
		GuardianEmail: "g@example.com",
		Title:         "False alarm",
		Body:          "The alert was cancelled.",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.To != "tok-123" || got.Event != EventCancelled || got.AlertID != "a1" {
		t.Fatalf("message = %+v", got)
	}
	if auth != "Bearer key-1" {
		t.Fatalf("auth = %q", auth)
	}
}

func TestPush_NoTokenIsUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not be called")
	}))
	defer ts.Close()

	store := memory.New(clock.System(), domain.DefaultCancelWindow)
	p := NewPush(ts.URL, "", store)

	err := p.Send(context.Background(), "u-no-token", EventConfirmed, Payload{AlertID: "a1"})
	if !errors.Is(err, domain.ErrGuardianUnreachable) {
		t.Fatalf("err = %v, want ErrGuardianUnreachable", err)
	}
}

func TestPush_Non2xxIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	store := memory.New(clock.System(), domain.DefaultCancelWindow)
	store.SetDeviceToken("u1", "tok")
	p := NewPush(ts.URL, "", store)

	if err := p.Send(context.Background(), "u1", EventExpired, Payload{}); err == nil {
		t.Fatal("want error on non-2xx")
	}
}

func TestNewPush_EmptyWebhookDisabled(t *testing.T) {
	if p := NewPush("", "", nil); p != nil {
		t.Fatalf("want nil for empty webhook, got %+v", p)
	}
}
