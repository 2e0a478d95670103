package messaging

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/avolkov/shiftdesk/internal/twiliowhatsapp"
)

func TestTwilioServiceSendCanonicalizes(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "+1 (555) 123-4567", "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "15551234567" {
		t.Errorf("expected canonicalized recipient, got %v", mock.SentMessages)
	}

	if err := svc.SendMessage(context.Background(), "123", "hi"); err == nil {
		t.Error("expected validation error for short number")
	}
}

func TestTwilioServiceStoppedRejectsSends(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "15551234567", "hi"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	// Stop is idempotent.
	if err := svc.Stop(); err != nil {
		t.Errorf("second stop failed: %v", err)
	}
}

func TestTwilioServiceClearIsNoOp(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	deleted, err := svc.ClearRecentMessages(context.Background(), "15551234567")
	if err != nil || deleted != 0 {
		t.Errorf("expected no-op clear, got %d, %v", deleted, err)
	}
}

func TestTwilioWebhookEmitsResponse(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+15551234567")
	form.Set("Body", "Add status")
	form.Set("ProfileName", "Anna")

	req := httptest.NewRequest("POST", "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	svc.TwilioWebhookHandler(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	select {
	case resp := <-svc.Responses():
		if resp.From != "15551234567" || resp.Body != "Add status" || resp.DisplayName != "Anna" {
			t.Errorf("unexpected response: %+v", resp)
		}
	default:
		t.Fatal("expected a response on the channel")
	}
}

func TestTwilioWebhookRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	form := url.Values{}
	form.Set("From", "whatsapp:+15551234567")

	req := httptest.NewRequest("POST", "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	svc.TwilioWebhookHandler(w, req)

	if w.Code != 400 {
		t.Errorf("expected 400 for missing body, got %d", w.Code)
	}
}
