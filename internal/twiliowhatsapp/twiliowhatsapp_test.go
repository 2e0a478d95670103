package twiliowhatsapp

import (
	"context"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number")
	}
	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromWhats("whatsapp:+15551234567"))
	if err != nil || c == nil {
		t.Fatalf("expected client, got %v", err)
	}
}

func TestNewClientFallsBackToEnv(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC456")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok")
	t.Setenv("TWILIO_FROM_NUMBER", "whatsapp:+15551234567")

	if _, err := NewClient(); err != nil {
		t.Fatalf("env fallback failed: %v", err)
	}
}

func TestMockClientRecordsMessages(t *testing.T) {
	m := NewMockClient()
	if err := m.SendMessage(context.Background(), "15551234567", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.SentMessages) != 1 || m.SentMessages[0].Body != "hello" {
		t.Errorf("unexpected sent log: %v", m.SentMessages)
	}
}
