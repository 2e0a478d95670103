package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/avolkov/shiftdesk/internal/models"
	"github.com/avolkov/shiftdesk/internal/whatsapp"
)

func TestCanonicalizePhoneNumber(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+1 (555) 123-4567", "15551234567", false},
		{"15551234567", "15551234567", false},
		{"whatsapp:+15551234567", "15551234567", false},
		{"12345", "", true},
		{"not a number", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := CanonicalizePhoneNumber(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("CanonicalizePhoneNumber(%q) expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("CanonicalizePhoneNumber(%q) = %q, %v; want %q", c.in, got, err, c.want)
		}
	}
}

func TestWhatsAppServiceSendEmitsReceipt(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	if err := svc.SendMessage(context.Background(), "15551234567", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Sent) != 1 || mock.Sent[0] != "hello" {
		t.Errorf("message not delivered to client: %v", mock.Sent)
	}

	select {
	case r := <-svc.Receipts():
		if r.To != "15551234567" || r.Status != models.MessageStatusSent {
			t.Errorf("unexpected receipt: %+v", r)
		}
	default:
		t.Error("expected a sent receipt")
	}
}

func TestWhatsAppServiceSendSurvivesUndrainedReceipts(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	ctx := context.Background()

	// Fill the receipts buffer without any consumer draining it.
	for i := 0; i < DefaultChannelBufferSize; i++ {
		if err := svc.SendMessage(ctx, "15551234567", "ping"); err != nil {
			t.Fatalf("unexpected error at message %d: %v", i, err)
		}
	}

	// The next send must still return: its receipt is dropped, not waited on.
	done := make(chan error, 1)
	go func() {
		done <- svc.SendMessage(ctx, "15551234567", "overflow")
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * DefaultChannelTimeout):
		t.Fatal("SendMessage blocked once receipts buffer filled")
	}
	if len(mock.Sent) != DefaultChannelBufferSize+1 {
		t.Errorf("expected %d deliveries, got %d", DefaultChannelBufferSize+1, len(mock.Sent))
	}
}

func TestWhatsAppServiceStoppedRejectsSends(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
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

func TestWhatsAppServiceClearRecentMessages(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		if err := svc.SendMessage(ctx, "15551234567", body); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Another recipient's messages must not be touched.
	if err := svc.SendMessage(ctx, "15559990000", "other"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := svc.ClearRecentMessages(ctx, "15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 3 || len(mock.Revoked) != 3 {
		t.Errorf("expected 3 revocations, got deleted=%d revoked=%v", deleted, mock.Revoked)
	}

	// A second clear finds nothing tracked.
	deleted, err = svc.ClearRecentMessages(ctx, "15551234567")
	if err != nil || deleted != 0 {
		t.Errorf("second clear should delete nothing, got %d, %v", deleted, err)
	}
}

func TestWhatsAppServiceTrackingIsBounded(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	ctx := context.Background()

	for i := 0; i < MaxTrackedMessages+20; i++ {
		if err := svc.SendMessage(ctx, "15551234567", "ping"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Drain receipts so the buffered channel never blocks.
		<-svc.Receipts()
	}

	deleted, err := svc.ClearRecentMessages(ctx, "15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != MaxTrackedMessages {
		t.Errorf("expected %d tracked messages, got %d", MaxTrackedMessages, deleted)
	}
}
