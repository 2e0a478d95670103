// Package messaging defines the transport abstraction ShiftDesk uses to talk
// to employees, with WhatsApp and Twilio implementations.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/avolkov/shiftdesk/internal/models"
)

// Constants for messaging service configuration.
const (
	// DefaultChannelBufferSize defines the default buffer size for receipt and response channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations.
	DefaultChannelTimeout = 1 * time.Second
	// MaxTrackedMessages bounds how many outbound message IDs are remembered
	// per recipient for the clear-chat command.
	MaxTrackedMessages = 100
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex strips everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
// It supports sending and clearing messages, and provides channels for
// receipt and response events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// ClearRecentMessages best-effort deletes recently sent bot messages in
	// the recipient's chat and reports how many were removed.
	ClearRecentMessages(ctx context.Context, to string) (int, error)

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of receipt events (sent, delivered, read).
	Receipts() <-chan models.Receipt

	// Responses returns a channel of incoming employee responses.
	Responses() <-chan models.Response
}

// CanonicalizePhoneNumber reduces a phone-like recipient to bare digits.
// Both transports identify employees by phone number.
func CanonicalizePhoneNumber(recipient string) (string, error) {
	digits := phoneNumberRegex.ReplaceAllString(recipient, "")
	if len(digits) < 7 || len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number %q: expected 7-15 digits, got %d", recipient, len(digits))
	}
	return digits, nil
}
