// Package models defines the core data structures for ShiftDesk.
//
// It includes employee profiles, status records, shift reports and the
// message/response types shared across modules.
package models

import (
	"errors"
	"time"
)

// StatusLabel identifies one of the fixed employee status kinds.
type StatusLabel string

const (
	// StatusVacation marks a vacation period.
	StatusVacation StatusLabel = "Vacation"
	// StatusInOffice marks regular office presence.
	StatusInOffice StatusLabel = "InOffice"
	// StatusOnSite marks work at a clinic site.
	StatusOnSite StatusLabel = "OnSite"
	// StatusTravel marks a business trip.
	StatusTravel StatusLabel = "Travel"
)

// Error variables for better error handling and testability
var (
	ErrInvalidDateRange   = errors.New("end date cannot be earlier than start date")
	ErrInvalidStatusLabel = errors.New("invalid status label")
	ErrEmptyUserID        = errors.New("user id cannot be empty")
	ErrProfileNotFound    = errors.New("profile not found")
)

// AllStatusLabels lists the selectable labels in menu order.
func AllStatusLabels() []StatusLabel {
	return []StatusLabel{StatusVacation, StatusInOffice, StatusOnSite, StatusTravel}
}

// IsValidStatusLabel checks if the given label is one of the fixed set.
func IsValidStatusLabel(l StatusLabel) bool {
	switch l {
	case StatusVacation, StatusInOffice, StatusOnSite, StatusTravel:
		return true
	default:
		return false
	}
}

// ParseStatusLabel matches user input against the fixed label set.
// Matching is exact; menu buttons send the label text verbatim.
func ParseStatusLabel(text string) (StatusLabel, bool) {
	l := StatusLabel(text)
	if IsValidStatusLabel(l) {
		return l, true
	}
	return "", false
}

// StatusRecord is a labeled, date-ranged period describing an employee's
// location or availability. Records are immutable once appended.
type StatusRecord struct {
	Label StatusLabel `json:"label"`
	Start Date        `json:"start_date"`
	End   Date        `json:"end_date"`
}

// Validate checks the record invariants before insertion.
func (r StatusRecord) Validate() error {
	if !IsValidStatusLabel(r.Label) {
		return ErrInvalidStatusLabel
	}
	if r.End.Before(r.Start) {
		return ErrInvalidDateRange
	}
	return nil
}

// Contains reports whether d falls inside the record's inclusive range.
func (r StatusRecord) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// UserProfile holds one employee's display name and status history.
// Statuses are kept in insertion order, which is the entry order, not
// necessarily chronological by date.
type UserProfile struct {
	ID          string         `json:"-"`
	DisplayName string         `json:"display_name"`
	Statuses    []StatusRecord `json:"statuses"`
}

// FlowState represents the persisted state of a user in a conversation flow.
type FlowState struct {
	UserID       string            `json:"user_id"`
	FlowType     string            `json:"flow_type"`
	CurrentState string            `json:"current_state"`
	StateData    map[string]string `json:"state_data,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// MessageStatus represents the delivery status of a message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt records a delivery status event for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message from an employee.
type Response struct {
	From        string `json:"from"`
	DisplayName string `json:"display_name,omitempty"`
	Body        string `json:"body"`
	Time        int64  `json:"time"`
}
