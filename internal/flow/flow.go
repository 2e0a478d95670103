// Package flow implements the status-tracking conversation flow and its
// per-user state management.
package flow

import "context"

// FlowType identifies a conversation flow.
type FlowType string

// StateType identifies a state within a flow.
type StateType string

// DataKey identifies a scratch value attached to a flow state.
type DataKey string

// FlowTypeStatus is the single flow this bot runs.
const FlowTypeStatus FlowType = "status"

// States of the status flow. The idle state is the absence of a stored
// state: a user with no flow state is at the main menu.
const (
	StateIdle              StateType = ""
	StateAwaitingStatus    StateType = "AWAITING_STATUS"
	StateAwaitingStartDate StateType = "AWAITING_START_DATE"
	StateAwaitingEndDate   StateType = "AWAITING_END_DATE"
)

// Scratch data keys for the status flow.
const (
	// DataKeyChosenStatus holds the selected label while dates are collected.
	DataKeyChosenStatus DataKey = "chosenStatus"
	// DataKeyPendingStartDate holds the ISO start date while the end date is collected.
	DataKeyPendingStartDate DataKey = "pendingStartDate"
)

// StateManager abstracts per-user conversation state so the flow logic does
// not care where state lives. The store-backed implementation survives
// process restarts.
type StateManager interface {
	// GetCurrentState retrieves the current state for a user, StateIdle when none.
	GetCurrentState(ctx context.Context, userID string, flowType FlowType) (StateType, error)
	// SetCurrentState updates the current state for a user.
	SetCurrentState(ctx context.Context, userID string, flowType FlowType, state StateType) error
	// GetStateData retrieves scratch data, empty string when absent.
	GetStateData(ctx context.Context, userID string, flowType FlowType, key DataKey) (string, error)
	// SetStateData stores scratch data alongside the state.
	SetStateData(ctx context.Context, userID string, flowType FlowType, key DataKey, value string) error
	// ResetState removes all state and scratch data for a user.
	ResetState(ctx context.Context, userID string, flowType FlowType) error
}

// Messenger is the outbound surface the flow drives. The transport behind
// it (whatsmeow or Twilio) is opaque to the flow.
type Messenger interface {
	// SendMessage delivers one text message to a user.
	SendMessage(ctx context.Context, to string, body string) error
	// ClearRecentMessages best-effort deletes recently sent bot messages for
	// a user and returns how many were deleted. Transports that cannot
	// delete return (0, nil).
	ClearRecentMessages(ctx context.Context, to string) (int, error)
}
