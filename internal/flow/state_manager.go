package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/avolkov/shiftdesk/internal/models"
	"github.com/avolkov/shiftdesk/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend, so
// in-flight dialogues survive process restarts.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	return &StoreBasedStateManager{store: st}
}

// GetCurrentState retrieves the current state for a user in a flow.
func (sm *StoreBasedStateManager) GetCurrentState(ctx context.Context, userID string, flowType FlowType) (StateType, error) {
	state, err := sm.store.GetFlowState(userID, string(flowType))
	if err != nil {
		slog.Error("StateManager GetCurrentState error", "error", err, "userID", userID, "flowType", flowType)
		return StateIdle, err
	}
	if state == nil {
		return StateIdle, nil
	}
	return StateType(state.CurrentState), nil
}

// SetCurrentState updates the current state for a user in a flow.
func (sm *StoreBasedStateManager) SetCurrentState(ctx context.Context, userID string, flowType FlowType, state StateType) error {
	existing, err := sm.store.GetFlowState(userID, string(flowType))
	if err != nil {
		slog.Error("StateManager SetCurrentState get error", "error", err, "userID", userID, "flowType", flowType)
		return err
	}

	now := time.Now()
	if existing == nil {
		existing = &models.FlowState{
			UserID:    userID,
			FlowType:  string(flowType),
			StateData: make(map[string]string),
			CreatedAt: now,
		}
	}
	existing.CurrentState = string(state)
	existing.UpdatedAt = now

	if err := sm.store.SaveFlowState(*existing); err != nil {
		slog.Error("StateManager SetCurrentState save error", "error", err, "userID", userID, "flowType", flowType, "state", state)
		return err
	}
	slog.Debug("StateManager state updated", "userID", userID, "flowType", flowType, "state", state)
	return nil
}

// GetStateData retrieves scratch data associated with the user's state.
func (sm *StoreBasedStateManager) GetStateData(ctx context.Context, userID string, flowType FlowType, key DataKey) (string, error) {
	state, err := sm.store.GetFlowState(userID, string(flowType))
	if err != nil {
		slog.Error("StateManager GetStateData error", "error", err, "userID", userID, "flowType", flowType, "key", key)
		return "", err
	}
	if state == nil || state.StateData == nil {
		return "", nil
	}
	return state.StateData[string(key)], nil
}

// SetStateData stores scratch data associated with the user's state.
func (sm *StoreBasedStateManager) SetStateData(ctx context.Context, userID string, flowType FlowType, key DataKey, value string) error {
	state, err := sm.store.GetFlowState(userID, string(flowType))
	if err != nil {
		slog.Error("StateManager SetStateData get error", "error", err, "userID", userID, "flowType", flowType, "key", key)
		return err
	}

	now := time.Now()
	if state == nil {
		state = &models.FlowState{
			UserID:    userID,
			FlowType:  string(flowType),
			StateData: map[string]string{},
			CreatedAt: now,
		}
	}
	if state.StateData == nil {
		state.StateData = make(map[string]string)
	}
	state.StateData[string(key)] = value
	state.UpdatedAt = now

	if err := sm.store.SaveFlowState(*state); err != nil {
		slog.Error("StateManager SetStateData save error", "error", err, "userID", userID, "flowType", flowType, "key", key)
		return err
	}
	return nil
}

// ResetState removes all state data for a user in a flow.
func (sm *StoreBasedStateManager) ResetState(ctx context.Context, userID string, flowType FlowType) error {
	if err := sm.store.DeleteFlowState(userID, string(flowType)); err != nil {
		slog.Error("StateManager ResetState error", "error", err, "userID", userID, "flowType", flowType)
		return err
	}
	slog.Debug("StateManager state reset", "userID", userID, "flowType", flowType)
	return nil
}
