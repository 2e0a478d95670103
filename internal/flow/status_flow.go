package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avolkov/shiftdesk/internal/models"
	"github.com/avolkov/shiftdesk/internal/report"
	"github.com/avolkov/shiftdesk/internal/store"
)

// Menu commands. Employees type (or tap) these verbatim.
const (
	CmdStart     = "/start"
	CmdAddStatus = "Add status"
	CmdWeek      = "Week schedule"
	CmdMonth     = "Month schedule"
	CmdClear     = "Clear chat"
	CmdBack      = "Back"
)

// Fixed reply strings for the status flow.
const (
	msgChooseAction   = "Choose an action:"
	msgChooseStatus   = "Choose a status:"
	msgInvalidStatus  = "Please choose a status from the list."
	msgStartDate      = "📅 Enter the start date (DD.MM.YYYY):\nFor example: 01.06.2025"
	msgEndDate        = "📅 Enter the end date (DD.MM.YYYY):"
	msgBadDate        = "❌ Invalid date format. Try again: DD.MM.YYYY"
	msgEndBeforeStart = "❌ The end date cannot be earlier than the start date. Enter it again."
	msgUnknownCommand = "Unknown command. Use the menu 👇"
	msgClearing       = "🧹 Clearing recent messages..."
	msgCleared        = "✅ Chat cleared."
)

// StatusFlow drives the add-status dialogue and the schedule/clear commands
// for every user. All state is keyed by user ID, so sessions cannot
// interfere with each other.
type StatusFlow struct {
	store     store.Store
	states    StateManager
	messenger Messenger
	today     func() models.Date
}

// NewStatusFlow constructs the flow with its dependencies injected.
func NewStatusFlow(st store.Store, states StateManager, messenger Messenger) *StatusFlow {
	return &StatusFlow{
		store:     st,
		states:    states,
		messenger: messenger,
		today:     models.Today,
	}
}

// SetTodayFunc overrides the clock. Used by tests for deterministic reports.
func (f *StatusFlow) SetTodayFunc(today func() models.Date) {
	f.today = today
}

// HandleMessage processes one inbound message from a user, advancing their
// dialogue state and sending any replies. It is the single entry point for
// the conversational surface; the dispatcher calls it for each dequeued
// message in turn.
func (f *StatusFlow) HandleMessage(ctx context.Context, userID, displayName, text string) error {
	text = strings.TrimSpace(text)
	if displayName == "" {
		displayName = "User" + userID
	}

	profile, err := f.store.GetOrCreateProfile(userID, displayName)
	if err != nil {
		return fmt.Errorf("failed to load profile for %s: %w", userID, err)
	}

	state, err := f.states.GetCurrentState(ctx, userID, FlowTypeStatus)
	if err != nil {
		return err
	}
	slog.Debug("StatusFlow handling message", "userID", userID, "state", state, "body_length", len(text))

	switch state {
	case StateAwaitingStatus:
		return f.handleAwaitingStatus(ctx, userID, text)
	case StateAwaitingStartDate:
		return f.handleAwaitingStartDate(ctx, userID, text)
	case StateAwaitingEndDate:
		return f.handleAwaitingEndDate(ctx, userID, text)
	default:
		return f.handleIdle(ctx, profile, text)
	}
}

func (f *StatusFlow) handleIdle(ctx context.Context, profile models.UserProfile, text string) error {
	userID := profile.ID
	switch text {
	case CmdStart:
		greeting := fmt.Sprintf("Hi, %s! 👋\n%s", profile.DisplayName, msgChooseAction)
		return f.send(ctx, userID, greeting+mainMenu())
	case CmdAddStatus:
		if err := f.states.SetCurrentState(ctx, userID, FlowTypeStatus, StateAwaitingStatus); err != nil {
			return err
		}
		return f.send(ctx, userID, msgChooseStatus+statusMenu())
	case CmdWeek:
		return f.sendSchedule(ctx, userID, report.WeekDays)
	case CmdMonth:
		return f.sendSchedule(ctx, userID, report.MonthDays)
	case CmdClear:
		return f.clearChat(ctx, userID)
	default:
		return f.send(ctx, userID, msgUnknownCommand+mainMenu())
	}
}

func (f *StatusFlow) handleAwaitingStatus(ctx context.Context, userID, text string) error {
	if text == CmdBack {
		if err := f.states.ResetState(ctx, userID, FlowTypeStatus); err != nil {
			return err
		}
		return f.send(ctx, userID, msgChooseAction+mainMenu())
	}

	label, ok := models.ParseStatusLabel(text)
	if !ok {
		return f.send(ctx, userID, msgInvalidStatus)
	}

	if err := f.states.SetStateData(ctx, userID, FlowTypeStatus, DataKeyChosenStatus, string(label)); err != nil {
		return err
	}
	if err := f.states.SetCurrentState(ctx, userID, FlowTypeStatus, StateAwaitingStartDate); err != nil {
		return err
	}
	return f.send(ctx, userID, msgStartDate)
}

func (f *StatusFlow) handleAwaitingStartDate(ctx context.Context, userID, text string) error {
	start, err := models.ParseUserDate(text)
	if err != nil {
		return f.send(ctx, userID, msgBadDate)
	}

	if err := f.states.SetStateData(ctx, userID, FlowTypeStatus, DataKeyPendingStartDate, start.ISO()); err != nil {
		return err
	}
	if err := f.states.SetCurrentState(ctx, userID, FlowTypeStatus, StateAwaitingEndDate); err != nil {
		return err
	}
	return f.send(ctx, userID, msgEndDate)
}

func (f *StatusFlow) handleAwaitingEndDate(ctx context.Context, userID, text string) error {
	end, err := models.ParseUserDate(text)
	if err != nil {
		return f.send(ctx, userID, msgBadDate)
	}

	startISO, err := f.states.GetStateData(ctx, userID, FlowTypeStatus, DataKeyPendingStartDate)
	if err != nil {
		return err
	}
	start, err := models.ParseISODate(startISO)
	if err != nil {
		return fmt.Errorf("corrupt pending start date for %s: %w", userID, err)
	}

	if end.Before(start) {
		return f.send(ctx, userID, msgEndBeforeStart)
	}

	labelStr, err := f.states.GetStateData(ctx, userID, FlowTypeStatus, DataKeyChosenStatus)
	if err != nil {
		return err
	}
	rec := models.StatusRecord{Label: models.StatusLabel(labelStr), Start: start, End: end}
	if err := f.store.AppendStatus(userID, rec); err != nil {
		if errors.Is(err, models.ErrInvalidDateRange) {
			// Already checked above, but the store enforces it too.
			return f.send(ctx, userID, msgEndBeforeStart)
		}
		return fmt.Errorf("failed to append status for %s: %w", userID, err)
	}

	if err := f.states.ResetState(ctx, userID, FlowTypeStatus); err != nil {
		return err
	}
	slog.Info("StatusFlow recorded status", "userID", userID, "label", rec.Label, "start", rec.Start, "end", rec.End)
	confirmation := fmt.Sprintf("✅ Status '%s' added from %s to %s", rec.Label, start.Format(), end.Format())
	return f.send(ctx, userID, confirmation+mainMenu())
}

func (f *StatusFlow) sendSchedule(ctx context.Context, userID string, days int) error {
	profiles, err := f.store.ListProfiles()
	if err != nil {
		return fmt.Errorf("failed to list profiles for schedule: %w", err)
	}
	return f.send(ctx, userID, report.Generate(profiles, f.today(), days))
}

// clearChat runs the bounded best-effort deletion of recent bot messages.
// Individual deletion failures are the transport's to swallow; only the
// inability to send the wrap-up messages is an error.
func (f *StatusFlow) clearChat(ctx context.Context, userID string) error {
	if err := f.send(ctx, userID, msgClearing); err != nil {
		return err
	}
	deleted, err := f.messenger.ClearRecentMessages(ctx, userID)
	if err != nil {
		slog.Warn("StatusFlow clear chat failed, continuing", "error", err, "userID", userID)
	} else {
		slog.Debug("StatusFlow cleared messages", "userID", userID, "deleted", deleted)
	}
	return f.send(ctx, userID, msgCleared+"\n"+msgChooseAction+mainMenu())
}

func (f *StatusFlow) send(ctx context.Context, userID, body string) error {
	return f.messenger.SendMessage(ctx, userID, body)
}

// mainMenu renders the fixed menu options appended to idle-state replies.
func mainMenu() string {
	return "\n\n" + strings.Join([]string{
		"▫️ " + CmdAddStatus,
		"▫️ " + CmdWeek,
		"▫️ " + CmdMonth,
		"▫️ " + CmdClear,
	}, "\n")
}

// statusMenu renders the selectable labels plus the Back option.
func statusMenu() string {
	var b strings.Builder
	for _, label := range models.AllStatusLabels() {
		b.WriteString("\n▫️ " + string(label))
	}
	b.WriteString("\n▫️ " + CmdBack)
	return "\n" + b.String()
}
