package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/avolkov/shiftdesk/internal/accounting"
	"github.com/avolkov/shiftdesk/internal/messaging"
	"github.com/avolkov/shiftdesk/internal/models"
	"github.com/avolkov/shiftdesk/internal/report"
	"github.com/avolkov/shiftdesk/internal/store"
)

// Server carries the handler dependencies.
type Server struct {
	store      store.Store
	msgService messaging.Service
	now        func() time.Time
}

// NewServer creates a Server over the given store and messaging service.
// msgService may be nil when the conversational surface is not running.
func NewServer(st store.Store, msgService messaging.Service) *Server {
	return &Server{
		store:      st,
		msgService: msgService,
		now:        time.Now,
	}
}

// Routes builds the HTTP mux for all endpoints.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/shifts", s.shiftsHandler)
	mux.HandleFunc("/shifts/last", s.lastShiftHandler)
	mux.HandleFunc("/schedule", s.scheduleHandler)
	mux.HandleFunc("/profiles", s.profilesHandler)
	if twilioSvc, ok := s.msgService.(*messaging.TwilioService); ok {
		mux.HandleFunc("/twilio/webhook", twilioSvc.TwilioWebhookHandler)
	}
	return mux
}

// shiftRecordedResult is the POST /shifts response payload.
type shiftRecordedResult struct {
	Shift   models.Shift `json:"shift"`
	Warning string       `json:"warning,omitempty"`
}

const counterMismatchWarning = "counter delta does not match total revenue"

// shiftsHandler records a shift (POST) or lists all shifts (GET).
func (s *Server) shiftsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodPost:
		s.recordShift(w, r)
	case http.MethodGet:
		s.listShifts(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// recordShift decodes a shift submission, derives the accounting totals
// server-side and persists the result. A counter mismatch is advisory: the
// shift is stored either way and the response carries a warning.
func (s *Server) recordShift(w http.ResponseWriter, r *http.Request) {
	var shift models.Shift
	if err := json.NewDecoder(r.Body).Decode(&shift); err != nil {
		slog.Warn("Server.recordShift: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if shift.UserID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}
	if shift.Date.IsZero() {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("date is required"))
		return
	}

	shift.TotalRevenue = accounting.TotalRevenue(shift.CashIn, shift.CardIn, shift.QRIn, shift.CashReturn, shift.CardReturn)
	shift.CashEnd = accounting.ClosingCash(shift.CashStart, shift.CashIn, shift.Incassation, shift.Salary, shift.RKO, shift.PKO, shift.Exchange)
	shift.CreatedAt = s.now()

	result := shiftRecordedResult{Shift: shift}
	if !accounting.CounterMatchesRevenue(shift.CounterStart, shift.CounterEnd, shift.TotalRevenue) {
		result.Warning = counterMismatchWarning
		slog.Warn("Server.recordShift: counter mismatch",
			"user_id", shift.UserID,
			"counter_delta", shift.CounterEnd-shift.CounterStart,
			"total_revenue", shift.TotalRevenue)
	}

	if err := s.store.AddShift(shift); err != nil {
		slog.Error("Server.recordShift: failed to persist shift", "error", err, "user_id", shift.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record shift"))
		return
	}

	slog.Info("Server.recordShift: shift recorded", "user_id", shift.UserID, "date", shift.Date, "total_revenue", shift.TotalRevenue)
	writeJSONResponse(w, http.StatusCreated, models.Recorded("Shift recorded", result))
}

func (s *Server) listShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := s.store.ListShifts()
	if err != nil {
		slog.Error("Server.listShifts: failed to list shifts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list shifts"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(shifts))
}

// lastShiftHandler returns the user's most recent shift, used by clients to
// prefill the next shift's opening cash from the last closing balance.
func (s *Server) lastShiftHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user query parameter is required"))
		return
	}
	shift, err := s.store.LastShift(userID)
	if err != nil {
		slog.Error("Server.lastShiftHandler: failed to load shift", "error", err, "user_id", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load shift"))
		return
	}
	if shift == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No shifts recorded for user"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(shift))
}

// scheduleHandler renders the employee schedule report for 7 or 30 days.
func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	days := report.WeekDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || (parsed != report.WeekDays && parsed != report.MonthDays) {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("days must be 7 or 30"))
			return
		}
		days = parsed
	}
	profiles, err := s.store.ListProfiles()
	if err != nil {
		slog.Error("Server.scheduleHandler: failed to list profiles", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load profiles"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report.Generate(profiles, models.DateOf(s.now()), days)))
}

// profilesHandler lists all employee profiles with their status history.
func (s *Server) profilesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	profiles, err := s.store.ListProfiles()
	if err != nil {
		slog.Error("Server.profilesHandler: failed to list profiles", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load profiles"))
		return
	}
	// Profiles marshal without the user ID; wrap them so callers can key
	// the result.
	type profileEntry struct {
		UserID  string             `json:"user_id"`
		Profile models.UserProfile `json:"profile"`
	}
	entries := make([]profileEntry, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, profileEntry{UserID: p.ID, Profile: p})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(entries))
}
