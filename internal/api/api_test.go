package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/shiftdesk/internal/messaging"
	"github.com/avolkov/shiftdesk/internal/models"
	"github.com/avolkov/shiftdesk/internal/store"
	"github.com/avolkov/shiftdesk/internal/twiliowhatsapp"
)

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	s := NewServer(st, nil)
	s.now = func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }
	return s, st
}

func decodeResponse(t *testing.T, body string) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("invalid JSON response %q: %v", body, err)
	}
	return resp
}

func TestRecordShiftComputesDerivedFields(t *testing.T) {
	s, st := newTestServer(t)

	// Client-supplied total_revenue and cash_end are ignored.
	payload := `{
		"user_id": "42",
		"clinic": "Central",
		"date": "2025-06-01",
		"shift_number": 1,
		"counter_start": 100,
		"counter_end": 150,
		"cash_in": 30,
		"card_in": 15,
		"qr_in": 10,
		"cash_return": 3,
		"card_return": 2,
		"cash_start": 200,
		"incassation": 50,
		"salary": 20,
		"rko": 5,
		"pko": 10,
		"exchange": 0,
		"total_revenue": 99999,
		"cash_end": 99999
	}`

	req := httptest.NewRequest("POST", "/shifts", strings.NewReader(payload))
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != 201 {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w.Body.String())
	if resp.Status != string(models.APIStatusRecorded) {
		t.Errorf("expected recorded status, got %q", resp.Status)
	}

	shifts, _ := st.ListShifts()
	if len(shifts) != 1 {
		t.Fatalf("expected one stored shift, got %d", len(shifts))
	}
	shift := shifts[0]
	if shift.TotalRevenue != 50 {
		t.Errorf("TotalRevenue = %v, want 50", shift.TotalRevenue)
	}
	if shift.CashEnd != 165 {
		t.Errorf("CashEnd = %v, want 165", shift.CashEnd)
	}

	// Counter delta (50) matches revenue (50): no warning.
	if strings.Contains(w.Body.String(), counterMismatchWarning) {
		t.Errorf("unexpected warning in response: %s", w.Body.String())
	}
}

func TestRecordShiftFlagsCounterMismatch(t *testing.T) {
	s, st := newTestServer(t)

	payload := `{
		"user_id": "42",
		"date": "2025-06-01",
		"counter_start": 100,
		"counter_end": 160,
		"cash_in": 50
	}`

	req := httptest.NewRequest("POST", "/shifts", strings.NewReader(payload))
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != 201 {
		t.Fatalf("expected 201 despite mismatch, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), counterMismatchWarning) {
		t.Errorf("expected advisory warning, got %s", w.Body.String())
	}
	// The shift is stored anyway.
	shifts, _ := st.ListShifts()
	if len(shifts) != 1 {
		t.Errorf("mismatched shift must still be stored, got %d", len(shifts))
	}
}

func TestRecordShiftValidation(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []struct {
		name    string
		payload string
	}{
		{"bad json", `{not json`},
		{"missing user", `{"date": "2025-06-01"}`},
		{"missing date", `{"user_id": "42"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/shifts", strings.NewReader(c.payload))
			w := httptest.NewRecorder()
			s.Routes().ServeHTTP(w, req)
			if w.Code != 400 {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestLastShiftHandler(t *testing.T) {
	s, st := newTestServer(t)
	mux := s.Routes()

	req := httptest.NewRequest("GET", "/shifts/last?user=42", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != 404 {
		t.Errorf("expected 404 for user with no shifts, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/shifts/last", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Errorf("expected 400 without user parameter, got %d", w.Code)
	}

	for _, cashEnd := range []float64{100, 250} {
		if err := st.AddShift(models.Shift{UserID: "42", CashEnd: cashEnd}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	req = httptest.NewRequest("GET", "/shifts/last?user=42", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"cash_end":250`) {
		t.Errorf("expected the most recent shift, got %s", w.Body.String())
	}
}

func TestScheduleHandler(t *testing.T) {
	s, st := newTestServer(t)
	mux := s.Routes()

	if _, err := st.GetOrCreateProfile("42", "Anna"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.AppendStatus("42", models.StatusRecord{
		Label: models.StatusVacation,
		Start: models.NewDate(2025, time.June, 1),
		End:   models.NewDate(2025, time.June, 3),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest("GET", "/schedule", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "Schedule for the week") {
		t.Errorf("expected week schedule by default, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/schedule?days=30", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "Schedule for the month") {
		t.Errorf("expected month schedule, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/schedule?days=14", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Errorf("expected 400 for unsupported span, got %d", w.Code)
	}
}

func TestProfilesHandler(t *testing.T) {
	s, st := newTestServer(t)

	if _, err := st.GetOrCreateProfile("42", "Anna"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest("GET", "/profiles", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"user_id":"42"`) || !strings.Contains(w.Body.String(), "Anna") {
		t.Errorf("expected profile entry with user ID, got %s", w.Body.String())
	}
}

func TestTwilioWebhookMountedOnlyForTwilio(t *testing.T) {
	st := store.NewInMemoryStore()

	s := NewServer(st, nil)
	req := httptest.NewRequest("POST", "/twilio/webhook", nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)
	if w.Code != 404 {
		t.Errorf("webhook should not be mounted without Twilio, got %d", w.Code)
	}

	svc := messaging.NewTwilioService(twiliowhatsapp.NewMockClient())
	s = NewServer(st, svc)
	req = httptest.NewRequest("POST", "/twilio/webhook", strings.NewReader("From=whatsapp%3A%2B15551234567&Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)
	if w.Code != 200 {
		t.Errorf("expected webhook to accept inbound message, got %d: %s", w.Code, w.Body.String())
	}
}
