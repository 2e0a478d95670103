package store

import (
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/avolkov/shiftdesk/internal/models"
)

func TestInMemoryStoreProfiles(t *testing.T) {
	s := NewInMemoryStore()

	p, err := s.GetOrCreateProfile("42", "Anna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DisplayName != "Anna" || len(p.Statuses) != 0 {
		t.Errorf("unexpected new profile: %+v", p)
	}

	// Second call returns the existing profile; display name is immutable.
	p, err = s.GetOrCreateProfile("42", "Other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DisplayName != "Anna" {
		t.Errorf("display name changed on second contact: %q", p.DisplayName)
	}

	if _, err := s.GetOrCreateProfile("", "x"); !errors.Is(err, models.ErrEmptyUserID) {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestInMemoryStoreAppendStatus(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.GetOrCreateProfile("42", "Anna"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := models.StatusRecord{
		Label: models.StatusVacation,
		Start: models.NewDate(2025, time.June, 10),
		End:   models.NewDate(2025, time.June, 5),
	}
	if err := s.AppendStatus("42", bad); !errors.Is(err, models.ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
	profiles, _ := s.ListProfiles()
	if len(profiles[0].Statuses) != 0 {
		t.Error("failed validation must not mutate the profile")
	}

	good := models.StatusRecord{
		Label: models.StatusVacation,
		Start: models.NewDate(2025, time.June, 1),
		End:   models.NewDate(2025, time.June, 5),
	}
	if err := s.AppendStatus("42", good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AppendStatus("nobody", good); !errors.Is(err, models.ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestFindStatusForDate(t *testing.T) {
	profile := models.UserProfile{
		ID:          "42",
		DisplayName: "Anna",
		Statuses: []models.StatusRecord{
			{Label: models.StatusVacation, Start: models.NewDate(2025, time.June, 1), End: models.NewDate(2025, time.June, 5)},
			// Overlapping range entered later: entry order wins on reads.
			{Label: models.StatusOnSite, Start: models.NewDate(2025, time.June, 4), End: models.NewDate(2025, time.June, 10)},
		},
	}

	label, ok := FindStatusForDate(profile, models.NewDate(2025, time.June, 3))
	if !ok || label != models.StatusVacation {
		t.Errorf("expected Vacation on 2025-06-03, got %q, %v", label, ok)
	}
	label, ok = FindStatusForDate(profile, models.NewDate(2025, time.June, 4))
	if !ok || label != models.StatusVacation {
		t.Errorf("overlap should resolve to first entry, got %q", label)
	}
	label, ok = FindStatusForDate(profile, models.NewDate(2025, time.June, 6))
	if !ok || label != models.StatusOnSite {
		t.Errorf("expected OnSite on 2025-06-06, got %q, %v", label, ok)
	}
	if _, ok := FindStatusForDate(profile, models.NewDate(2025, time.June, 11)); ok {
		t.Error("date outside all ranges should have no status")
	}
}

func TestInMemoryStoreFlowState(t *testing.T) {
	s := NewInMemoryStore()

	state, err := s.GetFlowState("42", "status")
	if err != nil || state != nil {
		t.Fatalf("expected (nil, nil) for absent state, got %v, %v", state, err)
	}

	now := time.Now()
	err = s.SaveFlowState(models.FlowState{
		UserID: "42", FlowType: "status", CurrentState: "AWAITING_STATUS",
		StateData: map[string]string{"chosenStatus": "Vacation"},
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err = s.GetFlowState("42", "status")
	if err != nil || state == nil {
		t.Fatalf("expected saved state, got %v, %v", state, err)
	}
	if state.CurrentState != "AWAITING_STATUS" || state.StateData["chosenStatus"] != "Vacation" {
		t.Errorf("unexpected state: %+v", state)
	}

	if err := s.DeleteFlowState("42", "status"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, _ = s.GetFlowState("42", "status")
	if state != nil {
		t.Error("state should be gone after delete")
	}
}

func TestInMemoryStoreShifts(t *testing.T) {
	s := NewInMemoryStore()
	sh := models.Shift{UserID: "42", Clinic: "Clinic 1", Date: models.NewDate(2025, time.June, 1), CashEnd: 110}
	if err := s.AddShift(sh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sh.CashEnd = 250
	if err := s.AddShift(sh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	shifts, err := s.ListShifts()
	if err != nil || len(shifts) != 2 {
		t.Fatalf("expected 2 shifts, got %d, %v", len(shifts), err)
	}
	last, err := s.LastShift("42")
	if err != nil || last == nil || last.CashEnd != 250 {
		t.Errorf("LastShift should return the most recent, got %+v, %v", last, err)
	}
	none, err := s.LastShift("nobody")
	if err != nil || none != nil {
		t.Errorf("expected (nil, nil) for unknown user, got %v, %v", none, err)
	}
}

func TestDetectDSNType(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost/db":  "postgres",
		"postgresql://u:p@host/db":     "postgres",
		"host=localhost dbname=sd":     "postgres",
		"/var/lib/shiftdesk/data.json": "file",
		"/var/lib/shiftdesk/sd.db":     "sqlite",
		"shiftdesk.db":                 "sqlite",
	}
	for dsn, want := range cases {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to enable.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	pgStore.db.Exec("DELETE FROM statuses")
	pgStore.db.Exec("DELETE FROM profiles")

	if _, err := pgStore.GetOrCreateProfile("42", "Anna"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := models.StatusRecord{
		Label: models.StatusTravel,
		Start: models.NewDate(2025, time.June, 1),
		End:   models.NewDate(2025, time.June, 5),
	}
	if err := pgStore.AppendStatus("42", rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profiles, err := pgStore.ListProfiles()
	if err != nil || len(profiles) != 1 || len(profiles[0].Statuses) != 1 {
		t.Errorf("status not stored or retrieved correctly in Postgres: %+v, %v", profiles, err)
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
