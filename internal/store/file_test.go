package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avolkov/shiftdesk/internal/models"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := NewFileStore(WithFilePath(path))
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	return s
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := NewFileStore(WithFilePath(path))
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}

	if _, err := s.GetOrCreateProfile("42", "Anna"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := models.StatusRecord{
		Label: models.StatusVacation,
		Start: models.NewDate(2025, time.June, 1),
		End:   models.NewDate(2025, time.June, 5),
	}
	if err := s.AppendStatus("42", rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A fresh store over the same file sees the persisted data.
	reopened, err := NewFileStore(WithFilePath(path))
	if err != nil {
		t.Fatalf("failed to reopen file store: %v", err)
	}
	profiles, err := reopened.ListProfiles()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 1 || profiles[0].DisplayName != "Anna" || len(profiles[0].Statuses) != 1 {
		t.Fatalf("persisted data not read back: %+v", profiles)
	}
	got := profiles[0].Statuses[0]
	if got.Label != models.StatusVacation || !got.Start.Equal(rec.Start) || !got.End.Equal(rec.End) {
		t.Errorf("status record mangled through file round trip: %+v", got)
	}
}

func TestFileStoreMissingFileReadsEmpty(t *testing.T) {
	s := newTestFileStore(t)
	profiles, err := s.ListProfiles()
	if err != nil {
		t.Fatalf("missing file should read as empty store, got error: %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("expected empty store, got %d profiles", len(profiles))
	}
}

func TestFileStoreCorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}
	s, err := NewFileStore(WithFilePath(path))
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	profiles, err := s.ListProfiles()
	if err != nil {
		t.Fatalf("corrupt file should read as empty store, got error: %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("expected empty store, got %d profiles", len(profiles))
	}
}

func TestFileStoreAppendStatusValidation(t *testing.T) {
	s := newTestFileStore(t)
	if _, err := s.GetOrCreateProfile("42", "Anna"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := models.StatusRecord{
		Label: models.StatusOnSite,
		Start: models.NewDate(2025, time.June, 10),
		End:   models.NewDate(2025, time.June, 5),
	}
	if err := s.AppendStatus("42", bad); !errors.Is(err, models.ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
	profiles, _ := s.ListProfiles()
	if len(profiles[0].Statuses) != 0 {
		t.Error("failed validation must not be persisted")
	}
}

func TestFileStoreFlowStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s, err := NewFileStore(WithFilePath(path))
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	now := time.Now()
	err = s.SaveFlowState(models.FlowState{
		UserID: "42", FlowType: "status", CurrentState: "AWAITING_END_DATE",
		StateData: map[string]string{"chosenStatus": "OnSite", "pendingStartDate": "2025-06-01"},
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, err := NewFileStore(WithFilePath(path))
	if err != nil {
		t.Fatalf("failed to reopen file store: %v", err)
	}
	state, err := reopened.GetFlowState("42", "status")
	if err != nil || state == nil {
		t.Fatalf("flow state should survive reopen, got %v, %v", state, err)
	}
	if state.CurrentState != "AWAITING_END_DATE" || state.StateData["pendingStartDate"] != "2025-06-01" {
		t.Errorf("unexpected state after reopen: %+v", state)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shiftdesk.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(path))
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	defer s.Close()

	if _, err := s.GetOrCreateProfile("42", "Anna"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := models.StatusRecord{
		Label: models.StatusInOffice,
		Start: models.NewDate(2025, time.June, 1),
		End:   models.NewDate(2025, time.June, 5),
	}
	if err := s.AppendStatus("42", rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profiles, err := s.ListProfiles()
	if err != nil || len(profiles) != 1 || len(profiles[0].Statuses) != 1 {
		t.Fatalf("status not stored or retrieved correctly in SQLite: %+v, %v", profiles, err)
	}

	sh := models.Shift{
		UserID: "42", Clinic: "Clinic 1", Date: models.NewDate(2025, time.June, 1),
		ShiftNumber: 1, CashIn: 100, TotalRevenue: 300, CashEnd: 110, CreatedAt: time.Now(),
	}
	if err := s.AddShift(sh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last, err := s.LastShift("42")
	if err != nil || last == nil || last.CashEnd != 110 {
		t.Errorf("shift not stored or retrieved correctly: %+v, %v", last, err)
	}
}
