// Package store provides storage backends for ShiftDesk.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/avolkov/shiftdesk/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists the store in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database; the parent directory is
// created if it doesn't exist.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	dsn := cfg.DSN
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite store ready", "path", dsn)
	return &SQLiteStore{db: db}, nil
}

// GetOrCreateProfile returns the existing profile or inserts an empty one.
func (s *SQLiteStore) GetOrCreateProfile(userID, defaultDisplayName string) (models.UserProfile, error) {
	if userID == "" {
		return models.UserProfile{}, models.ErrEmptyUserID
	}
	var displayName string
	err := s.db.QueryRow(`SELECT display_name FROM profiles WHERE user_id = ?`, userID).Scan(&displayName)
	if err == sql.ErrNoRows {
		if _, err := s.db.Exec(`INSERT INTO profiles (user_id, display_name) VALUES (?, ?)`, userID, defaultDisplayName); err != nil {
			slog.Error("SQLiteStore GetOrCreateProfile insert failed", "error", err, "userID", userID)
			return models.UserProfile{}, fmt.Errorf("failed to create profile for %s: %w", userID, err)
		}
		slog.Debug("SQLiteStore created profile", "userID", userID)
		return models.UserProfile{ID: userID, DisplayName: defaultDisplayName}, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetOrCreateProfile query failed", "error", err, "userID", userID)
		return models.UserProfile{}, err
	}
	statuses, err := s.loadStatuses(userID)
	if err != nil {
		return models.UserProfile{}, err
	}
	return models.UserProfile{ID: userID, DisplayName: displayName, Statuses: statuses}, nil
}

func (s *SQLiteStore) loadStatuses(userID string) ([]models.StatusRecord, error) {
	rows, err := s.db.Query(`SELECT label, start_date, end_date FROM statuses WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		slog.Error("SQLiteStore loadStatuses query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query statuses for %s: %w", userID, err)
	}
	defer rows.Close()

	var statuses []models.StatusRecord
	for rows.Next() {
		var label, start, end string
		if err := rows.Scan(&label, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		startDate, err := models.ParseISODate(start)
		if err != nil {
			return nil, err
		}
		endDate, err := models.ParseISODate(end)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, models.StatusRecord{Label: models.StatusLabel(label), Start: startDate, End: endDate})
	}
	return statuses, rows.Err()
}

// ListProfiles returns all profiles with their status histories, ordered by user ID.
func (s *SQLiteStore) ListProfiles() ([]models.UserProfile, error) {
	rows, err := s.db.Query(`SELECT user_id, display_name FROM profiles ORDER BY user_id`)
	if err != nil {
		slog.Error("SQLiteStore ListProfiles query failed", "error", err)
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		var p models.UserProfile
		if err := rows.Scan(&p.ID, &p.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range profiles {
		statuses, err := s.loadStatuses(profiles[i].ID)
		if err != nil {
			return nil, err
		}
		profiles[i].Statuses = statuses
	}
	return profiles, nil
}

// AppendStatus validates and inserts a status record for the user.
func (s *SQLiteStore) AppendStatus(userID string, rec models.StatusRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM profiles WHERE user_id = ?`, userID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("append status for %s: %w", userID, models.ErrProfileNotFound)
	}
	_, err := s.db.Exec(`INSERT INTO statuses (user_id, label, start_date, end_date) VALUES (?, ?, ?, ?)`,
		userID, string(rec.Label), rec.Start.ISO(), rec.End.ISO())
	if err != nil {
		slog.Error("SQLiteStore AppendStatus failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert status for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore AppendStatus succeeded", "userID", userID, "label", rec.Label)
	return nil
}

// SaveFlowState stores or updates flow state for a user.
func (s *SQLiteStore) SaveFlowState(state models.FlowState) error {
	var stateDataJSON string
	if len(state.StateData) > 0 {
		jsonBytes, err := json.Marshal(state.StateData)
		if err != nil {
			slog.Error("SQLiteStore SaveFlowState JSON marshal failed", "error", err, "userID", state.UserID)
			return err
		}
		stateDataJSON = string(jsonBytes)
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO flow_states (user_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		state.UserID, state.FlowType, state.CurrentState, stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState failed", "error", err, "userID", state.UserID)
		return err
	}
	return nil
}

// GetFlowState retrieves flow state for a user.
func (s *SQLiteStore) GetFlowState(userID, flowType string) (*models.FlowState, error) {
	var state models.FlowState
	var stateDataJSON string
	err := s.db.QueryRow(`SELECT user_id, flow_type, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE user_id = ? AND flow_type = ?`, userID, flowType).Scan(
		&state.UserID, &state.FlowType, &state.CurrentState, &stateDataJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlowState failed", "error", err, "userID", userID)
		return nil, err
	}
	if stateDataJSON != "" {
		state.StateData = make(map[string]string)
		if err := json.Unmarshal([]byte(stateDataJSON), &state.StateData); err != nil {
			slog.Error("SQLiteStore GetFlowState JSON unmarshal failed", "error", err, "userID", userID)
			state.StateData = make(map[string]string)
		}
	}
	return &state, nil
}

// DeleteFlowState removes flow state for a user.
func (s *SQLiteStore) DeleteFlowState(userID, flowType string) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE user_id = ? AND flow_type = ?`, userID, flowType)
	if err != nil {
		slog.Error("SQLiteStore DeleteFlowState failed", "error", err, "userID", userID)
		return err
	}
	return nil
}

// AddShift inserts a shift report.
func (s *SQLiteStore) AddShift(shift models.Shift) error {
	_, err := s.db.Exec(`
		INSERT INTO shifts (user_id, clinic, shift_date, shift_number, counter_start, counter_end,
			cash_in, card_in, qr_in, cash_return, card_return, cash_start, cash_end,
			incassation, salary, exchange, pko, rko, total_revenue, receipt_number, submitted_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shift.UserID, shift.Clinic, shift.Date.ISO(), shift.ShiftNumber, shift.CounterStart, shift.CounterEnd,
		shift.CashIn, shift.CardIn, shift.QRIn, shift.CashReturn, shift.CardReturn, shift.CashStart, shift.CashEnd,
		shift.Incassation, shift.Salary, shift.Exchange, shift.PKO, shift.RKO, shift.TotalRevenue,
		nilIfEmpty(shift.ReceiptNum), nilIfEmpty(shift.SubmittedBy), shift.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddShift failed", "error", err, "userID", shift.UserID)
		return fmt.Errorf("failed to insert shift for %s: %w", shift.UserID, err)
	}
	slog.Debug("SQLiteStore AddShift succeeded", "userID", shift.UserID, "date", shift.Date)
	return nil
}

const sqliteShiftColumns = `id, user_id, clinic, shift_date, shift_number, counter_start, counter_end,
	cash_in, card_in, qr_in, cash_return, card_return, cash_start, cash_end,
	incassation, salary, exchange, pko, rko, total_revenue, receipt_number, submitted_by, created_at`

func scanSQLiteShift(scan func(dest ...interface{}) error) (models.Shift, error) {
	var sh models.Shift
	var dateStr string
	var receipt, submittedBy sql.NullString
	err := scan(
		&sh.ID, &sh.UserID, &sh.Clinic, &dateStr, &sh.ShiftNumber, &sh.CounterStart, &sh.CounterEnd,
		&sh.CashIn, &sh.CardIn, &sh.QRIn, &sh.CashReturn, &sh.CardReturn, &sh.CashStart, &sh.CashEnd,
		&sh.Incassation, &sh.Salary, &sh.Exchange, &sh.PKO, &sh.RKO, &sh.TotalRevenue,
		&receipt, &submittedBy, &sh.CreatedAt)
	if err != nil {
		return sh, err
	}
	date, err := models.ParseISODate(dateStr)
	if err != nil {
		return sh, err
	}
	sh.Date = date
	sh.ReceiptNum = receipt.String
	sh.SubmittedBy = submittedBy.String
	return sh, nil
}

// ListShifts returns all recorded shifts in insertion order.
func (s *SQLiteStore) ListShifts() ([]models.Shift, error) {
	rows, err := s.db.Query(`SELECT ` + sqliteShiftColumns + ` FROM shifts ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore ListShifts query failed", "error", err)
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []models.Shift
	for rows.Next() {
		sh, err := scanSQLiteShift(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift row: %w", err)
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

// LastShift returns the most recently recorded shift for the user.
func (s *SQLiteStore) LastShift(userID string) (*models.Shift, error) {
	row := s.db.QueryRow(`SELECT `+sqliteShiftColumns+` FROM shifts WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID)
	sh, err := scanSQLiteShift(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LastShift failed", "error", err, "userID", userID)
		return nil, err
	}
	return &sh, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
