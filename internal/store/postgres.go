// Package store provides storage backends for ShiftDesk.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/avolkov/shiftdesk/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists the store in a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	dsn := cfg.DSN
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres store ready")
	return &PostgresStore{db: db}, nil
}

// GetOrCreateProfile returns the existing profile or inserts an empty one.
func (s *PostgresStore) GetOrCreateProfile(userID, defaultDisplayName string) (models.UserProfile, error) {
	if userID == "" {
		return models.UserProfile{}, models.ErrEmptyUserID
	}
	var displayName string
	err := s.db.QueryRow(`SELECT display_name FROM profiles WHERE user_id = $1`, userID).Scan(&displayName)
	if err == sql.ErrNoRows {
		if _, err := s.db.Exec(`INSERT INTO profiles (user_id, display_name) VALUES ($1, $2)`, userID, defaultDisplayName); err != nil {
			slog.Error("PostgresStore GetOrCreateProfile insert failed", "error", err, "userID", userID)
			return models.UserProfile{}, fmt.Errorf("failed to create profile for %s: %w", userID, err)
		}
		slog.Debug("PostgresStore created profile", "userID", userID)
		return models.UserProfile{ID: userID, DisplayName: defaultDisplayName}, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetOrCreateProfile query failed", "error", err, "userID", userID)
		return models.UserProfile{}, err
	}
	statuses, err := s.loadStatuses(userID)
	if err != nil {
		return models.UserProfile{}, err
	}
	return models.UserProfile{ID: userID, DisplayName: displayName, Statuses: statuses}, nil
}

func (s *PostgresStore) loadStatuses(userID string) ([]models.StatusRecord, error) {
	rows, err := s.db.Query(`SELECT label, start_date, end_date FROM statuses WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		slog.Error("PostgresStore loadStatuses query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query statuses for %s: %w", userID, err)
	}
	defer rows.Close()

	var statuses []models.StatusRecord
	for rows.Next() {
		var label string
		var start, end time.Time
		if err := rows.Scan(&label, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		statuses = append(statuses, models.StatusRecord{
			Label: models.StatusLabel(label),
			Start: models.DateOf(start),
			End:   models.DateOf(end),
		})
	}
	return statuses, rows.Err()
}

// ListProfiles returns all profiles with their status histories, ordered by user ID.
func (s *PostgresStore) ListProfiles() ([]models.UserProfile, error) {
	rows, err := s.db.Query(`SELECT user_id, display_name FROM profiles ORDER BY user_id`)
	if err != nil {
		slog.Error("PostgresStore ListProfiles query failed", "error", err)
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
func (s *PostgresStore) AppendStatus(userID string, rec models.StatusRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM profiles WHERE user_id = $1`, userID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("append status for %s: %w", userID, models.ErrProfileNotFound)
	}
	_, err := s.db.Exec(`INSERT INTO statuses (user_id, label, start_date, end_date) VALUES ($1, $2, $3, $4)`,
		userID, string(rec.Label), rec.Start.ISO(), rec.End.ISO())
	if err != nil {
		slog.Error("PostgresStore AppendStatus failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert status for %s: %w", userID, err)
	}
	return nil
}

// SaveFlowState stores or updates flow state for a user.
func (s *PostgresStore) SaveFlowState(state models.FlowState) error {
	var stateDataJSON string
	if len(state.StateData) > 0 {
		jsonBytes, err := json.Marshal(state.StateData)
		if err != nil {
			slog.Error("PostgresStore SaveFlowState JSON marshal failed", "error", err, "userID", state.UserID)
			return err
		}
		stateDataJSON = string(jsonBytes)
	}
	_, err := s.db.Exec(`
		INSERT INTO flow_states (user_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, flow_type) DO UPDATE
		SET current_state = EXCLUDED.current_state, state_data = EXCLUDED.state_data, updated_at = EXCLUDED.updated_at`,
		state.UserID, state.FlowType, state.CurrentState, stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState failed", "error", err, "userID", state.UserID)
		return err
	}
	return nil
}

// GetFlowState retrieves flow state for a user.
func (s *PostgresStore) GetFlowState(userID, flowType string) (*models.FlowState, error) {
	var state models.FlowState
	var stateDataJSON sql.NullString
	err := s.db.QueryRow(`SELECT user_id, flow_type, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE user_id = $1 AND flow_type = $2`, userID, flowType).Scan(
		&state.UserID, &state.FlowType, &state.CurrentState, &stateDataJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlowState failed", "error", err, "userID", userID)
		return nil, err
	}
	if stateDataJSON.String != "" {
		state.StateData = make(map[string]string)
		if err := json.Unmarshal([]byte(stateDataJSON.String), &state.StateData); err != nil {
			slog.Error("PostgresStore GetFlowState JSON unmarshal failed", "error", err, "userID", userID)
			state.StateData = make(map[string]string)
		}
	}
	return &state, nil
}

// DeleteFlowState removes flow state for a user.
func (s *PostgresStore) DeleteFlowState(userID, flowType string) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE user_id = $1 AND flow_type = $2`, userID, flowType)
	if err != nil {
		slog.Error("PostgresStore DeleteFlowState failed", "error", err, "userID", userID)
		return err
	}
	return nil
}

// AddShift inserts a shift report.
func (s *PostgresStore) AddShift(shift models.Shift) error {
	_, err := s.db.Exec(`
		INSERT INTO shifts (user_id, clinic, shift_date, shift_number, counter_start, counter_end,
			cash_in, card_in, qr_in, cash_return, card_return, cash_start, cash_end,
			incassation, salary, exchange, pko, rko, total_revenue, receipt_number, submitted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		shift.UserID, shift.Clinic, shift.Date.ISO(), shift.ShiftNumber, shift.CounterStart, shift.CounterEnd,
		shift.CashIn, shift.CardIn, shift.QRIn, shift.CashReturn, shift.CardReturn, shift.CashStart, shift.CashEnd,
		shift.Incassation, shift.Salary, shift.Exchange, shift.PKO, shift.RKO, shift.TotalRevenue,
		nilIfEmpty(shift.ReceiptNum), nilIfEmpty(shift.SubmittedBy), shift.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddShift failed", "error", err, "userID", shift.UserID)
		return fmt.Errorf("failed to insert shift for %s: %w", shift.UserID, err)
	}
	return nil
}

const postgresShiftColumns = `id, user_id, clinic, shift_date, shift_number, counter_start, counter_end,
	cash_in, card_in, qr_in, cash_return, card_return, cash_start, cash_end,
	incassation, salary, exchange, pko, rko, total_revenue, receipt_number, submitted_by, created_at`

func scanPostgresShift(scan func(dest ...interface{}) error) (models.Shift, error) {
	var sh models.Shift
	var date time.Time
	var receipt, submittedBy sql.NullString
	err := scan(
		&sh.ID, &sh.UserID, &sh.Clinic, &date, &sh.ShiftNumber, &sh.CounterStart, &sh.CounterEnd,
		&sh.CashIn, &sh.CardIn, &sh.QRIn, &sh.CashReturn, &sh.CardReturn, &sh.CashStart, &sh.CashEnd,
		&sh.Incassation, &sh.Salary, &sh.Exchange, &sh.PKO, &sh.RKO, &sh.TotalRevenue,
		&receipt, &submittedBy, &sh.CreatedAt)
	if err != nil {
		return sh, err
	}
	sh.Date = models.DateOf(date)
	sh.ReceiptNum = receipt.String
	sh.SubmittedBy = submittedBy.String
	return sh, nil
}

// ListShifts returns all recorded shifts in insertion order.
func (s *PostgresStore) ListShifts() ([]models.Shift, error) {
	rows, err := s.db.Query(`SELECT ` + postgresShiftColumns + ` FROM shifts ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore ListShifts query failed", "error", err)
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []models.Shift
	for rows.Next() {
		sh, err := scanPostgresShift(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift row: %w", err)
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

// LastShift returns the most recently recorded shift for the user.
func (s *PostgresStore) LastShift(userID string) (*models.Shift, error) {
	row := s.db.QueryRow(`SELECT `+postgresShiftColumns+` FROM shifts WHERE user_id = $1 ORDER BY id DESC LIMIT 1`, userID)
	sh, err := scanPostgresShift(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LastShift failed", "error", err, "userID", userID)
		return nil, err
	}
	return &sh, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
