// Package store provides storage backends for ShiftDesk.
//
// It defines the Store capability interface over employee profiles, status
// records, conversation flow states and shift reports, with JSON file,
// SQLite, PostgreSQL and in-memory implementations.
package store

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/avolkov/shiftdesk/internal/models"
)

// Store is the persistence capability shared by the bot and the shift API.
//
// Mutations are persisted before the call returns; there are no partial
// updates. Implementations must be safe for use from multiple goroutines.
type Store interface {
	// GetOrCreateProfile returns the existing profile for userID or creates
	// one with the given display name and an empty status list. Creation is
	// persisted immediately.
	GetOrCreateProfile(userID, defaultDisplayName string) (models.UserProfile, error)

	// ListProfiles returns all profiles ordered by ascending user ID.
	ListProfiles() ([]models.UserProfile, error)

	// AppendStatus validates and appends a status record to the user's
	// profile. Returns models.ErrInvalidDateRange (or
	// models.ErrInvalidStatusLabel) without mutating anything when the
	// record is invalid, and models.ErrProfileNotFound when the user has no
	// profile yet.
	AppendStatus(userID string, rec models.StatusRecord) error

	// SaveFlowState stores or updates conversation flow state for a user.
	SaveFlowState(state models.FlowState) error
	// GetFlowState retrieves flow state for a user, or (nil, nil) when absent.
	GetFlowState(userID, flowType string) (*models.FlowState, error)
	// DeleteFlowState removes flow state for a user.
	DeleteFlowState(userID, flowType string) error

	// AddShift records a submitted shift report.
	AddShift(shift models.Shift) error
	// ListShifts returns all recorded shifts in insertion order.
	ListShifts() ([]models.Shift, error)
	// LastShift returns the most recently recorded shift for the user, or
	// (nil, nil) when the user has none.
	LastShift(userID string) (*models.Shift, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithFilePath sets a JSON document file path.
func WithFilePath(path string) Option {
	return func(o *Opts) { o.DSN = path }
}

// DetectDSNType classifies a DSN as "postgres", "file" or "sqlite".
// PostgreSQL DSNs use the postgres:// scheme or key=value form; .json paths
// select the flat-file backend; everything else is treated as a SQLite path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	if strings.HasSuffix(dsn, ".json") {
		return "file"
	}
	return "sqlite"
}

// New builds a Store from the configured DSN. An empty DSN yields an
// in-memory store, which loses everything on restart.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("No store DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(cfg.DSN) {
	case "postgres":
		slog.Debug("Store DSN detected as PostgreSQL")
		return NewPostgresStore(WithPostgresDSN(cfg.DSN))
	case "file":
		slog.Debug("Store DSN detected as JSON file", "path", cfg.DSN)
		return NewFileStore(WithFilePath(cfg.DSN))
	default:
		slog.Debug("Store DSN detected as SQLite", "path", cfg.DSN)
		return NewSQLiteStore(WithSQLiteDSN(cfg.DSN))
	}
}

// FindStatusForDate scans the profile's statuses in entry order and returns
// the label of the first record whose inclusive range contains the date.
// Overlapping ranges therefore resolve to entry order, not most-recent;
// callers must not assume overlap-free data.
func FindStatusForDate(profile models.UserProfile, date models.Date) (models.StatusLabel, bool) {
	for _, rec := range profile.Statuses {
		if rec.Contains(date) {
			return rec.Label, true
		}
	}
	return "", false
}

// InMemoryStore keeps everything in process memory. Used by tests and as the
// fallback when no DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
	states   map[string]models.FlowState
	shifts   []models.Shift
	nextID   int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]models.UserProfile),
		states:   make(map[string]models.FlowState),
		nextID:   1,
	}
}

func stateKey(userID, flowType string) string {
	return userID + "/" + flowType
}

// GetOrCreateProfile returns the existing profile or creates an empty one.
func (s *InMemoryStore) GetOrCreateProfile(userID, defaultDisplayName string) (models.UserProfile, error) {
	if userID == "" {
		return models.UserProfile{}, models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	p := models.UserProfile{ID: userID, DisplayName: defaultDisplayName}
	s.profiles[userID] = p
	slog.Debug("InMemoryStore created profile", "userID", userID, "displayName", defaultDisplayName)
	return p, nil
}

// ListProfiles returns all profiles ordered by user ID.
func (s *InMemoryStore) ListProfiles() ([]models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profiles := make([]models.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}

// AppendStatus validates and appends a record to the user's status history.
func (s *InMemoryStore) AppendStatus(userID string, rec models.StatusRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return fmt.Errorf("append status for %s: %w", userID, models.ErrProfileNotFound)
	}
	p.Statuses = append(p.Statuses, rec)
	s.profiles[userID] = p
	return nil
}

// SaveFlowState stores or updates flow state for a user.
func (s *InMemoryStore) SaveFlowState(state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(state.UserID, state.FlowType)] = state
	return nil
}

// GetFlowState retrieves flow state for a user.
func (s *InMemoryStore) GetFlowState(userID, flowType string) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey(userID, flowType)]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// DeleteFlowState removes flow state for a user.
func (s *InMemoryStore) DeleteFlowState(userID, flowType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey(userID, flowType))
	return nil
}

// AddShift records a shift report.
func (s *InMemoryStore) AddShift(shift models.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	shift.ID = s.nextID
	s.nextID++
	s.shifts = append(s.shifts, shift)
	return nil
}

// ListShifts returns all recorded shifts.
func (s *InMemoryStore) ListShifts() ([]models.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Shift, len(s.shifts))
	copy(out, s.shifts)
	return out, nil
}

// LastShift returns the most recently recorded shift for the user.
func (s *InMemoryStore) LastShift(userID string) (*models.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.shifts) - 1; i >= 0; i-- {
		if s.shifts[i].UserID == userID {
			shift := s.shifts[i]
			return &shift, nil
		}
	}
	return nil, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
