// Flat-file JSON backend. The whole document is read before each operation
// and rewritten wholesale after each mutation; there are no partial updates
// and no transactions. The instance lock in internal/lockfile guards against
// a second writing process.

package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/avolkov/shiftdesk/internal/models"
)

// DefaultFilePermissions defines the permissions for the JSON document.
const DefaultFilePermissions = 0644

// fileProfile is the on-disk shape of one employee entry: a display name
// plus the status history, keyed by user ID in the top-level document.
type fileProfile struct {
	DisplayName string                `json:"display_name"`
	Statuses    []models.StatusRecord `json:"statuses"`
}

// fileDocument is the single persisted JSON document.
type fileDocument struct {
	Profiles   map[string]fileProfile      `json:"profiles"`
	FlowStates map[string]models.FlowState `json:"flow_states,omitempty"`
	Shifts     []models.Shift              `json:"shifts,omitempty"`
	NextShift  int64                       `json:"next_shift_id,omitempty"`
}

// FileStore persists the whole store as one JSON document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a JSON file store at the configured path. The parent
// directory is created if missing; the file itself is created on first write.
func NewFileStore(opts ...Option) (*FileStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store file path not set")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	slog.Debug("FileStore initialized", "path", cfg.DSN)
	return &FileStore{path: cfg.DSN}, nil
}

// load reads the whole document. A missing or corrupt file reads as an empty
// store rather than an error.
func (s *FileStore) load() fileDocument {
	doc := fileDocument{Profiles: make(map[string]fileProfile), NextShift: 1}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("FileStore read failed, treating as empty store", "error", err, "path", s.path)
		}
		return doc
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("FileStore document corrupt, treating as empty store", "error", err, "path", s.path)
		return fileDocument{Profiles: make(map[string]fileProfile), NextShift: 1}
	}
	if doc.Profiles == nil {
		doc.Profiles = make(map[string]fileProfile)
	}
	if doc.NextShift == 0 {
		doc.NextShift = 1
	}
	return doc
}

// save rewrites the whole document. Failures propagate to the caller.
func (s *FileStore) save(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store document: %w", err)
	}
	if err := os.WriteFile(s.path, data, DefaultFilePermissions); err != nil {
		slog.Error("FileStore write failed", "error", err, "path", s.path)
		return fmt.Errorf("failed to write store file %s: %w", s.path, err)
	}
	return nil
}

// GetOrCreateProfile returns the existing profile or creates and persists one.
func (s *FileStore) GetOrCreateProfile(userID, defaultDisplayName string) (models.UserProfile, error) {
	if userID == "" {
		return models.UserProfile{}, models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	if p, ok := doc.Profiles[userID]; ok {
		return models.UserProfile{ID: userID, DisplayName: p.DisplayName, Statuses: p.Statuses}, nil
	}
	doc.Profiles[userID] = fileProfile{DisplayName: defaultDisplayName, Statuses: []models.StatusRecord{}}
	if err := s.save(doc); err != nil {
		return models.UserProfile{}, err
	}
	slog.Debug("FileStore created profile", "userID", userID, "displayName", defaultDisplayName)
	return models.UserProfile{ID: userID, DisplayName: defaultDisplayName}, nil
}

// ListProfiles returns all profiles ordered by user ID.
func (s *FileStore) ListProfiles() ([]models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	ids := make([]string, 0, len(doc.Profiles))
	for id := range doc.Profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	profiles := make([]models.UserProfile, 0, len(ids))
	for _, id := range ids {
		p := doc.Profiles[id]
		profiles = append(profiles, models.UserProfile{ID: id, DisplayName: p.DisplayName, Statuses: p.Statuses})
	}
	return profiles, nil
}

// AppendStatus validates and appends a record, then rewrites the document.
func (s *FileStore) AppendStatus(userID string, rec models.StatusRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	p, ok := doc.Profiles[userID]
	if !ok {
		return fmt.Errorf("append status for %s: %w", userID, models.ErrProfileNotFound)
	}
	p.Statuses = append(p.Statuses, rec)
	doc.Profiles[userID] = p
	return s.save(doc)
}

// SaveFlowState stores or updates flow state for a user.
func (s *FileStore) SaveFlowState(state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	if doc.FlowStates == nil {
		doc.FlowStates = make(map[string]models.FlowState)
	}
	doc.FlowStates[stateKey(state.UserID, state.FlowType)] = state
	return s.save(doc)
}

// GetFlowState retrieves flow state for a user.
func (s *FileStore) GetFlowState(userID, flowType string) (*models.FlowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	state, ok := doc.FlowStates[stateKey(userID, flowType)]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// DeleteFlowState removes flow state for a user.
func (s *FileStore) DeleteFlowState(userID, flowType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	if doc.FlowStates == nil {
		return nil
	}
	if _, ok := doc.FlowStates[stateKey(userID, flowType)]; !ok {
		return nil
	}
	delete(doc.FlowStates, stateKey(userID, flowType))
	return s.save(doc)
}

// AddShift records a shift report.
func (s *FileStore) AddShift(shift models.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	shift.ID = doc.NextShift
	doc.NextShift++
	doc.Shifts = append(doc.Shifts, shift)
	return s.save(doc)
}

// ListShifts returns all recorded shifts.
func (s *FileStore) ListShifts() ([]models.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	return doc.Shifts, nil
}

// LastShift returns the most recently recorded shift for the user.
func (s *FileStore) LastShift(userID string) (*models.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	for i := len(doc.Shifts) - 1; i >= 0; i-- {
		if doc.Shifts[i].UserID == userID {
			shift := doc.Shifts[i]
			return &shift, nil
		}
	}
	return nil, nil
}

// Close is a no-op; the file is not held open between operations.
func (s *FileStore) Close() error { return nil }
