// Package planning persists the event schedule and the stream status
// counters in JSON files, mirroring how the companion has always been
// deployed (a single process next to its data directory).
package planning

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one schedule line of the 24-hour event.
type Entry struct {
	Time    string `json:"time"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

// Planning is the full schedule document.
type Planning struct {
	Planning []Entry `json:"planning"`
}

// Status carries the donation/subscriber counters shown on the overlay.
type Status struct {
	DonationTotal float64   `json:"donation_total"`
	DonationGoal  float64   `json:"donation_goal"`
	SubsTotal     int       `json:"subs_total"`
	SubsGoal      int       `json:"subs_goal"`
	StreamStart   time.Time `json:"stream_start_time"`
	Message       string    `json:"message,omitempty"`
}

// Store does file-backed read-modify-write for both documents. One mutex
// serializes all access; updates land via temp-file rename so a crash never
// leaves a half-written document.
type Store struct {
	mu           sync.Mutex
	planningPath string
	statusPath   string
}

func NewStore(planningPath, statusPath string) *Store {
	return &Store{planningPath: planningPath, statusPath: statusPath}
}

// GetPlanning loads the schedule; a missing file yields an empty document.
func (s *Store) GetPlanning() (*Planning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p Planning
	if err := readJSON(s.planningPath, &p); err != nil {
		return nil, err
	}
	if p.Planning == nil {
		p.Planning = []Entry{}
	}
	return &p, nil
}

// SavePlanning replaces the schedule document.
func (s *Store) SavePlanning(p *Planning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.planningPath, p)
}

// UpdatePlanning applies fn to the current schedule under the store lock.
func (s *Store) UpdatePlanning(fn func(*Planning)) (*Planning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p Planning
	if err := readJSON(s.planningPath, &p); err != nil {
		return nil, err
	}
	if p.Planning == nil {
		p.Planning = []Entry{}
	}
	fn(&p)
	if err := writeJSON(s.planningPath, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetStatus loads the counters; a missing file yields zero values.
func (s *Store) GetStatus() (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Status
	if err := readJSON(s.statusPath, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// UpdateStatus applies fn to the current counters under the store lock.
func (s *Store) UpdateStatus(fn func(*Status)) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Status
	if err := readJSON(s.statusPath, &st); err != nil {
		return nil, err
	}
	fn(&st)
	if err := writeJSON(s.statusPath, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
