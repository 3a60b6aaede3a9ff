package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// Store keeps the schedule on disk so edits survive restarts. All
// accessors are safe for concurrent use.
type Store struct {
	path string

	mu    sync.Mutex
	sched Schedule
}

// NewStore returns a store backed by path, holding the default schedule
// until Load or a mutation replaces it.
func NewStore(path string) *Store {
	return &Store{path: path, sched: Default()}
}

// Load reads the schedule file. A file that does not exist yet is fine;
// one that exists but cannot be parsed keeps the defaults and reports
// why.
func (st *Store) Load() error {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading schedule file: %w", err)
	}
	var sched Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return fmt.Errorf("parsing schedule file %v: %w", st.path, err)
	}
	if sched.Mode == "" {
		sched.Mode = ModeManual
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sched = sched
	return nil
}

// Get returns a copy of the current schedule.
func (st *Store) Get() Schedule {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.sched
	out.Weekday = append([]Period{}, st.sched.Weekday...)
	out.Weekend = append([]Period{}, st.sched.Weekend...)
	return out
}

// SetMode switches between manual and schedule control and persists.
func (st *Store) SetMode(mode string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sched.Mode = mode
	return st.save()
}

// SetPeriods replaces the weekday and/or weekend period lists and
// persists. A nil list keeps the existing one.
func (st *Store) SetPeriods(weekday, weekend []Period) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if weekday != nil {
		st.sched.Weekday = append([]Period{}, weekday...)
	}
	if weekend != nil {
		st.sched.Weekend = append([]Period{}, weekend...)
	}
	return st.save()
}

// save writes the schedule out. Caller holds st.mu.
func (st *Store) save() error {
	data, err := json.MarshalIndent(st.sched, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("writing schedule file: %w", err)
	}
	return nil
}
