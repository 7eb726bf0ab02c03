package record

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store for dev and tests. It applies the same
// ordering, enrichment, and merge rules as the Redis store.
type MemoryStore struct {
	mu      sync.Mutex
	rosters map[string][]Student         // classKey -> students
	days    map[string]map[string]DayMap // classKey -> date -> entries
	seq     int
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rosters: make(map[string][]Student),
		days:    make(map[string]map[string]DayMap),
		now:     time.Now,
	}
}

// SetClock overrides the write-time clock; tests only.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

// Roster returns the class roster ordered by index, then name.
func (s *MemoryStore) Roster(ctx context.Context, class Class) ([]Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	students := make([]Student, len(s.rosters[class.Key()]))
	copy(students, s.rosters[class.Key()])
	sortRoster(students)
	return students, nil
}

// AddStudent creates a roster entry with a generated sequential id.
func (s *MemoryStore) AddStudent(ctx context.Context, class Class, name, index string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("s%03d", s.seq)
	s.rosters[class.Key()] = append(s.rosters[class.Key()], Student{ID: id, Name: name, Index: index})
	return id, nil
}

// UpdateStudent applies a partial update to one roster entry.
func (s *MemoryStore) UpdateStudent(ctx context.Context, class Class, studentID string, patch StudentPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := s.rosters[class.Key()]
	for i := range roster {
		if roster[i].ID != studentID {
			continue
		}
		if patch.Name != nil {
			roster[i].Name = *patch.Name
		}
		if patch.Index != nil {
			roster[i].Index = *patch.Index
		}
		return nil
	}
	return fmt.Errorf("student %s not found in %s", studentID, class.Key())
}

// RemoveStudent deletes one roster entry.
func (s *MemoryStore) RemoveStudent(ctx context.Context, class Class, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := s.rosters[class.Key()]
	for i := range roster {
		if roster[i].ID == studentID {
			s.rosters[class.Key()] = append(roster[:i:i], roster[i+1:]...)
			return nil
		}
	}
	return nil
}

// Day returns a copy of the record map for one date.
func (s *MemoryStore) Day(ctx context.Context, class Class, date string) (DayMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := make(DayMap)
	for id, entry := range s.days[class.Key()][date] {
		day[id] = entry
	}
	return day, nil
}

// SaveDay writes the full record map for a date.
func (s *MemoryStore) SaveDay(ctx context.Context, class Class, date string, entries DayMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := make([]Student, len(s.rosters[class.Key()]))
	copy(roster, s.rosters[class.Key()])
	if s.days[class.Key()] == nil {
		s.days[class.Key()] = make(map[string]DayMap)
	}
	s.days[class.Key()][date] = enrichDay(entries, roster, s.now().UTC())
	return nil
}

// SeedDay installs a raw record map without enrichment; tests only.
func (s *MemoryStore) SeedDay(class Class, date string, entries DayMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.days[class.Key()] == nil {
		s.days[class.Key()] = make(map[string]DayMap)
	}
	s.days[class.Key()][date] = entries
}

// History returns up to limit most-recent dated record maps, date ascending.
func (s *MemoryStore) History(ctx context.Context, class Class, limit int) ([]Day, error) {
	if limit <= 0 {
		limit = 30
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dates := make([]string, 0, len(s.days[class.Key()]))
	for date, day := range s.days[class.Key()] {
		if len(day) > 0 {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	if len(dates) > limit {
		dates = dates[len(dates)-limit:]
	}
	days := make([]Day, 0, len(dates))
	for _, date := range dates {
		day := make(DayMap)
		for id, entry := range s.days[class.Key()][date] {
			day[id] = entry
		}
		days = append(days, Day{Date: date, Entries: day})
	}
	return days, nil
}

// MigrateDay rewrites one date in the structured encoding.
func (s *MemoryStore) MigrateDay(ctx context.Context, class Class, date string) (bool, error) {
	day, err := s.Day(ctx, class, date)
	if err != nil {
		return false, err
	}
	if len(day) == 0 {
		return false, nil
	}
	if err := s.SaveDay(ctx, class, date, day); err != nil {
		return false, err
	}
	return true, nil
}
