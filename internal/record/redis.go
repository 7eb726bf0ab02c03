package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	rosterPrefix = "roster:"     // Hash: roster:{classKey} -> studentID => {name,index}
	dayPrefix    = "attendance:" // String: attendance:{classKey}:{date} -> JSON day map
	dateIndexSuf = ":dates"      // Sorted set: attendance:{classKey}:dates -> date members
)

// RedisStore persists rosters and attendance maps as JSON documents in Redis.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore creates a store backed by the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func rosterKey(class Class) string { return rosterPrefix + class.Key() }

func dayKey(class Class, date string) string {
	return dayPrefix + class.Key() + ":" + date
}

func dateIndexKey(class Class) string { return dayPrefix + class.Key() + dateIndexSuf }

type rosterDoc struct {
	Name  string `json:"name"`
	Index string `json:"index"`
}

// Roster returns all students of a class ordered by index, then name. Redis
// hashes have no field order, so the sort is what gives fragment matching a
// stable "first match".
func (s *RedisStore) Roster(ctx context.Context, class Class) ([]Student, error) {
	data, err := s.client.HGetAll(ctx, rosterKey(class)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch roster %s: %w", class.Key(), err)
	}
	students := make([]Student, 0, len(data))
	for id, raw := range data {
		var doc rosterDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode roster entry %s: %w", id, err)
		}
		students = append(students, Student{ID: id, Name: doc.Name, Index: doc.Index})
	}
	sortRoster(students)
	return students, nil
}

func sortRoster(students []Student) {
	sort.Slice(students, func(i, j int) bool {
		if students[i].Index != students[j].Index {
			return students[i].Index < students[j].Index
		}
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].ID < students[j].ID
	})
}

// AddStudent creates a roster entry under a generated key.
func (s *RedisStore) AddStudent(ctx context.Context, class Class, name, index string) (string, error) {
	id := uuid.NewString()
	raw, err := json.Marshal(rosterDoc{Name: name, Index: index})
	if err != nil {
		return "", err
	}
	if err := s.client.HSet(ctx, rosterKey(class), id, raw).Err(); err != nil {
		return "", fmt.Errorf("add student to %s: %w", class.Key(), err)
	}
	return id, nil
}

// UpdateStudent applies a partial update to one roster entry.
func (s *RedisStore) UpdateStudent(ctx context.Context, class Class, studentID string, patch StudentPatch) error {
	raw, err := s.client.HGet(ctx, rosterKey(class), studentID).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("student %s not found in %s", studentID, class.Key())
	}
	if err != nil {
		return fmt.Errorf("fetch student %s: %w", studentID, err)
	}
	var doc rosterDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("decode roster entry %s: %w", studentID, err)
	}
	if patch.Name != nil {
		doc.Name = *patch.Name
	}
	if patch.Index != nil {
		doc.Index = *patch.Index
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, rosterKey(class), studentID, out).Err()
}

// RemoveStudent deletes one roster entry. Attendance records keep their
// denormalized name snapshot, so history stays readable.
func (s *RedisStore) RemoveStudent(ctx context.Context, class Class, studentID string) error {
	return s.client.HDel(ctx, rosterKey(class), studentID).Err()
}

// Day returns the record map for one date.
func (s *RedisStore) Day(ctx context.Context, class Class, date string) (DayMap, error) {
	raw, err := s.client.Get(ctx, dayKey(class, date)).Result()
	if errors.Is(err, redis.Nil) {
		return DayMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch attendance %s/%s: %w", class.Key(), date, err)
	}
	var day DayMap
	if err := json.Unmarshal([]byte(raw), &day); err != nil {
		return nil, fmt.Errorf("decode attendance %s/%s: %w", class.Key(), date, err)
	}
	return day, nil
}

// SaveDay writes the full record map for a date and indexes the date for
// history queries.
func (s *RedisStore) SaveDay(ctx context.Context, class Class, date string, entries DayMap) error {
	roster, err := s.Roster(ctx, class)
	if err != nil {
		return err
	}
	processed := enrichDay(entries, roster, s.now().UTC())

	raw, err := json.Marshal(processed)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, dayKey(class, date), raw, 0)
	pipe.ZAdd(ctx, dateIndexKey(class), redis.Z{Score: 0, Member: date})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save attendance %s/%s: %w", class.Key(), date, err)
	}
	return nil
}

// enrichDay stamps entries with the write time and the student's current
// roster name and index, dropping ids no longer on the roster.
func enrichDay(entries DayMap, roster []Student, now time.Time) DayMap {
	byID := make(map[string]Student, len(roster))
	for _, st := range roster {
		byID[st.ID] = st
	}
	processed := make(DayMap, len(entries))
	for id, entry := range entries {
		st, ok := byID[id]
		if !ok {
			continue
		}
		processed[id] = Entry{
			StudentName:  st.Name,
			StudentIndex: st.Index,
			Status:       entry.Status,
			Timestamp:    now,
		}
	}
	return processed
}

// History returns up to limit most-recent dated record maps, ordered by date
// key ascending. Dates are ISO formatted so member order is chronological.
func (s *RedisStore) History(ctx context.Context, class Class, limit int) ([]Day, error) {
	if limit <= 0 {
		limit = 30
	}
	dates, err := s.client.ZRange(ctx, dateIndexKey(class), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch history index %s: %w", class.Key(), err)
	}
	days := make([]Day, 0, len(dates))
	for _, date := range dates {
		day, err := s.Day(ctx, class, date)
		if err != nil {
			return nil, err
		}
		if len(day) == 0 {
			continue
		}
		days = append(days, Day{Date: date, Entries: day})
	}
	return days, nil
}

// MigrateDay rewrites one date in the structured encoding. Legacy boolean
// entries pick up the student's name and index from the roster.
func (s *RedisStore) MigrateDay(ctx context.Context, class Class, date string) (bool, error) {
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
