// Package summary computes per-class daily attendance rollups for dashboard
// reads. The worker refreshes a Redis cache of these; the API falls back to
// computing on demand.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rollbook/internal/record"
)

// Summary is the rollup for one class and date.
type Summary struct {
	Date         string  `json:"date"`
	Present      int     `json:"present"`
	Absent       int     `json:"absent"`
	Late         int     `json:"late"`
	Recorded     int     `json:"recorded"`
	AttendedRate float64 `json:"attended_rate"`
}

// Compute rolls up one day's record map. Late records count toward the
// attended rate per the record.LateCountsAsAttended policy.
func Compute(date string, day record.DayMap) Summary {
	s := Summary{Date: date}
	for _, entry := range day {
		s.Recorded++
		switch entry.Status {
		case record.Present:
			s.Present++
		case record.Absent:
			s.Absent++
		case record.Late:
			s.Late++
		}
	}
	if s.Recorded > 0 {
		attended := s.Present
		if record.LateCountsAsAttended {
			attended += s.Late
		}
		s.AttendedRate = float64(attended) / float64(s.Recorded) * 100
	}
	return s
}

func cacheKey(class record.Class, date string) string {
	return fmt.Sprintf("summary:%s:%s", class.Key(), date)
}

// Cache stores computed summaries in Redis.
type Cache struct {
	client *redis.Client
}

// NewCache creates a cache over the given client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Put writes one summary.
func (c *Cache) Put(ctx context.Context, class record.Class, s Summary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(class, s.Date), raw, 0).Err()
}

// Get reads one summary; the second return is false on a cache miss.
func (c *Cache) Get(ctx context.Context, class record.Class, date string) (Summary, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(class, date)).Result()
	if errors.Is(err, redis.Nil) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, err
	}
	var s Summary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Summary{}, false, err
	}
	return s, true, nil
}
