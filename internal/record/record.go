package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is a per-day attendance status for one student.
type Status string

const (
	Present Status = "present"
	Absent  Status = "absent"
	Late    Status = "late"
)

// LateCountsAsAttended controls whether a "late" record counts toward
// attended-rate figures. Raw per-status counts are never affected.
const LateCountsAsAttended = true

// ParseStatus validates a free-form status string.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case Present:
		return Present, nil
	case Absent:
		return Absent, nil
	case Late:
		return Late, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Class identifies one roster and one attendance timeline.
type Class struct {
	Grade int
	Name  string
}

// Key returns the store key segment for the class, e.g. "grade10B".
func (c Class) Key() string {
	return fmt.Sprintf("grade%d%s", c.Grade, c.Name)
}

// Student is one roster entry.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Index string `json:"index"`
}

// Entry is one student's attendance record for one date. Old deployments
// stored a bare boolean (true=present, false=absent); current ones store the
// structured object. UnmarshalJSON accepts both so every read site sees the
// structured form.
type Entry struct {
	StudentName  string    `json:"studentName"`
	StudentIndex string    `json:"studentIndex"`
	Status       Status    `json:"status"`
	Timestamp    time.Time `json:"-"`
	Legacy       bool      `json:"-"`
}

type entryJSON struct {
	StudentName  string `json:"studentName"`
	StudentIndex string `json:"studentIndex"`
	Status       string `json:"status"`
	Timestamp    int64  `json:"timestamp,omitempty"`
}

// UnmarshalJSON normalizes both legacy boolean and structured encodings.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var present bool
	if err := json.Unmarshal(data, &present); err == nil {
		*e = Entry{Status: Absent, Legacy: true}
		if present {
			e.Status = Present
		}
		return nil
	}

	var obj entryJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode attendance entry: %w", err)
	}
	status, err := ParseStatus(obj.Status)
	if err != nil {
		return err
	}
	*e = Entry{
		StudentName:  obj.StudentName,
		StudentIndex: obj.StudentIndex,
		Status:       status,
	}
	if obj.Timestamp > 0 {
		e.Timestamp = time.UnixMilli(obj.Timestamp).UTC()
	}
	return nil
}

// MarshalJSON always writes the structured encoding.
func (e Entry) MarshalJSON() ([]byte, error) {
	obj := entryJSON{
		StudentName:  e.StudentName,
		StudentIndex: e.StudentIndex,
		Status:       string(e.Status),
	}
	if !e.Timestamp.IsZero() {
		obj.Timestamp = e.Timestamp.UnixMilli()
	}
	return json.Marshal(obj)
}

// DayMap holds all entries for one class and date, keyed by student id.
type DayMap map[string]Entry

// Day is a dated record map, as returned by history queries.
type Day struct {
	Date    string
	Entries DayMap
}
