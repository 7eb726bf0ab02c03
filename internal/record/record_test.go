package record

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"present", Present, false},
		{"ABSENT", Absent, false},
		{" late ", Late, false},
		{"here", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassKey(t *testing.T) {
	c := Class{Grade: 10, Name: "B"}
	if got := c.Key(); got != "grade10B" {
		t.Errorf("Key() = %q, want grade10B", got)
	}
}

func TestEntryUnmarshalLegacyBoolean(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"true", Present},
		{"false", Absent},
	}
	for _, tt := range tests {
		var e Entry
		if err := json.Unmarshal([]byte(tt.raw), &e); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.raw, err)
		}
		if e.Status != tt.want {
			t.Errorf("legacy %s -> status %q, want %q", tt.raw, e.Status, tt.want)
		}
		if !e.Legacy {
			t.Errorf("legacy %s should set the Legacy flag", tt.raw)
		}
		if e.StudentName != "" || e.StudentIndex != "" {
			t.Errorf("legacy %s should carry no student fields, got %+v", tt.raw, e)
		}
	}
}

func TestEntryStructuredRoundTrip(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)
	in := Entry{StudentName: "Nimal Fernando", StudentIndex: "10B003", Status: Late, Timestamp: stamp}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out Entry
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.StudentName != in.StudentName || out.StudentIndex != in.StudentIndex || out.Status != in.Status {
		t.Errorf("round trip changed fields: got %+v, want %+v", out, in)
	}
	if !out.Timestamp.Equal(stamp) {
		t.Errorf("timestamp = %v, want %v (millisecond precision)", out.Timestamp, stamp)
	}
	if out.Legacy {
		t.Error("structured entry must not set the Legacy flag")
	}
}

func TestEntryMarshalAlwaysStructured(t *testing.T) {
	var e Entry
	if err := json.Unmarshal([]byte("true"), &e); err != nil {
		t.Fatalf("unmarshal legacy: %v", err)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatalf("re-encoded legacy entry is not an object: %s", raw)
	}
	if obj["status"] != "present" {
		t.Errorf("re-encoded status = %v, want present", obj["status"])
	}
}

func TestEntryUnmarshalRejectsBadStatus(t *testing.T) {
	var e Entry
	if err := json.Unmarshal([]byte(`{"studentName":"X","status":"maybe"}`), &e); err == nil {
		t.Error("expected error for unknown status")
	}
}

func newSeededStore(t *testing.T) (*MemoryStore, Class, []Student) {
	t.Helper()
	s := NewMemoryStore()
	s.SetClock(func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) })
	class := Class{Grade: 10, Name: "B"}
	ctx := context.Background()
	names := []struct{ name, index string }{
		{"Sampath Perera", "10B001"},
		{"Samantha Silva", "10B002"},
		{"Nimal Fernando", "10B003"},
	}
	for _, n := range names {
		if _, err := s.AddStudent(ctx, class, n.name, n.index); err != nil {
			t.Fatalf("seed student: %v", err)
		}
	}
	roster, err := s.Roster(ctx, class)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	return s, class, roster
}

func TestSaveDayMergePreservesOtherEntries(t *testing.T) {
	s, class, roster := newSeededStore(t)
	ctx := context.Background()
	date := "2026-03-14"

	if err := s.SaveDay(ctx, class, date, DayMap{
		roster[0].ID: {Status: Present},
		roster[1].ID: {Status: Absent},
	}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Overlay one student the way a read-merge-write caller does.
	day, err := s.Day(ctx, class, date)
	if err != nil {
		t.Fatalf("read day: %v", err)
	}
	entry := day[roster[1].ID]
	entry.Status = Late
	day[roster[1].ID] = entry
	if err := s.SaveDay(ctx, class, date, day); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.Day(ctx, class, date)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got[roster[0].ID].Status != Present {
		t.Errorf("untouched entry changed: %+v", got[roster[0].ID])
	}
	if got[roster[1].ID].Status != Late {
		t.Errorf("overlaid entry = %+v, want late", got[roster[1].ID])
	}
	if len(got) != 2 {
		t.Errorf("day holds %d entries, want 2", len(got))
	}
}

func TestSaveDayEnrichesAndDropsUnknown(t *testing.T) {
	s, class, roster := newSeededStore(t)
	ctx := context.Background()
	date := "2026-03-14"

	if err := s.SaveDay(ctx, class, date, DayMap{
		roster[2].ID: {Status: Present},
		"ghost-id":   {Status: Present},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Day(ctx, class, date)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, ok := got["ghost-id"]; ok {
		t.Error("entry for unknown student id survived the save")
	}
	e := got[roster[2].ID]
	if e.StudentName != "Nimal Fernando" || e.StudentIndex != "10B003" {
		t.Errorf("entry not enriched from roster: %+v", e)
	}
	if e.Timestamp.IsZero() {
		t.Error("saved entry carries no timestamp")
	}
}

func TestRosterOrder(t *testing.T) {
	s := NewMemoryStore()
	class := Class{Grade: 10, Name: "B"}
	ctx := context.Background()
	// Inserted out of order on purpose.
	if _, err := s.AddStudent(ctx, class, "Zed", "10B003"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddStudent(ctx, class, "Amy", "10B001"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddStudent(ctx, class, "Bob", "10B002"); err != nil {
		t.Fatal(err)
	}

	roster, err := s.Roster(ctx, class)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Amy", "Bob", "Zed"}
	for i, st := range roster {
		if st.Name != want[i] {
			t.Fatalf("roster[%d] = %s, want %s (index order)", i, st.Name, want[i])
		}
	}
}

func TestHistoryOrderAndLimit(t *testing.T) {
	s, class, roster := newSeededStore(t)
	ctx := context.Background()
	dates := []string{"2026-03-10", "2026-03-11", "2026-03-12", "2026-03-13"}
	for _, d := range dates {
		if err := s.SaveDay(ctx, class, d, DayMap{roster[0].ID: {Status: Present}}); err != nil {
			t.Fatalf("save %s: %v", d, err)
		}
	}

	days, err := s.History(ctx, class, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(days) != 2 {
		t.Fatalf("history returned %d days, want 2", len(days))
	}
	// Most recent two, ascending.
	if days[0].Date != "2026-03-12" || days[1].Date != "2026-03-13" {
		t.Errorf("history dates = [%s %s], want [2026-03-12 2026-03-13]", days[0].Date, days[1].Date)
	}
}

func TestMigrateDay(t *testing.T) {
	s, class, roster := newSeededStore(t)
	ctx := context.Background()
	date := "2026-03-14"

	// A legacy-decoded map: bare statuses, no student fields.
	s.SeedDay(class, date, DayMap{
		roster[0].ID: {Status: Present, Legacy: true},
		roster[1].ID: {Status: Absent, Legacy: true},
	})

	migrated, err := s.MigrateDay(ctx, class, date)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !migrated {
		t.Fatal("expected migration to report work done")
	}

	got, err := s.Day(ctx, class, date)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if e := got[roster[0].ID]; e.StudentName == "" || e.Status != Present {
		t.Errorf("migrated entry missing structured fields: %+v", e)
	}
	if e := got[roster[1].ID]; e.Status != Absent {
		t.Errorf("migration changed status: %+v", e)
	}

	migrated, err = s.MigrateDay(ctx, class, "2026-01-01")
	if err != nil {
		t.Fatalf("migrate empty: %v", err)
	}
	if migrated {
		t.Error("migration of an empty date should report false")
	}
}
