package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"rollbook/internal/record"
)

// newTestSession builds a session over a seeded in-memory store. The
// completer is scripted per test; tests that never reach it pass nil replies.
func newTestSession(t *testing.T, llm Completer) (*Session, *record.MemoryStore) {
	t.Helper()
	store := record.NewMemoryStore()
	class := record.Class{Grade: 10, Name: "B"}
	ctx := context.Background()
	seed := []struct{ name, index string }{
		{"Sampath Perera", "10B001"},
		{"Samantha Silva", "10B002"},
		{"Nimal Fernando", "10B003"},
		{"Kasun Jayawardena", "10B004"},
	}
	for _, st := range seed {
		if _, err := store.AddStudent(ctx, class, st.name, st.index); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if llm == nil {
		llm = &fakeCompleter{}
	}
	s, err := NewSession(ctx, store, llm, class)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s, store
}

func studentID(t *testing.T, s *Session, fragment string) string {
	t.Helper()
	for _, st := range s.students {
		if strings.Contains(strings.ToLower(st.Name), strings.ToLower(fragment)) {
			return st.ID
		}
	}
	t.Fatalf("no seeded student matches %q", fragment)
	return ""
}

func TestExecuteUnknownTool(t *testing.T) {
	s, _ := newTestSession(t, nil)
	if _, known := s.Execute(context.Background(), "launchMissiles", ToolParams{}); known {
		t.Error("unknown tool reported as known")
	}
}

func TestMarkAttendanceMergePreserves(t *testing.T) {
	s, store := newTestSession(t, nil)
	ctx := context.Background()

	res, known := s.Execute(ctx, "markAttendance", ToolParams{StudentName: "sampath", Status: "present"})
	if !known || !res.Success {
		t.Fatalf("first mark failed: %+v", res)
	}
	res, _ = s.Execute(ctx, "markAttendance", ToolParams{StudentName: "silva", Status: "absent"})
	if !res.Success {
		t.Fatalf("second mark failed: %+v", res)
	}
	// Re-mark the second student; the first student's entry must survive.
	res, _ = s.Execute(ctx, "markAttendance", ToolParams{StudentName: "silva", Status: "late"})
	if !res.Success {
		t.Fatalf("re-mark failed: %+v", res)
	}

	day, err := store.Day(ctx, s.Class, s.Date)
	if err != nil {
		t.Fatalf("read day: %v", err)
	}
	if got := day[studentID(t, s, "sampath")].Status; got != record.Present {
		t.Errorf("sampath = %q after unrelated update, want present", got)
	}
	if got := day[studentID(t, s, "silva")].Status; got != record.Late {
		t.Errorf("silva = %q, want late", got)
	}
}

func TestMarkAttendanceValidation(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	res, _ := s.Execute(ctx, "markAttendance", ToolParams{StudentName: "sampath"})
	if res.Success {
		t.Error("missing status should fail")
	}

	res, _ = s.Execute(ctx, "markAttendance", ToolParams{StudentName: "Tharindu", Status: "present"})
	if res.Success || !strings.Contains(res.Message, "couldn't find a student") {
		t.Errorf("unknown name reply = %q", res.Message)
	}

	res, _ = s.Execute(ctx, "markAttendance", ToolParams{StudentName: "nimal", Status: "vanished"})
	if res.Success {
		t.Error("invalid status should fail")
	}
}

func TestMarkBulkAttendanceAll(t *testing.T) {
	s, store := newTestSession(t, nil)
	ctx := context.Background()

	res, _ := s.Execute(ctx, "markBulkAttendance", ToolParams{Status: "present", MarkAll: true})
	if !res.Success || !strings.Contains(res.Message, "All 4 students") {
		t.Fatalf("mark-all reply = %q", res.Message)
	}
	day, _ := store.Day(ctx, s.Class, s.Date)
	if len(day) != 4 {
		t.Errorf("day holds %d entries, want 4", len(day))
	}
}

func TestMarkBulkAttendanceExcept(t *testing.T) {
	s, store := newTestSession(t, nil)
	ctx := context.Background()

	res, _ := s.Execute(ctx, "markBulkAttendance", ToolParams{Status: "absent", ExcludedStudentNames: []string{"sam"}})
	if !res.Success {
		t.Fatalf("except failed: %+v", res)
	}
	day, _ := store.Day(ctx, s.Class, s.Date)
	if len(day) != 2 {
		t.Fatalf("day holds %d entries, want 2 (both Sams excluded)", len(day))
	}
	if _, ok := day[studentID(t, s, "sampath")]; ok {
		t.Error("excluded student was marked")
	}
}

func TestMarkBulkAttendanceExcludeEveryone(t *testing.T) {
	s, store := newTestSession(t, nil)
	ctx := context.Background()

	// Exclusions covering the whole roster leave nobody to update.
	res, _ := s.Execute(ctx, "markBulkAttendance", ToolParams{
		Status:               "present",
		ExcludedStudentNames: []string{"sam", "nimal", "kasun"},
	})
	if res.Success {
		t.Error("excluding everyone must fail, not silently write nothing")
	}
	if res.Message != "No students were found to update." {
		t.Errorf("reply = %q", res.Message)
	}
	day, _ := store.Day(ctx, s.Class, s.Date)
	if len(day) != 0 {
		t.Errorf("day holds %d entries after a no-op, want 0", len(day))
	}
}

func TestMarkBulkAttendanceZeroMatches(t *testing.T) {
	s, _ := newTestSession(t, nil)

	res, _ := s.Execute(context.Background(), "markBulkAttendance", ToolParams{
		Status:               "present",
		IncludedStudentNames: []string{"nobody", "ghost"},
	})
	if res.Success {
		t.Error("zero matches must be a failure, not a silent no-op")
	}
	if res.Message != "No students were found to update." {
		t.Errorf("reply = %q", res.Message)
	}
}

func TestMarkBulkAttendancePartial(t *testing.T) {
	s, store := newTestSession(t, nil)
	ctx := context.Background()

	res, _ := s.Execute(ctx, "markBulkAttendance", ToolParams{
		Status:               "late",
		IncludedStudentNames: []string{"kasun", "ghost"},
	})
	if !res.Success {
		t.Fatalf("partial match should still succeed: %+v", res)
	}
	if !strings.Contains(res.Message, "Kasun Jayawardena") || !strings.Contains(res.Message, "ghost") {
		t.Errorf("reply should name both updated and missing students: %q", res.Message)
	}
	day, _ := store.Day(ctx, s.Class, s.Date)
	if len(day) != 1 {
		t.Errorf("day holds %d entries, want 1", len(day))
	}
}

func TestAddNewStudent(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	res, _ := s.Execute(ctx, "addNewStudent", ToolParams{StudentName: "Tharindu Mendis"})
	if !res.Success {
		t.Fatalf("add failed: %+v", res)
	}
	if !strings.Contains(res.Message, "10B005") {
		t.Errorf("auto-generated index missing from reply: %q", res.Message)
	}

	// The session's roster cache must include the new student at once.
	res, _ = s.Execute(ctx, "markAttendance", ToolParams{StudentName: "tharindu", Status: "present"})
	if !res.Success {
		t.Errorf("newly added student not resolvable: %+v", res)
	}
}

func TestAddNewStudentDuplicate(t *testing.T) {
	s, _ := newTestSession(t, nil)

	res, _ := s.Execute(context.Background(), "addNewStudent", ToolParams{StudentName: "nimal fernando"})
	if res.Success {
		t.Error("duplicate name must be rejected")
	}
	if !strings.Contains(res.Message, "mark their attendance instead") {
		t.Errorf("duplicate reply = %q", res.Message)
	}
}

func TestGetAttendanceStats(t *testing.T) {
	s, store := newTestSession(t, nil)
	ctx := context.Background()

	res, _ := s.Execute(ctx, "getAttendanceStats", ToolParams{})
	if !res.Success || !strings.Contains(res.Message, "don't see any attendance records") {
		t.Fatalf("empty-history reply = %q", res.Message)
	}

	store.SeedDay(s.Class, "2026-03-10", record.DayMap{
		studentID(t, s, "sampath"): {Status: record.Present},
		studentID(t, s, "silva"):   {Status: record.Late},
	})

	res, _ = s.Execute(ctx, "getAttendanceStats", ToolParams{})
	if !res.Success {
		t.Fatalf("stats failed: %+v", res)
	}
	if !strings.Contains(res.Message, "Present: 1 (50.0%)") || !strings.Contains(res.Message, "Late: 1 (50.0%)") {
		t.Errorf("stats reply = %q", res.Message)
	}
}

func TestGetTodayAttendance(t *testing.T) {
	s, store := newTestSession(t, nil)
	ctx := context.Background()

	res, _ := s.Execute(ctx, "getTodayAttendance", ToolParams{})
	if !res.Success || !strings.Contains(res.Message, "No attendance has been recorded for today") {
		t.Fatalf("empty-day reply = %q", res.Message)
	}

	store.SeedDay(s.Class, s.Date, record.DayMap{
		studentID(t, s, "sampath"): {Status: record.Present},
	})
	res, _ = s.Execute(ctx, "getTodayAttendance", ToolParams{})
	if !res.Success {
		t.Fatalf("today failed: %+v", res)
	}
	if !strings.Contains(res.Message, "Present: 1 students") {
		t.Errorf("today reply = %q", res.Message)
	}
	if !strings.Contains(res.Message, "Not yet recorded: 3 students") {
		t.Errorf("unrecorded count missing: %q", res.Message)
	}
}

func TestGetTodayAttendanceTruncatesUnrecorded(t *testing.T) {
	store := record.NewMemoryStore()
	class := record.Class{Grade: 10, Name: "B"}
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("Student %02d", i)
		index := fmt.Sprintf("10B%03d", i)
		if _, err := store.AddStudent(ctx, class, name, index); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	s, err := NewSession(ctx, store, &fakeCompleter{}, class)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	store.SeedDay(class, s.Date, record.DayMap{
		studentID(t, s, "Student 01"): {Status: record.Present},
	})

	res, _ := s.Execute(ctx, "getTodayAttendance", ToolParams{})
	if !res.Success {
		t.Fatalf("today failed: %+v", res)
	}
	if !strings.Contains(res.Message, "Not yet recorded: 11 students") {
		t.Errorf("unrecorded count missing: %q", res.Message)
	}
	// Eleven students are unmarked; only the first ten are listed.
	if !strings.Contains(res.Message, "- Student 11\n") {
		t.Errorf("tenth unrecorded name missing: %q", res.Message)
	}
	if strings.Contains(res.Message, "- Student 12") {
		t.Errorf("eleventh unrecorded name should be truncated: %q", res.Message)
	}
	if !strings.Contains(res.Message, "... and 1 more") {
		t.Errorf("truncation notice missing: %q", res.Message)
	}
}

func TestGetStudentsByStatus(t *testing.T) {
	s, store := newTestSession(t, nil)
	ctx := context.Background()

	store.SeedDay(s.Class, s.Date, record.DayMap{
		studentID(t, s, "silva"):   {Status: record.Present},
		studentID(t, s, "sampath"): {Status: record.Present},
		studentID(t, s, "nimal"):   {Status: record.Absent},
	})

	res, _ := s.Execute(ctx, "getStudentsByStatus", ToolParams{Status: "present"})
	if !res.Success {
		t.Fatalf("by-status failed: %+v", res)
	}
	// Alphabetical by name regardless of map iteration order.
	first := strings.Index(res.Message, "Samantha Silva")
	second := strings.Index(res.Message, "Sampath Perera")
	if first < 0 || second < 0 || first > second {
		t.Errorf("names not in alphabetical order: %q", res.Message)
	}

	res, _ = s.Execute(ctx, "getStudentsByStatus", ToolParams{Status: "late"})
	if !res.Success || !strings.Contains(res.Message, "No students were marked") {
		t.Errorf("none-found reply should be a calm success: %+v", res)
	}
}

func TestGetStudentList(t *testing.T) {
	s, _ := newTestSession(t, nil)

	res, _ := s.Execute(context.Background(), "getStudentList", ToolParams{})
	if !res.Success || !strings.Contains(res.Message, "Grade 10 B (4 total)") {
		t.Errorf("list reply = %q", res.Message)
	}
}

func TestGetStudentAttendance(t *testing.T) {
	s, store := newTestSession(t, nil)
	ctx := context.Background()

	id := studentID(t, s, "kasun")
	store.SeedDay(s.Class, "2026-03-09", record.DayMap{id: {Status: record.Present}})
	store.SeedDay(s.Class, "2026-03-10", record.DayMap{id: {Status: record.Absent}})
	store.SeedDay(s.Class, "2026-03-11", record.DayMap{id: {Status: record.Late}})

	res, _ := s.Execute(ctx, "getStudentAttendance", ToolParams{StudentName: "kasun"})
	if !res.Success {
		t.Fatalf("student attendance failed: %+v", res)
	}
	for _, want := range []string{"Present: 1 days", "Absent: 1 days", "Late: 1 days", "2026-03-11: Late"} {
		if !strings.Contains(res.Message, want) {
			t.Errorf("reply missing %q: %q", want, res.Message)
		}
	}

	res, _ = s.Execute(ctx, "getStudentAttendance", ToolParams{StudentName: "sampath"})
	if !res.Success || !strings.Contains(res.Message, "No attendance records found") {
		t.Errorf("no-records reply = %+v", res)
	}
}
