package assistant

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"rollbook/internal/record"
	"rollbook/internal/roster"
)

// Tool is one named operation in the catalogue the resolver can invoke.
type Tool struct {
	Name        string
	Description string
	run         func(ctx context.Context, p ToolParams) ToolResult
}

// Tools returns the session's tool catalogue.
func (s *Session) Tools() []Tool {
	return []Tool{
		{"markAttendance", "Mark a student as present, absent, or late for the current day", s.markAttendance},
		{"markBulkAttendance", "Mark multiple students or all students except some with a specified attendance status", s.markBulkAttendance},
		{"addNewStudent", "Add a new student to the class", s.addNewStudent},
		{"getAttendanceStats", "Get attendance statistics for the class", s.getAttendanceStats},
		{"getTodayAttendance", "Get attendance information for today only", s.getTodayAttendance},
		{"getStudentsByStatus", "Get a list of students with a specific attendance status for today or a given date", s.getStudentsByStatus},
		{"getStudentList", "Get the list of students in the class", s.getStudentList},
		{"getStudentAttendance", "Get attendance info for a specific student", s.getStudentAttendance},
	}
}

// Execute invokes a catalogued tool by name. The second return is false for
// unrecognized names.
func (s *Session) Execute(ctx context.Context, name string, p ToolParams) (ToolResult, bool) {
	for _, tool := range s.Tools() {
		if tool.Name == name {
			return tool.run(ctx, p), true
		}
	}
	return ToolResult{}, false
}

func fail(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// storeFail logs the underlying fault and reports a generic message; store
// detail never reaches the conversation.
func storeFail(op string, err error) ToolResult {
	log.Printf("assistant: %s: %v", op, err)
	return ToolResult{Success: false, Message: "There was an error talking to the attendance records. Please try again."}
}

func (s *Session) markAttendance(ctx context.Context, p ToolParams) ToolResult {
	if p.StudentName == "" || p.Status == "" {
		return fail("Missing required parameters: studentName or status")
	}

	student, ok := roster.FindByFragment(s.students, p.StudentName)
	if !ok {
		return fail("I couldn't find a student named %q in your class. Did you maybe spell the name differently? You can type /students to see a list of all students in your class.", p.StudentName)
	}

	status, err := record.ParseStatus(p.Status)
	if err != nil {
		return fail("I can only mark students as \"present\", \"absent\", or \"late\". Could you try again with one of these statuses?")
	}

	// Read-merge-write: overlay exactly one entry so nobody else's record
	// on this date is touched.
	day, err := s.store.Day(ctx, s.Class, s.Date)
	if err != nil {
		return storeFail("fetch day", err)
	}
	day[student.ID] = record.Entry{
		StudentName:  student.Name,
		StudentIndex: student.Index,
		Status:       status,
	}
	if err := s.store.SaveDay(ctx, s.Class, s.Date, day); err != nil {
		return storeFail("save day", err)
	}

	return ToolResult{
		Success: true,
		Message: fmt.Sprintf("Done! I've marked %s as %s for today.", student.Name, status),
		Data:    map[string]any{"student": student, "status": status},
	}
}

func (s *Session) markBulkAttendance(ctx context.Context, p ToolParams) ToolResult {
	status, err := record.ParseStatus(p.Status)
	if err != nil {
		return fail("Status must be one of: present, absent, late")
	}

	var matches []record.Student
	var notFound []string
	switch {
	case p.MarkAll && len(p.ExcludedStudentNames) == 0:
		matches = s.students
	case len(p.ExcludedStudentNames) > 0:
		matches = roster.AllExcept(s.students, p.ExcludedStudentNames)
	default:
		matches, notFound = roster.FindMany(s.students, p.IncludedStudentNames)
	}

	if len(matches) == 0 {
		return fail("No students were found to update.")
	}

	day, err := s.store.Day(ctx, s.Class, s.Date)
	if err != nil {
		return storeFail("fetch day", err)
	}
	for _, student := range matches {
		day[student.ID] = record.Entry{
			StudentName:  student.Name,
			StudentIndex: student.Index,
			Status:       status,
		}
	}
	if err := s.store.SaveDay(ctx, s.Class, s.Date, day); err != nil {
		return storeFail("save day", err)
	}

	names := make([]string, len(matches))
	for i, st := range matches {
		names[i] = st.Name
	}

	var msg string
	switch {
	case p.MarkAll && len(p.ExcludedStudentNames) == 0:
		msg = fmt.Sprintf("All %d students have been marked as %s.", len(names), status)
	case len(p.ExcludedStudentNames) > 0:
		msg = fmt.Sprintf("All students except %s have been marked as %s.", strings.Join(p.ExcludedStudentNames, ", "), status)
	default:
		msg = fmt.Sprintf("Successfully marked %s as %s.", strings.Join(names, ", "), status)
		// Unmatched names are warnings, not errors, as long as one matched.
		if len(notFound) > 0 {
			msg += fmt.Sprintf(" I couldn't find these students: %s. Please check their names and try again if needed.", strings.Join(notFound, ", "))
		}
	}

	return ToolResult{
		Success: true,
		Message: msg,
		Data:    map[string]any{"updatedStudents": names, "notFoundStudents": notFound, "status": status},
	}
}

func (s *Session) addNewStudent(ctx context.Context, p ToolParams) ToolResult {
	name := strings.TrimSpace(p.StudentName)
	if name == "" {
		return fail("Missing required parameter: studentName")
	}

	for _, st := range s.students {
		if strings.EqualFold(st.Name, name) {
			return fail("A student named %q is already in your class. Did you want to mark their attendance instead? You can say \"Mark %s as present\" if that's what you meant.", name, name)
		}
	}

	index := strings.TrimSpace(p.StudentIndex)
	if index == "" {
		index = roster.NextIndex(s.students, s.Class.Grade, s.Class.Name)
	}

	id, err := s.store.AddStudent(ctx, s.Class, name, index)
	if err != nil {
		return storeFail("add student", err)
	}
	// Later tool calls in this session must see the new student.
	if err := s.refreshRoster(ctx); err != nil {
		return storeFail("refresh roster", err)
	}

	return ToolResult{
		Success: true,
		Message: fmt.Sprintf("Done! I've added %s to your class with index %s.", name, index),
		Data:    map[string]any{"studentId": id, "studentName": name, "studentIndex": index},
	}
}

func (s *Session) getAttendanceStats(ctx context.Context, _ ToolParams) ToolResult {
	history, err := s.store.History(ctx, s.Class, s.historyDays)
	if err != nil {
		return storeFail("fetch history", err)
	}
	if len(history) == 0 {
		return ToolResult{
			Success: true,
			Message: "I don't see any attendance records for this class in the last 30 days. Once you start recording attendance, I'll be able to show you helpful statistics here!",
		}
	}

	var present, absent, late, total int
	for _, day := range history {
		for _, entry := range day.Entries {
			total++
			switch entry.Status {
			case record.Present:
				present++
			case record.Absent:
				absent++
			case record.Late:
				late++
			}
		}
	}

	rate := func(n int) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / float64(total) * 100
	}

	msg := fmt.Sprintf("Attendance statistics for the last 30 days:\n"+
		"- Present: %d (%.1f%%)\n- Absent: %d (%.1f%%)\n- Late: %d (%.1f%%)\n- Total records: %d",
		present, rate(present), absent, rate(absent), late, rate(late), total)

	return ToolResult{
		Success: true,
		Message: msg,
		Data: map[string]any{
			"presentCount": present, "absentCount": absent, "lateCount": late, "totalRecords": total,
		},
	}
}

func (s *Session) getTodayAttendance(ctx context.Context, _ ToolParams) ToolResult {
	day, err := s.store.Day(ctx, s.Class, s.Date)
	if err != nil {
		return storeFail("fetch day", err)
	}
	if len(day) == 0 {
		return ToolResult{
			Success: true,
			Message: "No attendance has been recorded for today yet. Would you like me to help you mark attendance now? You can say \"Mark all present\" to get started quickly.",
		}
	}

	var present, absent, late int
	for _, entry := range day {
		switch entry.Status {
		case record.Present:
			present++
		case record.Absent:
			absent++
		case record.Late:
			late++
		}
	}

	var unrecorded []string
	for _, st := range s.students {
		if _, ok := day[st.ID]; !ok {
			unrecorded = append(unrecorded, st.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Today's attendance (%s):\n", s.Date)
	fmt.Fprintf(&b, "- Present: %d students\n", present)
	fmt.Fprintf(&b, "- Absent: %d students\n", absent)
	fmt.Fprintf(&b, "- Late: %d students\n", late)
	fmt.Fprintf(&b, "- Total recorded: %d students\n", len(day))
	if len(unrecorded) > 0 {
		fmt.Fprintf(&b, "- Not yet recorded: %d students\n", len(unrecorded))
		b.WriteString("\nStudents without attendance records today:\n")
		shown := unrecorded
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, name := range shown {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		if len(unrecorded) > 10 {
			fmt.Fprintf(&b, "... and %d more\n", len(unrecorded)-10)
		}
	} else if len(day) == len(s.students) && len(day) > 0 {
		fmt.Fprintf(&b, "\nGreat job! You've recorded attendance for all %d students today.", len(day))
	}

	return ToolResult{
		Success: true,
		Message: b.String(),
		Data: map[string]any{
			"date": s.Date, "presentCount": present, "absentCount": absent, "lateCount": late,
			"recordedCount": len(day), "notRecordedCount": len(unrecorded),
		},
	}
}

func (s *Session) getStudentsByStatus(ctx context.Context, p ToolParams) ToolResult {
	status, err := record.ParseStatus(p.Status)
	if err != nil {
		return fail("Status must be one of: present, absent, or late")
	}
	date := p.Date
	if date == "" {
		date = s.Date
	}

	day, err := s.store.Day(ctx, s.Class, date)
	if err != nil {
		return storeFail("fetch day", err)
	}

	dateText := "today"
	if date != s.Date {
		dateText = "on " + date
	}
	if len(day) == 0 {
		return ToolResult{Success: true, Message: fmt.Sprintf("No attendance has been recorded for %s.", strings.TrimPrefix(dateText, "on "))}
	}

	var found []record.Student
	for id, entry := range day {
		if entry.Status != status {
			continue
		}
		for _, st := range s.students {
			if st.ID == id {
				found = append(found, st)
				break
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })

	if len(found) == 0 {
		return ToolResult{Success: true, Message: fmt.Sprintf("No students were marked as %q %s.", status, dateText)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Students who are %s %s (%d total):\n", status, dateText, len(found))
	for i, st := range found {
		fmt.Fprintf(&b, "%d. %s", i+1, st.Name)
		if st.Index != "" {
			fmt.Fprintf(&b, " (%s)", st.Index)
		}
		b.WriteString("\n")
	}

	return ToolResult{
		Success: true,
		Message: b.String(),
		Data:    map[string]any{"date": date, "status": status, "count": len(found), "students": found},
	}
}

func (s *Session) getStudentList(ctx context.Context, _ ToolParams) ToolResult {
	if len(s.students) == 0 {
		return ToolResult{
			Success: true,
			Message: "It looks like there aren't any students in your class yet. Would you like me to help you add some students? Just say \"Add a new student\" or use the /add-student command.",
		}
	}

	parts := make([]string, len(s.students))
	for i, st := range s.students {
		parts[i] = st.Name
		if st.Index != "" {
			parts[i] += fmt.Sprintf(" (%s)", st.Index)
		}
	}

	return ToolResult{
		Success: true,
		Message: fmt.Sprintf("Students in Grade %d %s (%d total):\n%s", s.Class.Grade, s.Class.Name, len(s.students), strings.Join(parts, ", ")),
		Data:    map[string]any{"students": s.students},
	}
}

func (s *Session) getStudentAttendance(ctx context.Context, p ToolParams) ToolResult {
	if p.StudentName == "" {
		return fail("Missing required parameter: studentName")
	}
	student, ok := roster.FindByFragment(s.students, p.StudentName)
	if !ok {
		return fail("Could not find a student named %q in this class", p.StudentName)
	}

	history, err := s.store.History(ctx, s.Class, s.historyDays)
	if err != nil {
		return storeFail("fetch history", err)
	}

	type dated struct {
		Date   string        `json:"date"`
		Status record.Status `json:"status"`
	}
	var present, absent, late, total int
	var records []dated
	for _, day := range history {
		entry, ok := day.Entries[student.ID]
		if !ok {
			continue
		}
		total++
		switch entry.Status {
		case record.Present:
			present++
		case record.Absent:
			absent++
		case record.Late:
			late++
		}
		records = append(records, dated{Date: day.Date, Status: entry.Status})
	}

	if total == 0 {
		return ToolResult{Success: true, Message: fmt.Sprintf("No attendance records found for %s in the last 30 days.", student.Name)}
	}

	// Most recent first, then the top five for the reply.
	sort.Slice(records, func(i, j int) bool { return records[i].Date > records[j].Date })
	recent := records
	if len(recent) > 5 {
		recent = recent[:5]
	}
	lines := make([]string, len(recent))
	for i, r := range recent {
		lines[i] = fmt.Sprintf("%s: %s", r.Date, titleStatus(r.Status))
	}

	rate := float64(present) / float64(total) * 100

	msg := fmt.Sprintf("Attendance for %s:\n- Present: %d days\n- Absent: %d days\n- Late: %d days\n- Attendance rate: %.1f%%\n\nRecent attendance:\n%s",
		student.Name, present, absent, late, rate, strings.Join(lines, "\n"))

	return ToolResult{
		Success: true,
		Message: msg,
		Data: map[string]any{
			"student": student, "presentCount": present, "absentCount": absent,
			"lateCount": late, "records": records,
		},
	}
}

func titleStatus(st record.Status) string {
	if st == "" {
		return ""
	}
	return strings.ToUpper(string(st[0])) + string(st[1:])
}

// currentTime exposes the session clock for prompt building.
func (s *Session) currentTime() time.Time { return s.now() }
