package assistant

import (
	"context"
	"strings"
)

// CommandResult is the synchronous outcome of one slash command.
type CommandResult struct {
	Success bool
	Message string
}

type command struct {
	prefix string
	run    func(ctx context.Context, s *Session, text string) CommandResult
}

// commands returns the dispatch table. Matching is first-prefix-wins over
// the lowercased input, so longer prefixes are registered before any shorter
// prefix that could shadow them (/mark-students before /mark-all and so on).
func commands() []command {
	return []command{
		{"/mark-students", cmdMarkStudents},
		{"/mark-present", cmdMarkStatus("present")},
		{"/mark-absent", cmdMarkStatus("absent")},
		{"/add-student", cmdAddStudent},
		{"/mark-all", cmdMarkAll},
		{"/students", cmdSimpleTool("getStudentList", "Failed to get student list")},
		{"/present", cmdByStatus("present")},
		{"/absent", cmdByStatus("absent")},
		{"/stats", cmdSimpleTool("getAttendanceStats", "Failed to get attendance statistics")},
		{"/today", cmdSimpleTool("getTodayAttendance", "Failed to get today's attendance")},
		{"/late", cmdByStatus("late")},
		{"/help", cmdHelp},
	}
}

const unknownCommandReply = "I don't recognize that command.\n\n" +
	"Did you mean one of these?\n" +
	"- /help - See all available commands\n" +
	"- /today - Check today's attendance\n" +
	"- /students - See your class list\n\n" +
	"Or just ask me in plain language what you'd like to do!"

// RunCommand dispatches a slash command to the first matching handler.
func (s *Session) RunCommand(ctx context.Context, input string) CommandResult {
	trimmed := strings.TrimSpace(input)
	lowered := strings.ToLower(trimmed)
	for _, cmd := range commands() {
		if strings.HasPrefix(lowered, cmd.prefix) {
			return cmd.run(ctx, s, trimmed)
		}
	}
	return CommandResult{Success: false, Message: unknownCommandReply}
}

// rest strips the command prefix, preserving the original casing of the
// argument text.
func rest(text, prefix string) string {
	return strings.TrimSpace(text[len(prefix):])
}

func toolCommandResult(res ToolResult, ok bool, fallback string) CommandResult {
	if !ok || res.Message == "" {
		return CommandResult{Success: false, Message: fallback}
	}
	return CommandResult{Success: res.Success, Message: res.Message}
}

func cmdAddStudent(ctx context.Context, s *Session, text string) CommandResult {
	name := rest(text, "/add-student")
	if name == "" {
		return CommandResult{Success: false, Message: "Please provide a student name. Example: /add-student John Doe"}
	}
	res, ok := s.Execute(ctx, "addNewStudent", ToolParams{StudentName: name})
	return toolCommandResult(res, ok, "Failed to add student")
}

func cmdMarkStatus(status string) func(ctx context.Context, s *Session, text string) CommandResult {
	return func(ctx context.Context, s *Session, text string) CommandResult {
		name := rest(text, "/mark-"+status)
		if name == "" {
			return CommandResult{Success: false, Message: "Please provide a student name. Example: /mark-" + status + " John Doe"}
		}
		res, ok := s.Execute(ctx, "markAttendance", ToolParams{StudentName: name, Status: status})
		return toolCommandResult(res, ok, "Failed to mark attendance")
	}
}

func cmdMarkAll(ctx context.Context, s *Session, text string) CommandResult {
	// "/mark-all <status> [except <name1>, <name2>, ...]"
	parts := strings.SplitN(rest(text, "/mark-all"), "except", 2)
	status := strings.TrimSpace(parts[0])
	if !validStatusArg(status) {
		return CommandResult{Success: false, Message: "Please provide a valid status (present, absent, or late). Example: /mark-all present"}
	}

	params := ToolParams{Status: status, MarkAll: true}
	if len(parts) > 1 {
		params = ToolParams{Status: status, ExcludedStudentNames: splitNames(parts[1])}
	}
	res, ok := s.Execute(ctx, "markBulkAttendance", params)
	return toolCommandResult(res, ok, "Failed to mark attendance")
}

func cmdMarkStudents(ctx context.Context, s *Session, text string) CommandResult {
	const usage = "Please provide a status and student names. Example: /mark-students present Sunil, Sampath"
	fields := strings.Fields(rest(text, "/mark-students"))
	if len(fields) < 2 {
		return CommandResult{Success: false, Message: usage}
	}
	status := fields[0]
	if !validStatusArg(status) {
		return CommandResult{Success: false, Message: "Please provide a valid status (present, absent, or late). Example: /mark-students present Sunil, Sampath"}
	}
	names := splitNames(strings.Join(fields[1:], " "))
	if len(names) == 0 {
		return CommandResult{Success: false, Message: usage}
	}
	res, ok := s.Execute(ctx, "markBulkAttendance", ToolParams{Status: status, IncludedStudentNames: names})
	return toolCommandResult(res, ok, "Failed to mark attendance")
}

func cmdByStatus(status string) func(ctx context.Context, s *Session, text string) CommandResult {
	return func(ctx context.Context, s *Session, _ string) CommandResult {
		res, ok := s.Execute(ctx, "getStudentsByStatus", ToolParams{Status: status})
		return toolCommandResult(res, ok, "Failed to get "+status+" students")
	}
}

func cmdSimpleTool(tool, fallback string) func(ctx context.Context, s *Session, text string) CommandResult {
	return func(ctx context.Context, s *Session, _ string) CommandResult {
		res, ok := s.Execute(ctx, tool, ToolParams{})
		return toolCommandResult(res, ok, fallback)
	}
}

func cmdHelp(_ context.Context, _ *Session, _ string) CommandResult {
	return CommandResult{Success: true, Message: `Here are the commands you can use:

- /add-student [name] - Add a new student (index will be auto-generated)
- /mark-present [name] - Mark student as present
- /mark-absent [name] - Mark student as absent
- /mark-all [status] - Mark all students with a status
- /mark-all [status] except [names] - Mark all students except specified ones
- /mark-students [status] [name1], [name2], ... - Mark multiple specific students
- /today - Show today's attendance statistics
- /present - List students who are present today
- /absent - List students who are absent today
- /late - List students who are late today
- /stats - Show overall attendance statistics
- /students - List all students
- /help - Show this help message

You can also just chat with me naturally! I'm here to help make your day easier.`}
}

func validStatusArg(status string) bool {
	switch strings.ToLower(status) {
	case "present", "absent", "late":
		return true
	}
	return false
}

// splitNames splits a comma-separated name list, dropping empties.
func splitNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
