package assistant

import (
	"fmt"
	"strings"
)

// contextPrompt is the shared preamble for every completion call: who the
// assistant is, the class, the clock, the roster size, and the tool
// catalogue.
func (s *Session) contextPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a friendly, helpful teaching assistant for a school attendance management system. The current user is a teacher for Grade %d %s.\n\n", s.Class.Grade, s.Class.Name)
	fmt.Fprintf(&b, "Current date: %s\n", s.currentTime().Format("2006-01-02"))
	fmt.Fprintf(&b, "Current time: %s\n\n", s.currentTime().Format("15:04:05"))
	fmt.Fprintf(&b, "Student count in class: %d\n\n", len(s.students))
	b.WriteString("Available tools:\n")
	for _, tool := range s.Tools() {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
	}
	b.WriteString("\nIMPORTANT RULES:\n")
	b.WriteString("1. If the user mentions multiple student names like \"Mark John and Mary as present\", use the markBulkAttendance tool with includedStudentNames.\n")
	b.WriteString("2. For attendance questions for today, use getTodayAttendance.\n")
	b.WriteString("3. For specific status inquiries, use getStudentsByStatus.\n")
	b.WriteString("4. Be warm, encouraging, and positive in your responses.\n")
	return b.String()
}

func transcript(recent []Message) string {
	lines := make([]string, len(recent))
	for i, m := range recent {
		who := "Assistant"
		if m.Sender == "user" {
			who = "Teacher"
		}
		lines[i] = who + ": " + m.Text
	}
	return strings.Join(lines, "\n")
}

// analysisPrompt asks the completion service to classify the utterance into
// the closed intent set and emit the strict JSON contract.
func (s *Session) analysisPrompt(utterance string, recent []Message) string {
	return s.contextPrompt() + "\n\nUser: " + utterance + "\n\nPrevious conversation context:\n" + transcript(recent) + `

Analyze what the user is asking for. If they want to perform an action, identify which tool should be used and what parameters would be needed.

IMPORTANT RULES:
1. If the user mentions multiple student names like "Mark John and Mary as present", use the markBulkAttendance tool with includedStudentNames properly parsed.
2. If the user is asking about today's attendance, use the getTodayAttendance tool.
3. If the user is asking which students are present, absent, or late, use the getStudentsByStatus tool with the appropriate status parameter.
4. If the user seems to be asking a follow-up question, consider the conversation context.
5. If the user is expressing frustration or confusion, acknowledge their feelings first before providing a solution.

Reply with a JSON object like this:
{
  "intention": "get_attendance_stats | get_today_attendance | get_students_by_status | mark_attendance | mark_bulk_attendance | add_student | get_student_info | general_question",
  "toolToUse": "markAttendance | markBulkAttendance | addNewStudent | getAttendanceStats | getTodayAttendance | getStudentsByStatus | getStudentList | getStudentAttendance | none",
  "params": {
    "studentName": "name of student if applicable",
    "status": "present | absent | late (if marking attendance or filtering students)",
    "studentIndex": "optional student index (auto-generated if not provided)",
    "includedStudentNames": ["student1", "student2"],
    "excludedStudentNames": ["student3"],
    "markAll": false,
    "date": "specific date if not today (YYYY-MM-DD format)"
  },
  "sentimentAnalysis": "neutral | confused | frustrated | happy | curious",
  "explanation": "Brief explanation of why this tool was chosen, considering context"
}`
}

// directPrompt asks for a plain conversational answer with no tool use.
func (s *Session) directPrompt(utterance string, recent []Message) string {
	return s.contextPrompt() + "\n\nUser: " + utterance + "\n\nPrevious messages:\n" + transcript(recent) +
		"\n\nRespond directly to the user's question in a friendly, helpful way. Include contextual information if relevant. Keep your response focused but with a warm, conversational tone."
}

// failurePrompt asks for an empathetic explanation of a failed tool call.
func (s *Session) failurePrompt(utterance string, recent []Message, toolName, reason string) string {
	return s.contextPrompt() + "\n\nUser: " + utterance + "\n\nPrevious messages:\n" + transcript(recent) +
		fmt.Sprintf("\n\nI tried to use the %s tool but it failed with error: %s. Please generate a helpful response that explains the issue in a friendly, empathetic way. Offer alternative suggestions if appropriate.", toolName, reason)
}
