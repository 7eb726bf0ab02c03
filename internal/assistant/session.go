// Package assistant turns teacher chat input, slash commands or free-form
// language, into attendance reads and writes against one class.
package assistant

import (
	"context"
	"log"
	"strings"
	"time"

	"rollbook/internal/record"
)

// Completer is the generative completion collaborator. One prompt in, raw
// text out, no schema guarantees.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Message is one conversation turn. Sessions are append-only and live only
// as long as the session itself.
type Message struct {
	Text   string    `json:"text"`
	Sender string    `json:"sender"` // "user" or "assistant"
	At     time.Time `json:"at"`
}

// ToolResult is the terminal outcome of every tool invocation. A failed tool
// reports, it never propagates.
type ToolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ToolParams carries the union of tool arguments, mirroring the params
// object of the resolver's JSON contract.
type ToolParams struct {
	StudentName          string   `json:"studentName"`
	StudentIndex         string   `json:"studentIndex"`
	Status               string   `json:"status"`
	IncludedStudentNames []string `json:"includedStudentNames"`
	ExcludedStudentNames []string `json:"excludedStudentNames"`
	MarkAll              bool     `json:"markAll"`
	Date                 string   `json:"date"`
}

// Session is the state of one teacher's conversation with the assistant:
// the class, the current date, the roster cache, and the transcript. It is
// explicit state passed to every tool call, never package-level, so
// concurrent sessions cannot cross-contaminate.
type Session struct {
	Class record.Class
	Date  string

	store       record.Store
	llm         Completer
	students    []record.Student
	messages    []Message
	historyDays int
	now         func() time.Time
}

// NewSession loads the class roster and returns a ready session.
func NewSession(ctx context.Context, store record.Store, llm Completer, class record.Class) (*Session, error) {
	s := &Session{
		Class:       class,
		store:       store,
		llm:         llm,
		historyDays: 30,
		now:         time.Now,
	}
	s.Date = s.now().Format("2006-01-02")
	if err := s.refreshRoster(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) refreshRoster(ctx context.Context) error {
	students, err := s.store.Roster(ctx, s.Class)
	if err != nil {
		return err
	}
	s.students = students
	return nil
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) append(text, sender string) {
	s.messages = append(s.messages, Message{Text: text, Sender: sender, At: s.now()})
}

// recentMessages returns up to the last n turns, oldest first.
func (s *Session) recentMessages(n int) []Message {
	if len(s.messages) <= n {
		return s.messages
	}
	return s.messages[len(s.messages)-n:]
}

const apologyReply = "I'm sorry, I ran into a problem while processing your request. " +
	"Could you try rephrasing that, or use one of the commands from the /help menu?"

// HandleTurn runs one conversational turn: slash-prefixed input goes through
// the command registry, anything else through the language resolver. The
// guard at the top means a turn always ends with a reply, never a fault.
func (s *Session) HandleTurn(ctx context.Context, input string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("assistant: turn panicked: %v", r)
			reply = apologyReply
			s.append(reply, "assistant")
		}
	}()

	// Snapshot before appending so the prompt context holds prior turns,
	// not the utterance being resolved.
	recent := s.recentMessages(3)
	s.append(input, "user")
	if IsCommand(input) {
		reply = s.RunCommand(ctx, input).Message
	} else {
		reply = s.respondNatural(ctx, input, recent)
	}
	s.append(reply, "assistant")
	return reply
}

// IsCommand reports whether input addresses the command registry.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}
