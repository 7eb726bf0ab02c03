package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"rollbook/internal/record"
)

// fakeCompleter replays scripted replies in order and records the prompts it
// was given. A nil script answers every call with an error.
type fakeCompleter struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("fakeCompleter: script exhausted")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		found bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose wrapped", "Sure! Here is the analysis:\n{\"toolToUse\":\"none\"}\nHope that helps.", `{"toolToUse":"none"}`, true},
		{"code fence", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"brace inside string", `{"msg":"use {braces} freely"}`, `{"msg":"use {braces} freely"}`, true},
		{"escaped quote inside string", `{"msg":"she said \"hi\" {"}`, `{"msg":"she said \"hi\" {"}`, true},
		{"no object", "just words", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := extractJSON(tt.in)
			if found != tt.found {
				t.Fatalf("extractJSON(%q) found = %v, want %v", tt.in, found, tt.found)
			}
			if got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRespondNaturalToolSuccess(t *testing.T) {
	llm := &fakeCompleter{replies: []string{
		`Here you go: {"intention":"mark_attendance","toolToUse":"markAttendance","params":{"studentName":"nimal","status":"present"},"sentimentAnalysis":"neutral","explanation":"teacher wants to mark"}`,
	}}
	s, store := newTestSession(t, llm)

	reply := s.HandleTurn(context.Background(), "please mark nimal present")
	if !strings.Contains(reply, "Nimal Fernando") || !strings.Contains(reply, "present") {
		t.Errorf("reply = %q, want the tool's own message verbatim", reply)
	}
	day, _ := store.Day(context.Background(), s.Class, s.Date)
	if got := day[studentID(t, s, "nimal")].Status; got != record.Present {
		t.Errorf("status = %q, want present", got)
	}
	if len(llm.prompts) != 1 {
		t.Errorf("tool success must not trigger further completion calls, got %d", len(llm.prompts))
	}
}

func TestRespondNaturalDirectAnswer(t *testing.T) {
	llm := &fakeCompleter{replies: []string{
		`{"intention":"general_question","toolToUse":"none","params":{},"sentimentAnalysis":"curious","explanation":"small talk"}`,
		"You're welcome! Anything else I can help with?",
	}}
	s, _ := newTestSession(t, llm)

	reply := s.HandleTurn(context.Background(), "thanks for your help")
	if reply != "You're welcome! Anything else I can help with?" {
		t.Errorf("reply = %q", reply)
	}
	if len(llm.prompts) != 2 {
		t.Errorf("expected analysis + direct answer calls, got %d", len(llm.prompts))
	}
}

func TestRespondNaturalMalformedAnalysis(t *testing.T) {
	llm := &fakeCompleter{replies: []string{
		"I could not decide what to do, sorry!",
		"Happy to help with attendance questions.",
	}}
	s, _ := newTestSession(t, llm)

	reply := s.HandleTurn(context.Background(), "what can you do")
	if reply != "Happy to help with attendance questions." {
		t.Errorf("no-JSON analysis should fall back to a direct answer, got %q", reply)
	}
}

func TestRespondNaturalUnknownTool(t *testing.T) {
	llm := &fakeCompleter{replies: []string{
		`{"toolToUse":"teleportStudent","params":{}}`,
		"I can't do that, but I can mark attendance for you.",
	}}
	s, _ := newTestSession(t, llm)

	reply := s.HandleTurn(context.Background(), "teleport nimal home")
	if reply != "I can't do that, but I can mark attendance for you." {
		t.Errorf("unknown tool should fall back to a direct answer, got %q", reply)
	}
}

func TestRespondNaturalToolFailureExplained(t *testing.T) {
	llm := &fakeCompleter{replies: []string{
		`{"toolToUse":"markAttendance","params":{"studentName":"Tharindu","status":"present"}}`,
		"Hmm, I couldn't find Tharindu in your class. Try /students to check the spelling.",
	}}
	s, _ := newTestSession(t, llm)

	reply := s.HandleTurn(context.Background(), "mark tharindu present")
	if reply != "Hmm, I couldn't find Tharindu in your class. Try /students to check the spelling." {
		t.Errorf("tool failure should be explained by the third call, got %q", reply)
	}
	if len(llm.prompts) != 2 {
		t.Errorf("expected analysis + failure explanation, got %d calls", len(llm.prompts))
	}
}

func TestRespondNaturalFailureExplanationErrors(t *testing.T) {
	llm := &fakeCompleter{replies: []string{
		`{"toolToUse":"markAttendance","params":{"studentName":"Tharindu","status":"present"}}`,
	}}
	s, _ := newTestSession(t, llm)

	reply := s.HandleTurn(context.Background(), "mark tharindu present")
	if !strings.Contains(reply, "couldn't find a student") {
		t.Errorf("when the explanation call fails the tool's own message must surface, got %q", reply)
	}
}

func TestRespondNaturalCompleterDown(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("connection refused")}
	s, _ := newTestSession(t, llm)

	reply := s.HandleTurn(context.Background(), "how is attendance looking")
	if reply != offlineReply {
		t.Errorf("reply = %q, want offline apology", reply)
	}
}

func TestHandleTurnTranscript(t *testing.T) {
	s, _ := newTestSession(t, nil)

	s.HandleTurn(context.Background(), "/help")
	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript holds %d messages, want 2", len(msgs))
	}
	if msgs[0].Sender != "user" || msgs[1].Sender != "assistant" {
		t.Errorf("senders = %s, %s", msgs[0].Sender, msgs[1].Sender)
	}
}

func TestAnalysisPromptExcludesCurrentUtterance(t *testing.T) {
	llm := &fakeCompleter{replies: []string{
		`{"toolToUse":"none"}`,
		"Hello!",
		`{"toolToUse":"none"}`,
		"Hi again!",
	}}
	s, _ := newTestSession(t, llm)

	s.HandleTurn(context.Background(), "first message")
	s.HandleTurn(context.Background(), "second message")

	// The second analysis prompt sees the first exchange as history but not
	// the utterance being analyzed.
	second := llm.prompts[2]
	if !strings.Contains(second, "first message") {
		t.Errorf("prior turn missing from context:\n%s", second)
	}
	if strings.Count(second, "second message") > 1 {
		t.Errorf("current utterance duplicated into conversation history:\n%s", second)
	}
}
