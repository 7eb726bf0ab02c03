package assistant

import (
	"context"
	"encoding/json"
	"log"
	"strings"
)

// analysis is the JSON contract the completion service is instructed to
// emit. Unknown fields are ignored; the service is non-deterministic and
// occasionally malformed, so every parse here has a conversational fallback.
type analysis struct {
	Intention         string     `json:"intention"`
	ToolToUse         string     `json:"toolToUse"`
	Params            ToolParams `json:"params"`
	SentimentAnalysis string     `json:"sentimentAnalysis"`
	Explanation       string     `json:"explanation"`
}

const offlineReply = "I apologize, but I encountered an error connecting to my knowledge base. Please try again later."

// respondNatural resolves a free-form utterance through up to three strictly
// sequential completion calls: analysis, then either a tool invocation or a
// direct answer, then an optional failure explanation. A parse failure never
// reaches the user.
func (s *Session) respondNatural(ctx context.Context, utterance string, recent []Message) string {
	raw, err := s.llm.Complete(ctx, s.analysisPrompt(utterance, recent))
	if err != nil {
		log.Printf("assistant: analysis call failed: %v", err)
		return offlineReply
	}

	var parsed analysis
	jsonText, found := extractJSON(raw)
	if found {
		if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
			found = false
		}
	}
	if !found {
		// Malformed analysis: answer the question directly instead.
		return s.directAnswer(ctx, utterance, recent)
	}

	if parsed.ToolToUse == "" || parsed.ToolToUse == "none" {
		return s.directAnswer(ctx, utterance, recent)
	}

	result, known := s.Execute(ctx, parsed.ToolToUse, parsed.Params)
	if !known {
		log.Printf("assistant: analysis named unknown tool %q", parsed.ToolToUse)
		return s.directAnswer(ctx, utterance, recent)
	}
	if result.Success {
		return result.Message
	}

	reply, err := s.llm.Complete(ctx, s.failurePrompt(utterance, recent, parsed.ToolToUse, result.Message))
	if err != nil {
		log.Printf("assistant: failure-explanation call failed: %v", err)
		// The tool's own message is still a readable outcome.
		return result.Message
	}
	return strings.TrimSpace(reply)
}

func (s *Session) directAnswer(ctx context.Context, utterance string, recent []Message) string {
	reply, err := s.llm.Complete(ctx, s.directPrompt(utterance, recent))
	if err != nil {
		log.Printf("assistant: direct-answer call failed: %v", err)
		return offlineReply
	}
	return strings.TrimSpace(reply)
}

// extractJSON returns the first balanced {...} substring. The completion
// service likes to wrap its JSON in prose or code fences; string contents
// are skipped so braces inside values cannot unbalance the scan.
func extractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
