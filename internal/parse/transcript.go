package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Zuo-Peng/cs/internal/session"
)

var ErrNoTranscript = errors.New("session has no transcript")

// ReadMessages streams a session's transcript, calling fn for each user or
// assistant message in file order until fn returns false. Unparseable lines
// and bookkeeping records are skipped. Nothing is retained after the call.
func ReadMessages(s session.Session, fn func(Message) bool) error {
	if s.TranscriptRef == "" {
		return ErrNoTranscript
	}
	f, err := os.Open(s.TranscriptRef)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	decode := decodeClaudeMessage
	if s.Source == session.Codex {
		decode = decodeCodexMessage
	}
	return eachLine(f, func(l line) bool {
		if l.TooLong {
			return true
		}
		msg, ok := decode(l.Data)
		if !ok {
			return true
		}
		msg.Line = l.Num
		return fn(msg)
	})
}

func decodeClaudeMessage(data []byte) (Message, bool) {
	var rec claudeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Message{}, false
	}
	if rec.Type != "user" && rec.Type != "assistant" {
		return Message{}, false
	}
	var msg claudeMessage
	if err := json.Unmarshal(rec.Message, &msg); err != nil {
		return Message{}, false
	}
	content := extractClaudeContent(msg.Content)
	role := msg.Role
	if role == "" {
		role = rec.Type
	}
	return Message{
		Role:     role,
		Text:     content.Text,
		Thinking: content.Thinking,
		Tools:    content.Tools,
		Model:    msg.Model,
		APIError: rec.APIError,
	}, true
}

func decodeCodexMessage(data []byte) (Message, bool) {
	var rec codexRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Type != "response_item" {
		return Message{}, false
	}
	var p codexPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil || p.Type != "message" {
		return Message{}, false
	}
	role := "assistant"
	if p.Role == "user" {
		role = "user"
	}
	content := extractClaudeContent(p.Content)
	return Message{
		Role:  role,
		Text:  content.Text,
		Model: p.Model,
	}, true
}
