package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingHistory is returned when a chat document lacks the chat_history field.
var ErrMissingHistory = errors.New("chat history not found in document")

// Log is the ordered session transcript.
type Log []Entry

// Clone returns an independent copy that is never nil.
func (l Log) Clone() Log {
	out := make(Log, len(l))
	copy(out, l)
	return out
}

// Encode serializes the log into its snapshot form.
func (l Log) Encode() ([]byte, error) {
	if l == nil {
		l = Log{}
	}
	return json.Marshal(l)
}

// DecodeLog parses a snapshot. Anything other than an array of
// entry-shaped records is rejected.
func DecodeLog(data []byte) (Log, error) {
	var log Log
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("decode chat log: %w", err)
	}
	if log == nil {
		return nil, fmt.Errorf("decode chat log: %w: not an array", ErrMalformedEntry)
	}
	return log, nil
}

// Document is the bundled default chat file.
type Document struct {
	ChatHistory *Log `json:"chat_history"`
}

// DecodeDocument parses a fallback document. A well-formed document without
// a chat_history field yields ErrMissingHistory.
func DecodeDocument(data []byte) (Log, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode chat document: %w", err)
	}
	if doc.ChatHistory == nil || *doc.ChatHistory == nil {
		return nil, ErrMissingHistory
	}
	return doc.ChatHistory.Clone(), nil
}

// WelcomeLog is the terminal fallback transcript used when no snapshot or
// document is available.
func WelcomeLog() Log {
	return Log{
		GameEntry("Welcome to the Power Rangers text adventure! The system is initializing..."),
		GameEntry("Type your commands to interact with the game world."),
	}
}
