package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Role tags who authored a chat entry.
type Role string

const (
	RoleUser Role = "user"
	RoleGame Role = "game"
)

// ErrMalformedEntry reports a record that is not shaped like a chat entry.
var ErrMalformedEntry = errors.New("malformed chat entry")

// Entry is one line of the conversation. On the wire it is a single-key
// object: {"user": "..."} or {"game": "..."}.
type Entry struct {
	Role Role
	Text string
}

// UserEntry builds a user-authored entry.
func UserEntry(text string) Entry {
	return Entry{Role: RoleUser, Text: text}
}

// GameEntry builds a game-authored entry.
func GameEntry(text string) Entry {
	return Entry{Role: RoleGame, Text: text}
}

// Valid reports whether the entry carries a known role.
func (e Entry) Valid() bool {
	return e.Role == RoleUser || e.Role == RoleGame
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrMalformedEntry, e.Role)
	}
	return json.Marshal(map[string]string{string(e.Role): e.Text})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("%w: null record", ErrMalformedEntry)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: expected exactly one of %q or %q", ErrMalformedEntry, RoleUser, RoleGame)
	}

	for key, value := range raw {
		role := Role(key)
		if role != RoleUser && role != RoleGame {
			return fmt.Errorf("%w: unknown role %q", ErrMalformedEntry, key)
		}
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return fmt.Errorf("%w: %s text is not a string", ErrMalformedEntry, key)
		}
		*e = Entry{Role: role, Text: text}
	}
	return nil
}
