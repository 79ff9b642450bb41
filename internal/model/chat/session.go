package chat

import "time"

// Session captures one browser tab's conversation namespace.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Resumed   bool      `json:"resumed"`
}
