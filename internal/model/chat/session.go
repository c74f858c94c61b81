package chat

import "time"

// Session captures one greeting-to-reset conversation lifetime.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`
}
