package models

import "time"

// ChatMessage is a persisted chat line. UserID 0 marks an anonymous sender.
// @Description Persisted chat message
type ChatMessage struct {
	ID        int64     `json:"id" example:"101"`
	UserID    int64     `json:"userId" example:"42"`
	Content   string    `json:"content" example:"Hi, is the new build out?"`
	Timestamp time.Time `json:"timestamp" example:"2024-03-15T14:30:00Z"`
	IsAdmin   bool      `json:"isAdmin" example:"false"`
}

// IncomingMessage is the client frame. Its identity fields are ignored by the relay.
type IncomingMessage struct {
	UserID  int64  `json:"userId"`
	Content string `json:"content"`
	IsAdmin bool   `json:"isAdmin"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"Error message"`
}
