package domain

import "time"

// MessageAuthor indicates who authored a message.
type MessageAuthor string

const (
	AuthorUser   MessageAuthor = "user"
	AuthorAgent  MessageAuthor = "agent"
	AuthorSystem MessageAuthor = "system"
)

// TicketMessage captures communications in a ticket thread.
type TicketMessage struct {
	ID        string
	TicketID  string
	Author    MessageAuthor
	AuthorID  *string
	Body      string
	CreatedAt time.Time
}
