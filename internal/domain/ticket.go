package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen         TicketStatus = "open"
	TicketStatusTriaged      TicketStatus = "triaged"
	TicketStatusWaitingHuman TicketStatus = "waiting_human"
	TicketStatusResolved     TicketStatus = "resolved"
	TicketStatusClosed       TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusTriaged, TicketStatusWaitingHuman, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketCategory enumerates the intents a ticket can be routed to.
type TicketCategory string

const (
	CategoryBilling  TicketCategory = "billing"
	CategoryTech     TicketCategory = "tech"
	CategoryShipping TicketCategory = "shipping"
	CategoryOther    TicketCategory = "other"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryBilling, CategoryTech, CategoryShipping, CategoryOther:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           string
	Title        string
	Description  string
	Category     TicketCategory
	Status       TicketStatus
	CreatedBy    string
	AssigneeID   *string
	SuggestionID *string
	Attachments  []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Text is the classification input for the ticket.
func (t *Ticket) Text() string {
	return t.Title + "\n" + t.Description
}

// SearchQuery is the retrieval query for the ticket.
func (t *Ticket) SearchQuery() string {
	return t.Title + " " + t.Description
}
