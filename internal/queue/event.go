// Package queue defines booking lifecycle events and moves them over
// RabbitMQ: the API publishes, cmd/consumer writes them to an audit log.
package queue

import (
	"fmt"
	"strings"
	"time"
)

// EventType names a booking lifecycle transition.
type EventType string

const (
	EventBookingCreated       EventType = "booking.created"
	EventBookingStatusChanged EventType = "booking.status_changed"
	EventBookingCancelled     EventType = "booking.cancelled"
)

// BookingEvent carries enough of a booking for downstream consumers to
// log or notify without querying the database.
type BookingEvent struct {
	Type       EventType `json:"type"`
	BookingID  uint64    `json:"booking_id"`
	SeatID     string    `json:"seat_id"`
	SeatLabel  string    `json:"seat_label"`
	UserID     uint64    `json:"user_id"`
	ActorID    uint64    `json:"actor_id"`
	Weekday    int       `json:"weekday"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AuditLine renders ev as one human-friendly log line.
func (ev BookingEvent) AuditLine() string {
	label := ev.SeatLabel
	if label == "" {
		label = ev.SeatID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | booking_id=%d | seat=%q | weekday=%d | status=%s | user_id=%d",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.BookingID, label, ev.Weekday, ev.Status, ev.UserID)
	if ev.ActorID != 0 && ev.ActorID != ev.UserID {
		fmt.Fprintf(&b, " | actor_id=%d", ev.ActorID)
	}
	b.WriteString("\n")
	return b.String()
}
