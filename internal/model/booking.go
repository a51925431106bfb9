package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// BookingStatus is the closed set of booking states. Pending is the only
// initial state; an admin may move a booking between any two states.
type BookingStatus string

const (
	StatusPending  BookingStatus = "pending"
	StatusApproved BookingStatus = "approved"
	StatusRejected BookingStatus = "rejected"
)

var validStatuses = []BookingStatus{StatusPending, StatusApproved, StatusRejected}

func (s BookingStatus) String() string { return string(s) }

func (s BookingStatus) IsValid() bool {
	for _, candidate := range validStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Active reports whether a booking in this state holds its seat.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}

func (s *BookingStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseBookingStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

const (
	MinWeekday = 0 // Monday
	MaxWeekday = 6 // Sunday
)

// ValidWeekday reports whether d is in Monday(0)..Sunday(6).
func ValidWeekday(d int) bool { return d >= MinWeekday && d <= MaxWeekday }

// Booking is a recurring claim on one seat for one weekday.
type Booking struct {
	ID             uint64        `json:"id"`
	SeatID         string        `json:"seat_id"`
	UserID         uint64        `json:"user_id"`
	Weekday        int           `json:"weekday"`
	BookedForName  *string       `json:"booked_for_name"`
	BookedForEmail *string       `json:"booked_for_email"`
	Notes          *string       `json:"notes"`
	Status         BookingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// BookingView is a Booking joined with the seat label and owner identity
// as they are at read time. Missing seats fall back to the seat id and
// missing users to "Unknown".
type BookingView struct {
	Booking
	SeatLabel string  `json:"seat_label"`
	UserName  string  `json:"user_name"`
	UserEmail *string `json:"user_email"`
}

// SeatHolder describes who currently occupies a seat on a weekday.
type SeatHolder struct {
	UserName  string        `json:"user_name"`
	UserEmail *string       `json:"user_email"`
	Status    BookingStatus `json:"status"`
}

const UnknownUserName = "Unknown"
