package model

import "time"

// Seat is a position on the floor plan. IDs are chosen by the layout
// editor, not generated by the database.
type Seat struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Layout is the full seat catalog plus the optional background image
// reference stored in the singleton layout_meta row.
type Layout struct {
	Seats           []Seat     `json:"seats"`
	BackgroundImage *string    `json:"background_image"`
	UpdatedAt       *time.Time `json:"-"`
}
