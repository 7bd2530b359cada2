package models

import "time"

// Event is a scheduled entry on a calendar. All-day events carry date-only
// boundaries (AllDay true); timed events carry full timestamps in UTC.
type Event struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	CalendarID  string  `json:"calendarId"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Location    string  `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool    `json:"allDay"`
	Color       string  `json:"color,omitempty"`
	Source      string  `json:"source"`
	ExternalID  *string `json:"externalId,omitempty"`
	Timestamps
}

func (e Event) RowID() string     { return e.ID }
func (e Event) RowUserID() string { return e.UserID }

// EventForm is the create shape for an event.
type EventForm struct {
	CalendarID  string    `json:"calendarId" validate:"required"`
	Title       string    `json:"title" validate:"required,max=300"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required"`
	AllDay      bool      `json:"allDay"`
	Color       string    `json:"color" validate:"omitempty,hexcolor"`
	Source      string    `json:"source" validate:"omitempty,oneof=local google"`
	ExternalID  *string   `json:"externalId"`
}

// EventPatch holds partial updates; nil fields are left untouched.
type EventPatch struct {
	CalendarID  *string    `json:"calendarId"`
	Title       *string    `json:"title" validate:"omitempty,max=300"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
	AllDay      *bool      `json:"allDay"`
	Color       *string    `json:"color" validate:"omitempty,hexcolor"`
}
