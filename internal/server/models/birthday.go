package models

import "time"

// Birthday is a yearly recurring reminder. The Date field stores the next or
// original occurrence; only month and day are significant for recurrence.
type Birthday struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	Notes      string    `json:"notes,omitempty"`
	Source     string    `json:"source"`
	ExternalID *string   `json:"externalId,omitempty"`
	Timestamps
}

func (b Birthday) RowID() string     { return b.ID }
func (b Birthday) RowUserID() string { return b.UserID }

// BirthdayForm is the create shape for a birthday.
type BirthdayForm struct {
	Name       string    `json:"name" validate:"required,max=200"`
	Date       time.Time `json:"date" validate:"required"`
	Notes      string    `json:"notes"`
	Source     string    `json:"source" validate:"omitempty,oneof=local google"`
	ExternalID *string   `json:"externalId"`
}

// BirthdayPatch holds partial updates; nil fields are left untouched.
type BirthdayPatch struct {
	Name  *string    `json:"name" validate:"omitempty,max=200"`
	Date  *time.Time `json:"date"`
	Notes *string    `json:"notes"`
}
