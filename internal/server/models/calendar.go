package models

// Calendar groups events under a name and color. A user always has at least
// one local calendar; imported calendars keep the provider's id in ExternalID.
type Calendar struct {
	ID         string  `json:"id"`
	UserID     string  `json:"userId"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	IsDefault  bool    `json:"isDefault"`
	Source     string  `json:"source"`
	ExternalID *string `json:"externalId,omitempty"`
	Timestamps
}

func (c Calendar) RowID() string     { return c.ID }
func (c Calendar) RowUserID() string { return c.UserID }

// CalendarForm is the create shape for a calendar.
type CalendarForm struct {
	Name       string  `json:"name" validate:"required,max=120"`
	Color      string  `json:"color" validate:"omitempty,hexcolor"`
	IsDefault  bool    `json:"isDefault"`
	Source     string  `json:"source" validate:"omitempty,oneof=local google"`
	ExternalID *string `json:"externalId"`
}

// CalendarPatch holds partial updates; nil fields are left untouched.
type CalendarPatch struct {
	Name      *string `json:"name" validate:"omitempty,max=120"`
	Color     *string `json:"color" validate:"omitempty,hexcolor"`
	IsDefault *bool   `json:"isDefault"`
}
