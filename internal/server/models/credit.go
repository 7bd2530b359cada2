package models

// Credit is one ledger entry of assistant usage credits. A positive amount
// grants credits, a negative amount records consumption; the balance is the
// sum over a user's entries.
type Credit struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
	Timestamps
}

func (c Credit) RowID() string     { return c.ID }
func (c Credit) RowUserID() string { return c.UserID }

// CreditForm is the create shape for a credit ledger entry.
type CreditForm struct {
	Amount int    `json:"amount" validate:"required"`
	Reason string `json:"reason" validate:"required,max=200"`
}

// CreditPatch holds partial updates; nil fields are left untouched.
type CreditPatch struct {
	Reason *string `json:"reason"`
}
