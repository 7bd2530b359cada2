// Package models defines the server-side domain records and the form/patch
// shapes accepted by the data services. Every record is owned by exactly one
// user and carries a source tag plus an optional external id correlating it
// to a third-party provider's own identifier.
package models

import "time"

// Known record sources.
const (
	SourceLocal  = "local"
	SourceGoogle = "google"
)

// Timestamps are the audit fields shared by every record.
type Timestamps struct {
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}
