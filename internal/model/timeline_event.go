// internal/model/timeline_event.go
package model

import "time"

// TimelineEvent is a case-timeline entry recorded for a recipient after a successful send.
type TimelineEvent struct {
	ID          int       `db:"id" json:"id,omitempty"`
	RecipientID int       `db:"applicant_id" json:"recipient_id"`
	Type        string    `db:"type" json:"type"`
	Description string    `db:"description" json:"description"`
	User        string    `db:"created_by" json:"user"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
