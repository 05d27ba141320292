package models

import "time"

type TeamStatus string

const (
	TeamPending  TeamStatus = "pending"
	TeamApproved TeamStatus = "approved"
	TeamRejected TeamStatus = "rejected"
)

type Team struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	Name         string     `json:"name" db:"name"`
	CaptainEmail string     `json:"captain_email" db:"captain_email"`
	Status       TeamStatus `json:"status" db:"status"`
	CheckedIn    bool       `json:"checked_in" db:"checked_in"`
	Paid         bool       `json:"paid" db:"paid"`
	PaymentRef   *string    `json:"payment_ref,omitempty" db:"payment_ref"`
	GroupName    *string    `json:"group_name,omitempty" db:"group_name"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}

// Eligible reports whether the team counts towards schedule generation and
// the prize pool.
func (t *Team) Eligible() bool {
	return t.Status == TeamApproved && t.CheckedIn
}
