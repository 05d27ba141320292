package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TournamentStatus is the canonical status used throughout the application and
// in the API. The database keeps an older enum with different spellings, see
// the mapping tables below.
type TournamentStatus string

const (
	TournamentOpen      TournamentStatus = "open"
	TournamentOngoing   TournamentStatus = "ongoing"
	TournamentClosed    TournamentStatus = "closed"
	TournamentCompleted TournamentStatus = "completed"
	TournamentArchived  TournamentStatus = "archived"
)

// tournamentStatusToStorage translates the canonical status to the value
// stored in the tournaments.status column. The storage enum predates the
// public API and must not leak out of the repositories.
var tournamentStatusToStorage = map[TournamentStatus]string{
	TournamentOpen:      "upcoming",
	TournamentOngoing:   "active",
	TournamentClosed:    "cancelled",
	TournamentCompleted: "completed",
	TournamentArchived:  "archived",
}

var tournamentStatusFromStorage = map[string]TournamentStatus{
	"upcoming":  TournamentOpen,
	"active":    TournamentOngoing,
	"cancelled": TournamentClosed,
	"completed": TournamentCompleted,
	"archived":  TournamentArchived,
}

// StorageValue returns the database representation of the status.
func (s TournamentStatus) StorageValue() (string, error) {
	v, ok := tournamentStatusToStorage[s]
	if !ok {
		return "", fmt.Errorf("unknown tournament status %q", s)
	}
	return v, nil
}

// TournamentStatusFromStorage translates a tournaments.status column value
// back to the canonical status.
func TournamentStatusFromStorage(v string) (TournamentStatus, error) {
	s, ok := tournamentStatusFromStorage[v]
	if !ok {
		return "", fmt.Errorf("unknown stored tournament status %q", v)
	}
	return s, nil
}

// ParseTournamentStatus validates a status string coming from the API.
func ParseTournamentStatus(v string) (TournamentStatus, error) {
	s := TournamentStatus(v)
	if _, ok := tournamentStatusToStorage[s]; !ok {
		return "", fmt.Errorf("invalid tournament status %q", v)
	}
	return s, nil
}

// KnockoutConfig controls how group qualifiers are seeded into the bracket.
type KnockoutConfig struct {
	TeamsToKnockout  int  `json:"teams_to_knockout"`
	UseBestRunnersUp bool `json:"use_best_runners_up"`
	NumBestRunnersUp int  `json:"num_best_runners_up"`
}

type Tournament struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	Description *string          `json:"description,omitempty" db:"description"`
	Status      TournamentStatus `json:"status" db:"status"`
	Format      string           `json:"format" db:"format"`
	MaxTeams    int              `json:"max_teams" db:"max_teams"`
	EntryFee    int              `json:"entry_fee" db:"entry_fee"`
	Knockout    KnockoutConfig   `json:"knockout" db:"-"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`

	// Optional linked entities, populated by the service layer.
	Teams   []Team  `json:"teams,omitempty" db:"-"`
	Matches []Match `json:"matches,omitempty" db:"-"`
}

var potTagPattern = regexp.MustCompile(`\[pot:(\d+)\]`)

// PrizePool derives the prize pool from a [pot:N] tag embedded in the
// description: N kroner per eligible (approved and paid) team. Returns 0 when
// the tag is absent.
func (t *Tournament) PrizePool(eligibleTeams int) int {
	if t.Description == nil {
		return 0
	}
	m := potTagPattern.FindStringSubmatch(*t.Description)
	if m == nil {
		return 0
	}
	pot, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return pot * eligibleTeams
}
