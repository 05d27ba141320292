package models

import (
	"fmt"
	"time"
)

type MatchStatus string

const (
	MatchScheduled           MatchStatus = "scheduled"
	MatchLive                MatchStatus = "live"
	MatchPendingResult       MatchStatus = "pending_result"
	MatchPendingConfirmation MatchStatus = "pending_confirmation"
	MatchCompleted           MatchStatus = "completed"
)

// RoundGroupStage is the round label of every group-stage fixture. Knockout
// fixtures carry the (Norwegian) round name instead.
const RoundGroupStage = "Gruppespill"

// MatchSide identifies which of the two teams is acting.
type MatchSide int

const (
	SideTeam1 MatchSide = 1
	SideTeam2 MatchSide = 2
)

func ParseMatchSide(v int) (MatchSide, error) {
	switch v {
	case 1:
		return SideTeam1, nil
	case 2:
		return SideTeam2, nil
	}
	return 0, fmt.Errorf("invalid match side %d", v)
}

func (s MatchSide) Other() MatchSide {
	if s == SideTeam1 {
		return SideTeam2
	}
	return SideTeam1
}

type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Team1ID      int         `json:"team1_id" db:"team1_id"`
	Team2ID      *int        `json:"team2_id,omitempty" db:"team2_id"`
	Team1Name    string      `json:"team1_name" db:"team1_name"`
	Team2Name    string      `json:"team2_name" db:"team2_name"`
	Round        string      `json:"round" db:"round"`
	GroupName    *string     `json:"group_name,omitempty" db:"group_name"`
	GroupRound   *int        `json:"group_round,omitempty" db:"group_round"`
	Status       MatchStatus `json:"status" db:"status"`

	Score1 *int `json:"score1,omitempty" db:"score1"`
	Score2 *int `json:"score2,omitempty" db:"score2"`

	ScheduledTime *time.Time `json:"scheduled_time,omitempty" db:"scheduled_time"`

	// Per-side reported scores, kept for the reconciliation handshake. Once
	// the match is completed these are informational only.
	SubmittedBy          *int `json:"submitted_by,omitempty" db:"submitted_by"`
	Team1SubmittedScore1 *int `json:"team1_submitted_score1,omitempty" db:"team1_submitted_score1"`
	Team1SubmittedScore2 *int `json:"team1_submitted_score2,omitempty" db:"team1_submitted_score2"`
	Team2SubmittedScore1 *int `json:"team2_submitted_score1,omitempty" db:"team2_submitted_score1"`
	Team2SubmittedScore2 *int `json:"team2_submitted_score2,omitempty" db:"team2_submitted_score2"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsBye reports whether the match is a knockout bye (only one entrant).
func (m *Match) IsBye() bool {
	return m.Team2ID == nil
}

// SideOfTeam returns which side the given team plays on.
func (m *Match) SideOfTeam(teamID int) (MatchSide, error) {
	switch {
	case m.Team1ID == teamID:
		return SideTeam1, nil
	case m.Team2ID != nil && *m.Team2ID == teamID:
		return SideTeam2, nil
	}
	return 0, fmt.Errorf("team %d does not play in match %d", teamID, m.ID)
}

// HasSubmission reports whether the given side has reported a score.
func (m *Match) HasSubmission(side MatchSide) bool {
	if side == SideTeam1 {
		return m.Team1SubmittedScore1 != nil && m.Team1SubmittedScore2 != nil
	}
	return m.Team2SubmittedScore1 != nil && m.Team2SubmittedScore2 != nil
}

// SubmissionsAgree cross-checks the two reported score pairs. Each side
// reports from its own perspective, so team1's "goals for" must equal team2's
// "goals against" and vice versa.
func (m *Match) SubmissionsAgree() bool {
	if !m.HasSubmission(SideTeam1) || !m.HasSubmission(SideTeam2) {
		return false
	}
	return *m.Team1SubmittedScore1 == *m.Team2SubmittedScore2 &&
		*m.Team1SubmittedScore2 == *m.Team2SubmittedScore1
}

// HasConflict reports whether both sides submitted but their reports
// disagree, which requires an administrator to resolve the result.
func (m *Match) HasConflict() bool {
	return m.Status != MatchCompleted &&
		m.HasSubmission(SideTeam1) && m.HasSubmission(SideTeam2) &&
		!m.SubmissionsAgree()
}

// WinnerTeamID returns the winning team of a completed match, or nil on a
// draw or when the match is not completed. A bye always goes to team1.
func (m *Match) WinnerTeamID() *int {
	if m.Status != MatchCompleted {
		return nil
	}
	if m.IsBye() {
		id := m.Team1ID
		return &id
	}
	if m.Score1 == nil || m.Score2 == nil {
		return nil
	}
	switch {
	case *m.Score1 > *m.Score2:
		id := m.Team1ID
		return &id
	case *m.Score2 > *m.Score1:
		return m.Team2ID
	}
	return nil
}
