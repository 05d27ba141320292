package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aasen99/pro11/models"
)

// Norwegian knockout round names, in playing order.
const (
	RoundQuarterfinals = "Kvartfinaler"
	RoundSemifinals    = "Semifinaler"
	RoundFinal         = "Finale"
)

// KnockoutProgression lists the knockout rounds as they are played.
var KnockoutProgression = []string{RoundQuarterfinals, RoundSemifinals, RoundFinal}

// RoundName names a knockout round by bracket size. Sizes without an exact
// named round degrade to the best available name.
func RoundName(size int) string {
	switch {
	case size <= 2:
		return RoundFinal
	case size <= 4:
		return RoundSemifinals
	default:
		return RoundQuarterfinals
	}
}

var (
	ErrGroupStageIncomplete = errors.New("group stage is not completed")
	ErrNoQualifiers         = errors.New("no qualifiers for the knockout stage")
)

// Qualifier is a team that advanced from the group stage, tagged with the
// group position it qualified from (wildcards keep position 2).
type Qualifier struct {
	Standing models.GroupStanding `json:"standing"`
	Position int                  `json:"position"`
	Wildcard bool                 `json:"wildcard"`
}

// AllGroupMatchesCompleted reports whether every group-stage match is
// completed with both scores set. Seeding refuses to run otherwise.
func AllGroupMatchesCompleted(matches []models.Match) bool {
	any := false
	for _, m := range matches {
		if m.Round != models.RoundGroupStage {
			continue
		}
		any = true
		if m.Status != models.MatchCompleted || m.Score1 == nil || m.Score2 == nil {
			return false
		}
	}
	return any
}

// RankQualifiers collects the qualifying teams from every group table and
// orders them into a single seeded list: qualifying position first, then
// points, goal difference and goals for. With UseBestRunnersUp the best
// position-2 finishers across all groups join as wildcards, deduplicated
// against the teams that already qualified.
func RankQualifiers(tables map[string][]models.GroupStanding, cfg models.KnockoutConfig) ([]Qualifier, error) {
	if cfg.TeamsToKnockout < 1 {
		return nil, fmt.Errorf("teams_to_knockout must be at least 1, got %d", cfg.TeamsToKnockout)
	}

	// Iterate groups in name order so equal seeds rank deterministically.
	groupNames := make([]string, 0, len(tables))
	for name := range tables {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	var qualifiers []Qualifier
	taken := make(map[int]bool)
	for pos := 1; pos <= cfg.TeamsToKnockout; pos++ {
		for _, name := range groupNames {
			table := tables[name]
			if pos > len(table) {
				continue
			}
			q := Qualifier{Standing: table[pos-1], Position: pos}
			qualifiers = append(qualifiers, q)
			taken[q.Standing.TeamID] = true
		}
	}

	if cfg.UseBestRunnersUp && cfg.NumBestRunnersUp > 0 {
		var runnersUp []Qualifier
		for _, name := range groupNames {
			table := tables[name]
			if len(table) < 2 {
				continue
			}
			if taken[table[1].TeamID] {
				continue
			}
			runnersUp = append(runnersUp, Qualifier{Standing: table[1], Position: 2, Wildcard: true})
		}
		sort.SliceStable(runnersUp, func(i, j int) bool {
			return standingLess(runnersUp[i].Standing, runnersUp[j].Standing)
		})
		if len(runnersUp) > cfg.NumBestRunnersUp {
			runnersUp = runnersUp[:cfg.NumBestRunnersUp]
		}
		qualifiers = append(qualifiers, runnersUp...)
	}

	if len(qualifiers) == 0 {
		return nil, ErrNoQualifiers
	}

	sort.SliceStable(qualifiers, func(i, j int) bool {
		if qualifiers[i].Position != qualifiers[j].Position {
			return qualifiers[i].Position < qualifiers[j].Position
		}
		return standingLess(qualifiers[i].Standing, qualifiers[j].Standing)
	})
	return qualifiers, nil
}

func standingLess(a, b models.GroupStanding) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.GoalDifference() != b.GoalDifference() {
		return a.GoalDifference() > b.GoalDifference()
	}
	return a.GoalsFor > b.GoalsFor
}

// GenerateSeededBracket pairs the ranked qualifier list best against worst:
// rank i meets rank len-1-i. An odd pool grants the unpaired entrant an
// explicit bye (a completed match without an opponent) rather than silently
// dropping them.
func GenerateSeededBracket(tournamentID int, qualifiers []Qualifier, roundName string) ([]models.Match, error) {
	if len(qualifiers) < 2 {
		return nil, fmt.Errorf("not enough qualifiers to seed a bracket (found %d, min 2 required)", len(qualifiers))
	}

	matches := make([]models.Match, 0, (len(qualifiers)+1)/2)
	n := len(qualifiers)
	for i := 0; i < n/2; i++ {
		high := qualifiers[i].Standing
		low := qualifiers[n-1-i].Standing
		matches = append(matches, models.Match{
			TournamentID: tournamentID,
			Team1ID:      high.TeamID,
			Team2ID:      intPtr(low.TeamID),
			Team1Name:    high.TeamName,
			Team2Name:    low.TeamName,
			Round:        roundName,
			Status:       models.MatchScheduled,
		})
	}
	if n%2 != 0 {
		bye := qualifiers[n/2].Standing
		matches = append(matches, models.Match{
			TournamentID: tournamentID,
			Team1ID:      bye.TeamID,
			Team1Name:    bye.TeamName,
			Round:        roundName,
			Status:       models.MatchCompleted,
		})
	}
	return matches, nil
}
