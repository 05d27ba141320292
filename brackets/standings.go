package brackets

import (
	"fmt"
	"sort"

	"github.com/aasen99/pro11/models"
)

// ResultIssue flags a completed match the standings calculator could not
// use. A completed match without both scores is a data error, not a 0-0.
type ResultIssue struct {
	MatchID int    `json:"match_id"`
	Reason  string `json:"reason"`
}

// CalculateGroupStandings folds the completed group-stage matches into
// sorted per-group tables. It is a pure function of its input: calling it
// twice over the same match set yields identical tables, and matches that
// are not completed never contribute.
//
// Sort order: points desc, goal difference desc, goals for desc, then the
// head-to-head result between the tied pair, then input order (stable).
func CalculateGroupStandings(matches []models.Match) (map[string][]models.GroupStanding, []ResultIssue) {
	type teamKey struct {
		group string
		id    int
	}
	rows := make(map[teamKey]*models.GroupStanding)
	var order []teamKey
	var issues []ResultIssue

	ensure := func(group string, id int, name string) *models.GroupStanding {
		key := teamKey{group, id}
		if row, ok := rows[key]; ok {
			return row
		}
		row := &models.GroupStanding{TeamID: id, TeamName: name, GroupName: group}
		rows[key] = row
		order = append(order, key)
		return row
	}

	groupMatches := make(map[string][]models.Match)
	for _, m := range matches {
		if m.Round != models.RoundGroupStage || m.GroupName == nil || m.Team2ID == nil {
			continue
		}
		group := *m.GroupName
		groupMatches[group] = append(groupMatches[group], m)

		// Every team seen in any group match gets a row, played or not.
		home := ensure(group, m.Team1ID, m.Team1Name)
		away := ensure(group, *m.Team2ID, m.Team2Name)

		if m.Status != models.MatchCompleted {
			continue
		}
		if m.Score1 == nil || m.Score2 == nil {
			issues = append(issues, ResultIssue{
				MatchID: m.ID,
				Reason:  fmt.Sprintf("match %d is completed but has no final score", m.ID),
			})
			continue
		}
		applyResult(home, away, *m.Score1, *m.Score2)
	}

	tables := make(map[string][]models.GroupStanding)
	for _, key := range order {
		row := rows[key]
		tables[key.group] = append(tables[key.group], *row)
	}
	for group, table := range tables {
		sortTable(table, groupMatches[group])
		tables[group] = table
	}
	return tables, issues
}

func applyResult(home, away *models.GroupStanding, score1, score2 int) {
	home.Played++
	away.Played++
	home.GoalsFor += score1
	home.GoalsAgainst += score2
	away.GoalsFor += score2
	away.GoalsAgainst += score1
	switch {
	case score1 > score2:
		home.Won++
		away.Lost++
		home.Points += 3
	case score2 > score1:
		away.Won++
		home.Lost++
		away.Points += 3
	default:
		home.Drawn++
		away.Drawn++
		home.Points++
		away.Points++
	}
}

func sortTable(table []models.GroupStanding, matches []models.Match) {
	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference() != b.GoalDifference() {
			return a.GoalDifference() > b.GoalDifference()
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		switch headToHead(a.TeamID, b.TeamID, matches) {
		case 1:
			return true
		case -1:
			return false
		}
		return false // stable otherwise
	})
}

// headToHead ranks two tied teams over only their mutual completed matches,
// using the same points/goal-difference/goals-for ordering. Returns 1 when a
// ranks above b, -1 when below, 0 when still level.
func headToHead(aID, bID int, matches []models.Match) int {
	var a, b models.GroupStanding
	a.TeamID = aID
	b.TeamID = bID
	for _, m := range matches {
		if m.Status != models.MatchCompleted || m.Score1 == nil || m.Score2 == nil || m.Team2ID == nil {
			continue
		}
		if m.Team1ID == aID && *m.Team2ID == bID {
			applyResult(&a, &b, *m.Score1, *m.Score2)
		} else if m.Team1ID == bID && *m.Team2ID == aID {
			applyResult(&b, &a, *m.Score1, *m.Score2)
		}
	}
	if a.Points != b.Points {
		if a.Points > b.Points {
			return 1
		}
		return -1
	}
	if a.GoalDifference() != b.GoalDifference() {
		if a.GoalDifference() > b.GoalDifference() {
			return 1
		}
		return -1
	}
	if a.GoalsFor != b.GoalsFor {
		if a.GoalsFor > b.GoalsFor {
			return 1
		}
		return -1
	}
	return 0
}
