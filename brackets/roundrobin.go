package brackets

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/aasen99/pro11/models"
)

// Group letters run A, B, C, ... per tournament.
const groupNamePrefix = "Gruppe "

func groupName(index int) string {
	return groupNamePrefix + string(rune('A'+index))
}

// SplitIntoGroups deals teams into numGroups groups. With numGroups == 0 the
// count is chosen automatically: two groups for eight or fewer teams,
// otherwise enough groups to keep roughly four teams in each. The team list
// is shuffled first, so the partitioning is randomized; the pairing schedule
// within a group stays deterministic (see GenerateGroupFixtures).
func SplitIntoGroups(teams []models.Team, numGroups int) ([][]models.Team, error) {
	if len(teams) < 2 {
		return nil, fmt.Errorf("not enough teams to form groups (found %d, min 2 required)", len(teams))
	}
	if numGroups == 0 {
		if len(teams) <= 8 {
			numGroups = 2
		} else {
			numGroups = (len(teams) + 3) / 4
		}
	}
	if numGroups < 1 || numGroups > len(teams) {
		return nil, fmt.Errorf("invalid group count %d for %d teams", numGroups, len(teams))
	}

	shuffled := make([]models.Team, len(teams))
	copy(shuffled, teams)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	groups := make([][]models.Team, numGroups)
	for i, team := range shuffled {
		g := i % numGroups
		name := groupName(g)
		team.GroupName = &name
		groups[g] = append(groups[g], team)
	}
	return groups, nil
}

// GenerateGroupFixtures produces a full single round-robin per group using
// the circle method. Within a group teams are ordered by name before
// pairing, so the schedule is a pure function of the group's membership and
// round numbers can later be reconstructed from team names alone. A group
// with fewer than two teams yields no fixtures.
func GenerateGroupFixtures(tournamentID int, groups [][]models.Team) []models.Match {
	var fixtures []models.Match
	for gi, group := range groups {
		name := groupName(gi)
		if len(group) > 0 && group[0].GroupName != nil {
			name = *group[0].GroupName
		}
		fixtures = append(fixtures, circleSchedule(tournamentID, name, group)...)
	}
	return fixtures
}

func circleSchedule(tournamentID int, group string, teams []models.Team) []models.Match {
	if len(teams) < 2 {
		return nil
	}

	rotation := make([]*models.Team, len(teams))
	for i := range teams {
		rotation[i] = &teams[i]
	}
	sort.Slice(rotation, func(i, j int) bool {
		return rotation[i].Name < rotation[j].Name
	})
	if len(rotation)%2 != 0 {
		rotation = append(rotation, nil) // bye
	}

	n := len(rotation)
	var fixtures []models.Match
	for round := 1; round <= n-1; round++ {
		for i := 0; i < n/2; i++ {
			t1 := rotation[i]
			t2 := rotation[n-1-i]
			if t1 == nil || t2 == nil {
				continue // pair involves the bye slot
			}
			r := round
			g := group
			fixtures = append(fixtures, models.Match{
				TournamentID: tournamentID,
				Team1ID:      t1.ID,
				Team2ID:      intPtr(t2.ID),
				Team1Name:    t1.Name,
				Team2Name:    t2.Name,
				Round:        models.RoundGroupStage,
				GroupName:    &g,
				GroupRound:   &r,
				Status:       models.MatchScheduled,
			})
		}
		// Fix slot 0 and rotate the remainder by one.
		last := rotation[n-1]
		copy(rotation[2:], rotation[1:n-1])
		rotation[1] = last
	}
	return fixtures
}

// PairKey builds a stable key for an unordered team pair: the two names
// sorted and joined with "|". Used to deduplicate fixtures and to rebuild
// round numbers from a match list alone.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// BuildGroupRoundMap reconstructs the round number of every group-stage pair
// from the matches' team names only. Because the schedule is a pure function
// of the sorted team list, replaying the circle method over the names seen in
// each group reproduces the original rounds, regardless of match order or
// missing group_round fields.
func BuildGroupRoundMap(matches []models.Match) map[string]int {
	groups := make(map[string]map[string]struct{})
	for _, m := range matches {
		if m.Round != models.RoundGroupStage || m.GroupName == nil {
			continue
		}
		g, ok := groups[*m.GroupName]
		if !ok {
			g = make(map[string]struct{})
			groups[*m.GroupName] = g
		}
		g[m.Team1Name] = struct{}{}
		g[m.Team2Name] = struct{}{}
	}

	rounds := make(map[string]int)
	for group, nameSet := range groups {
		names := make([]string, 0, len(nameSet))
		for n := range nameSet {
			names = append(names, n)
		}
		sort.Strings(names)

		teams := make([]models.Team, len(names))
		for i, n := range names {
			teams[i] = models.Team{ID: -(i + 1), Name: n}
		}
		for _, fixture := range circleSchedule(0, group, teams) {
			rounds[PairKey(fixture.Team1Name, fixture.Team2Name)] = *fixture.GroupRound
		}
	}
	return rounds
}

func intPtr(v int) *int { return &v }
