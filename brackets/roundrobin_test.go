package brackets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aasen99/pro11/models"
)

func namedTeams(names ...string) []models.Team {
	teams := make([]models.Team, len(names))
	for i, n := range names {
		teams[i] = models.Team{ID: i + 1, Name: n}
	}
	return teams
}

func TestCircleMethodProducesEveryPairExactlyOnce(t *testing.T) {
	for n := 2; n <= 9; n++ {
		t.Run(fmt.Sprintf("%d_teams", n), func(t *testing.T) {
			names := make([]string, n)
			for i := range names {
				names[i] = fmt.Sprintf("Lag %02d", i+1)
			}
			group := namedTeams(names...)
			fixtures := GenerateGroupFixtures(1, [][]models.Team{group})

			require.Len(t, fixtures, n*(n-1)/2)

			seen := make(map[string]bool)
			maxRound := 0
			for _, f := range fixtures {
				key := PairKey(f.Team1Name, f.Team2Name)
				assert.False(t, seen[key], "pair %s scheduled twice", key)
				seen[key] = true
				assert.NotEqual(t, f.Team1Name, f.Team2Name)
				require.NotNil(t, f.GroupRound)
				if *f.GroupRound > maxRound {
					maxRound = *f.GroupRound
				}
			}

			expectedRounds := n - 1
			if n%2 != 0 {
				expectedRounds = n
			}
			assert.Equal(t, expectedRounds, maxRound)

			// No team appears twice within a round.
			perRound := make(map[int]map[string]bool)
			for _, f := range fixtures {
				r := *f.GroupRound
				if perRound[r] == nil {
					perRound[r] = make(map[string]bool)
				}
				assert.False(t, perRound[r][f.Team1Name], "%s double-booked in round %d", f.Team1Name, r)
				assert.False(t, perRound[r][f.Team2Name], "%s double-booked in round %d", f.Team2Name, r)
				perRound[r][f.Team1Name] = true
				perRound[r][f.Team2Name] = true
			}
		})
	}
}

func TestGenerateGroupFixturesTagsFixtures(t *testing.T) {
	groups := [][]models.Team{namedTeams("Oslo", "Bergen", "Tromsø")}
	fixtures := GenerateGroupFixtures(7, groups)

	require.Len(t, fixtures, 3)
	for _, f := range fixtures {
		assert.Equal(t, 7, f.TournamentID)
		assert.Equal(t, models.RoundGroupStage, f.Round)
		require.NotNil(t, f.GroupName)
		assert.Equal(t, "Gruppe A", *f.GroupName)
		assert.Equal(t, models.MatchScheduled, f.Status)
	}
}

func TestGroupWithFewerThanTwoTeamsYieldsNoFixtures(t *testing.T) {
	fixtures := GenerateGroupFixtures(1, [][]models.Team{namedTeams("Alene")})
	assert.Empty(t, fixtures)

	fixtures = GenerateGroupFixtures(1, [][]models.Team{{}})
	assert.Empty(t, fixtures)
}

func TestSplitIntoGroups(t *testing.T) {
	t.Run("auto picks two groups for eight or fewer", func(t *testing.T) {
		teams := namedTeams("a", "b", "c", "d", "e", "f", "g", "h")
		groups, err := SplitIntoGroups(teams, 0)
		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Len(t, groups[0], 4)
		assert.Len(t, groups[1], 4)
	})

	t.Run("auto picks more groups beyond eight", func(t *testing.T) {
		names := make([]string, 12)
		for i := range names {
			names[i] = fmt.Sprintf("t%d", i)
		}
		groups, err := SplitIntoGroups(namedTeams(names...), 0)
		require.NoError(t, err)
		assert.Greater(t, len(groups), 2)
	})

	t.Run("every team lands in exactly one group", func(t *testing.T) {
		teams := namedTeams("a", "b", "c", "d", "e", "f", "g")
		groups, err := SplitIntoGroups(teams, 2)
		require.NoError(t, err)

		seen := make(map[string]int)
		for _, g := range groups {
			for _, team := range g {
				seen[team.Name]++
				require.NotNil(t, team.GroupName)
			}
		}
		assert.Len(t, seen, 7)
		for name, count := range seen {
			assert.Equal(t, 1, count, "team %s assigned %d times", name, count)
		}
	})

	t.Run("rejects too few teams", func(t *testing.T) {
		_, err := SplitIntoGroups(namedTeams("solo"), 2)
		assert.Error(t, err)
	})

	t.Run("rejects more groups than teams", func(t *testing.T) {
		_, err := SplitIntoGroups(namedTeams("a", "b"), 3)
		assert.Error(t, err)
	})
}

func TestBuildGroupRoundMapIsIdempotent(t *testing.T) {
	groups := [][]models.Team{
		namedTeams("Oslo", "Bergen", "Trondheim", "Stavanger"),
		namedTeams("Tromsø", "Drammen", "Kristiansand", "Ålesund", "Bodø"),
	}
	// Group B teams need distinct IDs from group A.
	for i := range groups[1] {
		groups[1][i].ID += 10
		name := "Gruppe B"
		groups[1][i].GroupName = &name
	}

	fixtures := GenerateGroupFixtures(1, groups)
	require.NotEmpty(t, fixtures)

	// Strip the round numbers, keeping only team names, and rebuild.
	stripped := make([]models.Match, len(fixtures))
	copy(stripped, fixtures)
	for i := range stripped {
		stripped[i].GroupRound = nil
	}

	rounds := BuildGroupRoundMap(stripped)
	for _, f := range fixtures {
		key := PairKey(f.Team1Name, f.Team2Name)
		assert.Equal(t, *f.GroupRound, rounds[key], "round mismatch for %s", key)
	}
}
