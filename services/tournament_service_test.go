package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aasen99/pro11/models"
	"github.com/aasen99/pro11/repositories"
)

type tournamentFixture struct {
	svc            *tournamentService
	tournamentRepo *fakeTournamentRepo
	teamRepo       *fakeTeamRepo
	matchRepo      *fakeMatchRepo
	mock           sqlmock.Sqlmock
}

func newTournamentFixture(t *testing.T) *tournamentFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &tournamentFixture{
		tournamentRepo: newFakeTournamentRepo(),
		teamRepo:       newFakeTeamRepo(),
		matchRepo:      newFakeMatchRepo(),
		mock:           mock,
	}
	f.svc = &tournamentService{
		db:             db,
		tournamentRepo: f.tournamentRepo,
		teamRepo:       f.teamRepo,
		matchRepo:      f.matchRepo,
		logger:         discardLogger(),
	}
	return f
}

func (f *tournamentFixture) seedTournament(status models.TournamentStatus, knockout models.KnockoutConfig) *models.Tournament {
	return f.tournamentRepo.seed(models.Tournament{
		Name:     "Vinterligaen",
		Status:   status,
		Format:   "group_knockout",
		MaxTeams: 16,
		EntryFee: 500,
		Knockout: knockout,
	})
}

func (f *tournamentFixture) seedEligibleTeams(tournamentID, count int) {
	names := []string{"Oslo United", "Bergen FC", "Tromsø IL", "Drammen SK", "Stavanger BK", "Ålesund FK", "Bodø SK", "Hamar IL"}
	for i := 0; i < count; i++ {
		f.teamRepo.seed(models.Team{
			TournamentID: tournamentID,
			Name:         names[i%len(names)],
			CaptainEmail: "kaptein@example.com",
			Status:       models.TeamApproved,
			CheckedIn:    true,
			Paid:         true,
		})
	}
}

func TestCreateTournamentValidatesName(t *testing.T) {
	f := newTournamentFixture(t)
	_, err := f.svc.Create(context.Background(), CreateTournamentInput{Name: "   "})
	assert.ErrorIs(t, err, ErrTournamentNameRequired)
}

func TestUpdateStatusEnforcesLifecycle(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOpen, models.KnockoutConfig{TeamsToKnockout: 2})

	_, err := f.svc.UpdateStatus(context.Background(), tournament.ID, models.TournamentArchived)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	updated, err := f.svc.UpdateStatus(context.Background(), tournament.ID, models.TournamentOngoing)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentOngoing, updated.Status)

	updated, err = f.svc.UpdateStatus(context.Background(), tournament.ID, models.TournamentCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, updated.Status)

	_, err = f.svc.UpdateStatus(context.Background(), tournament.ID, models.TournamentOpen)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestGenerateGroupStageRequiresEnoughTeams(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOpen, models.KnockoutConfig{TeamsToKnockout: 2})
	f.seedEligibleTeams(tournament.ID, 3)

	_, err := f.svc.GenerateGroupStage(context.Background(), tournament.ID, 0)
	assert.ErrorIs(t, err, ErrNotEnoughTeams)
}

func TestGenerateGroupStageWritesScheduleAndGroups(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOpen, models.KnockoutConfig{TeamsToKnockout: 2})
	f.seedEligibleTeams(tournament.ID, 8)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	matches, err := f.svc.GenerateGroupStage(context.Background(), tournament.ID, 2)
	require.NoError(t, err)
	// Two groups of four: 6 round-robin fixtures each.
	assert.Len(t, matches, 12)
	for _, m := range matches {
		assert.Equal(t, models.RoundGroupStage, m.Round)
		assert.NotNil(t, m.GroupName)
		assert.NotNil(t, m.GroupRound)
	}

	teams, err := f.teamRepo.ListByTournament(context.Background(), tournament.ID, repositories.TeamFilter{})
	require.NoError(t, err)
	for _, team := range teams {
		require.NotNil(t, team.GroupName)
		assert.True(t, strings.HasPrefix(*team.GroupName, "Gruppe "))
	}

	updated, err := f.svc.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentOngoing, updated.Status)

	// A second generation must be an explicit regenerate.
	_, err = f.svc.GenerateGroupStage(context.Background(), tournament.ID, 2)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestSeedKnockoutRequiresCompletedGroupStage(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOngoing, models.KnockoutConfig{TeamsToKnockout: 2})

	group := "Gruppe A"
	round := 1
	team2 := 2
	f.matchRepo.seed(models.Match{
		TournamentID: tournament.ID,
		Team1ID:      1, Team2ID: &team2,
		Team1Name: "Oslo United", Team2Name: "Bergen FC",
		Round: models.RoundGroupStage, GroupName: &group, GroupRound: &round,
		Status: models.MatchLive,
	})

	_, err := f.svc.SeedKnockout(context.Background(), tournament.ID)
	assert.ErrorIs(t, err, ErrGroupStageIncomplete)
}

func completedGroupMatch(f *tournamentFixture, tournamentID int, group string, t1 int, n1 string, t2 int, n2 string, s1, s2 int) {
	round := 1
	f.matchRepo.seed(models.Match{
		TournamentID: tournamentID,
		Team1ID:      t1, Team2ID: &t2,
		Team1Name: n1, Team2Name: n2,
		Round: models.RoundGroupStage, GroupName: &group, GroupRound: &round,
		Status: models.MatchCompleted,
		Score1: &s1, Score2: &s2,
	})
}

func TestSeedKnockoutBuildsSeededBracket(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOngoing, models.KnockoutConfig{TeamsToKnockout: 2})

	completedGroupMatch(f, tournament.ID, "Gruppe A", 1, "Oslo United", 2, "Bergen FC", 2, 0)
	completedGroupMatch(f, tournament.ID, "Gruppe B", 3, "Tromsø IL", 4, "Drammen SK", 1, 0)

	matches, err := f.svc.SeedKnockout(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Semifinaler", matches[0].Round)

	// Best group winner meets the weakest qualifier.
	assert.Equal(t, "Oslo United", matches[0].Team1Name)
	assert.Equal(t, "Bergen FC", matches[0].Team2Name)
	assert.Equal(t, "Tromsø IL", matches[1].Team1Name)
	assert.Equal(t, "Drammen SK", matches[1].Team2Name)

	_, err = f.svc.SeedKnockout(context.Background(), tournament.ID)
	assert.ErrorIs(t, err, ErrKnockoutAlreadySeeded)
}

func TestResetKnockoutAllowsReseeding(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOngoing, models.KnockoutConfig{TeamsToKnockout: 2})

	completedGroupMatch(f, tournament.ID, "Gruppe A", 1, "Oslo United", 2, "Bergen FC", 2, 0)
	completedGroupMatch(f, tournament.ID, "Gruppe B", 3, "Tromsø IL", 4, "Drammen SK", 1, 0)

	_, err := f.svc.SeedKnockout(context.Background(), tournament.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetKnockout(context.Background(), tournament.ID))

	// The group stage survives the reset and the bracket can be rebuilt.
	matches, err := f.svc.SeedKnockout(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func completedKnockoutMatch(f *tournamentFixture, tournamentID int, roundName string, t1 int, n1 string, t2 int, n2 string, s1, s2 int) {
	f.matchRepo.seed(models.Match{
		TournamentID: tournamentID,
		Team1ID:      t1, Team2ID: &t2,
		Team1Name: n1, Team2Name: n2,
		Round:  roundName,
		Status: models.MatchCompleted,
		Score1: &s1, Score2: &s2,
	})
}

func TestAdvanceKnockoutRoundPairsWinners(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOngoing, models.KnockoutConfig{TeamsToKnockout: 2})

	completedKnockoutMatch(f, tournament.ID, "Semifinaler", 1, "Oslo United", 4, "Drammen SK", 2, 1)
	completedKnockoutMatch(f, tournament.ID, "Semifinaler", 3, "Tromsø IL", 2, "Bergen FC", 1, 0)

	matches, err := f.svc.AdvanceKnockoutRound(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	final := matches[0]
	assert.Equal(t, "Finale", final.Round)
	assert.Equal(t, "Oslo United", final.Team1Name)
	assert.Equal(t, "Tromsø IL", final.Team2Name)
	assert.Equal(t, models.MatchScheduled, final.Status)
}

func TestAdvanceKnockoutRoundRefusesUnfinishedRound(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOngoing, models.KnockoutConfig{TeamsToKnockout: 2})

	team2 := 4
	f.matchRepo.seed(models.Match{
		TournamentID: tournament.ID,
		Team1ID:      1, Team2ID: &team2,
		Team1Name: "Oslo United", Team2Name: "Drammen SK",
		Round:  "Semifinaler",
		Status: models.MatchLive,
	})

	_, err := f.svc.AdvanceKnockoutRound(context.Background(), tournament.ID)
	assert.ErrorIs(t, err, ErrKnockoutRoundIncomplete)
}

func TestDecidedFinalCompletesTournament(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOngoing, models.KnockoutConfig{TeamsToKnockout: 2})
	completedKnockoutMatch(f, tournament.ID, "Finale", 1, "Oslo United", 3, "Tromsø IL", 2, 0)

	matches, err := f.svc.AdvanceKnockoutRound(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)

	updated, err := f.svc.GetByID(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, updated.Status)
}

func TestSummaryCountsEligibleTeamsAndPrizePool(t *testing.T) {
	f := newTournamentFixture(t)
	pot := "Premiepott [pot:200] per lag"
	tournament := f.tournamentRepo.seed(models.Tournament{
		Name:        "Vinterligaen",
		Description: &pot,
		Status:      models.TournamentOngoing,
		EntryFee:    500,
	})
	f.seedEligibleTeams(tournament.ID, 4)
	f.teamRepo.seed(models.Team{
		TournamentID: tournament.ID,
		Name:         "Ikke innsjekket",
		CaptainEmail: "kaptein@example.com",
		Status:       models.TeamApproved,
		CheckedIn:    false,
	})

	summary, err := f.svc.Summary(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.EligibleTeams)
	assert.Equal(t, 800, summary.PrizePool)
	assert.Len(t, summary.Tournament.Teams, 5)
}

func TestExportTeamsCSV(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOpen, models.KnockoutConfig{TeamsToKnockout: 2})
	f.seedEligibleTeams(tournament.ID, 2)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportTeamsCSV(context.Background(), tournament.ID, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,captain_email,status,checked_in,paid,payment_ref,group", lines[0])
	assert.Contains(t, lines[1], "Bergen FC")
	assert.Contains(t, lines[2], "Oslo United")
}

func TestExportFixturesCSV(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOngoing, models.KnockoutConfig{TeamsToKnockout: 2})
	completedGroupMatch(f, tournament.ID, "Gruppe A", 1, "Oslo United", 2, "Bergen FC", 2, 1)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportFixturesCSV(context.Background(), tournament.ID, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "round,group,group_round,team1,team2,status,score1,score2,scheduled_time", lines[0])
	assert.Equal(t, "Gruppespill,Gruppe A,1,Oslo United,Bergen FC,completed,2,1,", lines[1])
}

func TestExportStandingsCSV(t *testing.T) {
	f := newTournamentFixture(t)
	tournament := f.seedTournament(models.TournamentOngoing, models.KnockoutConfig{TeamsToKnockout: 2})
	completedGroupMatch(f, tournament.ID, "Gruppe A", 1, "Oslo United", 2, "Bergen FC", 3, 0)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportStandingsCSV(context.Background(), tournament.ID, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "group,position,team,played,won,drawn,lost,goals_for,goals_against,goal_difference,points", lines[0])
	assert.Equal(t, "Gruppe A,1,Oslo United,1,1,0,0,3,0,3,3", lines[1])
	assert.Equal(t, "Gruppe A,2,Bergen FC,1,0,0,1,0,3,-3,0", lines[2])
}

func TestExportRefusesUnknownTournament(t *testing.T) {
	f := newTournamentFixture(t)
	var buf bytes.Buffer
	err := f.svc.ExportFixturesCSV(context.Background(), 99, &buf)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
