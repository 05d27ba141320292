package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aasen99/pro11/models"
	"github.com/aasen99/pro11/repositories"
)

type teamFixture struct {
	svc            *teamService
	tournamentRepo *fakeTournamentRepo
	teamRepo       *fakeTeamRepo
	matchRepo      *fakeMatchRepo
	mock           sqlmock.Sqlmock
}

func newTeamFixture(t *testing.T) *teamFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &teamFixture{
		tournamentRepo: newFakeTournamentRepo(),
		teamRepo:       newFakeTeamRepo(),
		matchRepo:      newFakeMatchRepo(),
		mock:           mock,
	}
	f.svc = &teamService{
		db:             db,
		teamRepo:       f.teamRepo,
		tournamentRepo: f.tournamentRepo,
		matchRepo:      f.matchRepo,
		logger:         discardLogger(),
	}
	return f
}

func (f *teamFixture) openTournament(maxTeams int) *models.Tournament {
	return f.tournamentRepo.seed(models.Tournament{
		Name:     "Vinterligaen",
		Status:   models.TournamentOpen,
		MaxTeams: maxTeams,
		EntryFee: 500,
	})
}

func TestRegisterCreatesPendingTeamWithPaymentRef(t *testing.T) {
	f := newTeamFixture(t)
	tournament := f.openTournament(16)

	team, err := f.svc.Register(context.Background(), tournament.ID, RegisterTeamInput{
		Name:         "  Oslo United ",
		CaptainEmail: "kaptein@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Oslo United", team.Name)
	assert.Equal(t, models.TeamPending, team.Status)
	assert.False(t, team.Paid)
	require.NotNil(t, team.PaymentRef)
	assert.NotEmpty(t, *team.PaymentRef)
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newTeamFixture(t)
	tournament := f.openTournament(16)

	_, err := f.svc.Register(context.Background(), tournament.ID, RegisterTeamInput{CaptainEmail: "a@b.no"})
	assert.ErrorIs(t, err, ErrTeamNameRequired)

	_, err = f.svc.Register(context.Background(), tournament.ID, RegisterTeamInput{Name: "Oslo United", CaptainEmail: "not-an-email"})
	assert.ErrorIs(t, err, ErrCaptainEmailRequired)
}

func TestRegisterRefusesClosedTournament(t *testing.T) {
	f := newTeamFixture(t)
	tournament := f.tournamentRepo.seed(models.Tournament{Name: "Vinterligaen", Status: models.TournamentOngoing})

	_, err := f.svc.Register(context.Background(), tournament.ID, RegisterTeamInput{
		Name: "Oslo United", CaptainEmail: "kaptein@example.com",
	})
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)
}

func TestRegisterEnforcesCapacity(t *testing.T) {
	f := newTeamFixture(t)
	tournament := f.openTournament(1)

	_, err := f.svc.Register(context.Background(), tournament.ID, RegisterTeamInput{
		Name: "Oslo United", CaptainEmail: "kaptein@example.com",
	})
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), tournament.ID, RegisterTeamInput{
		Name: "Bergen FC", CaptainEmail: "kaptein2@example.com",
	})
	assert.ErrorIs(t, err, ErrTournamentFull)
}

func TestRegisterMapsDuplicateName(t *testing.T) {
	f := newTeamFixture(t)
	tournament := f.openTournament(16)

	_, err := f.svc.Register(context.Background(), tournament.ID, RegisterTeamInput{
		Name: "Oslo United", CaptainEmail: "kaptein@example.com",
	})
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), tournament.ID, RegisterTeamInput{
		Name: "Oslo United", CaptainEmail: "other@example.com",
	})
	assert.ErrorIs(t, err, ErrTeamNameConflict)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	f := newTeamFixture(t)
	tournament := f.openTournament(16)
	team := f.teamRepo.seed(models.Team{
		TournamentID: tournament.ID,
		Name:         "Oslo United",
		CaptainEmail: "kaptein@example.com",
		Status:       models.TeamPending,
	})

	paid, err := f.svc.MarkPaid(context.Background(), team.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	require.NotNil(t, paid.PaymentRef)
	ref := *paid.PaymentRef

	again, err := f.svc.MarkPaid(context.Background(), team.ID)
	require.NoError(t, err)
	assert.True(t, again.Paid)
	assert.Equal(t, ref, *again.PaymentRef)
}

func TestRenameRefreshesMatchNames(t *testing.T) {
	f := newTeamFixture(t)
	tournament := f.openTournament(16)
	team := f.teamRepo.seed(models.Team{
		TournamentID: tournament.ID,
		Name:         "Oslo United",
		CaptainEmail: "kaptein@example.com",
		Status:       models.TeamApproved,
	})
	opponent := 99
	match := f.matchRepo.seed(models.Match{
		TournamentID: tournament.ID,
		Team1ID:      team.ID, Team2ID: &opponent,
		Team1Name: "Oslo United", Team2Name: "Bergen FC",
		Round:  models.RoundGroupStage,
		Status: models.MatchScheduled,
	})

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	renamed, err := f.svc.Rename(context.Background(), team.ID, "Oslo Panthers")
	require.NoError(t, err)
	assert.Equal(t, "Oslo Panthers", renamed.Name)

	m, err := f.matchRepo.GetByID(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oslo Panthers", m.Team1Name)
	assert.Equal(t, "Bergen FC", m.Team2Name)
}

func TestDeleteRemovesTeamAndMatches(t *testing.T) {
	f := newTeamFixture(t)
	tournament := f.openTournament(16)
	team := f.teamRepo.seed(models.Team{
		TournamentID: tournament.ID,
		Name:         "Oslo United",
		CaptainEmail: "kaptein@example.com",
		Status:       models.TeamApproved,
	})
	opponent := 99
	f.matchRepo.seed(models.Match{
		TournamentID: tournament.ID,
		Team1ID:      team.ID, Team2ID: &opponent,
		Team1Name: "Oslo United", Team2Name: "Bergen FC",
		Round:  models.RoundGroupStage,
		Status: models.MatchScheduled,
	})

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.Delete(context.Background(), team.ID))

	_, err := f.svc.GetByID(context.Background(), team.ID)
	assert.ErrorIs(t, err, ErrTeamNotFound)

	matches, err := f.matchRepo.ListByTournament(context.Background(), tournament.ID, repositories.MatchFilter{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestApproveAndCheckInMakeTeamEligible(t *testing.T) {
	f := newTeamFixture(t)
	tournament := f.openTournament(16)
	team := f.teamRepo.seed(models.Team{
		TournamentID: tournament.ID,
		Name:         "Oslo United",
		CaptainEmail: "kaptein@example.com",
		Status:       models.TeamPending,
	})

	approved, err := f.svc.Approve(context.Background(), team.ID)
	require.NoError(t, err)
	assert.False(t, approved.Eligible())

	checkedIn, err := f.svc.SetCheckedIn(context.Background(), team.ID, true)
	require.NoError(t, err)
	assert.True(t, checkedIn.Eligible())

	rejected, err := f.svc.Reject(context.Background(), team.ID)
	require.NoError(t, err)
	assert.False(t, rejected.Eligible())
}
