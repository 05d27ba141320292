package services

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aasen99/pro11/brackets"
	"github.com/aasen99/pro11/models"
	"github.com/aasen99/pro11/repositories"
)

// Group stage generation refuses to run below this many eligible teams.
const minEligibleTeams = 4

// CreateTournamentInput is the admin payload for creating or updating a
// tournament.
type CreateTournamentInput struct {
	Name        string                `json:"name"`
	Description *string               `json:"description"`
	MaxTeams    int                   `json:"max_teams"`
	EntryFee    int                   `json:"entry_fee"`
	Knockout    models.KnockoutConfig `json:"knockout"`
}

// TournamentSummary bundles everything the public tournament page shows.
type TournamentSummary struct {
	Tournament    *models.Tournament             `json:"tournament"`
	Standings     map[string][]models.GroupStanding `json:"standings"`
	ResultIssues  []brackets.ResultIssue         `json:"result_issues,omitempty"`
	EligibleTeams int                            `json:"eligible_teams"`
	PrizePool     int                            `json:"prize_pool"`
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error)
	Update(ctx context.Context, id int, input CreateTournamentInput) (*models.Tournament, error)
	Delete(ctx context.Context, id int) error

	// UpdateStatus applies an admin status change, validated against the
	// tournament lifecycle.
	UpdateStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error)

	// GenerateGroupStage splits the eligible teams into groups, writes the
	// round-robin schedule and moves the tournament to ongoing. It refuses
	// to run twice; use RegenerateGroupStage to start over.
	GenerateGroupStage(ctx context.Context, id int, numGroups int) ([]*models.Match, error)

	// RegenerateGroupStage wipes every match and group assignment and
	// generates a fresh group stage.
	RegenerateGroupStage(ctx context.Context, id int, numGroups int) ([]*models.Match, error)

	// SeedKnockout ranks the qualifiers from the completed group stage and
	// writes the first knockout round.
	SeedKnockout(ctx context.Context, id int) ([]*models.Match, error)

	// ResetKnockout deletes the knockout bracket while preserving the
	// group stage, so SeedKnockout can run again.
	ResetKnockout(ctx context.Context, id int) error

	// AdvanceKnockoutRound pairs the winners of the deepest completed
	// knockout round into the next one. When the final is decided the
	// tournament is marked completed instead.
	AdvanceKnockoutRound(ctx context.Context, id int) ([]*models.Match, error)

	// Standings computes the live group tables from completed matches.
	Standings(ctx context.Context, id int) (map[string][]models.GroupStanding, []brackets.ResultIssue, error)

	Summary(ctx context.Context, id int) (*TournamentSummary, error)

	ExportTeamsCSV(ctx context.Context, id int, w io.Writer) error
	ExportFixturesCSV(ctx context.Context, id int, w io.Writer) error
	ExportStandingsCSV(ctx context.Context, id int, w io.Writer) error
}

type tournamentService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:             db,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		hub:            hub,
		logger:         logger,
	}
}

func validateTournamentInput(input *CreateTournamentInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return ErrTournamentNameRequired
	}
	if input.MaxTeams < 0 || input.EntryFee < 0 {
		return fmt.Errorf("%w: max_teams and entry_fee must be non-negative", ErrValidationFailed)
	}
	if input.Knockout.TeamsToKnockout < 1 {
		input.Knockout.TeamsToKnockout = 2
	}
	if input.Knockout.NumBestRunnersUp < 0 {
		return fmt.Errorf("%w: num_best_runners_up must be non-negative", ErrValidationFailed)
	}
	return nil
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if err := validateTournamentInput(&input); err != nil {
		return nil, err
	}
	tournament := &models.Tournament{
		Name:        input.Name,
		Description: input.Description,
		Status:      models.TournamentOpen,
		Format:      "group_knockout",
		MaxTeams:    input.MaxTeams,
		EntryFee:    input.EntryFee,
		Knockout:    input.Knockout,
	}
	if err := s.tournamentRepo.Create(ctx, nil, tournament); err != nil {
		return nil, translateRepoError(err)
	}
	s.logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID), slog.String("name", tournament.Name))
	return tournament, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, status)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return tournaments, nil
}

func (s *tournamentService) Update(ctx context.Context, id int, input CreateTournamentInput) (*models.Tournament, error) {
	if err := validateTournamentInput(&input); err != nil {
		return nil, err
	}
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tournament.Name = input.Name
	tournament.Description = input.Description
	tournament.MaxTeams = input.MaxTeams
	tournament.EntryFee = input.EntryFee
	tournament.Knockout = input.Knockout
	if err := s.tournamentRepo.Update(ctx, nil, tournament); err != nil {
		return nil, translateRepoError(err)
	}
	return tournament, nil
}

func (s *tournamentService) Delete(ctx context.Context, id int) error {
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		return translateRepoError(err)
	}
	s.logger.Info("tournament deleted", slog.Int("tournament_id", id))
	return nil
}

func (s *tournamentService) UpdateStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tournament.Status == status {
		return tournament, nil
	}
	if !isValidStatusTransition(tournament.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, tournament.Status, status)
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, status); err != nil {
		return nil, translateRepoError(err)
	}
	tournament.Status = status
	s.logger.Info("tournament status changed",
		slog.Int("tournament_id", id), slog.String("status", string(status)))
	return tournament, nil
}

func (s *tournamentService) eligibleTeams(ctx context.Context, tournamentID int) ([]*models.Team, error) {
	approved := models.TeamApproved
	checkedIn := true
	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID, repositories.TeamFilter{
		Status:    &approved,
		CheckedIn: &checkedIn,
	})
	if err != nil {
		return nil, translateRepoError(err)
	}
	return teams, nil
}

func (s *tournamentService) GenerateGroupStage(ctx context.Context, id int, numGroups int) ([]*models.Match, error) {
	existing, err := s.matchRepo.ListByTournament(ctx, id, repositories.MatchFilter{})
	if err != nil {
		return nil, translateRepoError(err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: tournament already has a schedule", ErrForbiddenOperation)
	}
	return s.generateGroupStage(ctx, id, numGroups, false)
}

func (s *tournamentService) RegenerateGroupStage(ctx context.Context, id int, numGroups int) ([]*models.Match, error) {
	return s.generateGroupStage(ctx, id, numGroups, true)
}

func (s *tournamentService) generateGroupStage(ctx context.Context, id int, numGroups int, wipe bool) ([]*models.Match, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.TournamentOpen && tournament.Status != models.TournamentOngoing {
		return nil, fmt.Errorf("%w: cannot generate a schedule for a %s tournament", ErrForbiddenOperation, tournament.Status)
	}

	teamPtrs, err := s.eligibleTeams(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(teamPtrs) < minEligibleTeams {
		return nil, ErrNotEnoughTeams
	}

	groups, err := brackets.SplitIntoGroups(teamsToValues(teamPtrs), numGroups)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	fixtures := brackets.GenerateGroupFixtures(id, groups)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if wipe {
		if err := s.matchRepo.DeleteByTournament(ctx, tx, id, false); err != nil {
			return nil, translateRepoError(err)
		}
	}
	for _, group := range groups {
		for i := range group {
			team := group[i]
			if err := s.teamRepo.Update(ctx, tx, &team); err != nil {
				return nil, translateRepoError(err)
			}
		}
	}
	created := make([]*models.Match, len(fixtures))
	for i := range fixtures {
		created[i] = &fixtures[i]
	}
	if err := s.matchRepo.BatchCreate(ctx, tx, created); err != nil {
		return nil, translateRepoError(err)
	}
	if tournament.Status == models.TournamentOpen {
		if err := s.tournamentRepo.UpdateStatus(ctx, tx, id, models.TournamentOngoing); err != nil {
			return nil, translateRepoError(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("group stage generated",
		slog.Int("tournament_id", id),
		slog.Int("groups", len(groups)),
		slog.Int("matches", len(created)))
	s.broadcast(id, brackets.EventStandingsChanged, created)
	return created, nil
}

func (s *tournamentService) SeedKnockout(ctx context.Context, id int) ([]*models.Match, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	matchPtrs, err := s.matchRepo.ListByTournament(ctx, id, repositories.MatchFilter{})
	if err != nil {
		return nil, translateRepoError(err)
	}
	matches := matchesToValues(matchPtrs)

	for _, m := range matches {
		if m.Round != models.RoundGroupStage {
			return nil, ErrKnockoutAlreadySeeded
		}
	}
	if !brackets.AllGroupMatchesCompleted(matches) {
		return nil, ErrGroupStageIncomplete
	}

	tables, issues := brackets.CalculateGroupStandings(matches)
	if len(issues) > 0 {
		return nil, fmt.Errorf("%w: %d completed matches are missing scores", ErrGroupStageIncomplete, len(issues))
	}
	qualifiers, err := brackets.RankQualifiers(tables, tournament.Knockout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	bracket, err := brackets.GenerateSeededBracket(id, qualifiers, brackets.RoundName(len(qualifiers)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	created := make([]*models.Match, len(bracket))
	for i := range bracket {
		created[i] = &bracket[i]
	}
	if err := s.matchRepo.BatchCreate(ctx, nil, created); err != nil {
		return nil, translateRepoError(err)
	}
	s.logger.Info("knockout stage seeded",
		slog.Int("tournament_id", id),
		slog.Int("qualifiers", len(qualifiers)),
		slog.String("round", bracket[0].Round))
	s.broadcast(id, brackets.EventBracketSeeded, created)
	return created, nil
}

func (s *tournamentService) ResetKnockout(ctx context.Context, id int) error {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tournament.Status != models.TournamentOngoing {
		return fmt.Errorf("%w: cannot reset the knockout stage of a %s tournament", ErrForbiddenOperation, tournament.Status)
	}
	if err := s.matchRepo.DeleteByTournament(ctx, nil, id, true); err != nil {
		return translateRepoError(err)
	}
	s.logger.Info("knockout stage reset", slog.Int("tournament_id", id))
	s.broadcast(id, brackets.EventStandingsChanged, nil)
	return nil
}

func (s *tournamentService) AdvanceKnockoutRound(ctx context.Context, id int) ([]*models.Match, error) {
	matchPtrs, err := s.matchRepo.ListByTournament(ctx, id, repositories.MatchFilter{})
	if err != nil {
		return nil, translateRepoError(err)
	}
	matches := matchesToValues(matchPtrs)

	current, currentMatches := deepestKnockoutRound(matches)
	if current == "" {
		return nil, fmt.Errorf("%w: knockout stage has not been seeded", ErrForbiddenOperation)
	}

	var winners []models.Match
	for _, m := range currentMatches {
		if m.Status != models.MatchCompleted || m.WinnerTeamID() == nil {
			return nil, ErrKnockoutRoundIncomplete
		}
		winners = append(winners, m)
	}

	if current == brackets.RoundFinal {
		// Nothing left to play. The champion is decided, close it out.
		if _, err := s.UpdateStatus(ctx, id, models.TournamentCompleted); err != nil {
			return nil, err
		}
		return nil, nil
	}

	next := nextKnockoutRound(current)
	var bracket []models.Match
	for i := 0; i+1 < len(winners); i += 2 {
		w1, w2 := winners[i], winners[i+1]
		bracket = append(bracket, models.Match{
			TournamentID: id,
			Team1ID:      *w1.WinnerTeamID(),
			Team2ID:      w2.WinnerTeamID(),
			Team1Name:    winnerName(w1),
			Team2Name:    winnerName(w2),
			Round:        next,
			Status:       models.MatchScheduled,
		})
	}
	if len(winners)%2 != 0 {
		last := winners[len(winners)-1]
		bracket = append(bracket, models.Match{
			TournamentID: id,
			Team1ID:      *last.WinnerTeamID(),
			Team1Name:    winnerName(last),
			Round:        next,
			Status:       models.MatchCompleted,
		})
	}
	if len(bracket) == 0 {
		return nil, ErrKnockoutRoundIncomplete
	}

	created := make([]*models.Match, len(bracket))
	for i := range bracket {
		created[i] = &bracket[i]
	}
	if err := s.matchRepo.BatchCreate(ctx, nil, created); err != nil {
		return nil, translateRepoError(err)
	}
	s.logger.Info("knockout round advanced",
		slog.Int("tournament_id", id),
		slog.String("from", current), slog.String("to", next))
	s.broadcast(id, brackets.EventBracketSeeded, created)
	return created, nil
}

// deepestKnockoutRound finds the latest knockout round that has matches.
func deepestKnockoutRound(matches []models.Match) (string, []models.Match) {
	for i := len(brackets.KnockoutProgression) - 1; i >= 0; i-- {
		name := brackets.KnockoutProgression[i]
		var round []models.Match
		for _, m := range matches {
			if m.Round == name {
				round = append(round, m)
			}
		}
		if len(round) > 0 {
			return name, round
		}
	}
	return "", nil
}

func nextKnockoutRound(current string) string {
	for i, name := range brackets.KnockoutProgression {
		if name == current && i+1 < len(brackets.KnockoutProgression) {
			return brackets.KnockoutProgression[i+1]
		}
	}
	return brackets.RoundFinal
}

func winnerName(m models.Match) string {
	winner := m.WinnerTeamID()
	if winner == nil {
		return ""
	}
	if *winner == m.Team1ID {
		return m.Team1Name
	}
	return m.Team2Name
}

func (s *tournamentService) Standings(ctx context.Context, id int) (map[string][]models.GroupStanding, []brackets.ResultIssue, error) {
	matchPtrs, err := s.matchRepo.ListByTournament(ctx, id, repositories.MatchFilter{})
	if err != nil {
		return nil, nil, translateRepoError(err)
	}
	tables, issues := brackets.CalculateGroupStandings(matchesToValues(matchPtrs))
	for _, issue := range issues {
		s.logger.Warn("completed match is missing a score",
			slog.Int("tournament_id", id),
			slog.Int("match_id", issue.MatchID),
			slog.String("reason", issue.Reason))
	}
	return tables, issues, nil
}

func (s *tournamentService) Summary(ctx context.Context, id int) (*TournamentSummary, error) {
	var (
		tournament *models.Tournament
		teams      []*models.Team
		matches    []*models.Match
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.tournamentRepo.GetByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = s.teamRepo.ListByTournament(gctx, id, repositories.TeamFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gctx, id, repositories.MatchFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, translateRepoError(err)
	}

	tournament.Teams = teamsToValues(teams)
	tournament.Matches = matchesToValues(matches)

	eligible := 0
	for _, t := range teams {
		if t.Eligible() {
			eligible++
		}
	}
	tables, issues := brackets.CalculateGroupStandings(tournament.Matches)
	return &TournamentSummary{
		Tournament:    tournament,
		Standings:     tables,
		ResultIssues:  issues,
		EligibleTeams: eligible,
		PrizePool:     tournament.PrizePool(eligible),
	}, nil
}

func (s *tournamentService) ExportTeamsCSV(ctx context.Context, id int, w io.Writer) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	teams, err := s.teamRepo.ListByTournament(ctx, id, repositories.TeamFilter{})
	if err != nil {
		return translateRepoError(err)
	}
	sort.SliceStable(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "captain_email", "status", "checked_in", "paid", "payment_ref", "group"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, t := range teams {
		ref, group := "", ""
		if t.PaymentRef != nil {
			ref = *t.PaymentRef
		}
		if t.GroupName != nil {
			group = *t.GroupName
		}
		record := []string{
			t.Name,
			t.CaptainEmail,
			string(t.Status),
			strconv.FormatBool(t.CheckedIn),
			strconv.FormatBool(t.Paid),
			ref,
			group,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *tournamentService) ExportFixturesCSV(ctx context.Context, id int, w io.Writer) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	matches, err := s.matchRepo.ListByTournament(ctx, id, repositories.MatchFilter{})
	if err != nil {
		return translateRepoError(err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"round", "group", "group_round", "team1", "team2", "status", "score1", "score2", "scheduled_time"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, m := range matches {
		group, groupRound, score1, score2, scheduled := "", "", "", "", ""
		if m.GroupName != nil {
			group = *m.GroupName
		}
		if m.GroupRound != nil {
			groupRound = strconv.Itoa(*m.GroupRound)
		}
		if m.Score1 != nil {
			score1 = strconv.Itoa(*m.Score1)
		}
		if m.Score2 != nil {
			score2 = strconv.Itoa(*m.Score2)
		}
		if m.ScheduledTime != nil {
			scheduled = m.ScheduledTime.UTC().Format(time.RFC3339)
		}
		record := []string{
			m.Round,
			group,
			groupRound,
			m.Team1Name,
			m.Team2Name,
			string(m.Status),
			score1,
			score2,
			scheduled,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *tournamentService) ExportStandingsCSV(ctx context.Context, id int, w io.Writer) error {
	tables, _, err := s.Standings(ctx, id)
	if err != nil {
		return err
	}
	groups := make([]string, 0, len(tables))
	for name := range tables {
		groups = append(groups, name)
	}
	sort.Strings(groups)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"group", "position", "team", "played", "won", "drawn", "lost", "goals_for", "goals_against", "goal_difference", "points"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, name := range groups {
		for i, row := range tables[name] {
			record := []string{
				name,
				strconv.Itoa(i + 1),
				row.TeamName,
				strconv.Itoa(row.Played),
				strconv.Itoa(row.Won),
				strconv.Itoa(row.Drawn),
				strconv.Itoa(row.Lost),
				strconv.Itoa(row.GoalsFor),
				strconv.Itoa(row.GoalsAgainst),
				strconv.Itoa(row.GoalDifference()),
				strconv.Itoa(row.Points),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write csv record: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *tournamentService) broadcast(tournamentID int, eventType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(brackets.TournamentRoom(tournamentID), brackets.Event{
		Type:    eventType,
		Payload: payload,
	})
}
