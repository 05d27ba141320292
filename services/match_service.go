package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aasen99/pro11/brackets"
	"github.com/aasen99/pro11/models"
	"github.com/aasen99/pro11/repositories"
)

// A live match is moved on to pending_result once this much time has passed
// since kickoff, so the teams get prompted to report the score.
const matchDuration = 30 * time.Minute

// ScoreReport is one side's view of the result: own goals first.
type ScoreReport struct {
	OwnScore      int `json:"own_score"`
	OpponentScore int `json:"opponent_score"`
}

// ScheduleUpdate re-times a single match.
type ScheduleUpdate struct {
	MatchID       int        `json:"match_id"`
	ScheduledTime *time.Time `json:"scheduled_time"`
}

// BulkScheduleResult aggregates a best-effort batch: failures are counted
// and reported, never rolled back or retried.
type BulkScheduleResult struct {
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

type MatchService interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	ListConflicts(ctx context.Context, tournamentID int) ([]*models.Match, error)

	// SubmitResult records the first report on a match. Allowed only when
	// neither side has submitted and the match is not completed.
	SubmitResult(ctx context.Context, matchID int, side models.MatchSide, report ScoreReport) (*models.Match, error)

	// ConfirmResult records the answering report. With a nil report the
	// opponent's pair is accepted as-is (translated into this side's
	// perspective); with a report the two submissions are cross-checked.
	// Agreement completes the match; a mismatch leaves it flagged for an
	// administrator.
	ConfirmResult(ctx context.Context, matchID int, side models.MatchSide, report *ScoreReport) (*models.Match, error)

	// RejectResult wipes both reports and reverts to pending_result.
	RejectResult(ctx context.Context, matchID int) (*models.Match, error)

	// SetResult is the administrator override: it forces final scores and
	// completion regardless of the submission state.
	SetResult(ctx context.Context, matchID int, score1, score2 int) (*models.Match, error)

	// Walkover awards a fixed 3-0 to the named winner.
	Walkover(ctx context.Context, matchID int, winnerTeamID int) (*models.Match, error)

	UpdateSchedule(ctx context.Context, updates []ScheduleUpdate) BulkScheduleResult

	// AdvanceMatchStatuses flips scheduled matches to live once their time
	// has passed and both teams have finished the prior round, and live
	// matches to pending_result after full time.
	AdvanceMatchStatuses(ctx context.Context, tournamentID int) error
}

type matchService struct {
	matchRepo repositories.MatchRepository
	hub       *brackets.Hub
	logger    *slog.Logger
	now       func() time.Time
}

func NewMatchService(matchRepo repositories.MatchRepository, hub *brackets.Hub, logger *slog.Logger) MatchService {
	return &matchService{
		matchRepo: matchRepo,
		hub:       hub,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return m, nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{})
	if err != nil {
		return nil, translateRepoError(err)
	}
	backfillGroupRounds(matches)
	return matches, nil
}

// backfillGroupRounds reconstructs the round number of group fixtures created
// before group_round was stored. The circle schedule is deterministic over the
// sorted team names, so replaying it recovers the original rounds.
func backfillGroupRounds(matches []*models.Match) {
	missing := false
	for _, m := range matches {
		if m.Round == models.RoundGroupStage && m.GroupRound == nil {
			missing = true
			break
		}
	}
	if !missing {
		return
	}
	rounds := brackets.BuildGroupRoundMap(matchesToValues(matches))
	for _, m := range matches {
		if m.Round != models.RoundGroupStage || m.GroupRound != nil {
			continue
		}
		if round, ok := rounds[brackets.PairKey(m.Team1Name, m.Team2Name)]; ok {
			r := round
			m.GroupRound = &r
		}
	}
}

func (s *matchService) ListConflicts(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	status := models.MatchPendingConfirmation
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{Status: &status})
	if err != nil {
		return nil, translateRepoError(err)
	}
	conflicts := make([]*models.Match, 0)
	for _, m := range matches {
		if m.HasConflict() {
			conflicts = append(conflicts, m)
		}
	}
	return conflicts, nil
}

func (s *matchService) SubmitResult(ctx context.Context, matchID int, side models.MatchSide, report ScoreReport) (*models.Match, error) {
	match, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status == models.MatchCompleted {
		return nil, ErrMatchAlreadyCompleted
	}
	if match.IsBye() {
		return nil, ErrMatchNotInPlay
	}
	if match.HasSubmission(side) || match.HasSubmission(side.Other()) {
		return nil, ErrResultAlreadySubmitted
	}

	if err := s.recordAndReconcile(ctx, match, side, report); err != nil {
		return nil, err
	}
	return s.reload(ctx, matchID)
}

func (s *matchService) ConfirmResult(ctx context.Context, matchID int, side models.MatchSide, report *ScoreReport) (*models.Match, error) {
	match, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status == models.MatchCompleted {
		return nil, ErrMatchAlreadyCompleted
	}
	if match.HasSubmission(side) {
		return nil, ErrResultAlreadySubmitted
	}
	if !match.HasSubmission(side.Other()) {
		return nil, ErrOpponentNotSubmitted
	}

	if report == nil {
		// Accept the opponent's report, translated into this side's
		// perspective: their "goals for" are our "goals against".
		own, opp := opponentReport(match, side)
		report = &ScoreReport{OwnScore: opp, OpponentScore: own}
	}

	if err := s.recordAndReconcile(ctx, match, side, *report); err != nil {
		return nil, err
	}
	return s.reload(ctx, matchID)
}

// opponentReport returns the other side's submitted pair as (their own
// goals, their opponent's goals).
func opponentReport(m *models.Match, side models.MatchSide) (own, opp int) {
	if side == models.SideTeam1 {
		return *m.Team2SubmittedScore1, *m.Team2SubmittedScore2
	}
	return *m.Team1SubmittedScore1, *m.Team1SubmittedScore2
}

func (s *matchService) recordAndReconcile(ctx context.Context, match *models.Match, side models.MatchSide, report ScoreReport) error {
	submitterID := match.Team1ID
	if side == models.SideTeam2 && match.Team2ID != nil {
		submitterID = *match.Team2ID
	}

	err := s.matchRepo.RecordSubmission(ctx, match.ID, side, report.OwnScore, report.OpponentScore, submitterID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchUpdateConflict) {
			return ErrResultAlreadySubmitted
		}
		return translateRepoError(err)
	}

	// Re-read and check for agreement. Completion only ever happens here
	// or through the admin override.
	updated, err := s.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return translateRepoError(err)
	}
	if updated.SubmissionsAgree() {
		score1 := *updated.Team1SubmittedScore1
		score2 := *updated.Team1SubmittedScore2
		if err := s.matchRepo.CompleteFromAgreement(ctx, match.ID, score1, score2); err != nil {
			if errors.Is(err, repositories.ErrMatchUpdateConflict) {
				return ErrMatchAlreadyCompleted
			}
			return translateRepoError(err)
		}
		s.logger.Info("match completed by agreement",
			slog.Int("match_id", match.ID),
			slog.Int("score1", score1), slog.Int("score2", score2))
	} else if updated.HasConflict() {
		s.logger.Warn("score submissions disagree, match flagged for admin",
			slog.Int("match_id", match.ID))
	}
	return nil
}

func (s *matchService) RejectResult(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status == models.MatchCompleted {
		return nil, ErrMatchAlreadyCompleted
	}
	if match.Status != models.MatchPendingConfirmation {
		return nil, ErrMatchNotInPlay
	}
	if err := s.matchRepo.ClearSubmissions(ctx, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchUpdateConflict) {
			return nil, ErrMatchAlreadyCompleted
		}
		return nil, translateRepoError(err)
	}
	return s.reload(ctx, matchID)
}

func (s *matchService) SetResult(ctx context.Context, matchID int, score1, score2 int) (*models.Match, error) {
	if score1 < 0 || score2 < 0 {
		return nil, fmt.Errorf("%w: scores must be non-negative", ErrValidationFailed)
	}
	if err := s.matchRepo.SetResult(ctx, matchID, &score1, &score2, models.MatchCompleted); err != nil {
		return nil, translateRepoError(err)
	}
	return s.reload(ctx, matchID)
}

func (s *matchService) Walkover(ctx context.Context, matchID int, winnerTeamID int) (*models.Match, error) {
	match, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	side, err := match.SideOfTeam(winnerTeamID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	score1, score2 := 3, 0
	if side == models.SideTeam2 {
		score1, score2 = 0, 3
	}
	if err := s.matchRepo.SetResult(ctx, matchID, &score1, &score2, models.MatchCompleted); err != nil {
		return nil, translateRepoError(err)
	}
	s.logger.Info("walkover awarded",
		slog.Int("match_id", matchID), slog.Int("winner_team_id", winnerTeamID))
	return s.reload(ctx, matchID)
}

func (s *matchService) UpdateSchedule(ctx context.Context, updates []ScheduleUpdate) BulkScheduleResult {
	// Independent per-row updates, best-effort: a partial failure leaves a
	// mixed state that is reported through the counts, not rolled back.
	result := BulkScheduleResult{}
	for _, u := range updates {
		if err := s.matchRepo.UpdateScheduledTime(ctx, u.MatchID, u.ScheduledTime); err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("match %d: %v", u.MatchID, translateRepoError(err)))
			continue
		}
		result.Updated++
	}
	return result
}

func (s *matchService) AdvanceMatchStatuses(ctx context.Context, tournamentID int) error {
	matchPtrs, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{})
	if err != nil {
		return translateRepoError(err)
	}
	matches := matchesToValues(matchPtrs)
	now := s.now()

	for _, m := range matches {
		switch m.Status {
		case models.MatchScheduled:
			if m.ScheduledTime == nil || m.ScheduledTime.After(now) {
				continue
			}
			// Round progression gates on the previous round being done
			// for both participants, not merely on the clock.
			if !priorRoundCompleted(matches, m) {
				continue
			}
			if err := s.matchRepo.TransitionStatus(ctx, m.ID, models.MatchScheduled, models.MatchLive); err != nil {
				if !errors.Is(err, repositories.ErrMatchUpdateConflict) {
					return translateRepoError(err)
				}
				continue
			}
			s.broadcast(ctx, m.TournamentID, m.ID)
		case models.MatchLive:
			if m.ScheduledTime == nil || now.Sub(*m.ScheduledTime) < matchDuration {
				continue
			}
			if err := s.matchRepo.TransitionStatus(ctx, m.ID, models.MatchLive, models.MatchPendingResult); err != nil {
				if !errors.Is(err, repositories.ErrMatchUpdateConflict) {
					return translateRepoError(err)
				}
				continue
			}
			s.broadcast(ctx, m.TournamentID, m.ID)
		}
	}
	return nil
}

// priorRoundCompleted reports whether both teams of m have completed all
// their matches in the preceding round: group round N-1 for a group
// fixture, the previous knockout round otherwise.
func priorRoundCompleted(all []models.Match, m models.Match) bool {
	involved := func(candidate models.Match, teamID int) bool {
		if candidate.Team1ID == teamID {
			return true
		}
		return candidate.Team2ID != nil && *candidate.Team2ID == teamID
	}

	var prior []models.Match
	if m.Round == models.RoundGroupStage {
		if m.GroupRound == nil || *m.GroupRound <= 1 {
			return true
		}
		target := *m.GroupRound - 1
		for _, c := range all {
			if c.Round == models.RoundGroupStage && c.GroupRound != nil && *c.GroupRound == target {
				prior = append(prior, c)
			}
		}
	} else {
		priorName, ok := priorKnockoutRound(all, m.Round)
		if !ok {
			return true
		}
		for _, c := range all {
			if c.Round == priorName {
				prior = append(prior, c)
			}
		}
	}

	teamIDs := []int{m.Team1ID}
	if m.Team2ID != nil {
		teamIDs = append(teamIDs, *m.Team2ID)
	}
	for _, c := range prior {
		for _, id := range teamIDs {
			if involved(c, id) && c.Status != models.MatchCompleted {
				return false
			}
		}
	}
	return true
}

func priorKnockoutRound(all []models.Match, round string) (string, bool) {
	idx := -1
	for i, name := range brackets.KnockoutProgression {
		if name == round {
			idx = i
			break
		}
	}
	if idx <= 0 {
		// First knockout round gates on the group stage instead, which is
		// guaranteed completed by the seeding trigger condition.
		return "", false
	}
	prior := brackets.KnockoutProgression[idx-1]
	for _, c := range all {
		if c.Round == prior {
			return prior, true
		}
	}
	return "", false
}

func (s *matchService) reload(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	s.broadcast(ctx, match.TournamentID, match.ID)
	return match, nil
}

func (s *matchService) broadcast(ctx context.Context, tournamentID, matchID int) {
	if s.hub == nil {
		return
	}
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		s.logger.Warn("failed to load match for broadcast",
			slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}
	s.hub.BroadcastToRoom(brackets.TournamentRoom(tournamentID), brackets.Event{
		Type:    brackets.EventMatchUpdated,
		Payload: match,
	})
}
