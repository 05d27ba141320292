package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/aasen99/pro11/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchTeamInvalid       = errors.New("match team conflict or invalid")

	// ErrMatchUpdateConflict means a conditional update matched no row:
	// either the match does not exist, or another writer got there first
	// (side already submitted, match already completed).
	ErrMatchUpdateConflict = errors.New("match was modified concurrently or is already finalized")
)

// MatchFilter narrows ListByTournament. Nil fields are not applied.
type MatchFilter struct {
	Round     *string
	GroupName *string
	Status    *models.MatchStatus
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	BatchCreate(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, error)

	// RecordSubmission writes one side's reported score pair (own goals,
	// opponent goals) and flips the match to pending_confirmation. The
	// update is conditional on that side not having submitted yet and the
	// match not being completed; a raced duplicate submission affects zero
	// rows and returns ErrMatchUpdateConflict.
	RecordSubmission(ctx context.Context, id int, side models.MatchSide, ownScore, oppScore, submittedByTeamID int) error

	// ClearSubmissions wipes both sides' reports and reverts the match to
	// pending_result.
	ClearSubmissions(ctx context.Context, id int) error

	// CompleteFromAgreement finalizes an agreed result. Conditional on the
	// match not already being completed.
	CompleteFromAgreement(ctx context.Context, id int, score1, score2 int) error

	// SetResult is the administrator override: scores and status are
	// written unconditionally.
	SetResult(ctx context.Context, id int, score1, score2 *int, status models.MatchStatus) error

	// TransitionStatus moves status from one value to another, guarded on
	// the current value.
	TransitionStatus(ctx context.Context, id int, from, to models.MatchStatus) error

	UpdateScheduledTime(ctx context.Context, id int, scheduledTime *time.Time) error
	UpdateTeamName(ctx context.Context, exec SQLExecutor, teamID int, name string) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, preserveGroupStage bool) error
	DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, team1_id, team2_id, team1_name, team2_name, round,
	group_name, group_round, status, score1, score2, scheduled_time,
	submitted_by, team1_submitted_score1, team1_submitted_score2,
	team2_submitted_score1, team2_submitted_score2, created_at`

const insertMatchQuery = `
	INSERT INTO matches
		(tournament_id, team1_id, team2_id, team1_name, team2_name, round,
		 group_name, group_round, status, score1, score2, scheduled_time)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING id, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	err := r.getExecutor(exec).QueryRowContext(ctx, insertMatchQuery,
		m.TournamentID, m.Team1ID, m.Team2ID, m.Team1Name, m.Team2Name, m.Round,
		m.GroupName, m.GroupRound, m.Status, m.Score1, m.Score2, m.ScheduledTime,
	).Scan(&m.ID, &m.CreatedAt)
	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) BatchCreate(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	for _, m := range matches {
		err := executor.QueryRowContext(ctx, insertMatchQuery,
			m.TournamentID, m.Team1ID, m.Team2ID, m.Team1Name, m.Team2Name, m.Round,
			m.GroupName, m.GroupRound, m.Status, m.Score1, m.Score2, m.ScheduledTime,
		).Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			return fmt.Errorf("batch create failed for %s vs %s: %w",
				m.Team1Name, m.Team2Name, r.handleMatchError(err))
		}
	}
	return nil
}

func (r *postgresMatchRepository) scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.Team1ID, &m.Team2ID, &m.Team1Name, &m.Team2Name,
		&m.Round, &m.GroupName, &m.GroupRound, &m.Status, &m.Score1, &m.Score2,
		&m.ScheduledTime, &m.SubmittedBy,
		&m.Team1SubmittedScore1, &m.Team1SubmittedScore2,
		&m.Team2SubmittedScore1, &m.Team2SubmittedScore2,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := r.scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholder := 2

	if filter.Round != nil {
		queryBuilder.WriteString(" AND round = $")
		queryBuilder.WriteString(strconv.Itoa(placeholder))
		args = append(args, *filter.Round)
		placeholder++
	}
	if filter.GroupName != nil {
		queryBuilder.WriteString(" AND group_name = $")
		queryBuilder.WriteString(strconv.Itoa(placeholder))
		args = append(args, *filter.GroupName)
		placeholder++
	}
	if filter.Status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholder))
		args = append(args, *filter.Status)
		placeholder++
	}
	queryBuilder.WriteString(" ORDER BY group_round ASC NULLS LAST, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) RecordSubmission(ctx context.Context, id int, side models.MatchSide, ownScore, oppScore, submittedByTeamID int) error {
	var query string
	switch side {
	case models.SideTeam1:
		query = `
			UPDATE matches SET
				team1_submitted_score1 = $1, team1_submitted_score2 = $2,
				submitted_by = $3, status = $4
			WHERE id = $5 AND status <> $6 AND team1_submitted_score1 IS NULL`
	case models.SideTeam2:
		query = `
			UPDATE matches SET
				team2_submitted_score1 = $1, team2_submitted_score2 = $2,
				submitted_by = $3, status = $4
			WHERE id = $5 AND status <> $6 AND team2_submitted_score1 IS NULL`
	default:
		return fmt.Errorf("invalid match side %d", side)
	}

	result, err := r.db.ExecContext(ctx, query,
		ownScore, oppScore, submittedByTeamID,
		models.MatchPendingConfirmation, id, models.MatchCompleted)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchUpdateConflict)
}

func (r *postgresMatchRepository) ClearSubmissions(ctx context.Context, id int) error {
	query := `
		UPDATE matches SET
			team1_submitted_score1 = NULL, team1_submitted_score2 = NULL,
			team2_submitted_score1 = NULL, team2_submitted_score2 = NULL,
			submitted_by = NULL, status = $1
		WHERE id = $2 AND status <> $3`

	result, err := r.db.ExecContext(ctx, query,
		models.MatchPendingResult, id, models.MatchCompleted)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchUpdateConflict)
}

func (r *postgresMatchRepository) CompleteFromAgreement(ctx context.Context, id int, score1, score2 int) error {
	query := `
		UPDATE matches SET score1 = $1, score2 = $2, status = $3
		WHERE id = $4 AND status <> $3`

	result, err := r.db.ExecContext(ctx, query, score1, score2, models.MatchCompleted, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchUpdateConflict)
}

func (r *postgresMatchRepository) SetResult(ctx context.Context, id int, score1, score2 *int, status models.MatchStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET score1 = $1, score2 = $2, status = $3 WHERE id = $4`,
		score1, score2, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) TransitionStatus(ctx context.Context, id int, from, to models.MatchStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = $1 WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchUpdateConflict)
}

func (r *postgresMatchRepository) UpdateScheduledTime(ctx context.Context, id int, scheduledTime *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE matches SET scheduled_time = $1 WHERE id = $2`, scheduledTime, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// UpdateTeamName refreshes the denormalized team names on all the team's
// matches. Matches join on team id, the names are display-only.
func (r *postgresMatchRepository) UpdateTeamName(ctx context.Context, exec SQLExecutor, teamID int, name string) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx,
		`UPDATE matches SET team1_name = $1 WHERE team1_id = $2`, name, teamID); err != nil {
		return fmt.Errorf("failed to refresh team1_name for team %d: %w", teamID, err)
	}
	if _, err := executor.ExecContext(ctx,
		`UPDATE matches SET team2_name = $1 WHERE team2_id = $2`, name, teamID); err != nil {
		return fmt.Errorf("failed to refresh team2_name for team %d: %w", teamID, err)
	}
	return nil
}

func (r *postgresMatchRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, preserveGroupStage bool) error {
	query := `DELETE FROM matches WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if preserveGroupStage {
		query += ` AND round <> $2`
		args = append(args, models.RoundGroupStage)
	}
	_, err := r.getExecutor(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete matches for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresMatchRepository) DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error {
	_, err := r.getExecutor(exec).ExecContext(ctx,
		`DELETE FROM matches WHERE team1_id = $1 OR team2_id = $1`, teamID)
	if err != nil {
		return fmt.Errorf("failed to delete matches for team %d: %w", teamID, err)
	}
	return nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_team1_id_fkey", "matches_team2_id_fkey":
			return ErrMatchTeamInvalid
		}
	}
	return err
}
