package services

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/aasen99/pro11/models"
	"github.com/aasen99/pro11/repositories"
)

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowed := map[models.TournamentStatus][]models.TournamentStatus{
		models.TournamentOpen:      {models.TournamentOngoing, models.TournamentClosed},
		models.TournamentOngoing:   {models.TournamentCompleted, models.TournamentClosed},
		models.TournamentClosed:    {models.TournamentArchived},
		models.TournamentCompleted: {models.TournamentArchived},
		models.TournamentArchived:  {},
	}
	for _, s := range allowed[current] {
		if next == s {
			return true
		}
	}
	return false
}

// translateRepoError maps repository sentinels onto the service error space.
func translateRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrTeamNameConflict):
		return ErrTeamNameConflict
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	}
	if isMissingColumnError(err) {
		return ErrSchemaOutOfDate
	}
	return err
}

// isMissingColumnError detects schema drift: postgres 42703 (undefined
// column), or the message shape lib/pq produces for it.
func isMissingColumnError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42703"
	}
	msg := err.Error()
	return strings.Contains(msg, "column") && strings.Contains(msg, "does not exist")
}

func matchesToValues(matches []*models.Match) []models.Match {
	result := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		if m != nil {
			result = append(result, *m)
		}
	}
	return result
}

func teamsToValues(teams []*models.Team) []models.Team {
	result := make([]models.Team, 0, len(teams))
	for _, t := range teams {
		if t != nil {
			result = append(result, *t)
		}
	}
	return result
}
