package handlers

import (
	"net/http"

	"github.com/aasen99/pro11/models"
	"github.com/aasen99/pro11/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

func (h *MatchHandler) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchService.ListByTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetByID(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeMatch(w, r, http.StatusOK, match)
}

// SubmitResultHandler records the first score report on a match. The
// reporting side sends its own goals first.
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Side          int `json:"side"`
		OwnScore      int `json:"own_score"`
		OpponentScore int `json:"opponent_score"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	side, err := models.ParseMatchSide(input.Side)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.OwnScore < 0 || input.OpponentScore < 0 {
		errorResponse(w, r, http.StatusBadRequest, "scores must be non-negative")
		return
	}

	match, err := h.matchService.SubmitResult(r.Context(), matchID, side, services.ScoreReport{
		OwnScore:      input.OwnScore,
		OpponentScore: input.OpponentScore,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeMatch(w, r, http.StatusOK, match)
}

// ConfirmResultHandler records the answering report. Omitting the scores
// accepts the opponent's submission as-is.
func (h *MatchHandler) ConfirmResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Side          int  `json:"side"`
		OwnScore      *int `json:"own_score"`
		OpponentScore *int `json:"opponent_score"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	side, err := models.ParseMatchSide(input.Side)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var report *services.ScoreReport
	if input.OwnScore != nil || input.OpponentScore != nil {
		if input.OwnScore == nil || input.OpponentScore == nil {
			errorResponse(w, r, http.StatusBadRequest, "own_score and opponent_score must be provided together")
			return
		}
		if *input.OwnScore < 0 || *input.OpponentScore < 0 {
			errorResponse(w, r, http.StatusBadRequest, "scores must be non-negative")
			return
		}
		report = &services.ScoreReport{OwnScore: *input.OwnScore, OpponentScore: *input.OpponentScore}
	}

	match, err := h.matchService.ConfirmResult(r.Context(), matchID, side, report)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeMatch(w, r, http.StatusOK, match)
}

func (h *MatchHandler) RejectResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.RejectResult(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeMatch(w, r, http.StatusOK, match)
}

func (h *MatchHandler) SetResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Score1 int `json:"score1"`
		Score2 int `json:"score2"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.SetResult(r.Context(), matchID, input.Score1, input.Score2)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeMatch(w, r, http.StatusOK, match)
}

func (h *MatchHandler) WalkoverHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		WinnerTeamID int `json:"winner_team_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.Walkover(r.Context(), matchID, input.WinnerTeamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	writeMatch(w, r, http.StatusOK, match)
}

// ListConflictsHandler lists matches where both reports are in and disagree.
func (h *MatchHandler) ListConflictsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	conflicts, err := h.matchService.ListConflicts(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"conflicts": conflicts}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateScheduleHandler applies a best-effort batch of kickoff time changes
// and reports per-row failures instead of rolling back.
func (h *MatchHandler) UpdateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Updates []services.ScheduleUpdate `json:"updates"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.Updates) == 0 {
		errorResponse(w, r, http.StatusBadRequest, "updates must not be empty")
		return
	}

	result := h.matchService.UpdateSchedule(r.Context(), input.Updates)
	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	if err := writeJSON(w, status, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func writeMatch(w http.ResponseWriter, r *http.Request, status int, match *models.Match) {
	env := jsonResponse{"match": match}
	if match.HasConflict() {
		env["conflict"] = true
	}
	if err := writeJSON(w, status, env, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
