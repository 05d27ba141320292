package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aasen99/pro11/models"
	"github.com/aasen99/pro11/repositories"
)

// In-memory repositories mirroring the postgres guard semantics, so the
// services can be exercised without a database.

type fakeMatchRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{items: make(map[int]*models.Match)}
}

func (r *fakeMatchRepo) seed(m models.Match) *models.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		r.nextID++
		m.ID = r.nextID
	} else if m.ID > r.nextID {
		r.nextID = m.ID
	}
	stored := m
	r.items[m.ID] = &stored
	return &stored
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	return &c
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	r.items[m.ID] = copyMatch(m)
	return nil
}

func (r *fakeMatchRepo) BatchCreate(ctx context.Context, exec repositories.SQLExecutor, matches []*models.Match) error {
	for _, m := range matches {
		if err := r.Create(ctx, exec, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return copyMatch(m), nil
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.items {
		if m.TournamentID != tournamentID {
			continue
		}
		if filter.Round != nil && m.Round != *filter.Round {
			continue
		}
		if filter.GroupName != nil && (m.GroupName == nil || *m.GroupName != *filter.GroupName) {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		out = append(out, copyMatch(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMatchRepo) RecordSubmission(_ context.Context, id int, side models.MatchSide, ownScore, oppScore, submittedByTeamID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.Status == models.MatchCompleted || m.HasSubmission(side) {
		return repositories.ErrMatchUpdateConflict
	}
	if side == models.SideTeam1 {
		m.Team1SubmittedScore1, m.Team1SubmittedScore2 = &ownScore, &oppScore
	} else {
		m.Team2SubmittedScore1, m.Team2SubmittedScore2 = &ownScore, &oppScore
	}
	m.SubmittedBy = &submittedByTeamID
	m.Status = models.MatchPendingConfirmation
	return nil
}

func (r *fakeMatchRepo) ClearSubmissions(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.Status == models.MatchCompleted {
		return repositories.ErrMatchUpdateConflict
	}
	m.Team1SubmittedScore1, m.Team1SubmittedScore2 = nil, nil
	m.Team2SubmittedScore1, m.Team2SubmittedScore2 = nil, nil
	m.SubmittedBy = nil
	m.Status = models.MatchPendingResult
	return nil
}

func (r *fakeMatchRepo) CompleteFromAgreement(_ context.Context, id int, score1, score2 int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.Status == models.MatchCompleted {
		return repositories.ErrMatchUpdateConflict
	}
	m.Score1, m.Score2 = &score1, &score2
	m.Status = models.MatchCompleted
	return nil
}

func (r *fakeMatchRepo) SetResult(_ context.Context, id int, score1, score2 *int, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Score1, m.Score2 = score1, score2
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) TransitionStatus(_ context.Context, id int, from, to models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.Status != from {
		return repositories.ErrMatchUpdateConflict
	}
	m.Status = to
	return nil
}

func (r *fakeMatchRepo) UpdateScheduledTime(_ context.Context, id int, scheduledTime *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.ScheduledTime = scheduledTime
	return nil
}

func (r *fakeMatchRepo) UpdateTeamName(_ context.Context, _ repositories.SQLExecutor, teamID int, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.items {
		if m.Team1ID == teamID {
			m.Team1Name = name
		}
		if m.Team2ID != nil && *m.Team2ID == teamID {
			m.Team2Name = name
		}
	}
	return nil
}

func (r *fakeMatchRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int, preserveGroupStage bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.items {
		if m.TournamentID != tournamentID {
			continue
		}
		if preserveGroupStage && m.Round == models.RoundGroupStage {
			continue
		}
		delete(r.items, id)
	}
	return nil
}

func (r *fakeMatchRepo) DeleteByTeam(_ context.Context, _ repositories.SQLExecutor, teamID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.items {
		if m.Team1ID == teamID || (m.Team2ID != nil && *m.Team2ID == teamID) {
			delete(r.items, id)
		}
	}
	return nil
}

type fakeTeamRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Team
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{items: make(map[int]*models.Team)}
}

func (r *fakeTeamRepo) seed(t models.Team) *models.Team {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		r.nextID++
		t.ID = r.nextID
	} else if t.ID > r.nextID {
		r.nextID = t.ID
	}
	stored := t
	r.items[t.ID] = &stored
	return &stored
}

func copyTeam(t *models.Team) *models.Team {
	c := *t
	return &c
}

func (r *fakeTeamRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TournamentID == t.TournamentID && existing.Name == t.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	r.nextID++
	t.ID = r.nextID
	r.items[t.ID] = copyTeam(t)
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return copyTeam(t), nil
}

func (r *fakeTeamRepo) ListByTournament(_ context.Context, tournamentID int, filter repositories.TeamFilter) ([]*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Team
	for _, t := range r.items {
		if t.TournamentID != tournamentID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.CheckedIn != nil && t.CheckedIn != *filter.CheckedIn {
			continue
		}
		out = append(out, copyTeam(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTeamRepo) Update(_ context.Context, _ repositories.SQLExecutor, t *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	r.items[t.ID] = copyTeam(t)
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeTeamRepo) CountByTournament(_ context.Context, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, t := range r.items {
		if t.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

type fakeTournamentRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{items: make(map[int]*models.Tournament)}
}

func (r *fakeTournamentRepo) seed(t models.Tournament) *models.Tournament {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == 0 {
		r.nextID++
		t.ID = r.nextID
	} else if t.ID > r.nextID {
		r.nextID = t.ID
	}
	stored := t
	r.items[t.ID] = &stored
	return &stored
}

func copyTournament(t *models.Tournament) *models.Tournament {
	c := *t
	return &c
}

func (r *fakeTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	r.nextID++
	t.ID = r.nextID
	r.items[t.ID] = copyTournament(t)
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return copyTournament(t), nil
}

func (r *fakeTournamentRepo) List(_ context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.items {
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, copyTournament(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	r.items[t.ID] = copyTournament(t)
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.items, id)
	return nil
}
