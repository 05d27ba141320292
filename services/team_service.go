package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aasen99/pro11/models"
	"github.com/aasen99/pro11/repositories"
	"github.com/aasen99/pro11/storage"
)

// RegisterTeamInput is the public registration payload.
type RegisterTeamInput struct {
	Name         string `json:"name"`
	CaptainEmail string `json:"captain_email"`
}

type TeamService interface {
	// Register signs a team up for an open tournament. The team starts in
	// pending status with a fresh payment reference, and the captain gets a
	// confirmation mail with payment instructions.
	Register(ctx context.Context, tournamentID int, input RegisterTeamInput) (*models.Team, error)

	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByTournament(ctx context.Context, tournamentID int, filter repositories.TeamFilter) ([]*models.Team, error)

	Approve(ctx context.Context, teamID int) (*models.Team, error)
	Reject(ctx context.Context, teamID int) (*models.Team, error)
	SetCheckedIn(ctx context.Context, teamID int, checkedIn bool) (*models.Team, error)

	// MarkPaid records that the entry fee arrived and mails the captain.
	MarkPaid(ctx context.Context, teamID int) (*models.Team, error)

	// Rename changes the team name and refreshes the denormalized names on
	// every match the team appears in.
	Rename(ctx context.Context, teamID int, newName string) (*models.Team, error)

	// Delete removes the team together with its matches.
	Delete(ctx context.Context, teamID int) error

	UploadLogo(ctx context.Context, teamID int, contentType string, r io.Reader) (*models.Team, error)
}

type teamService struct {
	db             *sql.DB
	teamRepo       repositories.TeamRepository
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	email          *EmailService
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewTeamService(
	db *sql.DB,
	teamRepo repositories.TeamRepository,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	email *EmailService,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TeamService {
	return &teamService{
		db:             db,
		teamRepo:       teamRepo,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		email:          email,
		uploader:       uploader,
		logger:         logger,
	}
}

func (s *teamService) Register(ctx context.Context, tournamentID int, input RegisterTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	captainEmail := strings.TrimSpace(input.CaptainEmail)
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	if captainEmail == "" || !strings.Contains(captainEmail, "@") {
		return nil, ErrCaptainEmailRequired
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if tournament.Status != models.TournamentOpen {
		return nil, ErrRegistrationNotOpen
	}
	if tournament.MaxTeams > 0 {
		count, err := s.teamRepo.CountByTournament(ctx, tournamentID)
		if err != nil {
			return nil, translateRepoError(err)
		}
		if count >= tournament.MaxTeams {
			return nil, ErrTournamentFull
		}
	}

	paymentRef := uuid.NewString()
	team := &models.Team{
		TournamentID: tournamentID,
		Name:         name,
		CaptainEmail: captainEmail,
		Status:       models.TeamPending,
		PaymentRef:   &paymentRef,
	}
	if err := s.teamRepo.Create(ctx, nil, team); err != nil {
		return nil, translateRepoError(err)
	}
	s.logger.Info("team registered",
		slog.Int("team_id", team.ID),
		slog.Int("tournament_id", tournamentID),
		slog.String("name", team.Name))

	if s.email != nil {
		// Mail delivery never blocks or fails a registration.
		go func() {
			if err := s.email.SendRegistrationConfirmation(captainEmail, name, tournament.Name, paymentRef, tournament.EntryFee); err != nil {
				s.logger.Warn("failed to send registration confirmation",
					slog.Int("team_id", team.ID), slog.Any("error", err))
			}
		}()
	}
	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err)
	}
	s.attachLogoURL(team)
	return team, nil
}

func (s *teamService) ListByTournament(ctx context.Context, tournamentID int, filter repositories.TeamFilter) ([]*models.Team, error) {
	teams, err := s.teamRepo.ListByTournament(ctx, tournamentID, filter)
	if err != nil {
		return nil, translateRepoError(err)
	}
	for _, t := range teams {
		s.attachLogoURL(t)
	}
	return teams, nil
}

func (s *teamService) Approve(ctx context.Context, teamID int) (*models.Team, error) {
	return s.setStatus(ctx, teamID, models.TeamApproved)
}

func (s *teamService) Reject(ctx context.Context, teamID int) (*models.Team, error) {
	return s.setStatus(ctx, teamID, models.TeamRejected)
}

func (s *teamService) setStatus(ctx context.Context, teamID int, status models.TeamStatus) (*models.Team, error) {
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.Status == status {
		return team, nil
	}
	team.Status = status
	if err := s.teamRepo.Update(ctx, nil, team); err != nil {
		return nil, translateRepoError(err)
	}
	s.logger.Info("team status changed",
		slog.Int("team_id", teamID), slog.String("status", string(status)))
	return team, nil
}

func (s *teamService) SetCheckedIn(ctx context.Context, teamID int, checkedIn bool) (*models.Team, error) {
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	team.CheckedIn = checkedIn
	if err := s.teamRepo.Update(ctx, nil, team); err != nil {
		return nil, translateRepoError(err)
	}
	return team, nil
}

func (s *teamService) MarkPaid(ctx context.Context, teamID int) (*models.Team, error) {
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.Paid {
		return team, nil
	}
	team.Paid = true
	if team.PaymentRef == nil {
		ref := uuid.NewString()
		team.PaymentRef = &ref
	}
	if err := s.teamRepo.Update(ctx, nil, team); err != nil {
		return nil, translateRepoError(err)
	}
	s.logger.Info("team marked as paid", slog.Int("team_id", teamID))

	if s.email != nil {
		captainEmail, teamName := team.CaptainEmail, team.Name
		go func() {
			if err := s.email.SendPaymentConfirmation(captainEmail, teamName); err != nil {
				s.logger.Warn("failed to send payment confirmation",
					slog.Int("team_id", teamID), slog.Any("error", err))
			}
		}()
	}
	return team, nil
}

func (s *teamService) Rename(ctx context.Context, teamID int, newName string) (*models.Team, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, ErrTeamNameRequired
	}
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.Name == newName {
		return team, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	team.Name = newName
	if err := s.teamRepo.Update(ctx, tx, team); err != nil {
		return nil, translateRepoError(err)
	}
	if err := s.matchRepo.UpdateTeamName(ctx, tx, teamID, newName); err != nil {
		return nil, translateRepoError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return team, nil
}

func (s *teamService) Delete(ctx context.Context, teamID int) error {
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.matchRepo.DeleteByTeam(ctx, tx, teamID); err != nil {
		return translateRepoError(err)
	}
	if err := s.teamRepo.Delete(ctx, tx, teamID); err != nil {
		return translateRepoError(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.uploader != nil && team.LogoKey != nil {
		if err := s.uploader.Delete(ctx, *team.LogoKey); err != nil {
			s.logger.Warn("failed to delete team logo from storage",
				slog.Int("team_id", teamID), slog.Any("error", err))
		}
	}
	s.logger.Info("team deleted", slog.Int("team_id", teamID))
	return nil
}

var logoExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

func (s *teamService) UploadLogo(ctx context.Context, teamID int, contentType string, r io.Reader) (*models.Team, error) {
	if s.uploader == nil {
		return nil, ErrForbiddenOperation
	}
	ext, ok := logoExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported logo content type %q", ErrValidationFailed, contentType)
	}
	team, err := s.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("logos/%d/%s%s", team.TournamentID, uuid.NewString(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upload logo: %w", err)
	}

	oldKey := team.LogoKey
	team.LogoKey = &result.Key
	if err := s.teamRepo.Update(ctx, nil, team); err != nil {
		return nil, translateRepoError(err)
	}
	if oldKey != nil && *oldKey != result.Key {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.Warn("failed to delete replaced logo",
				slog.Int("team_id", teamID), slog.Any("error", err))
		}
	}
	s.attachLogoURL(team)
	return team, nil
}

func (s *teamService) attachLogoURL(team *models.Team) {
	if s.uploader == nil || team.LogoKey == nil {
		return
	}
	url := s.uploader.GetPublicURL(*team.LogoKey)
	team.LogoURL = &url
}
