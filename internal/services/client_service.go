package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/repository"
	"github.com/kddeniz/ai-therapist/pkg/utils"
)

type ClientService struct {
	clientRepo      *repository.ClientRepository
	mainSessionRepo *repository.MainSessionRepository
	entitlements    *EntitlementService
}

func NewClientService(
	clientRepo *repository.ClientRepository,
	mainSessionRepo *repository.MainSessionRepository,
	entitlements *EntitlementService,
) *ClientService {
	return &ClientService{
		clientRepo:      clientRepo,
		mainSessionRepo: mainSessionRepo,
		entitlements:    entitlements,
	}
}

type RegisterClientInput struct {
	ID       string
	Username string
	Gender   int
	Language string
}

// Register creates or updates a client. Device installs without an identity
// get a generated id; re-registering an existing id refreshes the profile.
func (s *ClientService) Register(ctx context.Context, input RegisterClientInput) (*models.Client, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if input.Gender < int(models.GenderUnknown) || input.Gender > int(models.GenderFemale) {
		return nil, fmt.Errorf("%w: gender must be 0, 1 or 2", ErrInvalidInput)
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: id must be a UUID", ErrInvalidInput)
	}

	client := &models.Client{
		ID:       id,
		Username: username,
		Gender:   models.Gender(input.Gender),
		Language: utils.NormalizeLanguage(utils.FirstNonEmpty("tr", input.Language)),
	}
	if err := s.clientRepo.Upsert(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

type ClientProfile struct {
	Client *models.Client     `json:"client"`
	Trial  models.TrialStatus `json:"trial"`
}

// Get returns the client with the current trial state, so the app can show
// days-left without starting a session.
func (s *ClientService) Get(ctx context.Context, clientID string) (*ClientProfile, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	mainSession, err := s.mainSessionRepo.GetActiveByClient(ctx, clientID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	return &ClientProfile{
		Client: client,
		Trial:  s.entitlements.TrialStatus(mainSession),
	}, nil
}

func (s *ClientService) List(ctx context.Context) ([]models.Client, error) {
	return s.clientRepo.List(ctx)
}
