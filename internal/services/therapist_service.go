package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/repository"
	"github.com/kddeniz/ai-therapist/pkg/utils"
)

type TherapistService struct {
	therapistRepo *repository.TherapistRepository
	synthesizer   Synthesizer
}

func NewTherapistService(therapistRepo *repository.TherapistRepository, synthesizer Synthesizer) *TherapistService {
	return &TherapistService{
		therapistRepo: therapistRepo,
		synthesizer:   synthesizer,
	}
}

func (s *TherapistService) List(ctx context.Context, filter repository.TherapistListFilter) ([]models.Therapist, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.therapistRepo.List(ctx, filter)
}

func (s *TherapistService) Get(ctx context.Context, id string) (*models.Therapist, error) {
	therapist, err := s.therapistRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}
	return therapist, nil
}

// VoicePreviewResult carries either a redirect to a pre-rendered preview or
// freshly synthesized sample audio.
type VoicePreviewResult struct {
	RedirectURL string
	Audio       []byte
}

var previewLines = map[string]string{
	"tr": "Merhaba, ben senin koçunum. Hazır olduğunda başlayabiliriz.",
	"en": "Hi, I'm your coach. We can begin whenever you're ready.",
}

// VoicePreview returns a short sample of the therapist's voice. A stored
// preview URL wins; otherwise a sample line is synthesized on the fly.
func (s *TherapistService) VoicePreview(ctx context.Context, id, language string) (*VoicePreviewResult, error) {
	therapist, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if therapist.AudioPreviewURL != nil && *therapist.AudioPreviewURL != "" {
		return &VoicePreviewResult{RedirectURL: *therapist.AudioPreviewURL}, nil
	}

	line, ok := previewLines[utils.NormalizeLanguage(language)]
	if !ok {
		line = previewLines["en"]
	}
	audio, err := s.synthesizer.Synthesize(ctx, line, therapist.VoiceID)
	if err != nil {
		return nil, err
	}
	return &VoicePreviewResult{Audio: audio}, nil
}
