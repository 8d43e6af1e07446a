package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kddeniz/ai-therapist/internal/models"
	"github.com/kddeniz/ai-therapist/internal/repository"
	"github.com/kddeniz/ai-therapist/internal/services"
)

type stubTherapistService struct {
	listResult    []models.Therapist
	listErr       error
	getResult     *models.Therapist
	getErr        error
	previewResult *services.VoicePreviewResult
	previewErr    error
	lastFilter    repository.TherapistListFilter
}

func (s *stubTherapistService) List(_ context.Context, filter repository.TherapistListFilter) ([]models.Therapist, error) {
	s.lastFilter = filter
	return s.listResult, s.listErr
}

func (s *stubTherapistService) Get(_ context.Context, _ string) (*models.Therapist, error) {
	return s.getResult, s.getErr
}

func (s *stubTherapistService) VoicePreview(_ context.Context, _, _ string) (*services.VoicePreviewResult, error) {
	return s.previewResult, s.previewErr
}

func newTherapistTestApp(therapists therapistApplicationService) *fiber.App {
	handler := &TherapistHandler{therapists: therapists}
	app := fiber.New()
	app.Get("/api/therapists", handler.List)
	app.Get("/api/therapists/:id", handler.Get)
	app.Get("/api/therapists/:id/voice-preview", handler.VoicePreview)
	return app
}

func TestListTherapistsForwardsFilter(t *testing.T) {
	service := &stubTherapistService{listResult: []models.Therapist{{ID: "t1", Name: "Elif"}}}
	app := newTherapistTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/therapists?q=elif&gender=2&limit=5", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastFilter.Query != "elif" || service.lastFilter.Gender == nil || *service.lastFilter.Gender != models.GenderFemale {
		t.Fatalf("filter not forwarded: %+v", service.lastFilter)
	}
	if service.lastFilter.Limit != 5 {
		t.Fatalf("limit not forwarded: %d", service.lastFilter.Limit)
	}
}

func TestListTherapistsInvalidGender(t *testing.T) {
	app := newTherapistTestApp(&stubTherapistService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/therapists?gender=7", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestVoicePreviewRedirect(t *testing.T) {
	service := &stubTherapistService{
		previewResult: &services.VoicePreviewResult{RedirectURL: "https://cdn.example.com/previews/t1.mp3"},
	}
	app := newTherapistTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/therapists/t1/voice-preview", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://cdn.example.com/previews/t1.mp3" {
		t.Fatalf("unexpected location: %q", loc)
	}
}

func TestVoicePreviewSynthesized(t *testing.T) {
	service := &stubTherapistService{
		previewResult: &services.VoicePreviewResult{Audio: []byte{0x01, 0x02, 0x03}},
	}
	app := newTherapistTestApp(service)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/therapists/t1/voice-preview", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", ct)
	}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) != 3 {
		t.Fatalf("unexpected audio body: %v", raw)
	}
}

func TestVoicePreviewNotFound(t *testing.T) {
	app := newTherapistTestApp(&stubTherapistService{previewErr: services.ErrTherapistNotFound})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/therapists/nope/voice-preview", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
