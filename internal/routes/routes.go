package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kddeniz/ai-therapist/internal/config"
	"github.com/kddeniz/ai-therapist/internal/handlers"
	"github.com/kddeniz/ai-therapist/internal/middleware"
	"github.com/kddeniz/ai-therapist/internal/repository"
	"github.com/kddeniz/ai-therapist/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	clientRepo := repository.NewClientRepository(db)
	therapistRepo := repository.NewTherapistRepository(db)
	mainSessionRepo := repository.NewMainSessionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	webhookLogRepo := repository.NewWebhookLogRepository(db)

	speechService := services.NewElevenLabsService(cfg.ElevenSTTURL, cfg.ElevenTTSURL, cfg.ElevenAPIKey)
	completionService := services.NewOpenAIService(cfg.OpenAIAPIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	entitlementService := services.NewEntitlementService(
		paymentRepo,
		cfg.PaywallBypassUser,
		cfg.PaywallForceUser,
		cfg.TrialWindow,
		cfg.LegacyPaymentWindow,
	)

	clientService := services.NewClientService(clientRepo, mainSessionRepo, entitlementService)
	therapistService := services.NewTherapistService(therapistRepo, speechService)
	sessionService := services.NewSessionService(
		db,
		clientRepo,
		therapistRepo,
		mainSessionRepo,
		sessionRepo,
		messageRepo,
		entitlementService,
		completionService,
		speechService,
		cfg.IntroAudioURL,
	)
	summaryService := services.NewSummaryService(db, sessionRepo, messageRepo, completionService)
	turnService := services.NewTurnService(db, sessionRepo, messageRepo, speechService, completionService, speechService)
	paymentService := services.NewPaymentService(clientRepo, paymentRepo, webhookLogRepo)

	clientHandler := handlers.NewClientHandler(clientService, sessionService)
	therapistHandler := handlers.NewTherapistHandler(therapistService)
	sessionHandler := handlers.NewSessionHandler(sessionService, summaryService)
	messageHandler := handlers.NewMessageHandler(turnService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	api := app.Group("/api")

	clients := api.Group("/clients")
	clients.Post("", clientHandler.Register)
	clients.Get("", clientHandler.List)
	clients.Get("/:id", clientHandler.Get)
	clients.Get("/:id/sessions", clientHandler.ListSessions)
	clients.Post("/:id/reset", clientHandler.Reset)

	therapists := api.Group("/therapists")
	therapists.Get("", therapistHandler.List)
	therapists.Get("/:id", therapistHandler.Get)
	therapists.Get("/:id/voice-preview", therapistHandler.VoicePreview)

	sessions := api.Group("/sessions")
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Post("/:id/end", sessionHandler.EndSession)
	sessions.Get("/:id/summary", sessionHandler.GetSummary)
	sessions.Post("/:id/messages/audio", messageHandler.PostAudio)
	sessions.Get("/:id/messages", messageHandler.ListMessages)

	payments := api.Group("/payments")
	payments.Post("", paymentHandler.RecordPayment)
	payments.Get("", paymentHandler.ListPayments)

	api.Post("/webhooks/revenuecat", paymentHandler.RevenueCatWebhook)

	admin := api.Group("/admin", middleware.AdminRequired(cfg.AdminToken))
	admin.Post("/clients/:id/mock-trial-expired", clientHandler.MockExpireTrial)
}
