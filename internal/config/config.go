package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DBUrl         string
	AppEnv        string
	AdminToken    string
	ElevenAPIKey  string
	ElevenSTTURL  string
	ElevenTTSURL  string
	OpenAIAPIKey  string
	OpenAIAPIURL  string
	OpenAIModel   string
	DefaultVoice  string
	IntroAudioURL string

	// App-review accounts. Bypass skips the paywall entirely; Force makes the
	// paywall apply even inside the free trial so reviewers can exercise it.
	PaywallBypassUser string
	PaywallForceUser  string

	// Entitlement policy windows.
	TrialWindow         time.Duration
	LegacyPaymentWindow time.Duration
}

const (
	defaultElevenSTTURL = "https://api.elevenlabs.io/v1/speech-to-text"
	defaultElevenTTSURL = "https://api.elevenlabs.io/v1/text-to-speech"
	defaultOpenAIAPIURL = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel  = "gpt-4o-mini"
)

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbURL := getEnv("DB_URL", os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}

	return &Config{
		Port:          getEnv("PORT", "3000"),
		DBUrl:         dbURL,
		AppEnv:        normalizeEnv(getEnv("APP_ENV", "production")),
		AdminToken:    getEnv("ADMIN_TOKEN", ""),
		ElevenAPIKey:  getEnv("ELEVEN_API_KEY", ""),
		ElevenSTTURL:  getEnv("ELEVEN_STT_URL", defaultElevenSTTURL),
		ElevenTTSURL:  getEnv("ELEVEN_TTS_URL", defaultElevenTTSURL),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIURL:  getEnv("OPENAI_API_URL", defaultOpenAIAPIURL),
		OpenAIModel:   getEnv("OPENAI_MODEL", defaultOpenAIModel),
		DefaultVoice:  getEnv("ELEVEN_DEFAULT_VOICE", "Rachel"),
		IntroAudioURL: strings.TrimRight(getEnv("INTRO_AUDIO_BASE_URL", "/static/intro"), "/"),

		PaywallBypassUser: strings.ToLower(getEnv("PAYWALL_BYPASS_USER", "")),
		PaywallForceUser:  strings.ToLower(getEnv("PAYWALL_FORCE_USER", "")),

		TrialWindow:         7 * 24 * time.Hour,
		LegacyPaymentWindow: 32 * 24 * time.Hour,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
