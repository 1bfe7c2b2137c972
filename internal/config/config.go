package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"mcqquiz/internal/r2"
)

// Provider names accepted in LLM_PROVIDER.
const (
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingface"
)

// Config is everything the server reads from the environment.
type Config struct {
	Port          string
	DatabaseURL   string
	SessionSecret string
	FrontendURL   string

	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	HFModel      string
	HFEndpoint   string
	HFToken      string

	RedisURL string
	R2       r2.Config

	// RecoveryRepair enables the jsonrepair fallback for blocks the lenient pass cannot fix.
	RecoveryRepair bool
}

// LoadEnv loads a .env file if present. A missing file is not an error.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err == nil {
		log.Println(".env file loaded successfully.")
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Warning: .env file not found. Relying on system environment variables.")
		return nil
	}
	return fmt.Errorf("error loading .env file: %w", err)
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		FrontendURL:   strings.TrimSuffix(getenv("FRONTEND_URL", "http://localhost:5173"), "/"),

		LLMProvider:  strings.ToLower(getenv("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  os.Getenv("GEMINI_MODEL"),
		HFModel:      os.Getenv("HF_MODEL"),
		HFEndpoint:   os.Getenv("HF_ENDPOINT"),
		HFToken:      os.Getenv("HF_TOKEN"),

		RedisURL: os.Getenv("REDIS_URL"),
		R2: r2.Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Endpoint:        os.Getenv("R2_ENDPOINT"),
		},
	}

	if v := os.Getenv("RECOVERY_REPAIR"); v != "" {
		repair, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RECOVERY_REPAIR %q: %w", v, err)
		}
		cfg.RecoveryRepair = repair
	}

	switch cfg.LLMProvider {
	case ProviderGemini, ProviderHuggingFace:
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q (want %s or %s)", cfg.LLMProvider, ProviderGemini, ProviderHuggingFace)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
