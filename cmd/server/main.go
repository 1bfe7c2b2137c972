package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mcqquiz/internal/api"
	"mcqquiz/internal/api/handlers"
	"mcqquiz/internal/cache"
	"mcqquiz/internal/config"
	"mcqquiz/internal/db"
	"mcqquiz/internal/llm"
	"mcqquiz/internal/r2"
	"mcqquiz/internal/recovery"

	sessions "github.com/gin-contrib/sessions"
	gsessions "github.com/gin-contrib/sessions/postgres"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql, used by the session store
)

const storeName = "mcqquiz_session"

func init() {
	log.Println("Attempting to load .env file...")
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("FATAL: Invalid configuration: %v", err)
	}
	if cfg.SessionSecret == "" {
		log.Fatal("FATAL: SESSION_SECRET must be set.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	var store handlers.QuizStore = database
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("WARN: Redis unavailable, serving quizzes from Postgres only: %v", err)
		} else {
			defer rdb.Close()
			store = cache.NewCachedStore(database, cache.NewQuizCache(rdb))
			log.Println("INFO: Quiz cache enabled")
		}
	}

	var archiver handlers.Archiver
	r2Client, err := r2.NewClient(ctx, cfg.R2)
	if err != nil {
		log.Fatalf("Failed to initialize R2 client: %v", err)
	}
	if r2Client != nil {
		archiver = r2Client
	}

	var parserOpts []recovery.Option
	if cfg.RecoveryRepair {
		parserOpts = append(parserOpts, recovery.WithRepairFallback())
		log.Println("INFO: JSON repair fallback enabled for recovery")
	}
	parser := recovery.New(parserOpts...)

	var completer llm.Completer
	switch cfg.LLMProvider {
	case config.ProviderHuggingFace:
		hf := llm.NewHuggingFaceClient(cfg.HFEndpoint, cfg.HFModel)
		hf.DefaultToken = cfg.HFToken
		completer = hf
	default:
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini client: %v", err)
		}
		defer gemini.Close()
		completer = gemini
	}
	log.Printf("INFO: Using %s for quiz generation", completer.Name())

	router := gin.Default()

	// Session store lives in Postgres, reached through database/sql.
	sessionDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database connection for session store: %v", err)
	}
	defer sessionDB.Close()
	if err := sessionDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database for session store: %v", err)
	}

	sessionStore, err := gsessions.NewStore(sessionDB, []byte(cfg.SessionSecret))
	if err != nil {
		log.Fatalf("Failed to create postgres session store: %v", err)
	}
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		Secure:   os.Getenv("GIN_MODE") == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(storeName, sessionStore))

	handler := handlers.NewHandler(store, llm.NewGenerator(completer, parser), parser, archiver)
	api.SetupRoutes(router, handler, cfg.FrontendURL)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited properly")
}
