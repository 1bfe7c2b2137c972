package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mcqquiz/internal/models"
)

// QuizCache handles Redis operations for generated quizzes
type QuizCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	Set(ctx context.Context, quiz *models.Quiz) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type quizCache struct {
	client *redis.Client
	ttl    time.Duration
}

// cachedQuiz keeps the owner, which the API representation hides.
type cachedQuiz struct {
	*models.Quiz
	SessionID string `json:"session_id"`
}

// NewQuizCache creates a new quiz cache
func NewQuizCache(client *redis.Client) QuizCache {
	return &quizCache{
		client: client,
		ttl:    time.Hour,
	}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

func key(id uuid.UUID) string {
	return fmt.Sprintf("quiz:%s", id)
}

func (c *quizCache) Get(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cached cachedQuiz
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	if cached.Quiz == nil {
		return nil, nil
	}
	cached.Quiz.SessionID = cached.SessionID
	return cached.Quiz, nil
}

func (c *quizCache) Set(ctx context.Context, quiz *models.Quiz) error {
	data, err := json.Marshal(cachedQuiz{Quiz: quiz, SessionID: quiz.SessionID})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(quiz.ID), data, c.ttl).Err()
}

func (c *quizCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, key(id)).Err()
}
