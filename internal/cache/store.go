package cache

import (
	"context"
	"log"

	"github.com/google/uuid"

	"mcqquiz/internal/models"
)

// Store is the persistent quiz store that CachedStore sits in front of.
type Store interface {
	SaveQuiz(ctx context.Context, quiz *models.Quiz) error
	GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	SaveAttempt(ctx context.Context, attempt *models.Attempt) error
	ListAttempts(ctx context.Context, sessionID string) ([]models.Attempt, error)
}

// CachedStore reads quizzes through a QuizCache. Cache failures are logged and never fail the
// request; the store stays the source of truth.
type CachedStore struct {
	Store
	cache QuizCache
}

func NewCachedStore(store Store, cache QuizCache) *CachedStore {
	return &CachedStore{Store: store, cache: cache}
}

func (s *CachedStore) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	if err := s.Store.SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, quiz); err != nil {
		log.Printf("WARN: Failed to cache quiz %s: %v", quiz.ID, err)
	}
	return nil
}

func (s *CachedStore) GetQuiz(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		log.Printf("WARN: Quiz cache lookup failed for %s: %v", id, err)
	}
	if cached != nil {
		return cached, nil
	}

	quiz, err := s.Store.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, quiz); err != nil {
		log.Printf("WARN: Failed to cache quiz %s: %v", id, err)
	}
	return quiz, nil
}

// SaveAttempt stores a graded attempt. A submitted quiz is not played again, so its cache
// entry is evicted.
func (s *CachedStore) SaveAttempt(ctx context.Context, attempt *models.Attempt) error {
	if err := s.Store.SaveAttempt(ctx, attempt); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, attempt.QuizID); err != nil {
		log.Printf("WARN: Failed to evict quiz %s from cache: %v", attempt.QuizID, err)
	}
	return nil
}
