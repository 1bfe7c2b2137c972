package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mcqquiz/internal/quiz"
	"mcqquiz/internal/recovery"
)

// ErrNoQuestions is returned when no attempt produced a usable question.
var ErrNoQuestions = errors.New("no questions could be recovered from the model response")

// Completer is a text-generation backend. token is the caller's own access token, when the
// backend needs one.
type Completer interface {
	Name() string
	Complete(ctx context.Context, token string, prompt string) (string, error)
}

// Generation is the outcome of a successful Generate call.
type Generation struct {
	// Raw is the model output the questions were recovered from.
	Raw       string
	Questions []quiz.Question
	Attempts  int
	// Dropped is the number of candidate blocks the parser had to discard.
	Dropped int
}

// Generator turns a quiz request into questions: prompt, model call, recovery, validation.
type Generator struct {
	completer   Completer
	parser      *recovery.Parser
	maxAttempts int
	retryDelay  time.Duration
}

// NewGenerator creates a Generator that makes up to 3 attempts.
func NewGenerator(completer Completer, parser *recovery.Parser) *Generator {
	if parser == nil {
		parser = recovery.New()
	}
	return &Generator{
		completer:   completer,
		parser:      parser,
		maxAttempts: 3,
		retryDelay:  2 * time.Second,
	}
}

// WithRetryDelay sets the pause between attempts.
func (g *Generator) WithRetryDelay(d time.Duration) *Generator {
	g.retryDelay = d
	return g
}

// Generate asks the model for a quiz and recovers its questions. It retries when the call
// fails or the response yields no usable question.
func (g *Generator) Generate(ctx context.Context, token string, req Request) (*Generation, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("quiz generation cancelled after %d attempts: %w", attempt-1, ctx.Err())
			case <-time.After(g.retryDelay):
			}
		}

		raw, err := g.completer.Complete(ctx, token, prompt)
		if err != nil {
			lastErr = fmt.Errorf("%s completion failed (attempt %d): %w", g.completer.Name(), attempt, err)
			log.Printf("WARN: %v", lastErr)
			continue
		}

		res, err := g.parser.Recover(raw)
		if err != nil {
			lastErr = fmt.Errorf("failed to recover questions (attempt %d): %w", attempt, err)
			log.Printf("WARN: %v", lastErr)
			continue
		}

		questions := quiz.FromRecords(res)
		log.Printf("INFO: Attempt %d recovered %d records (%d blocks dropped), %d usable questions on '%s'",
			attempt, res.Len(), res.Dropped, len(questions), req.Subject)
		if len(questions) == 0 {
			log.Printf("DEBUG: Raw model output with no usable questions (attempt %d): %s", attempt, raw)
			lastErr = fmt.Errorf("%w (attempt %d)", ErrNoQuestions, attempt)
			continue
		}

		return &Generation{
			Raw:       raw,
			Questions: questions,
			Attempts:  attempt,
			Dropped:   res.Dropped,
		}, nil
	}

	return nil, fmt.Errorf("failed to generate quiz after %d attempts: %w", g.maxAttempts, lastErr)
}
