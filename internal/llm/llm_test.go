package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcqquiz/internal/quiz"
)

type scriptedCompleter struct {
	responses []string
	errs      []error
	tokens    []string
	calls     int
}

func (s *scriptedCompleter) Name() string { return "scripted" }

func (s *scriptedCompleter) Complete(_ context.Context, token string, _ string) (string, error) {
	i := s.calls
	s.calls++
	s.tokens = append(s.tokens, token)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("no more responses")
}

const goodResponse = `{'1': {'question': 'What's 2 + 2?', 'options': {'A': '3', 'B': '4'}, 'correct': 'B', 'reason': 'It's arithmetic.'}}`

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(Request{Subject: "Astronomy", Difficulty: quiz.DifficultyHard})
	require.NoError(t, err)

	assert.Contains(t, prompt, "make 5 questions on Astronomy")
	assert.Contains(t, prompt, "difficulty of questions would be hard")
	assert.Contains(t, prompt, `"question":"This will be the question"`)
	assert.NotContains(t, prompt, "{json}")
}

func TestGenerateRetriesUntilQuestionsRecovered(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []string{"", "I'm sorry, I can't do that.", goodResponse},
		errs:      []error{errors.New("model overloaded")},
	}
	gen := NewGenerator(completer, nil).WithRetryDelay(0)

	out, err := gen.Generate(context.Background(), "hf_abc", Request{Subject: "Math", Difficulty: quiz.DifficultyEasy})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, goodResponse, out.Raw)
	require.Len(t, out.Questions, 1)
	assert.Equal(t, "What's 2 + 2?", out.Questions[0].Question)
	assert.Equal(t, "4", out.Questions[0].CorrectText())
	assert.Equal(t, []string{"hf_abc", "hf_abc", "hf_abc"}, completer.tokens)
}

func TestGenerateGivesUp(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"nothing", "still nothing", "{'1': {'broken'"}}
	gen := NewGenerator(completer, nil).WithRetryDelay(0)

	out, err := gen.Generate(context.Background(), "", Request{Subject: "Math"})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrNoQuestions)
	assert.Equal(t, 3, completer.calls)
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("boom")}}
	gen := NewGenerator(completer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gen.Generate(ctx, "", Request{Subject: "Math"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, completer.calls)
}

func TestHuggingFaceComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/org/model", r.URL.Path)
		assert.Equal(t, "Bearer hf_user", r.Header.Get("Authorization"))

		var body hfRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, strings.HasPrefix(body.Inputs, "You are a teacher"))
		assert.False(t, body.Parameters.ReturnFullText)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"generated_text": "{'1': {'a': 'b'}}"}]`))
	}))
	defer server.Close()

	client := NewHuggingFaceClient(server.URL, "org/model")
	prompt, err := BuildPrompt(Request{Subject: "Chemistry", Difficulty: quiz.DifficultyEasy})
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), "hf_user", prompt)
	require.NoError(t, err)
	assert.Equal(t, "{'1': {'a': 'b'}}", text)
}

func TestHuggingFaceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Invalid credentials in Authorization header"}`))
	}))
	defer server.Close()

	client := NewHuggingFaceClient(server.URL, "org/model")

	_, err := client.Complete(context.Background(), "", "prompt")
	assert.ErrorContains(t, err, "no Hugging Face access token")

	client.DefaultToken = "hf_server"
	_, err = client.Complete(context.Background(), "", "prompt")
	assert.ErrorContains(t, err, "status 401")
	assert.ErrorContains(t, err, "Invalid credentials")
}
