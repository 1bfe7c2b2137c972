package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcqquiz/internal/api/handlers"
	"mcqquiz/internal/db"
	"mcqquiz/internal/llm"
	"mcqquiz/internal/models"
	"mcqquiz/internal/quiz"
	"mcqquiz/internal/recovery"
)

const modelOutput = `Sure! Here is your quiz:
{'1': {'question': 'What's the capital of France?', 'options': {'A': 'Paris', 'B': 'Rome', 'C': 'Madrid', 'D': 'Berlin'}, 'correct': 'A', 'reason': 'Paris is France's capital.'},
'2': {'question': 'Which river flows through Egypt?', 'options': {'A': 'Amazon', 'B': 'Nile'}, 'correct': 'B', 'reason': 'The Nile runs north through Egypt.'}}
Good luck!`

type memoryStore struct {
	mu       sync.Mutex
	quizzes  map[uuid.UUID]*models.Quiz
	attempts []models.Attempt
}

func newMemoryStore() *memoryStore {
	return &memoryStore{quizzes: map[uuid.UUID]*models.Quiz{}}
}

func (m *memoryStore) SaveQuiz(_ context.Context, q *models.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id uuid.UUID) (*models.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return q, nil
}

func (m *memoryStore) SaveAttempt(_ context.Context, a *models.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *memoryStore) ListAttempts(_ context.Context, sessionID string) ([]models.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Attempt
	for _, a := range m.attempts {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fixedCompleter struct {
	response string
	err      error
	tokens   []string
}

func (f *fixedCompleter) Name() string { return "fixed" }

func (f *fixedCompleter) Complete(_ context.Context, token, _ string) (string, error) {
	f.tokens = append(f.tokens, token)
	return f.response, f.err
}

type recordingArchiver struct {
	raw map[uuid.UUID]string
}

func (r *recordingArchiver) ArchiveRaw(_ context.Context, quizID uuid.UUID, raw string) (string, error) {
	r.raw[quizID] = raw
	return "raw/" + quizID.String() + ".txt", nil
}

type fixture struct {
	router   *gin.Engine
	store    *memoryStore
	model    *fixedCompleter
	archiver *recordingArchiver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		router:   gin.New(),
		store:    newMemoryStore(),
		model:    &fixedCompleter{response: modelOutput},
		archiver: &recordingArchiver{raw: map[uuid.UUID]string{}},
	}
	store := cookie.NewStore([]byte("test-session-secret"))
	f.router.Use(sessions.Sessions("mcqquiz_session", store))

	parser := recovery.New()
	gen := llm.NewGenerator(f.model, parser).WithRetryDelay(0)
	SetupRoutes(f.router, handlers.NewHandler(f.store, gen, parser, f.archiver), "http://localhost:5173/")
	return f
}

// client keeps the session cookie between requests.
type client struct {
	t       *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
}

func (f *fixture) client(t *testing.T) *client {
	return &client{t: t, router: f.router}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	if set := rec.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (c *client) login(token string) {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/session/login", handlers.LoginRequest{Token: token})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (c *client) generate() models.QuizResponse {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/quizzes", handlers.GenerateQuizRequest{Subject: "Geography", Difficulty: "easy"})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.QuizResponse](c.t, rec)
}

func TestQuizFlow(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	rec := c.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[quiz.Session](t, rec)
	assert.Equal(t, quiz.ModeLogin, s.Mode)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = c.do(http.MethodPost, "/api/quizzes", handlers.GenerateQuizRequest{Subject: "Geography"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c.login("hf_user_token")

	rec = c.do(http.MethodPost, "/api/quizzes", handlers.GenerateQuizRequest{Subject: "Geography", Difficulty: "easy"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "correct")
	assert.NotContains(t, rec.Body.String(), "reason")
	created := decode[models.QuizResponse](t, rec)
	require.Len(t, created.Questions, 2)
	assert.Equal(t, "What's the capital of France?", created.Questions[0].Question)
	assert.Equal(t, []models.Option{{Letter: "A", Text: "Amazon"}, {Letter: "B", Text: "Nile"}}, created.Questions[1].Options)
	assert.Equal(t, []string{"hf_user_token"}, f.model.tokens)
	assert.Equal(t, modelOutput, f.archiver.raw[created.ID])

	quizPath := "/api/quizzes/" + created.ID.String()

	rec = c.do(http.MethodPut, quizPath+"/answers", handlers.AnswerRequest{QuestionID: "1", Choice: "a"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPut, quizPath+"/answers", handlers.AnswerRequest{QuestionID: "2", Choice: "Z"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.do(http.MethodPut, quizPath+"/answers", handlers.AnswerRequest{QuestionID: "9", Choice: "A"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = c.do(http.MethodPut, quizPath+"/answers", handlers.AnswerRequest{QuestionID: "2", Choice: "Amazon"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, quizPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[models.QuizResponse](t, rec)
	assert.Equal(t, map[string]string{"1": "Paris", "2": "Amazon"}, current.Answers)

	rec = c.do(http.MethodPost, quizPath+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[models.SubmitResponse](t, rec)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "Question 1: Correct! Paris is France's capital.", result.Results[0].Message)
	assert.Equal(t, "Question 2: Incorrect. The correct answer is Nile. The Nile runs north through Egypt.", result.Results[1].Message)

	rec = c.do(http.MethodPost, quizPath+"/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = c.do(http.MethodPut, quizPath+"/answers", handlers.AnswerRequest{QuestionID: "2", Choice: "B"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodGet, "/api/attempts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attempts := decode[[]models.Attempt](t, rec)
	require.Len(t, attempts, 1)
	assert.Equal(t, created.ID, attempts[0].QuizID)
	assert.Equal(t, "Geography", attempts[0].Subject)

	rec = c.do(http.MethodPost, "/api/session/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s = decode[quiz.Session](t, rec)
	assert.Equal(t, quiz.ModeMake, s.Mode)
	assert.Nil(t, s.QuizID)
	assert.NotContains(t, rec.Body.String(), "quiz_id")

	// The same session can start another quiz.
	c.generate()
}

func TestGenerateWithNothingRecoverable(t *testing.T) {
	f := newFixture(t)
	f.model.response = "I'm sorry, I cannot help with that."
	c := f.client(t)
	c.login("")

	rec := c.do(http.MethodPost, "/api/quizzes", handlers.GenerateQuizRequest{Subject: "Geography"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please try again")
	assert.Len(t, f.model.tokens, 3)
	assert.Empty(t, f.store.quizzes)

	rec = c.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, quiz.ModeMake, decode[quiz.Session](t, rec).Mode)
}

func TestGenerateModelError(t *testing.T) {
	f := newFixture(t)
	f.model.err = errors.New("rate limited")
	c := f.client(t)
	c.login("hf_token")

	rec := c.do(http.MethodPost, "/api/quizzes", handlers.GenerateQuizRequest{Subject: "Geography"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limited")
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	c.login("hf_token")

	for _, body := range []any{
		`{"difficulty": "easy"}`,
		handlers.GenerateQuizRequest{Subject: "Geography", Difficulty: "impossible"},
		handlers.GenerateQuizRequest{Subject: "Geography", Count: 500},
		handlers.GenerateQuizRequest{Subject: "   "},
		`not json`,
	} {
		rec := c.do(http.MethodPost, "/api/quizzes", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%v", body)
	}
	assert.Empty(t, f.model.tokens)
}

func TestGenerateTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)
	c.login("hf_token")
	c.generate()

	rec := c.do(http.MethodPost, "/api/quizzes", handlers.GenerateQuizRequest{Subject: "History"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestQuizOfAnotherSessionIsHidden(t *testing.T) {
	f := newFixture(t)
	owner := f.client(t)
	owner.login("hf_owner")
	created := owner.generate()

	other := f.client(t)
	other.login("hf_other")
	rec := other.do(http.MethodGet, "/api/quizzes/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = other.do(http.MethodGet, "/api/quizzes/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = other.do(http.MethodGet, "/api/quizzes/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverEndpoint(t *testing.T) {
	f := newFixture(t)
	c := f.client(t)

	rec := c.do(http.MethodPost, "/api/recover", modelOutput)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Records   map[string]json.RawMessage `json:"records"`
		Keys      []string                   `json:"keys"`
		Dropped   int                        `json:"dropped"`
		Questions []quiz.Question            `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"1", "2"}, out.Keys)
	assert.Equal(t, 0, out.Dropped)
	assert.Len(t, out.Questions, 2)
	assert.Contains(t, string(out.Records["1"]), `"What's the capital of France?"`)

	rec = c.do(http.MethodPost, "/api/recover", "no records here")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"records": {}, "keys": [], "dropped": 0, "questions": []}`, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/recover", "{'1': {'a': 'b'}}, {'2': {'q': 'caf\xc3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"1"}, out.Keys)
	assert.Equal(t, 1, out.Dropped)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/quizzes", strings.NewReader(""))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
