package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/comunizika/internal/curriculum"
	appI18n "github.com/pavelanni/comunizika/internal/i18n"
	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/progress"
	"github.com/pavelanni/comunizika/internal/store"
)

func testStage(name string) curriculum.StageFile {
	st := curriculum.StageFile{Name: name}
	for i := 0; i < 3; i++ {
		st.Activities = append(st.Activities,
			curriculum.ActivityFile{Name: fmt.Sprintf("%s %d", name, i), Questions: 2},
			curriculum.ActivityFile{Name: fmt.Sprintf("%s alt %d", name, i), Questions: 2, Alternative: true},
		)
	}
	return st
}

type testClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
	store  *store.Store
	lang   string
}

func testCurriculum() *curriculum.File {
	return &curriculum.File{Modules: []curriculum.ModuleFile{
		{Name: "Sons", Stages: []curriculum.StageFile{testStage("Animais"), testStage("Instrumentos")}},
		{Name: "Cores", Stages: []curriculum.StageFile{testStage("Primarias")}},
	}}
}

func newTestServer(t *testing.T) *testClient {
	t.Helper()
	c := newEmptyTestServer(t)
	require.NoError(t, c.store.ImportCurriculum(t.Context(), testCurriculum()))
	return c
}

// newEmptyTestServer starts a server whose store has no curriculum.
func newEmptyTestServer(t *testing.T) *testClient {
	t.Helper()
	require.NoError(t, appI18n.Init("en"))

	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	game, err := progress.New(s, s, model.GameConfig{SampleSize: 2, PassThreshold: 0.5})
	require.NoError(t, err)

	h := New(s, game, model.ServerConfig{Lang: "en"})
	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, server: srv, client: &http.Client{Jar: jar}, store: s}
}

func (c *testClient) csrfToken() string {
	u, _ := url.Parse(c.server.URL)
	for _, ck := range c.client.Jar.Cookies(u) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

// do sends a request and decodes the JSON response into out when out is not nil.
func (c *testClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.server.URL+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}
	if method != http.MethodGet {
		req.Header.Set(csrfHeaderName, c.csrfToken())
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// register fetches a CSRF token and creates a logged-in learner.
func (c *testClient) register(email string) model.Learner {
	c.t.Helper()
	require.Equal(c.t, http.StatusOK, c.do(http.MethodGet, "/api/curriculum", nil, nil))
	var l model.Learner
	status := c.do(http.MethodPost, "/api/auth/register", registerRequest{Email: email, Name: "Ana", Password: "segredo"}, &l)
	require.Equal(c.t, http.StatusCreated, status)
	return l
}

func (c *testClient) box() boxResponse {
	c.t.Helper()
	var b boxResponse
	require.Equal(c.t, http.StatusOK, c.do(http.MethodGet, "/api/box", nil, &b))
	return b
}

func answersFor(b boxResponse, v bool) [][]bool {
	out := make([][]bool, len(b.Activities))
	for i, a := range b.Activities {
		for j := 0; j < a.QuestionCount; j++ {
			out[i] = append(out[i], v)
		}
	}
	return out
}

func TestHealth(t *testing.T) {
	c := newTestServer(t)
	var body healthResponse
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/healthz", nil, &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "Comunizika", body.App)
	assert.ElementsMatch(t, []string{"en", "pt-BR"}, body.Languages)
}

func TestCurriculumOutline(t *testing.T) {
	c := newTestServer(t)
	var outline []model.ModuleOutline
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/curriculum", nil, &outline))
	require.Len(t, outline, 2)
	assert.Equal(t, "Sons", outline[0].Name)
	require.Len(t, outline[0].Stages, 2)
	assert.Equal(t, "Instrumentos", outline[0].Stages[1].Name)
}

func TestApproveAdvancesStage(t *testing.T) {
	c := newTestServer(t)
	l := c.register("ana@example.com")
	assert.Equal(t, "ana@example.com", l.Email)

	b := c.box()
	assert.Equal(t, 0, b.Attempt)
	assert.Equal(t, "Animais", b.Stage.Name)
	require.Len(t, b.Activities, 2)
	for _, a := range b.Activities {
		assert.False(t, a.Alternative)
		assert.Empty(t, a.Answers)
	}

	// A second read returns the same box.
	assert.Equal(t, b.ID, c.box().ID)

	var ev evaluateResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/box", evaluateRequest{Answers: answersFor(b, true)}, &ev))
	assert.Equal(t, model.OutcomeApproved, ev.Status)
	assert.Equal(t, 1.0, ev.Grade)
	assert.Equal(t, "Well done! The next stage is unlocked.", ev.Message)

	next := c.box()
	assert.Equal(t, "Instrumentos", next.Stage.Name)
	assert.Equal(t, "Sons", next.Module.Name)
	assert.NotEqual(t, b.ID, next.ID)

	var history []model.HistoryView
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/history", nil, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "Animais", history[0].Stage)
	assert.Equal(t, model.OutcomeApproved, history[0].Status)
	require.Len(t, history[0].Activities, 2)
	assert.Equal(t, []bool{true, true}, history[0].Activities[0].Answers)

	var me model.LearnerData
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/me", nil, &me))
	require.NotNil(t, me.Stage)
	assert.Equal(t, "Instrumentos", me.Stage.Name)
}

func TestReproveServesAlternativeBox(t *testing.T) {
	c := newTestServer(t)
	c.register("ana@example.com")
	b := c.box()

	var ev evaluateResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/box", evaluateRequest{Answers: answersFor(b, false)}, &ev))
	assert.Equal(t, model.OutcomeReproved, ev.Status)
	assert.Equal(t, 0.0, ev.Grade)
	assert.Equal(t, 0, ev.Attempt)

	retry := c.box()
	assert.Equal(t, 1, retry.Attempt)
	assert.Equal(t, "Animais", retry.Stage.Name)
	for _, a := range retry.Activities {
		assert.True(t, a.Alternative, "activity %q", a.Name)
	}

	// Restart resamples the box but keeps the reinforcement attempt.
	var restarted boxResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/box/restart", nil, &restarted))
	assert.Equal(t, 1, restarted.Attempt)
	assert.Equal(t, "Animais", restarted.Stage.Name)
	assert.NotEqual(t, retry.ID, restarted.ID)
	for _, a := range restarted.Activities {
		assert.True(t, a.Alternative, "activity %q", a.Name)
	}

	var history []model.HistoryView
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/history", nil, &history))
	assert.Len(t, history, 1)
}

func TestEvaluateShapeMismatch(t *testing.T) {
	c := newTestServer(t)
	c.register("ana@example.com")
	b := c.box()

	var body errorBody
	status := c.do(http.MethodPost, "/api/box", evaluateRequest{Answers: [][]bool{{true}}}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "ShapeMismatch", body.Name)
	assert.Equal(t, http.StatusBadRequest, body.StatusCode)
	assert.Equal(t, "Expected answers for 2 activities, got 1.", body.Message)
	assert.Equal(t, []fieldProblem{{Name: "answers", Problem: "missing"}}, body.Extra)

	// Nothing changed.
	assert.Equal(t, b.ID, c.box().ID)
	var history []model.HistoryView
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/history", nil, &history))
	assert.Empty(t, history)
}

func TestEvaluateInvalidAnswerLengthLocalized(t *testing.T) {
	c := newTestServer(t)
	c.register("ana@example.com")
	c.lang = "pt-BR,pt;q=0.9"
	b := c.box()

	answers := answersFor(b, true)
	answers[1] = append(answers[1], true)

	var body errorBody
	status := c.do(http.MethodPost, "/api/box", evaluateRequest{Answers: answers}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InvalidAnswerLength", body.Name)
	assert.Equal(t, "answers[1] tem 3 respostas, mas a atividade tem apenas 2 perguntas.", body.Message)
	assert.Equal(t, []fieldProblem{{Name: "answers[1]", Problem: "invalid"}}, body.Extra)
}

func TestEvaluateMalformedBody(t *testing.T) {
	c := newTestServer(t)
	c.register("ana@example.com")

	var body errorBody
	status := c.do(http.MethodPost, "/api/box", map[string]any{"answers": "yes"}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BadRequest", body.Name)
}

func TestCSRFRequired(t *testing.T) {
	c := newTestServer(t)
	c.register("ana@example.com")

	req, err := http.NewRequest(http.MethodPost, c.server.URL+"/api/box", bytes.NewReader([]byte(`{"answers":[]}`)))
	require.NoError(t, err)
	resp, err := c.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "CSRF", body.Name)
}

func TestRequiresLogin(t *testing.T) {
	c := newTestServer(t)

	for _, path := range []string{"/api/box", "/api/history", "/api/me"} {
		var body errorBody
		assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, path, nil, &body), path)
		assert.Equal(t, "Unauthorized", body.Name)
	}
}

func TestLoginLogout(t *testing.T) {
	c := newTestServer(t)
	c.register("ana@example.com")

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/api/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/api/box", nil, nil))

	var body errorBody
	status := c.do(http.MethodPost, "/api/auth/login", loginRequest{Email: "ana@example.com", Password: "wrong-password"}, &body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "InvalidCredentials", body.Name)

	var l model.Learner
	status = c.do(http.MethodPost, "/api/auth/login", loginRequest{Email: "ANA@example.com", Password: "segredo"}, &l)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ana", l.Name)
	assert.Equal(t, "Animais", c.box().Stage.Name)
}

func TestRegisterValidation(t *testing.T) {
	c := newTestServer(t)
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/curriculum", nil, nil))

	var body errorBody
	status := c.do(http.MethodPost, "/api/auth/register", registerRequest{Email: "not-an-email", Password: "123"}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BadRequest", body.Name)
	assert.ElementsMatch(t, []fieldProblem{
		{Name: "email", Problem: "invalid"},
		{Name: "name", Problem: "missing"},
		{Name: "password", Problem: "invalid"},
	}, body.Extra)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	c := newTestServer(t)
	c.register("ana@example.com")

	var body errorBody
	status := c.do(http.MethodPost, "/api/auth/register", registerRequest{Email: "ana@example.com", Name: "Ana", Password: "segredo"}, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "EmailTaken", body.Name)
}

func TestRegisterWithoutCurriculum(t *testing.T) {
	c := newEmptyTestServer(t)
	l := c.register("ana@example.com")
	assert.Equal(t, "ana@example.com", l.Email)

	// The session is live even though there is nothing to play yet.
	var body errorBody
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/box", nil, &body))
	assert.Equal(t, "PositionNotFound", body.Name)

	require.NoError(t, c.store.ImportCurriculum(t.Context(), testCurriculum()))
	b := c.box()
	assert.Equal(t, 0, b.Attempt)
	assert.Equal(t, "Animais", b.Stage.Name)

	// Logging in again works; registering again is the conflict.
	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/api/auth/logout", nil, nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/auth/login", loginRequest{Email: "ana@example.com", Password: "segredo"}, nil))
}

func TestWriteErrorDuplicateActivity(t *testing.T) {
	require.NoError(t, appI18n.Init("en"))
	req := httptest.NewRequest(http.MethodGet, "/api/box", nil)
	rec := httptest.NewRecorder()

	writeError(rec, req, &progress.Error{
		Kind:    progress.ErrDuplicateActivity,
		Op:      "Build",
		Field:   "activities",
		Problem: progress.ProblemDuplicate,
		Actual:  17,
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "DuplicateActivity", body.Name)
	assert.Equal(t, "Activity 17 was drawn twice for the same box. Please try again.", body.Message)
	assert.Equal(t, []fieldProblem{{Name: "activities", Problem: "duplicate"}}, body.Extra)
}
