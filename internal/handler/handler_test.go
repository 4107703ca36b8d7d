package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/handgame-backend/internal/game"
	"github.com/stemsi/handgame-backend/internal/model"
	"github.com/stemsi/handgame-backend/internal/response"
	"github.com/stemsi/handgame-backend/internal/service"
	"github.com/stemsi/handgame-backend/internal/validator"
	ws "github.com/stemsi/handgame-backend/internal/websocket"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

// ─── Fakes ──────────────────────────────────────────────────────────────────

type stubRiddles struct{}

func (stubRiddles) FetchQuestionList(context.Context, model.Difficulty, int) ([]model.Riddle, error) {
	return []model.Riddle{{ID: 1, PromptText: "바나나", TotalSteps: 1}}, nil
}

func (stubRiddles) FetchStepPrompt(_ context.Context, riddleID, step int) (model.StepPrompt, error) {
	return model.StepPrompt{RiddleID: riddleID, Step: step, Guide: "/images/banana_1.png"}, nil
}

func (stubRiddles) FetchWordVideo(_ context.Context, text string) (model.WordVideo, error) {
	if text == "없음" {
		return model.WordVideo{}, fmt.Errorf("%w: 404", game.ErrTransport)
	}
	return model.WordVideo{Text: text, URL: "https://videos.example.com/" + text}, nil
}

type stubJudge struct{}

func (stubJudge) SubmitCapture(context.Context, model.CaptureArtifact) (bool, error) {
	return true, nil
}

type fakeResultRepo struct {
	results []*model.GameResult
	lastQ   model.ListResultsQuery
	err     error
}

func (f *fakeResultRepo) Insert(context.Context, *model.GameResult) error { return nil }

func (f *fakeResultRepo) InsertBatch(context.Context, []*model.GameResult) error { return nil }

func (f *fakeResultRepo) List(_ context.Context, q model.ListResultsQuery) ([]*model.GameResult, int, error) {
	f.lastQ = q
	return f.results, len(f.results), f.err
}

// ─── Harness ────────────────────────────────────────────────────────────────

func newTestServer(t *testing.T, repo *fakeResultRepo) (*gin.Engine, *service.SessionService) {
	t.Helper()
	svc := service.NewSessionService(stubRiddles{}, stubRiddles{}, stubJudge{}, nil, nil, service.SessionOptions{
		Game: game.Options{
			TotalQuestion:     1,
			CountdownDuration: time.Millisecond,
			CelebrationWindow: time.Millisecond,
			RequestTimeout:    time.Second,
		},
	}, zerolog.Nop())
	t.Cleanup(svc.Shutdown)

	sessions := NewSessionHandler(svc)
	words := NewWordHandler(svc)
	results := NewResultHandler(repo, zerolog.Nop())
	stream := NewWSHandler(svc, 1024, zerolog.Nop(), nil)
	system := NewSystemHandler(nil, nil, svc, zerolog.Nop())

	r := gin.New()
	r.GET("/health", system.Health)
	api := r.Group("/api/v1")
	api.POST("/sessions", sessions.Create)
	api.GET("/sessions/:session_id", sessions.Get)
	api.POST("/sessions/:session_id/restart", sessions.Restart)
	api.DELETE("/sessions/:session_id", sessions.Quit)
	api.GET("/words/video", words.Video)
	api.GET("/results", results.List)
	r.GET("/ws/v1/sessions/:session_id/stream", stream.SessionStream)
	return r, svc
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func createSession(t *testing.T, r http.Handler) uuid.UUID {
	t.Helper()
	w := doJSON(r, http.MethodPost, "/api/v1/sessions", map[string]string{"difficulty": "easy"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		SessionID uuid.UUID      `json:"session_id"`
		Session   model.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, model.DifficultyEasy, data.Session.Difficulty)
	return data.SessionID
}

// ─── REST ───────────────────────────────────────────────────────────────────

func TestSessionHandler_Lifecycle(t *testing.T) {
	r, svc := newTestServer(t, &fakeResultRepo{})
	id := createSession(t, r)

	w := doJSON(r, http.MethodGet, "/api/v1/sessions/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/api/v1/sessions/"+id.String()+"/restart", map[string]string{"difficulty": "hard"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Session model.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, model.DifficultyHard, data.Session.Difficulty)

	w = doJSON(r, http.MethodDelete, "/api/v1/sessions/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Eventually(t, func() bool { return svc.Count() == 0 }, time.Second, time.Millisecond)
	w = doJSON(r, http.MethodGet, "/api/v1/sessions/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrSessionNotFound, decode(t, w).Error.Code)
}

func TestSessionHandler_Validation(t *testing.T) {
	r, _ := newTestServer(t, &fakeResultRepo{})

	w := doJSON(r, http.MethodPost, "/api/v1/sessions", map[string]string{"difficulty": "extreme"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "difficulty")

	w = doJSON(r, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, decode(t, w).Error.Code)
}

func TestWordHandler_Video(t *testing.T) {
	r, _ := newTestServer(t, &fakeResultRepo{})

	w := doJSON(r, http.MethodGet, "/api/v1/words/video?text=금연", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Video model.WordVideo `json:"video"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, "https://videos.example.com/금연", data.Video.URL)

	w = doJSON(r, http.MethodGet, "/api/v1/words/video?text=없음", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, response.ErrUpstream, decode(t, w).Error.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/words/video", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResultHandler_List(t *testing.T) {
	repo := &fakeResultRepo{results: []*model.GameResult{{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		Difficulty: model.DifficultyEasy,
		Summary:    model.Summary{CorrectedAnswerCount: 2, TotalQuestion: 3, SkipCount: 1, Outcomes: []bool{true, false, true}},
	}}}
	r, _ := newTestServer(t, repo)

	w := doJSON(r, http.MethodGet, "/api/v1/results?difficulty=easy", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalItems)
	assert.Equal(t, 1, repo.lastQ.Page)
	assert.Equal(t, 20, repo.lastQ.PerPage)
	assert.Equal(t, "easy", repo.lastQ.Difficulty)

	w = doJSON(r, http.MethodGet, "/api/v1/results?per_page=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	repo.err = errors.New("db down")
	w = doJSON(r, http.MethodGet, "/api/v1/results", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSystemHandler_Health(t *testing.T) {
	r, _ := newTestServer(t, &fakeResultRepo{})

	w := doJSON(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Status       string `json:"status"`
		LiveSessions int    `json:"live_sessions"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, "ok", data.Status)
	assert.Zero(t, data.LiveSessions)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
		{service.ErrSessionAttached, http.StatusConflict, response.ErrSessionAttached},
		{game.ErrSessionClosed, http.StatusGone, response.ErrSessionClosed},
		{game.ErrBusy, http.StatusConflict, response.ErrBusy},
		{fmt.Errorf("fetch list: %w", game.ErrTransport), http.StatusBadGateway, response.ErrUpstream},
		{ws.ErrFrameTooLarge, http.StatusRequestEntityTooLarge, response.ErrFrameTooLarge},
		{errors.New("boom"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

// ─── WebSocket ──────────────────────────────────────────────────────────────

type wireMessage struct {
	Event   ws.Event        `json:"event"`
	Code    string          `json:"code"`
	Session *model.Snapshot `json:"session"`
	Summary *model.Summary  `json:"summary"`
}

func dialStream(t *testing.T, srv *httptest.Server, id uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/sessions/" + id.String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one has the wanted event.
func readUntil(t *testing.T, conn *websocket.Conn, event ws.Event) wireMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg wireMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Event == event {
			return msg
		}
	}
}

// readUntilPhase reads state messages until the session reaches phase.
func readUntilPhase(t *testing.T, conn *websocket.Conn, phase model.Phase) model.Snapshot {
	t.Helper()
	for {
		msg := readUntil(t, conn, ws.EventState)
		if msg.Session != nil && msg.Session.Phase == phase {
			return *msg.Session
		}
	}
}

func TestWSHandler_PlaysSessionToFinish(t *testing.T) {
	r, _ := newTestServer(t, &fakeResultRepo{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	id := createSession(t, r)
	conn := dialStream(t, srv, id)

	ready := readUntilPhase(t, conn, model.PhaseReady)
	assert.Equal(t, id, ready.SessionID)

	require.NoError(t, conn.WriteJSON(ws.Request{Action: ws.ActionPing}))
	readUntil(t, conn, ws.EventPong)

	require.NoError(t, conn.WriteJSON(ws.Request{
		Action: ws.ActionFrame,
		Image:  "data:image/jpeg;base64,/9j/2Q==",
	}))
	require.NoError(t, conn.WriteJSON(ws.Request{Action: ws.ActionCapture}))
	readUntil(t, conn, ws.EventConfirm)

	require.NoError(t, conn.WriteJSON(ws.Request{Action: ws.ActionConfirm}))
	finished := readUntil(t, conn, ws.EventFinished)
	require.NotNil(t, finished.Summary)
	assert.Equal(t, []bool{true}, finished.Summary.Outcomes)
	assert.Equal(t, 1, finished.Summary.CorrectedAnswerCount)
}

func TestWSHandler_RejectsBadInput(t *testing.T) {
	r, _ := newTestServer(t, &fakeResultRepo{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	id := createSession(t, r)
	conn := dialStream(t, srv, id)
	readUntil(t, conn, ws.EventState)

	require.NoError(t, conn.WriteJSON(ws.Request{Action: "dance"}))
	assert.Equal(t, string(response.ErrInvalidAction), readUntil(t, conn, ws.EventError).Code)

	require.NoError(t, conn.WriteJSON(ws.Request{Action: ws.ActionFrame, Image: "not a data url"}))
	assert.Equal(t, string(response.ErrInvalidPayload), readUntil(t, conn, ws.EventError).Code)

	require.NoError(t, conn.WriteJSON(ws.Request{Action: ws.ActionConfirm}))
	assert.Equal(t, string(response.ErrInvalidPhase), readUntil(t, conn, ws.EventError).Code)

	require.NoError(t, conn.WriteJSON(ws.Request{Action: ws.ActionStart, Difficulty: "extreme"}))
	assert.Equal(t, string(response.ErrValidation), readUntil(t, conn, ws.EventError).Code)
}

func TestWSHandler_OversizedMessageClosesStream(t *testing.T) {
	r, _ := newTestServer(t, &fakeResultRepo{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	id := createSession(t, r)
	conn := dialStream(t, srv, id)
	readUntil(t, conn, ws.EventState)

	huge := "data:image/jpeg;base64," + strings.Repeat("A", 64<<10)
	_ = conn.WriteJSON(ws.Request{Action: ws.ActionFrame, Image: huge})

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
}

func TestWSHandler_SecondStreamConflicts(t *testing.T) {
	r, _ := newTestServer(t, &fakeResultRepo{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	id := createSession(t, r)
	conn := dialStream(t, srv, id)
	readUntil(t, conn, ws.EventState)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/sessions/" + id.String() + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/v1/sessions/"+uuid.NewString()+"/stream", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
