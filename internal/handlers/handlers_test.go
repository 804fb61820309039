package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mockmate/interview/internal/calls"
	"mockmate/interview/internal/generator"
	"mockmate/interview/internal/interviews"
	"mockmate/interview/internal/ledger"
	"mockmate/interview/internal/llm"
	"mockmate/interview/internal/middleware"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/sessions"
	"mockmate/interview/internal/testhelpers"
)

const testSecret = "handler-test-secret"

// mockProvider replays queued responses, clamping at the last one.
type mockProvider struct {
	responses []string
	calls     int
}

func (m *mockProvider) GenerateContent(_ context.Context, _ llm.Request) (*llm.Response, error) {
	m.calls++
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return &llm.Response{Text: m.responses[idx], Model: "mock"}, nil
}

func (m *mockProvider) GetProviderName() string { return "mock" }

type mockPrompts struct{}

func (mockPrompts) BuildPrompt(mode, variant string, data map[string]string) (string, error) {
	return mode + "/" + variant, nil
}

func (mockPrompts) System(mode string) string { return "system:" + mode }

type fixture struct {
	builder *interviews.Builder
	manager *sessions.Manager
	minutes *ledger.Ledger
	router  *chi.Mux
}

const questionSet = `{
  "questions": [
    {"text": "Explain the Node.js event loop", "type": "TECHNICAL", "technology": "node.js"}
  ]
}`

func newFixture(t *testing.T, provider llm.Provider) *fixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	logger := zap.NewNop()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	builder := interviews.NewBuilder(
		db,
		generator.NewTechnologyNormalizer(provider, mockPrompts{}, logger),
		generator.NewQuestionGenerator(provider, mockPrompts{}, logger),
		provider,
		mockPrompts{},
		logger,
	)
	minutes := ledger.NewLedger(db)
	manager := sessions.NewManager(
		db,
		calls.NewFakeDialer(),
		sessions.NewHeartbeatStore(rdb, time.Minute),
		minutes,
		stubFeedback{},
		mockPrompts{},
		50,
		logger,
	)

	router := chi.NewRouter()
	interviewHandler := NewInterviewHandler(builder, logger)
	generateHandler := NewGenerateHandler(builder, logger)
	sessionHandler := NewSessionHandler(manager, logger)
	subscriptionHandler := NewSubscriptionHandler(minutes, logger)

	router.Route("/api/v1/interviews", func(r chi.Router) {
		r.Use(middleware.RequireAuth(testSecret))
		r.With(middleware.ValidateRequest[*models.GenerateInterviewRequest]()).Post("/generate", generateHandler.GenerateHandler)
		r.With(middleware.ValidateRequest[*models.CreateInterviewRequest]()).Post("/", interviewHandler.CreateHandler)
		r.Get("/", interviewHandler.ListHandler)
		r.Get("/{id}", interviewHandler.GetHandler)
		r.Post("/{id}/versions/{difficulty}", interviewHandler.VersionHandler)
	})
	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Use(middleware.RequireAuth(testSecret))
		r.With(middleware.ValidateRequest[*models.CreateSessionRequest]()).Post("/", sessionHandler.CreateHandler)
		r.Get("/{id}", sessionHandler.GetHandler)
		r.Get("/{id}/events", sessionHandler.EventsHandler)
		r.Get("/{id}/feedback", sessionHandler.FeedbackHandler)
		r.Post("/{id}/start", sessionHandler.StartHandler)
		r.With(middleware.ValidateRequest[*models.PauseSessionRequest]()).Post("/{id}/pause", sessionHandler.PauseHandler)
		r.Post("/{id}/complete", sessionHandler.CompleteHandler)
	})
	router.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Use(middleware.RequireAuth(testSecret))
		r.Get("/", subscriptionHandler.GetHandler)
		r.With(middleware.ValidateRequest[*models.MinutesRequest]()).Post("/minutes", subscriptionHandler.AddMinutesHandler)
		r.With(middleware.ValidateRequest[*models.MinutesRequest]()).Post("/deduct", subscriptionHandler.DeductMinutesHandler)
	})

	return &fixture{builder: builder, manager: manager, minutes: minutes, router: router}
}

type stubFeedback struct{}

func (stubFeedback) Generate(_ context.Context, session *models.Session) (*models.Feedback, error) {
	score := 7.0
	return &models.Feedback{SessionID: session.ID, Technical: &score}, nil
}

func token(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": userID, "exp": time.Now().Add(time.Hour).Unix()}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func (f *fixture) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateInterviewEndpoint(t *testing.T) {
	provider := &mockProvider{responses: []string{`["Node.js"]`, questionSet}}
	f := newFixture(t, provider)

	body := `{"title":"Backend Engineer","duration":60,"focus_areas":["technical"],"technologies":["node"],"is_public":true}`
	rec := f.do(t, http.MethodPost, "/api/v1/interviews/", "user-1", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.InterviewResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !result.Success || result.Interview == nil {
		t.Fatalf("expected successful result, got %+v", result)
	}
	if result.Interview.CreatorID != "user-1" {
		t.Errorf("creator should come from the token, got %q", result.Interview.CreatorID)
	}
	if len(result.Interview.Versions) != 1 || len(result.Interview.Versions[0].Questions) != 1 {
		t.Errorf("expected one generated question, got %+v", result.Interview.Versions)
	}
}

func TestCreateInterviewValidationError(t *testing.T) {
	f := newFixture(t, &mockProvider{responses: []string{`[]`}})

	rec := f.do(t, http.MethodPost, "/api/v1/interviews/", "user-1", `{"duration":60}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp models.ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Code != "missing_title" {
		t.Errorf("expected missing_title, got %s", resp.Code)
	}
}

func TestCreateInterviewRequiresAuth(t *testing.T) {
	f := newFixture(t, &mockProvider{responses: []string{`[]`}})

	rec := f.do(t, http.MethodPost, "/api/v1/interviews/", "", `{"title":"x"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGenerateEndpointContract(t *testing.T) {
	derived := "```json\n" + `{"title":"Go Engineer Interview","duration":30,"focusAreas":["TECHNICAL"],"technologies":["Go"],"questions":["Explain interfaces in Go."]}` + "\n```"
	provider := &mockProvider{responses: []string{derived, `["Go"]`}}
	f := newFixture(t, provider)

	body := `{"type":"generate","role":"Go Engineer","level":"beginner","techstack":"go","userid":"user-9"}`
	rec := f.do(t, http.MethodPost, "/api/v1/interviews/generate", "user-9", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.InterviewResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Interview == nil || result.Interview.CreatorID != "user-9" {
		t.Fatalf("expected interview owned by the caller, got %+v", result.Interview)
	}
}

func TestGenerateEndpointRequiresToken(t *testing.T) {
	f := newFixture(t, &mockProvider{responses: []string{`{}`}})

	body := `{"type":"generate","role":"x","level":"BEGINNER","techstack":"go","userid":"u"}`
	rec := f.do(t, http.MethodPost, "/api/v1/interviews/generate", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGenerateEndpointIgnoresSpoofedUserID(t *testing.T) {
	derived := "```json\n" + `{"title":"Go Engineer Interview","duration":30,"focusAreas":["TECHNICAL"],"technologies":["Go"],"questions":["Explain interfaces in Go."]}` + "\n```"
	provider := &mockProvider{responses: []string{derived, `["Go"]`}}
	f := newFixture(t, provider)

	body := `{"type":"generate","role":"Go Engineer","level":"beginner","techstack":"go","userid":"victim"}`
	rec := f.do(t, http.MethodPost, "/api/v1/interviews/generate", "attacker", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.InterviewResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Interview == nil || result.Interview.CreatorID != "attacker" {
		t.Fatalf("expected ownership from the token subject, got %+v", result.Interview)
	}
}

func TestGenerateEndpointRejectsUnknownType(t *testing.T) {
	f := newFixture(t, &mockProvider{responses: []string{`{}`}})

	body := `{"type":"transcribe","role":"x","level":"BEGINNER","techstack":"go","userid":"u"}`
	rec := f.do(t, http.MethodPost, "/api/v1/interviews/generate", "u", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateEndpointModelFailure(t *testing.T) {
	f := newFixture(t, &mockProvider{responses: []string{"no json at all"}})

	body := `{"type":"generate","role":"x","level":"BEGINNER","techstack":"go","userid":"u"}`
	rec := f.do(t, http.MethodPost, "/api/v1/interviews/generate", "u", body)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var result models.InterviewResult
	json.NewDecoder(rec.Body).Decode(&result)
	if result.Success {
		t.Error("expected success false on model failure")
	}
}

// seedSession creates an interview with a version and a planned session
// through the same services the endpoints use.
func (f *fixture) seedSession(t *testing.T, userID string) uint {
	t.Helper()
	req := &models.CreateInterviewRequest{
		Title:        "Backend Engineer",
		Duration:     30,
		FocusAreas:   []string{"TECHNICAL"},
		Technologies: []string{"node"},
		IsPublic:     true,
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("request should validate: %v", err)
	}
	interview, err := f.builder.Create(context.Background(), userID, req)
	if err != nil {
		t.Fatalf("failed to seed interview: %v", err)
	}
	session, err := f.manager.Create(context.Background(), userID, interview.Versions[0].ID)
	if err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return session.ID
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	provider := &mockProvider{responses: []string{`["Node.js"]`, questionSet}}
	f := newFixture(t, provider)
	if _, err := f.minutes.AddMinutes("user-1", 100); err != nil {
		t.Fatalf("failed to seed minutes: %v", err)
	}
	id := f.seedSession(t, "user-1")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/start", id), "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.SessionResult
	json.NewDecoder(rec.Body).Decode(&result)
	if result.Session.Status != models.SessionInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", result.Session.Status)
	}

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/pause", id), "user-1",
		`{"transcript":"INTERVIEWER: Hello.\n\nCANDIDATE: Hi."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/complete", id), "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	json.NewDecoder(rec.Body).Decode(&result)
	if result.Session.Status != models.SessionCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Session.Status)
	}

	// terminal sessions reject further transitions
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/start", id), "user-1", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("restart: expected 409, got %d", rec.Code)
	}
}

func TestStartWithoutMinutesReturns402(t *testing.T) {
	provider := &mockProvider{responses: []string{`["Node.js"]`, questionSet}}
	f := newFixture(t, provider)
	id := f.seedSession(t, "user-1")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%d/start", id), "user-1", "")
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSessionOwnershipEnforced(t *testing.T) {
	provider := &mockProvider{responses: []string{`["Node.js"]`, questionSet}}
	f := newFixture(t, provider)
	id := f.seedSession(t, "user-1")

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%d", id), "user-2", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t, &mockProvider{responses: []string{`[]`}})

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/999", "user-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestFeedbackNotFoundBeforeGeneration(t *testing.T) {
	provider := &mockProvider{responses: []string{`["Node.js"]`, questionSet}}
	f := newFixture(t, provider)
	id := f.seedSession(t, "user-1")

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%d/feedback", id), "user-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before feedback exists, got %d", rec.Code)
	}
}

func TestEventsWithoutActiveCall(t *testing.T) {
	provider := &mockProvider{responses: []string{`["Node.js"]`, questionSet}}
	f := newFixture(t, provider)
	id := f.seedSession(t, "user-1")

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%d/events", id), "user-1", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a session with no live call, got %d", rec.Code)
	}
}

func TestSubscriptionEndpoints(t *testing.T) {
	f := newFixture(t, &mockProvider{responses: []string{`[]`}})

	rec := f.do(t, http.MethodGet, "/api/v1/subscriptions/", "user-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before purchase, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/subscriptions/minutes", "user-1", `{"minutes":60}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/subscriptions/deduct", "user-1", `{"minutes":70}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 on overdraw, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/subscriptions/deduct", "user-1", `{"minutes":60}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/subscriptions/minutes", "user-1", `{"minutes":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on non-positive amount, got %d", rec.Code)
	}
}
