package sessions

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mockmate/interview/internal/calls"
	"mockmate/interview/internal/ledger"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/testhelpers"
)

// setupTestRedis creates a miniredis instance and a redis client for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

type fakeFeedback struct {
	calls atomic.Int64
	err   error
}

func (f *fakeFeedback) Generate(ctx context.Context, session *models.Session) (*models.Feedback, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	score := 80.0
	return &models.Feedback{
		SessionID: session.ID,
		Technical: &score,
		Summary:   "solid attempt",
	}, nil
}

type fakePrompts struct{}

func (fakePrompts) BuildPrompt(mode, variant string, data map[string]string) (string, error) {
	return "prompt:" + mode + ":" + variant, nil
}

func (fakePrompts) System(mode string) string { return "persona" }

type fixture struct {
	db       *gorm.DB
	manager  *Manager
	dialer   *calls.FakeDialer
	feedback *fakeFeedback
	minutes  *ledger.Ledger
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T, threshold float64) *fixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	mr, rdb := setupTestRedis(t)

	dialer := calls.NewFakeDialer()
	fb := &fakeFeedback{}
	minutes := ledger.NewLedger(db)

	manager := NewManager(
		db,
		dialer,
		NewHeartbeatStore(rdb, time.Minute),
		minutes,
		fb,
		fakePrompts{},
		threshold,
		zap.NewNop(),
	)
	return &fixture{db: db, manager: manager, dialer: dialer, feedback: fb, minutes: minutes, redis: mr}
}

// seedVersion creates an interview with one version and two questions.
func (f *fixture) seedVersion(t *testing.T) *models.InterviewVersion {
	t.Helper()

	tech := models.Technology{Name: "Node.js"}
	require.NoError(t, f.db.Create(&tech).Error)

	interview := models.Interview{
		Title:        "Backend Engineer",
		Duration:     30,
		FocusAreas:   models.JoinList([]string{models.FocusTechnical}),
		IsPublic:     true,
		CreatorID:    "creator-1",
		Technologies: []models.Technology{tech},
	}
	require.NoError(t, f.db.Create(&interview).Error)

	version := models.InterviewVersion{
		InterviewID: interview.ID,
		Difficulty:  models.DifficultyBeginner,
		Questions: []models.Question{
			{Text: "What is a goroutine?", Type: models.QuestionTechnical},
			{Text: "Explain channels", Type: models.QuestionTechnical},
		},
	}
	require.NoError(t, f.db.Create(&version).Error)
	return &version
}

func (f *fixture) startedSession(t *testing.T) *models.Session {
	t.Helper()
	version := f.seedVersion(t)
	_, err := f.minutes.AddMinutes("user-1", 100)
	require.NoError(t, err)

	session, err := f.manager.Create(context.Background(), "user-1", version.ID)
	require.NoError(t, err)
	session, err = f.manager.Start(context.Background(), session.ID)
	require.NoError(t, err)
	return session
}

func TestCreateCopiesInterviewMetadata(t *testing.T) {
	f := newFixture(t, 50)
	version := f.seedVersion(t)

	session, err := f.manager.Create(context.Background(), "user-1", version.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SessionPlanned, session.Status)
	assert.Equal(t, 30, session.Duration)
	assert.Equal(t, models.DifficultyBeginner, session.Difficulty)
	assert.Equal(t, []string{models.FocusTechnical}, session.FocusAreaList())
	assert.Equal(t, []string{"Node.js"}, session.TechnologyList())
}

func TestCreateUnknownVersion(t *testing.T) {
	f := newFixture(t, 50)
	_, err := f.manager.Create(context.Background(), "user-1", 999)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestStartTransitionsAndDials(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	assert.Equal(t, models.SessionInProgress, session.Status)
	require.NotNil(t, session.StartedAt)

	client := f.dialer.Client(session.ID)
	require.NotNil(t, client)
	assert.True(t, client.Started())
	assert.Contains(t, client.Vars["questions"], "What is a goroutine?")
	_, hasPrev := client.Vars["previousTranscript"]
	assert.False(t, hasPrev)

	assert.True(t, f.redis.Exists("session:1:heartbeat"))
}

func TestStartWithoutMinutes(t *testing.T) {
	f := newFixture(t, 50)
	version := f.seedVersion(t)

	session, err := f.manager.Create(context.Background(), "broke-user", version.ID)
	require.NoError(t, err)

	_, err = f.manager.Start(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrInsufficientMinutes)
}

func TestStartTwiceRejected(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	_, err := f.manager.Start(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestPausePersistsTranscriptThenStopsCall(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	paused, err := f.manager.Pause(context.Background(), session.ID, "INTERVIEWER: hello\n\nCANDIDATE: hi")
	require.NoError(t, err)

	assert.Equal(t, models.SessionPaused, paused.Status)
	assert.True(t, f.dialer.Client(session.ID).Stopped())

	var stored models.Session
	require.NoError(t, f.db.First(&stored, session.ID).Error)
	assert.Equal(t, "INTERVIEWER: hello\n\nCANDIDATE: hi", stored.Transcript)
	assert.Equal(t, models.SessionPaused, stored.Status)
}

func TestPauseFromPausedRejected(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	_, err := f.manager.Pause(context.Background(), session.ID, "T: a")
	require.NoError(t, err)
	_, err = f.manager.Pause(context.Background(), session.ID, "T: b")
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestResumeInjectsTranscriptAndKeepsElapsed(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	// simulate a minute of talking before the pause
	require.NoError(t, f.db.Model(&models.Session{}).Where("id = ?", session.ID).
		Update("started_at", time.Now().Add(-time.Minute)).Error)

	paused, err := f.manager.Pause(context.Background(), session.ID, "INTERVIEWER: where were we")
	require.NoError(t, err)
	elapsedAtPause := paused.ElapsedSeconds
	assert.GreaterOrEqual(t, elapsedAtPause, 60)

	resumed, err := f.manager.Resume(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SessionInProgress, resumed.Status)
	assert.GreaterOrEqual(t, resumed.ElapsedSeconds, elapsedAtPause)

	client := f.dialer.Client(session.ID)
	assert.Equal(t, "INTERVIEWER: where were we", client.Vars["previousTranscript"])
}

func TestResumeFromRunningRejected(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	_, err := f.manager.Resume(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestCompleteGeneratesFeedbackOnce(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	completed, err := f.manager.Complete(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SessionCompleted, completed.Status)
	require.NotNil(t, completed.EndedAt)
	require.NotNil(t, completed.OverallScore)
	assert.Equal(t, int64(1), f.feedback.calls.Load())
	assert.True(t, f.dialer.Client(session.ID).Stopped())

	// second completion is rejected and must not double-create feedback
	_, err = f.manager.Complete(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
	assert.Equal(t, int64(1), f.feedback.calls.Load())
}

func TestCompleteFromPaused(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	_, err := f.manager.Pause(context.Background(), session.ID, "T: partial")
	require.NoError(t, err)

	completed, err := f.manager.Complete(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, completed.Status)
}

func TestCompleteDeductsActualDuration(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	// ran for ~10 minutes
	require.NoError(t, f.db.Model(&models.Session{}).Where("id = ?", session.ID).
		Update("started_at", time.Now().Add(-10*time.Minute)).Error)

	completed, err := f.manager.Complete(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, completed.ActualDuration)

	sub, err := f.minutes.Get("user-1")
	require.NoError(t, err)
	assert.Equal(t, 90, sub.AvailableMinutes)
}

func TestHandleIncompleteAboveThreshold(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	// 20 of 30 minutes elapsed: 66% >= 50%
	require.NoError(t, f.db.Model(&models.Session{}).Where("id = ?", session.ID).
		Update("started_at", time.Now().Add(-20*time.Minute)).Error)

	got, err := f.manager.HandleIncomplete(context.Background(), session.ID, "CANDIDATE: partial answer")
	require.NoError(t, err)

	assert.Equal(t, models.SessionCompleted, got.Status)
	assert.Equal(t, int64(1), f.feedback.calls.Load())
	require.NotNil(t, got.Feedback)
}

func TestHandleIncompleteBelowThreshold(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	// 5 of 30 minutes elapsed: 16% < 50%
	require.NoError(t, f.db.Model(&models.Session{}).Where("id = ?", session.ID).
		Update("started_at", time.Now().Add(-5*time.Minute)).Error)

	got, err := f.manager.HandleIncomplete(context.Background(), session.ID, "")
	require.NoError(t, err)

	assert.Equal(t, models.SessionAbandoned, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.Equal(t, int64(0), f.feedback.calls.Load())

	// terminal: nothing can transition an abandoned session
	_, err = f.manager.Complete(context.Background(), got.ID)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
	_, err = f.manager.Resume(context.Background(), got.ID)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestHandleIncompleteFromPlannedRejected(t *testing.T) {
	f := newFixture(t, 50)
	version := f.seedVersion(t)
	session, err := f.manager.Create(context.Background(), "user-1", version.ID)
	require.NoError(t, err)

	_, err = f.manager.HandleIncomplete(context.Background(), session.ID, "")
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestHeartbeatOnlyWhileRunning(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	require.NoError(t, f.manager.Heartbeat(context.Background(), session.ID))

	_, err := f.manager.Pause(context.Background(), session.ID, "T: a")
	require.NoError(t, err)
	err = f.manager.Heartbeat(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestSubscribeReceivesCallEvents(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	events, err := f.manager.Subscribe(session.ID)
	require.NoError(t, err)

	f.dialer.Client(session.ID).Emit(calls.Event{
		Kind:    calls.EventMessage,
		Role:    "interviewer",
		Content: "Welcome!",
	})

	select {
	case event := <-events:
		assert.Equal(t, calls.EventMessage, event.Kind)
		assert.Equal(t, "Welcome!", event.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}
}

func TestUnsubscribeDetachesOnlyThatSubscriber(t *testing.T) {
	f := newFixture(t, 50)
	session := f.startedSession(t)

	gone, err := f.manager.Subscribe(session.ID)
	require.NoError(t, err)
	kept, err := f.manager.Subscribe(session.ID)
	require.NoError(t, err)

	f.manager.Unsubscribe(session.ID, gone)

	f.dialer.Client(session.ID).Emit(calls.Event{
		Kind:    calls.EventMessage,
		Role:    "interviewer",
		Content: "Still with me?",
	})

	// the kept subscriber receiving proves the pump handled the event
	select {
	case event := <-kept:
		assert.Equal(t, "Still with me?", event.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}
	select {
	case event := <-gone:
		t.Fatalf("detached subscriber should receive nothing, got %+v", event)
	default:
	}
}

func TestSubscribeWithoutActiveCall(t *testing.T) {
	f := newFixture(t, 50)
	_, err := f.manager.Subscribe(42)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
