// Package sessions governs a user's attempt at an interview version:
// PLANNED -> IN_PROGRESS <-> PAUSED -> COMPLETED, with ABANDONED as the
// terminal state for attempts that died below the completeness threshold.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"mockmate/interview/internal/calls"
	"mockmate/interview/internal/ledger"
	"mockmate/interview/internal/metrics"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/prompts"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrVersionNotFound      = errors.New("interview version not found")
	ErrInvalidSessionState  = errors.New("invalid session state for transition")
	ErrInsufficientMinutes  = errors.New("insufficient practice minutes")
	ErrFeedbackNotGenerated = errors.New("feedback generation failed")
)

// FeedbackGenerator is implemented by the feedback package; the
// lifecycle only needs the trigger.
type FeedbackGenerator interface {
	Generate(ctx context.Context, session *models.Session) (*models.Feedback, error)
}

// Manager owns all session state transitions. Transitions attempted from
// a disallowed source state fail with ErrInvalidSessionState rather than
// silently succeeding.
type Manager struct {
	db         *gorm.DB
	dialer     calls.Dialer
	heartbeats *HeartbeatStore
	minutes    *ledger.Ledger
	feedback   FeedbackGenerator
	prompts    prompts.PromptProvider
	logger     *zap.Logger

	// completionThreshold is the percentage of the allotted duration an
	// unexpectedly terminated session must have reached to still count
	// as complete enough to score.
	completionThreshold float64

	mu          sync.Mutex
	active      map[uint]calls.Client
	subscribers map[uint][]chan calls.Event
}

func NewManager(
	db *gorm.DB,
	dialer calls.Dialer,
	heartbeats *HeartbeatStore,
	minutes *ledger.Ledger,
	feedback FeedbackGenerator,
	promptManager prompts.PromptProvider,
	completionThreshold float64,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		db:                  db,
		dialer:              dialer,
		heartbeats:          heartbeats,
		minutes:             minutes,
		feedback:            feedback,
		prompts:             promptManager,
		logger:              logger,
		completionThreshold: completionThreshold,
		active:              make(map[uint]calls.Client),
		subscribers:         make(map[uint][]chan calls.Event),
	}
}

// Create instantiates a PLANNED session, copying duration, difficulty,
// focus areas and technologies off the parent so later session queries
// never need the interview.
func (m *Manager) Create(ctx context.Context, userID string, versionID uint) (*models.Session, error) {
	var version models.InterviewVersion
	err := m.db.WithContext(ctx).Preload("Questions").First(&version, versionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}

	var interview models.Interview
	if err := m.db.WithContext(ctx).Preload("Technologies").First(&interview, version.InterviewID).Error; err != nil {
		return nil, err
	}

	techNames := make([]string, 0, len(interview.Technologies))
	for _, tech := range interview.Technologies {
		techNames = append(techNames, tech.Name)
	}

	session := &models.Session{
		UserID:       userID,
		VersionID:    version.ID,
		Status:       models.SessionPlanned,
		Duration:     interview.Duration,
		Difficulty:   version.Difficulty,
		FocusAreas:   interview.FocusAreas,
		Technologies: models.JoinList(techNames),
	}
	if err := m.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}

	m.logger.Info("session created",
		zap.Uint("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("difficulty", session.Difficulty))
	return session, nil
}

// Get loads a session with its feedback, if any.
func (m *Manager) Get(ctx context.Context, sessionID uint) (*models.Session, error) {
	var session models.Session
	err := m.db.WithContext(ctx).Preload("Feedback").Preload("Feedback.TechnologyScores").First(&session, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Start moves a PLANNED session to IN_PROGRESS and establishes the live
// call. Starting an already-active session is rejected, not a no-op.
func (m *Manager) Start(ctx context.Context, sessionID uint) (*models.Session, error) {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionPlanned {
		return nil, fmt.Errorf("%w: cannot start from %s", ErrInvalidSessionState, session.Status)
	}

	ok, err := m.minutes.CheckAvailableMinutes(session.UserID, session.Duration)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientMinutes
	}

	if err := m.establishCall(ctx, session, ""); err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     models.SessionInProgress,
		"started_at": now,
	}
	if err := m.db.WithContext(ctx).Model(session).Updates(updates).Error; err != nil {
		m.teardownCall(ctx, sessionID)
		return nil, err
	}
	session.Status = models.SessionInProgress
	session.StartedAt = &now

	if err := m.heartbeats.Beat(ctx, sessionID); err != nil {
		m.logger.Warn("failed to record heartbeat", zap.Uint("session_id", sessionID), zap.Error(err))
	}

	m.logger.Info("session started", zap.Uint("session_id", sessionID))
	return session, nil
}

// Pause persists the caller-supplied transcript and the accumulated
// elapsed time, flips the status, and only then tears the live call
// down. Transcript and status commit in one transaction so a crash never
// leaves a PAUSED session with a stale transcript.
func (m *Manager) Pause(ctx context.Context, sessionID uint, transcriptText string) (*models.Session, error) {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionInProgress {
		return nil, fmt.Errorf("%w: cannot pause from %s", ErrInvalidSessionState, session.Status)
	}

	now := time.Now()
	elapsed := session.ElapsedSeconds
	if session.StartedAt != nil {
		elapsed += int(now.Sub(*session.StartedAt).Seconds())
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(session).Update("transcript", transcriptText).Error; err != nil {
			return err
		}
		return tx.Model(session).Updates(map[string]interface{}{
			"status":          models.SessionPaused,
			"elapsed_seconds": elapsed,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	session.Status = models.SessionPaused
	session.Transcript = transcriptText
	session.ElapsedSeconds = elapsed

	// live connection goes down only after the transition is durable
	m.teardownCall(ctx, sessionID)
	if err := m.heartbeats.Clear(ctx, sessionID); err != nil {
		m.logger.Warn("failed to clear heartbeat", zap.Uint("session_id", sessionID), zap.Error(err))
	}

	m.logger.Info("session paused",
		zap.Uint("session_id", sessionID),
		zap.Int("elapsed_seconds", elapsed))
	return session, nil
}

// Resume reloads the persisted transcript and re-establishes the call
// with it injected as conversational context, so the interviewer
// continues rather than restarts. Elapsed time keeps accumulating from
// where the pause left it.
func (m *Manager) Resume(ctx context.Context, sessionID uint) (*models.Session, error) {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionPaused {
		return nil, fmt.Errorf("%w: cannot resume from %s", ErrInvalidSessionState, session.Status)
	}

	if err := m.establishCall(ctx, session, session.Transcript); err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     models.SessionInProgress,
		"started_at": now,
	}
	if err := m.db.WithContext(ctx).Model(session).Updates(updates).Error; err != nil {
		m.teardownCall(ctx, sessionID)
		return nil, err
	}
	session.Status = models.SessionInProgress
	session.StartedAt = &now

	if err := m.heartbeats.Beat(ctx, sessionID); err != nil {
		m.logger.Warn("failed to record heartbeat", zap.Uint("session_id", sessionID), zap.Error(err))
	}

	m.logger.Info("session resumed", zap.Uint("session_id", sessionID))
	return session, nil
}

// Complete is the explicit, normal end of a session. The status commits
// first; feedback generation runs after and its failure is surfaced, not
// hidden, while the session stays COMPLETED.
func (m *Manager) Complete(ctx context.Context, sessionID uint) (*models.Session, error) {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionInProgress && session.Status != models.SessionPaused {
		return nil, fmt.Errorf("%w: cannot complete from %s", ErrInvalidSessionState, session.Status)
	}

	if err := m.finalize(ctx, session, models.SessionCompleted); err != nil {
		return nil, err
	}
	metrics.SessionsCompleted.Inc()

	if err := m.generateFeedback(ctx, session); err != nil {
		return session, fmt.Errorf("%w: %v", ErrFeedbackNotGenerated, err)
	}
	return session, nil
}

// HandleIncomplete deals with an unexpected termination: network drop,
// error, or the user leaving without pausing. At or above the
// completeness threshold the attempt still counts and is scored from the
// available transcript; below it the session is marked ABANDONED and
// never owns feedback.
func (m *Manager) HandleIncomplete(ctx context.Context, sessionID uint, transcriptText string) (*models.Session, error) {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionInProgress {
		return nil, fmt.Errorf("%w: cannot handle incomplete from %s", ErrInvalidSessionState, session.Status)
	}

	if transcriptText != "" {
		if err := m.db.WithContext(ctx).Model(session).Update("transcript", transcriptText).Error; err != nil {
			return nil, err
		}
		session.Transcript = transcriptText
	}

	now := time.Now()
	elapsedMinutes := session.ElapsedAt(now).Minutes()
	completionPercentage := elapsedMinutes / float64(session.Duration) * 100

	if completionPercentage >= m.completionThreshold {
		if err := m.finalize(ctx, session, models.SessionCompleted); err != nil {
			return nil, err
		}
		metrics.SessionsCompleted.Inc()
		m.logger.Info("incomplete session accepted as complete",
			zap.Uint("session_id", sessionID),
			zap.Float64("completion_pct", completionPercentage))

		if err := m.generateFeedback(ctx, session); err != nil {
			return session, fmt.Errorf("%w: %v", ErrFeedbackNotGenerated, err)
		}
		return session, nil
	}

	if err := m.finalize(ctx, session, models.SessionAbandoned); err != nil {
		return nil, err
	}
	metrics.SessionsAbandoned.Inc()
	m.logger.Info("session abandoned below completeness threshold",
		zap.Uint("session_id", sessionID),
		zap.Float64("completion_pct", completionPercentage),
		zap.Float64("threshold", m.completionThreshold))
	return session, nil
}

// Heartbeat refreshes liveness for a running session.
func (m *Manager) Heartbeat(ctx context.Context, sessionID uint) error {
	session, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != models.SessionInProgress {
		return fmt.Errorf("%w: cannot heartbeat from %s", ErrInvalidSessionState, session.Status)
	}
	return m.heartbeats.Beat(ctx, sessionID)
}

// Subscribe returns a channel of the session's live-call events. The
// channel closes when the call ends or the session terminates.
func (m *Manager) Subscribe(sessionID uint) (<-chan calls.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	ch := make(chan calls.Event, 16)
	m.subscribers[sessionID] = append(m.subscribers[sessionID], ch)
	return ch, nil
}

// Unsubscribe detaches a subscriber before the call ends, so a client
// that disconnects mid-call stops receiving fan-out. The channel is
// left open; only the event pump closes channels it still holds.
func (m *Manager) Unsubscribe(sessionID uint, events <-chan calls.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[sessionID]
	for i, ch := range subs {
		if (<-chan calls.Event)(ch) == events {
			m.subscribers[sessionID] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// finalize records the terminal bookkeeping shared by completion and
// abandonment: endedAt, rounded actual duration, terminal status, call
// teardown and minutes consumption.
func (m *Manager) finalize(ctx context.Context, session *models.Session, status string) error {
	now := time.Now()
	totalElapsed := session.ElapsedAt(now)
	actualDuration := int(math.Round(totalElapsed.Minutes()))

	updates := map[string]interface{}{
		"status":          status,
		"ended_at":        now,
		"elapsed_seconds": int(totalElapsed.Seconds()),
		"actual_duration": actualDuration,
	}
	if err := m.db.WithContext(ctx).Model(session).Updates(updates).Error; err != nil {
		return err
	}
	session.Status = status
	session.EndedAt = &now
	session.ElapsedSeconds = int(totalElapsed.Seconds())
	session.ActualDuration = actualDuration

	m.teardownCall(ctx, session.ID)
	if err := m.heartbeats.Clear(ctx, session.ID); err != nil {
		m.logger.Warn("failed to clear heartbeat", zap.Uint("session_id", session.ID), zap.Error(err))
	}

	if actualDuration > 0 {
		deducted, err := m.minutes.DeductMinutes(session.UserID, actualDuration)
		if err != nil {
			m.logger.Error("minute deduction failed", zap.Uint("session_id", session.ID), zap.Error(err))
		} else if !deducted {
			m.logger.Warn("minute deduction refused, balance short",
				zap.Uint("session_id", session.ID),
				zap.Int("minutes", actualDuration))
		}
	}
	return nil
}

func (m *Manager) generateFeedback(ctx context.Context, session *models.Session) error {
	fb, err := m.feedback.Generate(ctx, session)
	if err != nil {
		m.logger.Error("feedback generation failed",
			zap.Uint("session_id", session.ID),
			zap.Error(err))
		return err
	}
	session.Feedback = fb
	score := fb.OverallScore()
	session.OverallScore = &score
	return nil
}

// establishCall dials the voice SDK and starts the interviewer persona,
// with the previous transcript injected as context on resume.
func (m *Manager) establishCall(ctx context.Context, session *models.Session, previousTranscript string) error {
	var questions []models.Question
	if err := m.db.WithContext(ctx).Where("version_id = ?", session.VersionID).Find(&questions).Error; err != nil {
		return err
	}
	questionTexts := make([]string, 0, len(questions))
	for _, q := range questions {
		questionTexts = append(questionTexts, "- "+q.Text)
	}
	questionBlock := strings.Join(questionTexts, "\n")

	variant := "default"
	data := map[string]string{
		"Duration":   fmt.Sprintf("%d", session.Duration),
		"Difficulty": session.Difficulty,
		"Questions":  questionBlock,
	}
	vars := calls.Variables{"questions": questionBlock}
	if previousTranscript != "" {
		variant = "resume"
		data["PreviousTranscript"] = previousTranscript
		vars["previousTranscript"] = previousTranscript
	}

	systemPrompt, err := m.prompts.BuildPrompt("interviewer", variant, data)
	if err != nil {
		return err
	}

	client, err := m.dialer.Dial(ctx, session.ID)
	if err != nil {
		return err
	}
	config := calls.AssistantConfig{
		Name:         "interviewer",
		SystemPrompt: m.prompts.System("interviewer") + "\n\n" + systemPrompt,
	}
	if err := client.Start(ctx, config, vars); err != nil {
		return err
	}

	m.mu.Lock()
	m.active[session.ID] = client
	m.mu.Unlock()

	go m.pumpEvents(session.ID, client)
	return nil
}

// pumpEvents fans call events out to subscribers and appends message
// turns to the persisted transcript as they arrive.
func (m *Manager) pumpEvents(sessionID uint, client calls.Client) {
	for event := range client.Events() {
		if event.Kind == calls.EventMessage {
			m.appendTranscriptTurn(sessionID, event)
		}

		m.mu.Lock()
		subs := append([]chan calls.Event(nil), m.subscribers[sessionID]...)
		m.mu.Unlock()
		for _, ch := range subs {
			select {
			case ch <- event:
			default:
				// slow subscriber, drop rather than stall the call
			}
		}
	}

	m.mu.Lock()
	for _, ch := range m.subscribers[sessionID] {
		close(ch)
	}
	delete(m.subscribers, sessionID)
	m.mu.Unlock()
}

func (m *Manager) appendTranscriptTurn(sessionID uint, event calls.Event) {
	err := m.db.Model(&models.Session{}).
		Where("id = ? AND status = ?", sessionID, models.SessionInProgress).
		Update("transcript", gorm.Expr(
			"CASE WHEN transcript = '' OR transcript IS NULL THEN ? ELSE transcript || ? END",
			strings.ToUpper(event.Role)+": "+event.Content,
			"\n\n"+strings.ToUpper(event.Role)+": "+event.Content,
		)).Error
	if err != nil {
		m.logger.Warn("failed to append transcript turn",
			zap.Uint("session_id", sessionID),
			zap.Error(err))
	}
}

func (m *Manager) teardownCall(ctx context.Context, sessionID uint) {
	m.mu.Lock()
	client, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := client.Stop(ctx); err != nil {
		m.logger.Warn("failed to stop live call", zap.Uint("session_id", sessionID), zap.Error(err))
	}
}
