package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mockmate/interview/internal/middleware"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/sessions"
	"mockmate/interview/internal/utils"
)

type SessionHandler struct {
	manager  *sessions.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewSessionHandler(manager *sessions.Manager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *SessionHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.CreateSessionRequest](r)
	userID := middleware.GetUserID(r)

	session, err := h.manager.Create(r.Context(), userID, req.VersionID)
	if err != nil {
		if errors.Is(err, sessions.ErrVersionNotFound) {
			utils.JSON(w, http.StatusNotFound, models.SessionResult{
				Success: false,
				Error:   "Interview version not found",
			})
			return
		}
		h.logger.Error("Failed to create session", zap.Error(err), zap.String("user_id", userID))
		utils.JSON(w, http.StatusInternalServerError, models.SessionResult{
			Success: false,
			Error:   "Failed to create session",
		})
		return
	}
	utils.JSON(w, http.StatusCreated, models.SessionResult{Success: true, Session: session})
}

func (h *SessionHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnSession(w, r)
	if !ok {
		return
	}
	utils.JSON(w, http.StatusOK, models.SessionResult{Success: true, Session: session})
}

func (h *SessionHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnSession(w, r)
	if !ok {
		return
	}
	started, err := h.manager.Start(r.Context(), session.ID)
	if err != nil {
		h.writeTransitionError(w, err, "start", session.ID)
		return
	}
	utils.JSON(w, http.StatusOK, models.SessionResult{Success: true, Session: started})
}

func (h *SessionHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.PauseSessionRequest](r)
	session, ok := h.loadOwnSession(w, r)
	if !ok {
		return
	}
	paused, err := h.manager.Pause(r.Context(), session.ID, req.Transcript)
	if err != nil {
		h.writeTransitionError(w, err, "pause", session.ID)
		return
	}
	utils.JSON(w, http.StatusOK, models.SessionResult{Success: true, Session: paused})
}

func (h *SessionHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnSession(w, r)
	if !ok {
		return
	}
	resumed, err := h.manager.Resume(r.Context(), session.ID)
	if err != nil {
		h.writeTransitionError(w, err, "resume", session.ID)
		return
	}
	utils.JSON(w, http.StatusOK, models.SessionResult{Success: true, Session: resumed})
}

func (h *SessionHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnSession(w, r)
	if !ok {
		return
	}
	completed, err := h.manager.Complete(r.Context(), session.ID)
	if err != nil {
		if errors.Is(err, sessions.ErrFeedbackNotGenerated) {
			// the session is completed; only the evaluation is missing
			utils.JSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"session": completed,
				"warning": "Feedback could not be generated",
			})
			return
		}
		h.writeTransitionError(w, err, "complete", session.ID)
		return
	}
	utils.JSON(w, http.StatusOK, models.SessionResult{Success: true, Session: completed})
}

func (h *SessionHandler) IncompleteHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.IncompleteSessionRequest](r)
	session, ok := h.loadOwnSession(w, r)
	if !ok {
		return
	}
	resolved, err := h.manager.HandleIncomplete(r.Context(), session.ID, req.Transcript)
	if err != nil {
		if errors.Is(err, sessions.ErrFeedbackNotGenerated) {
			utils.JSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"session": resolved,
				"warning": "Feedback could not be generated",
			})
			return
		}
		h.writeTransitionError(w, err, "incomplete", session.ID)
		return
	}
	utils.JSON(w, http.StatusOK, models.SessionResult{Success: true, Session: resolved})
}

func (h *SessionHandler) HeartbeatHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnSession(w, r)
	if !ok {
		return
	}
	if err := h.manager.Heartbeat(r.Context(), session.ID); err != nil {
		if errors.Is(err, sessions.ErrInvalidSessionState) {
			utils.JSON(w, http.StatusConflict, models.ErrorResponse{
				Code:    "invalid_state",
				Message: "Session is not running",
			})
			return
		}
		h.logger.Error("Failed to record heartbeat", zap.Error(err), zap.Uint("session_id", session.ID))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Failed to record heartbeat",
		})
		return
	}
	utils.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// FeedbackHandler returns the session's generated feedback, 404 until
// feedback exists.
func (h *SessionHandler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnSession(w, r)
	if !ok {
		return
	}
	if session.Feedback == nil {
		utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
			Code:    "feedback_not_found",
			Message: "Feedback has not been generated for this session",
		})
		return
	}
	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"feedback": session.Feedback,
	})
}

// EventsHandler upgrades to a websocket and relays live call events for
// the session until the call ends or the client disconnects.
func (h *SessionHandler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnSession(w, r)
	if !ok {
		return
	}
	events, err := h.manager.Subscribe(session.ID)
	if err != nil {
		utils.JSON(w, http.StatusConflict, models.ErrorResponse{
			Code:    "no_active_call",
			Message: "Session has no active call",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err), zap.Uint("session_id", session.ID))
		return
	}
	defer conn.Close()
	defer h.manager.Unsubscribe(session.ID, events)

	// drain client frames so pings and close frames are processed, and
	// surface the disconnect to the write loop
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("Websocket write failed, closing relay",
					zap.Error(err), zap.Uint("session_id", session.ID))
				return
			}
		case <-clientGone:
			return
		}
	}
}

// loadOwnSession resolves the path id and enforces that the caller owns
// the session.
func (h *SessionHandler) loadOwnSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return nil, false
	}
	session, err := h.manager.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
				Code:    "session_not_found",
				Message: "Session not found",
			})
			return nil, false
		}
		h.logger.Error("Failed to load session", zap.Error(err), zap.Uint("session_id", id))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Something went wrong",
		})
		return nil, false
	}
	if session.UserID != middleware.GetUserID(r) {
		utils.JSON(w, http.StatusForbidden, models.ErrorResponse{
			Code:    "access_denied",
			Message: "You do not own this session",
		})
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) writeTransitionError(w http.ResponseWriter, err error, op string, sessionID uint) {
	switch {
	case errors.Is(err, sessions.ErrInvalidSessionState):
		utils.JSON(w, http.StatusConflict, models.ErrorResponse{
			Code:    "invalid_state",
			Message: "Session cannot " + op + " from its current state",
		})
	case errors.Is(err, sessions.ErrInsufficientMinutes):
		utils.JSON(w, http.StatusPaymentRequired, models.ErrorResponse{
			Code:    "insufficient_minutes",
			Message: "Not enough practice minutes to start this session",
		})
	default:
		h.logger.Error("Session transition failed",
			zap.Error(err),
			zap.String("operation", op),
			zap.Uint("session_id", sessionID))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Failed to " + op + " session",
		})
	}
}
