package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mockmate/interview/internal/extract"
	"mockmate/interview/internal/interviews"
	"mockmate/interview/internal/middleware"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/utils"
)

// GenerateHandler serves the agent endpoint that builds a complete
// interview from a role description in one call.
type GenerateHandler struct {
	builder *interviews.Builder
	logger  *zap.Logger
}

func NewGenerateHandler(builder *interviews.Builder, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{builder: builder, logger: logger}
}

func (h *GenerateHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.GenerateInterviewRequest](r)
	requestID := uuid.New().String()

	// Ownership comes from the token subject; the payload userid is kept
	// for the agent wire format but never trusted.
	userID := middleware.GetUserID(r)
	if req.UserID != userID {
		h.logger.Warn("payload userid overridden by token subject",
			zap.String("request_id", requestID),
			zap.String("payload_userid", req.UserID))
		req.UserID = userID
	}

	interview, err := h.builder.Derive(r.Context(), req)
	if err != nil {
		var modelErr *extract.ModelResponseError
		if errors.As(err, &modelErr) {
			h.logger.Error("Model returned unusable interview",
				zap.String("request_id", requestID),
				zap.String("reason", modelErr.Reason))
			utils.JSON(w, http.StatusInternalServerError, models.InterviewResult{
				Success: false,
				Error:   "The model did not return a usable interview",
			})
			return
		}
		h.logger.Error("Failed to derive interview",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.String("role", req.Role))
		utils.JSON(w, http.StatusInternalServerError, models.InterviewResult{
			Success: false,
			Error:   "Failed to generate interview",
		})
		return
	}

	h.logger.Info("interview generated",
		zap.String("request_id", requestID),
		zap.Uint("interview_id", interview.ID),
		zap.String("role", req.Role))
	utils.JSON(w, http.StatusOK, models.InterviewResult{
		Success:   true,
		Interview: interview,
	})
}
