package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mockmate/interview/internal/interviews"
	"mockmate/interview/internal/middleware"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/utils"
)

type InterviewHandler struct {
	builder *interviews.Builder
	logger  *zap.Logger
}

func NewInterviewHandler(builder *interviews.Builder, logger *zap.Logger) *InterviewHandler {
	return &InterviewHandler{builder: builder, logger: logger}
}

func (h *InterviewHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.CreateInterviewRequest](r)
	userID := middleware.GetUserID(r)

	interview, err := h.builder.Create(r.Context(), userID, req)
	if err != nil {
		h.logger.Error("Failed to create interview", zap.Error(err), zap.String("user_id", userID))
		utils.JSON(w, http.StatusInternalServerError, models.InterviewResult{
			Success: false,
			Error:   "Failed to create interview",
		})
		return
	}

	utils.JSON(w, http.StatusCreated, models.InterviewResult{
		Success:   true,
		Interview: interview,
	})
}

func (h *InterviewHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	interview, err := h.builder.Get(r.Context(), id, middleware.GetUserID(r))
	if err != nil {
		writeInterviewError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, models.InterviewResult{Success: true, Interview: interview})
}

func (h *InterviewHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.builder.List(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.logger.Error("Failed to list interviews", zap.Error(err))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "list_error",
			Message: "Failed to list interviews",
		})
		return
	}
	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"interviews": list,
	})
}

// VersionHandler finds or lazily creates the version at the requested
// difficulty.
func (h *InterviewHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	difficulty := chi.URLParam(r, "difficulty")

	version, err := h.builder.FindOrCreateVersion(r.Context(), id, difficulty, middleware.GetUserID(r))
	if err != nil {
		var errResp *models.ErrorResponse
		if errors.As(err, &errResp) {
			utils.JSON(w, http.StatusBadRequest, *errResp)
			return
		}
		writeInterviewError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"version": version,
	})
}

func writeInterviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interviews.ErrInterviewNotFound):
		utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
			Code:    "interview_not_found",
			Message: "Interview not found",
		})
	case errors.Is(err, interviews.ErrAccessDenied):
		utils.JSON(w, http.StatusForbidden, models.ErrorResponse{
			Code:    "access_denied",
			Message: "You do not have access to this interview",
		})
	default:
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Something went wrong",
		})
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		utils.JSON(w, http.StatusBadRequest, models.ErrorResponse{
			Code:    "invalid_id",
			Message: "Path parameter " + name + " must be a positive integer",
		})
		return 0, false
	}
	return uint(id), true
}
