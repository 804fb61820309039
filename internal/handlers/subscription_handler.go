package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"mockmate/interview/internal/ledger"
	"mockmate/interview/internal/middleware"
	"mockmate/interview/internal/models"
	"mockmate/interview/internal/utils"
)

type SubscriptionHandler struct {
	minutes *ledger.Ledger
	logger  *zap.Logger
}

func NewSubscriptionHandler(minutes *ledger.Ledger, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{minutes: minutes, logger: logger}
}

func (h *SubscriptionHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	sub, err := h.minutes.Get(userID)
	if err != nil {
		if errors.Is(err, ledger.ErrSubscriptionNotFound) {
			utils.JSON(w, http.StatusNotFound, models.ErrorResponse{
				Code:    "subscription_not_found",
				Message: "No subscription for this user",
			})
			return
		}
		h.logger.Error("Failed to load subscription", zap.Error(err), zap.String("user_id", userID))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Something went wrong",
		})
		return
	}
	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"subscription": sub,
	})
}

func (h *SubscriptionHandler) AddMinutesHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.MinutesRequest](r)
	userID := middleware.GetUserID(r)

	sub, err := h.minutes.AddMinutes(userID, req.Minutes)
	if err != nil {
		h.logger.Error("Failed to add minutes", zap.Error(err), zap.String("user_id", userID))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Failed to add minutes",
		})
		return
	}
	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"subscription": sub,
	})
}

func (h *SubscriptionHandler) DeductMinutesHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.MinutesRequest](r)
	userID := middleware.GetUserID(r)

	ok, err := h.minutes.DeductMinutes(userID, req.Minutes)
	if err != nil {
		h.logger.Error("Failed to deduct minutes", zap.Error(err), zap.String("user_id", userID))
		utils.JSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Code:    "internal_error",
			Message: "Failed to deduct minutes",
		})
		return
	}
	if !ok {
		utils.JSON(w, http.StatusPaymentRequired, models.ErrorResponse{
			Code:    "insufficient_minutes",
			Message: "Not enough available minutes",
		})
		return
	}
	utils.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
