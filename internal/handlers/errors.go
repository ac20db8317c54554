package handlers

import (
	"errors"
	"net/http"

	"bank_panel_backend/internal/repositories"
	"bank_panel_backend/internal/services"
	"bank_panel_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps a service error onto the API error envelope.
// action is the human readable operation, e.g. "fetch clients".
func respondServiceError(c *gin.Context, err error, action string) {
	utils.LogError(err, "Failed to "+action)

	switch {
	case errors.Is(err, services.ErrClientValidation),
		errors.Is(err, services.ErrUserValidation),
		errors.Is(err, services.ErrRoleValidation),
		errors.Is(err, services.ErrInvalidSearchLimit):
		utils.RespondValidationFailed(c, err.Error())
	case errors.Is(err, services.ErrClientNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Client not found.", ""))
	case errors.Is(err, services.ErrUserNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "User not found.", ""))
	case errors.Is(err, services.ErrPersonalIDExists):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Personal ID already exists.", ""))
	case errors.Is(err, services.ErrUsernameExists):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Username already exists.", ""))
	case errors.Is(err, services.ErrRoleNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Role not found.", ""))
	case errors.Is(err, services.ErrRoleExists):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Role already exists.", ""))
	case errors.Is(err, services.ErrRoleInUse):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Role is assigned to users.", ""))
	case errors.Is(err, services.ErrRoleProtected):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Built-in roles cannot be renamed or deleted.", ""))
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid username or password.", ""))
	case errors.Is(err, services.ErrTooManyAttempts):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusTooManyRequests, utils.ErrCodeTooManyRequests, "Too many failed login attempts. Try again later.", ""))
	case errors.Is(err, services.ErrSearchHistoryCorrupt):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeDataCorruption, "Search history is corrupt.", ""))
	case errors.Is(err, repositories.ErrDatabaseError):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusServiceUnavailable, utils.ErrCodeServiceUnavailable, "Storage is temporarily unavailable.", ""))
	default:
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to "+action+".", "Internal error"))
	}
}

func respondBindError(c *gin.Context, err error, handler string) {
	utils.LogError(err, handler+": Failed to bind request")
	utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
}
