package handlers

import (
	"net/http"

	"bank_panel_backend/internal/models"
	"bank_panel_backend/internal/services"
	"bank_panel_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// RegisterUser handles self registration. The new account always gets the User role.
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req services.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "RegisterUser")
		return
	}

	user, err := h.authService.RegisterUser(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "register user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// RegisterAdmin lets an admin create another admin account.
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	var req services.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "RegisterAdmin")
		return
	}

	user, err := h.authService.RegisterAdmin(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "register admin")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// LoginUser handles user login.
func (h *AuthHandler) LoginUser(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "LoginUser")
		return
	}

	authResp, err := h.authService.LoginUser(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "log in")
		return
	}
	c.JSON(http.StatusOK, authResp)
}

// GetCurrentUser returns the profile of the authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := currentAdmin(c)
	if !ok {
		return
	}
	user, err := h.authService.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "fetch user profile")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.authService.ListUsers(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "fetch users")
		return
	}
	c.JSON(http.StatusOK, users)
}

func roleIDParam(c *gin.Context) (int64, bool) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return 0, false
	}
	return id, true
}

// UpdateUser changes username, email and optionally the role of a user.
// An admin cannot move their own account out of the Admin role.
func (h *AuthHandler) UpdateUser(c *gin.Context) {
	userID := c.Param("id")
	current, ok := currentAdmin(c)
	if !ok {
		return
	}
	var req services.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "UpdateUser")
		return
	}
	if current == userID && req.Role != "" && req.Role != models.RoleAdmin {
		utils.RespondValidationFailed(c, "you cannot change the role of your own account")
		return
	}

	user, err := h.authService.UpdateUser(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, err, "update user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) DeleteUser(c *gin.Context) {
	userID := c.Param("id")
	current, ok := currentAdmin(c)
	if !ok {
		return
	}
	if current == userID {
		utils.RespondValidationFailed(c, "you cannot delete your own account")
		return
	}
	if err := h.authService.DeleteUser(c.Request.Context(), userID); err != nil {
		respondServiceError(c, err, "delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) ListRoles(c *gin.Context) {
	roles, err := h.authService.ListRoles(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "fetch roles")
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (h *AuthHandler) AddRole(c *gin.Context) {
	var req services.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "AddRole")
		return
	}
	role, err := h.authService.AddRole(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "add role")
		return
	}
	c.JSON(http.StatusCreated, role)
}

func (h *AuthHandler) UpdateRole(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}
	var req services.RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err, "UpdateRole")
		return
	}
	role, err := h.authService.UpdateRole(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err, "update role")
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *AuthHandler) DeleteRole(c *gin.Context) {
	id, ok := roleIDParam(c)
	if !ok {
		return
	}
	if err := h.authService.DeleteRole(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete role")
		return
	}
	c.Status(http.StatusNoContent)
}
