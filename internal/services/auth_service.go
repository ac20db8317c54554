package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank_panel_backend/internal/models"
	"bank_panel_backend/internal/repositories"
	"bank_panel_backend/pkg/utils"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// --- Custom Service Errors ---
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameExists     = errors.New("username already exists")
	ErrRoleNotFound       = errors.New("specified role not found")
	ErrTokenGeneration    = errors.New("failed to generate token")
	ErrTooManyAttempts    = errors.New("too many failed login attempts, try again later")
	ErrUserValidation     = errors.New("user data validation error")
	ErrRoleValidation     = errors.New("role data validation error")
	ErrRoleExists         = errors.New("role already exists")
	ErrRoleInUse          = errors.New("role is assigned to users")
	ErrRoleProtected      = errors.New("built-in role cannot be renamed or deleted")
)

const (
	MaxFailedLogins   = 5
	FailedLoginWindow = 15 * time.Minute
)

// --- Data Transfer Objects (DTOs) ---

// LoginRequest DTO
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterUserRequest DTO
type RegisterUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest DTO. An empty Role keeps the current one.
type UpdateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"omitempty,max=32"`
}

// RoleRequest DTO
type RoleRequest struct {
	Name        string  `json:"name" validate:"required,alphanum,max=32"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

// AuthResponse DTO
type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// --- AuthService Interface ---
type AuthService interface {
	// RegisterUser creates an account with the User role.
	RegisterUser(ctx context.Context, req RegisterUserRequest) (*models.User, error)
	RegisterAdmin(ctx context.Context, req RegisterUserRequest) (*models.User, error)
	LoginUser(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	GetUserProfile(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*models.User, error)
	// DeleteUser deactivates the account; its search history is kept.
	DeleteUser(ctx context.Context, userID string) error
	ListRoles(ctx context.Context) ([]models.Role, error)
	AddRole(ctx context.Context, req RoleRequest) (*models.Role, error)
	UpdateRole(ctx context.Context, id int64, req RoleRequest) (*models.Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// --- authService Implementation ---
type authService struct {
	authRepo repositories.AuthRepository
	failures *gocache.Cache // username -> failed attempt count
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(authRepo repositories.AuthRepository) AuthService {
	return &authService{
		authRepo: authRepo,
		failures: gocache.New(FailedLoginWindow, time.Minute),
	}
}

func (s *authService) register(ctx context.Context, req RegisterUserRequest, roleName string) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUserValidation, describeValidation(err))
	}

	role, err := s.authRepo.FindRoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("role '%s' is not provisioned: %w", roleName, err)
		}
		return nil, fmt.Errorf("failed to look up role: %w", err)
	}

	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username: req.Username,
		Email:    strings.TrimSpace(req.Email),
		RoleID:   &role.ID,
	}
	if err := s.authRepo.CreateUser(ctx, &user, string(hashedPasswordBytes)); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	user.Role = role
	log.Info().Str("user_id", user.ID).Str("role", role.Name).Msg("User registered")
	return &user, nil
}

// RegisterUser handles the business logic for user registration.
func (s *authService) RegisterUser(ctx context.Context, req RegisterUserRequest) (*models.User, error) {
	return s.register(ctx, req, models.RoleUser)
}

func (s *authService) RegisterAdmin(ctx context.Context, req RegisterUserRequest) (*models.User, error) {
	return s.register(ctx, req, models.RoleAdmin)
}

func (s *authService) failedAttempts(username string) int {
	if v, ok := s.failures.Get(username); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return 0
}

func (s *authService) recordFailure(username string) {
	if err := s.failures.Add(username, 1, gocache.DefaultExpiration); err != nil {
		_, _ = s.failures.IncrementInt(username, 1)
	}
}

// LoginUser handles user login and token generation.
func (s *authService) LoginUser(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUserValidation, describeValidation(err))
	}
	if s.failedAttempts(req.Username) >= MaxFailedLogins {
		utils.RecordLoginThrottled()
		log.Warn().Str("username", req.Username).Msg("Login throttled")
		return nil, ErrTooManyAttempts
	}

	user, storedHashedPassword, err := s.authRepo.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.recordFailure(req.Username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login attempt failed: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(storedHashedPassword), []byte(req.Password)); err != nil {
		s.recordFailure(req.Username)
		return nil, ErrInvalidCredentials
	}
	s.failures.Delete(req.Username)

	accessToken, err := utils.GenerateAccessToken(user.ID, user.Username, user.RoleName())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	user.PasswordHash = ""
	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		ExpiresAt:   time.Now().Add(utils.AccessTokenTTL).UTC(),
	}, nil
}

// GetUserProfile retrieves a user's profile by their ID.
func (s *authService) GetUserProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.authRepo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user profile: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.authRepo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *authService) UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.TrimSpace(req.Role)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUserValidation, describeValidation(err))
	}

	user, err := s.authRepo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if req.Role != "" {
		role, err := s.authRepo.FindRoleByName(ctx, req.Role)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("%w: %w '%s'", ErrUserValidation, ErrRoleNotFound, req.Role)
			}
			return nil, fmt.Errorf("failed to look up role: %w", err)
		}
		user.RoleID, user.Role = &role.ID, role
	}
	user.Username = req.Username
	user.Email = req.Email

	if err := s.authRepo.UpdateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repositories.ErrDuplicateKey):
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	user.PasswordHash = ""
	log.Info().Str("user_id", user.ID).Str("role", user.RoleName()).Msg("User updated")
	return user, nil
}

func (s *authService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.authRepo.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	log.Info().Str("user_id", userID).Msg("User deactivated")
	return nil
}

func (s *authService) ListRoles(ctx context.Context) ([]models.Role, error) {
	roles, err := s.authRepo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func isBuiltinRole(name string) bool {
	return name == models.RoleAdmin || name == models.RoleUser
}

func normalizeRole(req RoleRequest) (RoleRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Description != nil {
		d := strings.TrimSpace(*req.Description)
		req.Description = &d
		if d == "" {
			req.Description = nil
		}
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %s", ErrRoleValidation, describeValidation(err))
	}
	return req, nil
}

func (s *authService) findRole(ctx context.Context, id int64) (*models.Role, error) {
	role, err := s.authRepo.FindRoleByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrRoleNotFound, id)
		}
		return nil, fmt.Errorf("failed to look up role: %w", err)
	}
	return role, nil
}

func (s *authService) AddRole(ctx context.Context, req RoleRequest) (*models.Role, error) {
	req, err := normalizeRole(req)
	if err != nil {
		return nil, err
	}
	role := models.Role{Name: req.Name, Description: req.Description}
	if err := s.authRepo.CreateRole(ctx, &role); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("failed to add role: %w", err)
	}
	log.Info().Int64("role_id", role.ID).Str("role", role.Name).Msg("Role added")
	return &role, nil
}

// UpdateRole renames or re-describes a role. Admin and User keep their names.
func (s *authService) UpdateRole(ctx context.Context, id int64, req RoleRequest) (*models.Role, error) {
	req, err := normalizeRole(req)
	if err != nil {
		return nil, err
	}
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if isBuiltinRole(role.Name) && req.Name != role.Name {
		return nil, ErrRoleProtected
	}

	role.Name, role.Description = req.Name, req.Description
	if err := s.authRepo.UpdateRole(ctx, role); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, fmt.Errorf("%w: id %d", ErrRoleNotFound, id)
		case errors.Is(err, repositories.ErrDuplicateKey):
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	log.Info().Int64("role_id", role.ID).Str("role", role.Name).Msg("Role updated")
	return role, nil
}

func (s *authService) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return err
	}
	if isBuiltinRole(role.Name) {
		return ErrRoleProtected
	}
	if err := s.authRepo.DeleteRole(ctx, id); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return fmt.Errorf("%w: id %d", ErrRoleNotFound, id)
		case errors.Is(err, repositories.ErrReferenced):
			return ErrRoleInUse
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}
	log.Info().Int64("role_id", id).Str("role", role.Name).Msg("Role deleted")
	return nil
}
