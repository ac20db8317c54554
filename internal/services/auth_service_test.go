package services

import (
	"context"
	"testing"
	"time"

	"bank_panel_backend/internal/models"
	"bank_panel_backend/internal/repositories"
	"bank_panel_backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) AuthService {
	t.Helper()
	utils.ConfigureJWT("test-secret-for-auth-service", time.Hour)
	return NewAuthService(repositories.NewMemoryAuthRepository())
}

func TestRegisterUserForcesUserRole(t *testing.T) {
	svc := newAuthFixture(t)

	user, err := svc.RegisterUser(context.Background(), RegisterUserRequest{
		Username: "operator", Email: "op@bank.test", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.RoleUser, user.RoleName())
	assert.Empty(t, user.PasswordHash)

	admin, err := svc.RegisterAdmin(context.Background(), RegisterUserRequest{
		Username: "boss", Email: "boss@bank.test", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.RoleName())
}

func TestRegisterUserErrors(t *testing.T) {
	svc := newAuthFixture(t)
	req := RegisterUserRequest{Username: "operator", Email: "op@bank.test", Password: "s3cret-pass"}
	_, err := svc.RegisterUser(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.RegisterUser(context.Background(), req)
	assert.ErrorIs(t, err, ErrUsernameExists)

	_, err = svc.RegisterUser(context.Background(), RegisterUserRequest{Username: "x", Email: "bad", Password: "short"})
	assert.ErrorIs(t, err, ErrUserValidation)
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc := newAuthFixture(t)
	admin, err := svc.RegisterAdmin(context.Background(), RegisterUserRequest{
		Username: "boss", Email: "boss@bank.test", Password: "s3cret-pass",
	})
	require.NoError(t, err)

	resp, err := svc.LoginUser(context.Background(), LoginRequest{Username: "boss", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, resp.User.ID)

	claims, err := utils.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	profile, err := svc.GetUserProfile(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "boss", profile.Username)
}

func TestLoginThrottlesRepeatedFailures(t *testing.T) {
	svc := newAuthFixture(t)
	_, err := svc.RegisterUser(context.Background(), RegisterUserRequest{
		Username: "operator", Email: "op@bank.test", Password: "s3cret-pass",
	})
	require.NoError(t, err)

	for i := 0; i < MaxFailedLogins; i++ {
		_, err := svc.LoginUser(context.Background(), LoginRequest{Username: "operator", Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err = svc.LoginUser(context.Background(), LoginRequest{Username: "operator", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestDeleteUser(t *testing.T) {
	svc := newAuthFixture(t)
	user, err := svc.RegisterUser(context.Background(), RegisterUserRequest{
		Username: "operator", Email: "op@bank.test", Password: "s3cret-pass",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(context.Background(), user.ID))
	assert.ErrorIs(t, svc.DeleteUser(context.Background(), user.ID), ErrUserNotFound)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)

	roles, err := svc.ListRoles(context.Background())
	require.NoError(t, err)
	assert.Len(t, roles, 2)
}

func TestDeactivatedUserCannotLogIn(t *testing.T) {
	svc := newAuthFixture(t)
	req := RegisterUserRequest{Username: "operator", Email: "op@bank.test", Password: "s3cret-pass"}
	user, err := svc.RegisterUser(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(context.Background(), user.ID))

	_, err = svc.LoginUser(context.Background(), LoginRequest{Username: "operator", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.RegisterUser(context.Background(), req)
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestUpdateUser(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()
	user, err := svc.RegisterUser(ctx, RegisterUserRequest{
		Username: "operator", Email: "op@bank.test", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	_, err = svc.RegisterUser(ctx, RegisterUserRequest{
		Username: "taken", Email: "taken@bank.test", Password: "s3cret-pass",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, user.ID, UpdateUserRequest{
		Username: " supervisor ", Email: "sup@bank.test", Role: models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, "supervisor", updated.Username)
	assert.Equal(t, models.RoleAdmin, updated.RoleName())

	kept, err := svc.UpdateUser(ctx, user.ID, UpdateUserRequest{Username: "supervisor", Email: "sup2@bank.test"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, kept.RoleName())

	resp, err := svc.LoginUser(ctx, LoginRequest{Username: "supervisor", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "sup2@bank.test", resp.User.Email)

	tests := []struct {
		name    string
		userID  string
		req     UpdateUserRequest
		wantErr error
	}{
		{"invalid email", user.ID, UpdateUserRequest{Username: "supervisor", Email: "nope"}, ErrUserValidation},
		{"unknown role", user.ID, UpdateUserRequest{Username: "supervisor", Email: "sup@bank.test", Role: "Auditor"}, ErrRoleNotFound},
		{"username taken", user.ID, UpdateUserRequest{Username: "taken", Email: "sup@bank.test"}, ErrUsernameExists},
		{"missing user", "00000000-0000-0000-0000-000000000000", UpdateUserRequest{Username: "ghost", Email: "g@bank.test"}, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateUser(ctx, tt.userID, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = svc.UpdateUser(ctx, user.ID, UpdateUserRequest{Username: "supervisor", Email: "sup@bank.test", Role: "Auditor"})
	assert.ErrorIs(t, err, ErrUserValidation, "an unknown role is a client error")
}

func TestRoleManagement(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	description := "  Read-only access "
	auditor, err := svc.AddRole(ctx, RoleRequest{Name: "Auditor", Description: &description})
	require.NoError(t, err)
	assert.NotZero(t, auditor.ID)
	require.NotNil(t, auditor.Description)
	assert.Equal(t, "Read-only access", *auditor.Description)

	_, err = svc.AddRole(ctx, RoleRequest{Name: "Auditor"})
	assert.ErrorIs(t, err, ErrRoleExists)
	_, err = svc.AddRole(ctx, RoleRequest{Name: "Not Alnum!"})
	assert.ErrorIs(t, err, ErrRoleValidation)

	renamed, err := svc.UpdateRole(ctx, auditor.ID, RoleRequest{Name: "Reviewer"})
	require.NoError(t, err)
	assert.Equal(t, "Reviewer", renamed.Name)
	assert.Nil(t, renamed.Description)

	_, err = svc.UpdateRole(ctx, auditor.ID, RoleRequest{Name: models.RoleUser})
	assert.ErrorIs(t, err, ErrRoleExists)
	_, err = svc.UpdateRole(ctx, 99, RoleRequest{Name: "Ghost"})
	assert.ErrorIs(t, err, ErrRoleNotFound)

	admin, err := svc.UpdateRole(ctx, 1, RoleRequest{Name: models.RoleAdmin, Description: &description})
	require.NoError(t, err, "built-in roles may change their description")
	assert.Equal(t, models.RoleAdmin, admin.Name)
	_, err = svc.UpdateRole(ctx, 1, RoleRequest{Name: "Root"})
	assert.ErrorIs(t, err, ErrRoleProtected)
	assert.ErrorIs(t, svc.DeleteRole(ctx, 2), ErrRoleProtected)

	user, err := svc.RegisterUser(ctx, RegisterUserRequest{
		Username: "operator", Email: "op@bank.test", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	_, err = svc.UpdateUser(ctx, user.ID, UpdateUserRequest{Username: "operator", Email: "op@bank.test", Role: "Reviewer"})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteRole(ctx, auditor.ID), ErrRoleInUse)

	_, err = svc.UpdateUser(ctx, user.ID, UpdateUserRequest{Username: "operator", Email: "op@bank.test", Role: models.RoleUser})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRole(ctx, auditor.ID))
	assert.ErrorIs(t, svc.DeleteRole(ctx, auditor.ID), ErrRoleNotFound)

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
}
