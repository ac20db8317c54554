package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"bank_panel_backend/internal/models"

	"github.com/google/uuid"
)

// AuthRepository defines the interface for authentication-related database operations.
type AuthRepository interface {
	// CreateUser assigns a new uuid to user and stores it with the given hash.
	CreateUser(ctx context.Context, user *models.User, hashedPassword string) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) // Returns User, HashedPassword, Error
	FindUserByID(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// UpdateUser writes username, email and role of an active user.
	UpdateUser(ctx context.Context, user *models.User) error
	// DeleteUser deactivates the user. The row stays so audit records keep their owner.
	DeleteUser(ctx context.Context, userID string) error
	FindRoleByName(ctx context.Context, name string) (*models.Role, error)
	FindRoleByID(ctx context.Context, id int64) (*models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	CreateRole(ctx context.Context, role *models.Role) error
	UpdateRole(ctx context.Context, role *models.Role) error
	// DeleteRole fails with ErrReferenced while any user, active or not, holds the role.
	DeleteRole(ctx context.Context, id int64) error
}

// authRepository implements the AuthRepository interface.
type authRepository struct {
	db *sql.DB
}

// NewAuthRepository creates a new instance of AuthRepository.
func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

const userSelect = `
	SELECT u.id, u.username, u.password_hash, u.email, u.role_id, u.is_active, u.created_at, u.updated_at,
	       COALESCE(ro.name, '') AS role_name
	  FROM users u
	  LEFT JOIN roles ro ON u.role_id = ro.id`

func scanUser(row scanner) (*models.User, string, error) {
	user := &models.User{}
	var (
		hashedPassword string
		roleName       string
		roleID         sql.NullInt64
	)
	err := row.Scan(
		&user.ID, &user.Username, &hashedPassword, &user.Email,
		&roleID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
		&roleName,
	)
	if err != nil {
		return nil, "", err
	}
	if roleID.Valid {
		user.RoleID = &roleID.Int64
		user.Role = &models.Role{ID: roleID.Int64, Name: roleName}
	}
	return user, hashedPassword, nil
}

// CreateUser inserts a new user into the database.
// IsActive is set to true; CreatedAt and UpdatedAt are set to the current time.
func (r *authRepository) CreateUser(ctx context.Context, user *models.User, hashedPassword string) error {
	query := `INSERT INTO users (id, username, password_hash, email, role_id, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	currentTime := time.Now().UTC()
	var roleID sql.NullInt64
	if user.RoleID != nil {
		roleID = sql.NullInt64{Int64: *user.RoleID, Valid: true}
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, query,
		id, user.Username, hashedPassword, user.Email, roleID, true, currentTime, currentTime,
	)
	if err != nil {
		return wrapWriteError(err, "creating user")
	}
	user.ID = id
	user.IsActive = true
	user.CreatedAt, user.UpdatedAt = currentTime, currentTime
	return nil
}

// FindUserByUsername retrieves a user and their hashed password by username.
func (r *authRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) {
	user, hash, err := scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE u.username = $1 AND u.is_active`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("%w: finding user by username %s: %v", ErrDatabaseError, username, err)
	}
	return user, hash, nil
}

// FindUserByID retrieves a user by their ID. The password hash is not populated.
func (r *authRepository) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrNotFound
	}
	user, _, err := scanUser(r.db.QueryRowContext(ctx, userSelect+` WHERE u.id = $1 AND u.is_active`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: finding user by ID %s: %v", ErrDatabaseError, userID, err)
	}
	return user, nil
}

func (r *authRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, userSelect+` WHERE u.is_active ORDER BY u.created_at ASC, u.username ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing users: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, _, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning user: %v", ErrDatabaseError, err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating user rows: %v", ErrDatabaseError, err)
	}
	return users, nil
}

func (r *authRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if _, err := uuid.Parse(user.ID); err != nil {
		return ErrNotFound
	}
	var roleID sql.NullInt64
	if user.RoleID != nil {
		roleID = sql.NullInt64{Int64: *user.RoleID, Valid: true}
	}
	user.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $1, email = $2, role_id = $3, updated_at = $4
		  WHERE id = $5 AND is_active`,
		user.Username, user.Email, roleID, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return wrapWriteError(err, "updating user ID "+user.ID)
	}
	return expectRows(result, "updating user ID "+user.ID)
}

func (r *authRepository) DeleteUser(ctx context.Context, userID string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = $1 WHERE id = $2 AND is_active`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("%w: deactivating user ID %s: %v", ErrDatabaseError, userID, err)
	}
	return expectRows(result, "deactivating user ID "+userID)
}

const roleSelect = `SELECT id, name, description, created_at FROM roles`

func scanRole(row scanner) (*models.Role, error) {
	role := &models.Role{}
	var description sql.NullString
	if err := row.Scan(&role.ID, &role.Name, &description, &role.CreatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		role.Description = &description.String
	}
	return role, nil
}

func (r *authRepository) findRole(ctx context.Context, where string, arg interface{}) (*models.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx, roleSelect+` WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: finding role %v: %v", ErrDatabaseError, arg, err)
	}
	return role, nil
}

func (r *authRepository) FindRoleByName(ctx context.Context, name string) (*models.Role, error) {
	return r.findRole(ctx, `name = $1`, name)
}

func (r *authRepository) FindRoleByID(ctx context.Context, id int64) (*models.Role, error) {
	return r.findRole(ctx, `id = $1`, id)
}

func (r *authRepository) ListRoles(ctx context.Context) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx, roleSelect+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing roles: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	roles := []models.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning role: %v", ErrDatabaseError, err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating role rows: %v", ErrDatabaseError, err)
	}
	return roles, nil
}

func (r *authRepository) CreateRole(ctx context.Context, role *models.Role) error {
	role.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO roles (name, description, created_at) VALUES ($1, $2, $3) RETURNING id`,
		role.Name, role.Description, role.CreatedAt,
	).Scan(&role.ID)
	if err != nil {
		return wrapWriteError(err, "creating role "+role.Name)
	}
	return nil
}

func (r *authRepository) UpdateRole(ctx context.Context, role *models.Role) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE roles SET name = $1, description = $2 WHERE id = $3`,
		role.Name, role.Description, role.ID,
	)
	if err != nil {
		return wrapWriteError(err, fmt.Sprintf("updating role ID %d", role.ID))
	}
	return expectRows(result, fmt.Sprintf("updating role ID %d", role.ID))
}

func (r *authRepository) DeleteRole(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return wrapWriteError(err, fmt.Sprintf("deleting role ID %d", id))
	}
	return expectRows(result, fmt.Sprintf("deleting role ID %d", id))
}

type memoryUser struct {
	user models.User
	hash string
}

type memoryAuthRepository struct {
	mu         sync.RWMutex
	users      map[string]memoryUser
	roles      []models.Role // ascending id
	nextRoleID int64
}

// NewMemoryAuthRepository creates an in-process AuthRepository seeded with the Admin and User roles.
func NewMemoryAuthRepository() AuthRepository {
	now := time.Now().UTC()
	return &memoryAuthRepository{
		users: make(map[string]memoryUser),
		roles: []models.Role{
			{ID: 1, Name: models.RoleAdmin, CreatedAt: now},
			{ID: 2, Name: models.RoleUser, CreatedAt: now},
		},
		nextRoleID: 2,
	}
}

func (r *memoryAuthRepository) roleIndex(id int64) int {
	for i := range r.roles {
		if r.roles[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *memoryAuthRepository) roleByID(id int64) *models.Role {
	if i := r.roleIndex(id); i >= 0 {
		role := r.roles[i]
		return &role
	}
	return nil
}

func (r *memoryAuthRepository) withRole(u models.User) *models.User {
	if u.RoleID != nil {
		u.Role = r.roleByID(*u.RoleID)
	}
	return &u
}

// usernameTaken mirrors the unique index, which also covers deactivated users.
func (r *memoryAuthRepository) usernameTaken(username, except string) bool {
	for id, entry := range r.users {
		if entry.user.Username == username && id != except {
			return true
		}
	}
	return false
}

func (r *memoryAuthRepository) CreateUser(ctx context.Context, user *models.User, hashedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.usernameTaken(user.Username, "") {
		return fmt.Errorf("%w: username %s", ErrDuplicateKey, user.Username)
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.IsActive = true
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	stored.Role = nil
	r.users[user.ID] = memoryUser{user: stored, hash: hashedPassword}
	return nil
}

func (r *memoryAuthRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.users {
		if entry.user.Username == username && entry.user.IsActive {
			return r.withRole(entry.user), entry.hash, nil
		}
	}
	return nil, "", ErrNotFound
}

func (r *memoryAuthRepository) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.users[userID]
	if !ok || !entry.user.IsActive {
		return nil, ErrNotFound
	}
	return r.withRole(entry.user), nil
}

func (r *memoryAuthRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(r.users))
	for _, entry := range r.users {
		if entry.user.IsActive {
			users = append(users, *r.withRole(entry.user))
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (r *memoryAuthRepository) UpdateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.users[user.ID]
	if !ok || !entry.user.IsActive {
		return ErrNotFound
	}
	if r.usernameTaken(user.Username, user.ID) {
		return fmt.Errorf("%w: username %s", ErrDuplicateKey, user.Username)
	}
	if user.RoleID != nil && r.roleIndex(*user.RoleID) < 0 {
		return fmt.Errorf("%w: role ID %d does not exist", ErrReferenced, *user.RoleID)
	}
	user.UpdatedAt = time.Now().UTC()
	entry.user.Username = user.Username
	entry.user.Email = user.Email
	entry.user.RoleID = user.RoleID
	entry.user.UpdatedAt = user.UpdatedAt
	r.users[user.ID] = entry
	return nil
}

func (r *memoryAuthRepository) DeleteUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.users[userID]
	if !ok || !entry.user.IsActive {
		return ErrNotFound
	}
	entry.user.IsActive = false
	entry.user.UpdatedAt = time.Now().UTC()
	r.users[userID] = entry
	return nil
}

func (r *memoryAuthRepository) FindRoleByName(ctx context.Context, name string) (*models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, role := range r.roles {
		if role.Name == name {
			role := role
			return &role, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryAuthRepository) FindRoleByID(ctx context.Context, id int64) (*models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if role := r.roleByID(id); role != nil {
		return role, nil
	}
	return nil, ErrNotFound
}

func (r *memoryAuthRepository) ListRoles(ctx context.Context) ([]models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]models.Role, len(r.roles))
	copy(roles, r.roles)
	return roles, nil
}

func (r *memoryAuthRepository) roleNameTaken(name string, except int64) bool {
	for _, role := range r.roles {
		if role.Name == name && role.ID != except {
			return true
		}
	}
	return false
}

func (r *memoryAuthRepository) CreateRole(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.roleNameTaken(role.Name, 0) {
		return fmt.Errorf("%w: role %s", ErrDuplicateKey, role.Name)
	}
	r.nextRoleID++
	role.ID = r.nextRoleID
	role.CreatedAt = time.Now().UTC()
	r.roles = append(r.roles, *role)
	return nil
}

func (r *memoryAuthRepository) UpdateRole(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.roleIndex(role.ID)
	if i < 0 {
		return ErrNotFound
	}
	if r.roleNameTaken(role.Name, role.ID) {
		return fmt.Errorf("%w: role %s", ErrDuplicateKey, role.Name)
	}
	r.roles[i].Name = role.Name
	r.roles[i].Description = role.Description
	role.CreatedAt = r.roles[i].CreatedAt
	return nil
}

func (r *memoryAuthRepository) DeleteRole(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.roleIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	for _, entry := range r.users {
		if entry.user.RoleID != nil && *entry.user.RoleID == id {
			return fmt.Errorf("%w: role ID %d is assigned to users", ErrReferenced, id)
		}
	}
	r.roles = append(r.roles[:i], r.roles[i+1:]...)
	return nil
}
