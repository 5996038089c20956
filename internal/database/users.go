package database

import (
	"context"
	"strings"
)

// User is an account joined with its role name. PartnerID is nil for staff accounts.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	RoleID    int64  `json:"role_id"`
	RoleName  string `json:"role_name"`
	PartnerID *int64 `json:"partner_id,omitempty"`
}

// Credentials is a user together with the stored password hash.
type Credentials struct {
	User
	PasswordHash string `json:"-"`
}

// UserInput holds the fields written on insert.
type UserInput struct {
	Username     string
	PasswordHash string
	RoleID       int64
	PartnerID    *int64
}

const userSelect = `
	SELECT u.user_id AS id, u.username AS username, u.role_id AS role_id, r.role_name AS role_name, u.partner_id AS partner_id
	FROM users u
	LEFT JOIN roles r ON u.role_id = r.role_id`

type UserStore struct {
	exec Executor
}

func NewUserStore(exec Executor) *UserStore {
	return &UserStore{exec: exec}
}

func (s *UserStore) List(ctx context.Context) ([]User, error) {
	res, err := s.exec.Execute(ctx, userSelect+" ORDER BY u.user_id", nil, ModeFetch)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(res.Rows))
	for _, row := range res.Rows {
		users = append(users, userFromRow(row))
	}
	return users, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.getOne(ctx, userSelect+" WHERE u.user_id = ?", id)
}

// GetByPartnerID returns the partner's user (the oldest one if several exist).
func (s *UserStore) GetByPartnerID(ctx context.Context, partnerID int64) (*User, error) {
	return s.getOne(ctx, userSelect+" WHERE u.partner_id = ? ORDER BY u.user_id LIMIT 1", partnerID)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*User, error) {
	res, err := s.exec.Execute(ctx, query, []any{arg}, ModeFetch)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, ErrNotFound
	}
	user := userFromRow(res.Rows[0])
	return &user, nil
}

func (s *UserStore) Add(ctx context.Context, in UserInput) (int64, error) {
	var partnerID any
	if in.PartnerID != nil {
		partnerID = *in.PartnerID
	}
	res, err := s.exec.Execute(ctx, `
		INSERT INTO users (username, password_hash, role_id, partner_id)
		VALUES (?, ?, ?, ?)
	`, []any{in.Username, in.PasswordHash, in.RoleID, partnerID}, ModeCommit)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// Update renames the user and, when passwordHash is not empty, replaces the hash.
func (s *UserStore) Update(ctx context.Context, id int64, username, passwordHash string) error {
	query := "UPDATE users SET username = ? WHERE user_id = ?"
	params := []any{username, id}
	if passwordHash != "" {
		query = "UPDATE users SET username = ?, password_hash = ? WHERE user_id = ?"
		params = []any{username, passwordHash, id}
	}

	res, err := s.exec.Execute(ctx, query, params, ModeCommit)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.exec.Execute(ctx, "UPDATE users SET password_hash = ? WHERE user_id = ?", []any{passwordHash, id}, ModeCommit)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) UpdateRole(ctx context.Context, id, roleID int64) error {
	res, err := s.exec.Execute(ctx, "UPDATE users SET role_id = ? WHERE user_id = ?", []any{roleID, id}, ModeCommit)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	_, err := s.exec.Execute(ctx, "DELETE FROM users WHERE user_id = ?", []any{id}, ModeCommit)
	return err
}

func (s *UserStore) DeleteByPartnerID(ctx context.Context, partnerID int64) error {
	_, err := s.exec.Execute(ctx, "DELETE FROM users WHERE partner_id = ?", []any{partnerID}, ModeCommit)
	return err
}

// UsernameExists reports whether a user other than excludeID holds username.
// The comparison ignores surrounding whitespace.
func (s *UserStore) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	res, err := s.exec.Execute(ctx,
		"SELECT user_id FROM users WHERE username = ? AND user_id <> ? LIMIT 1",
		[]any{strings.TrimSpace(username), excludeID}, ModeFetch)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// GetCredentials loads a user and its password hash for login.
func (s *UserStore) GetCredentials(ctx context.Context, username string) (*Credentials, error) {
	res, err := s.exec.Execute(ctx, `
		SELECT u.user_id AS id, u.username AS username, u.password_hash AS password_hash,
			u.role_id AS role_id, r.role_name AS role_name, u.partner_id AS partner_id
		FROM users u
		LEFT JOIN roles r ON u.role_id = r.role_id
		WHERE u.username = ?
	`, []any{username}, ModeFetch)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, ErrNotFound
	}
	row := res.Rows[0]
	return &Credentials{User: userFromRow(row), PasswordHash: row.String("password_hash")}, nil
}

func userFromRow(row Row) User {
	return User{
		ID:        row.Int64("id"),
		Username:  row.String("username"),
		RoleID:    row.Int64("role_id"),
		RoleName:  row.String("role_name"),
		PartnerID: row.NullInt64("partner_id"),
	}
}
