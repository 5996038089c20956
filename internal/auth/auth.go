package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/masterfloor/erp/internal/config"
	"github.com/masterfloor/erp/internal/database"
)

// Service handles login, self-registration and staff-created accounts.
type Service struct {
	exec database.Executor
	cfg  config.Provisioning

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new auth service
func NewService(exec database.Executor, cfg config.Provisioning) *Service {
	return &Service{exec: exec, cfg: cfg}
}

// Authenticate verifies credentials and returns the user. An unknown username
// and a wrong password both yield database.ErrNotFound.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	users := database.NewUserStore(s.exec)

	creds, err := users.GetCredentials(ctx, strings.TrimSpace(username))
	if errors.Is(err, database.ErrNotFound) {
		// spend the same bcrypt work as a wrong password
		CheckPassword(password, s.unknownUserHash())
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if isLegacyHash(creds.PasswordHash) {
		if !checkLegacyPassword(password, creds.PasswordHash) {
			return nil, database.ErrNotFound
		}
		s.upgradeLegacyHash(ctx, users, creds.ID, password)
		return &creds.User, nil
	}

	if !CheckPassword(password, creds.PasswordHash) {
		return nil, database.ErrNotFound
	}
	return &creds.User, nil
}

// unknownUserHash is a bcrypt hash at the configured cost that no password
// matches in practice.
func (s *Service) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		secret, err := GeneratePassword(32)
		if err == nil {
			s.dummyHash, err = hashPassword(secret, s.cfg.BcryptCost)
		}
		if err != nil {
			log.Warn().Err(err).Msg("Failed to prepare login timing hash")
		}
	})
	return s.dummyHash
}

// upgradeLegacyHash replaces a SHA-256 digest with bcrypt after a successful
// login. Failure is logged; the login itself still succeeds.
func (s *Service) upgradeLegacyHash(ctx context.Context, users *database.UserStore, userID int64, password string) {
	hash, err := hashPassword(password, s.cfg.BcryptCost)
	if err == nil {
		err = users.UpdatePassword(ctx, userID, hash)
	}
	if err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to upgrade legacy password hash")
		return
	}
	log.Info().Int64("user_id", userID).Msg("Upgraded legacy password hash")
}

// RegistrationRequest is the self-registration form after validation.
type RegistrationRequest struct {
	CompanyName   string
	INN           string
	DirectorName  string
	Email         string
	Phone         string
	PartnerTypeID int64
	Username      string
	Password      string
}

// Registration identifies the rows created by Register.
type Registration struct {
	PartnerID int64  `json:"partner_id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
}

// Register creates a partner and its login in one transaction. Either both
// rows exist afterwards or neither does.
func (s *Service) Register(ctx context.Context, req RegistrationRequest) (*Registration, error) {
	if len(req.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := hashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	partnerTypeID := req.PartnerTypeID
	if partnerTypeID == 0 {
		partnerTypeID = 1
	}

	var out Registration
	err = s.exec.Transaction(ctx, func(tx database.Executor) error {
		users := database.NewUserStore(tx)
		partners := database.NewPartnerStore(tx)

		taken, err := users.UsernameExists(ctx, username, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		taken, err = partners.InnExists(ctx, req.INN, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrInnTaken
		}

		partnerID, err := partners.Add(ctx, database.PartnerInput{
			CompanyName:   req.CompanyName,
			INN:           req.INN,
			DirectorName:  req.DirectorName,
			Email:         req.Email,
			Phone:         req.Phone,
			PartnerTypeID: partnerTypeID,
		})
		if err != nil {
			return err
		}

		roleID, err := database.NewLookupStore(tx).RoleIDByName(ctx, s.cfg.RegistrationRole)
		if err != nil {
			return err
		}

		userID, err := users.Add(ctx, database.UserInput{
			Username:     username,
			PasswordHash: hash,
			RoleID:       roleID,
			PartnerID:    &partnerID,
		})
		if err != nil {
			return err
		}

		out = Registration{PartnerID: partnerID, UserID: userID, Username: username}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("username", out.Username).Int64("partner_id", out.PartnerID).Msg("Registered partner")
	return &out, nil
}

// UserRequest describes a staff-created account. Role defaults to the
// configured partner role; PartnerID is optional.
type UserRequest struct {
	Username  string
	Password  string
	Role      string
	PartnerID *int64
}

// AddUser creates an account after checking the username is free. A login
// tied to a partner is refused with *PartnerHasUserError when the partner
// already has one.
func (s *Service) AddUser(ctx context.Context, req UserRequest) (int64, error) {
	if len(req.Password) < MinPasswordLength {
		return 0, ErrWeakPassword
	}
	hash, err := hashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		return 0, err
	}

	role := req.Role
	if role == "" {
		role = s.cfg.DefaultRole
	}
	username := strings.TrimSpace(req.Username)

	var id int64
	err = s.exec.Transaction(ctx, func(tx database.Executor) error {
		users := database.NewUserStore(tx)

		if req.PartnerID != nil {
			if err := lockPartnerWithoutUser(ctx, tx, *req.PartnerID); err != nil {
				return err
			}
		}

		taken, err := users.UsernameExists(ctx, username, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		roleID, err := database.NewLookupStore(tx).RoleIDByName(ctx, role)
		if err != nil {
			return err
		}

		id, err = users.Add(ctx, database.UserInput{
			Username:     username,
			PasswordHash: hash,
			RoleID:       roleID,
			PartnerID:    req.PartnerID,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateUser renames a user and optionally changes its password and role. An
// empty Password or Role leaves that value as it is. The partner a login
// belongs to cannot be changed; a PartnerID other than the current one fails
// with ErrPartnerChange.
func (s *Service) UpdateUser(ctx context.Context, id int64, req UserRequest) error {
	username := strings.TrimSpace(req.Username)

	var hash string
	if req.Password != "" {
		if len(req.Password) < MinPasswordLength {
			return ErrWeakPassword
		}
		var err error
		if hash, err = hashPassword(req.Password, s.cfg.BcryptCost); err != nil {
			return err
		}
	}

	return s.exec.Transaction(ctx, func(tx database.Executor) error {
		users := database.NewUserStore(tx)

		current, err := users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.PartnerID != nil && (current.PartnerID == nil || *current.PartnerID != *req.PartnerID) {
			return ErrPartnerChange
		}

		taken, err := users.UsernameExists(ctx, username, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		if err := users.Update(ctx, id, username, hash); err != nil {
			return err
		}

		if req.Role == "" {
			return nil
		}
		roleID, err := database.NewLookupStore(tx).RoleIDByName(ctx, req.Role)
		if err != nil {
			return err
		}
		return users.UpdateRole(ctx, id, roleID)
	})
}

// IsNotFound reports whether err means "no such record" (including failed logins).
func IsNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
