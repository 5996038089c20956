package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/masterfloor/erp/internal/config"
	"github.com/masterfloor/erp/internal/database"
)

// ProvisionedUser carries the one-time plaintext password of a new login.
// It is not recoverable afterwards; only a reset issues a new one.
type ProvisionedUser struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// PartnerResult is the outcome of CreatePartner. UserErr is set when the
// partner was created but its login could not be (for example the generated
// username collided); User is nil in that case.
type PartnerResult struct {
	PartnerID int64
	User      *ProvisionedUser
	UserErr   error
}

// Provisioner creates partners together with their single login.
type Provisioner struct {
	exec database.Executor
	cfg  config.Provisioning
}

func NewProvisioner(exec database.Executor, cfg config.Provisioning) *Provisioner {
	return &Provisioner{exec: exec, cfg: cfg}
}

// CreatePartnerUser provisions the login for partnerID. exec may be a
// transaction to join; nil runs the steps in a transaction of their own. The
// partner row is locked before its users are checked, so concurrent calls for
// one partner create at most one login. An empty password is replaced by a
// generated one. Business rule failures come back as *PartnerHasUserError,
// ErrUsernameTaken or ErrWeakPassword and leave the database untouched.
func (p *Provisioner) CreatePartnerUser(ctx context.Context, exec database.Executor, partnerID int64, username, password string) (*ProvisionedUser, error) {
	if exec == nil {
		exec = p.exec
	}
	username = strings.TrimSpace(username)

	var out *ProvisionedUser
	err := exec.Transaction(ctx, func(tx database.Executor) error {
		users := database.NewUserStore(tx)

		if err := lockPartnerWithoutUser(ctx, tx, partnerID); err != nil {
			return err
		}

		taken, err := users.UsernameExists(ctx, username, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		pw := password
		if pw == "" {
			if pw, err = GeneratePassword(p.cfg.PasswordLength); err != nil {
				return err
			}
		} else if len(pw) < MinPasswordLength {
			return ErrWeakPassword
		}

		hash, err := hashPassword(pw, p.cfg.BcryptCost)
		if err != nil {
			return err
		}

		roleID, err := database.NewLookupStore(tx).RoleIDByName(ctx, p.cfg.DefaultRole)
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

		out = &ProvisionedUser{UserID: userID, Username: username, Password: pw}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("partner_id", partnerID).Str("username", username).Msg("Provisioned partner user")
	return out, nil
}

// lockPartnerWithoutUser locks the partner row on tx and fails with
// *PartnerHasUserError when a login is already tied to it.
func lockPartnerWithoutUser(ctx context.Context, tx database.Executor, partnerID int64) error {
	if err := database.NewPartnerStore(tx).Lock(ctx, partnerID); err != nil {
		return err
	}

	existing, err := database.NewUserStore(tx).GetByPartnerID(ctx, partnerID)
	switch {
	case err == nil:
		return &PartnerHasUserError{PartnerID: partnerID, Username: existing.Username}
	case !errors.Is(err, database.ErrNotFound):
		return err
	}
	return nil
}

// CreatePartner inserts a partner and, when autoUser is set, a login with a
// username derived from the company name. Both run in one transaction: a
// driver failure rolls back both rows, while a business rule failure of the
// login step is reported in PartnerResult.UserErr and the partner is kept.
func (p *Provisioner) CreatePartner(ctx context.Context, in database.PartnerInput, autoUser bool) (*PartnerResult, error) {
	result := &PartnerResult{}

	err := p.exec.Transaction(ctx, func(tx database.Executor) error {
		partners := database.NewPartnerStore(tx)

		taken, err := partners.InnExists(ctx, in.INN, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrInnTaken
		}

		partnerID, err := partners.Add(ctx, in)
		if err != nil {
			return err
		}
		result.PartnerID = partnerID

		if !autoUser {
			return nil
		}

		username, err := GenerateUsername(in.CompanyName, p.cfg.UsernamePrefixLength, p.cfg.UsernameSuffixDigits)
		if err != nil {
			return err
		}

		user, err := p.CreatePartnerUser(ctx, tx, partnerID, username, "")
		switch {
		case err == nil:
			result.User = user
		case IsBusinessRule(err):
			log.Warn().Err(err).Int64("partner_id", partnerID).Msg("Partner created without a user")
			result.UserErr = err
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetPartnerUser returns the partner's login or database.ErrNotFound.
func (p *Provisioner) GetPartnerUser(ctx context.Context, partnerID int64) (*database.User, error) {
	return database.NewUserStore(p.exec).GetByPartnerID(ctx, partnerID)
}

// UpdatePartnerUser renames a login and, when password is not empty, sets a new one.
func (p *Provisioner) UpdatePartnerUser(ctx context.Context, userID int64, username, password string) error {
	username = strings.TrimSpace(username)

	var hash string
	if password != "" {
		if len(password) < MinPasswordLength {
			return ErrWeakPassword
		}
		var err error
		if hash, err = hashPassword(password, p.cfg.BcryptCost); err != nil {
			return err
		}
	}

	return p.exec.Transaction(ctx, func(tx database.Executor) error {
		users := database.NewUserStore(tx)

		taken, err := users.UsernameExists(ctx, username, userID)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}
		return users.Update(ctx, userID, username, hash)
	})
}

// ResetPassword issues a new generated password and returns it once.
func (p *Provisioner) ResetPassword(ctx context.Context, userID int64) (string, error) {
	password, err := GeneratePassword(p.cfg.PasswordLength)
	if err != nil {
		return "", err
	}
	hash, err := hashPassword(password, p.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	if err := database.NewUserStore(p.exec).UpdatePassword(ctx, userID, hash); err != nil {
		return "", err
	}

	log.Info().Int64("user_id", userID).Msg("Reset user password")
	return password, nil
}

func (p *Provisioner) DeletePartnerUser(ctx context.Context, userID int64) error {
	return database.NewUserStore(p.exec).Delete(ctx, userID)
}
