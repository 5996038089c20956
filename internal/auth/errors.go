package auth

import (
	"errors"
	"fmt"
)

// Business-rule failures. They are reported to the caller as-is and never
// come from the driver.
var (
	ErrUsernameTaken = errors.New("a user with this username already exists")
	ErrInnTaken      = errors.New("a partner with this tax id already exists")
	ErrWeakPassword  = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPartnerChange = errors.New("the partner of an existing user cannot be changed")
)

// PartnerHasUserError is returned when provisioning a second login for a partner.
type PartnerHasUserError struct {
	PartnerID int64
	Username  string
}

func (e *PartnerHasUserError) Error() string {
	return fmt.Sprintf("this partner already has a user: %s", e.Username)
}

// IsBusinessRule reports whether err is one of the rule violations above.
func IsBusinessRule(err error) bool {
	var hasUser *PartnerHasUserError
	return errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrInnTaken) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.As(err, &hasUser)
}
