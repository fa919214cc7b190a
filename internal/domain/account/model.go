package account

import (
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength = 254
	MaxNameLength  = 200
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 8

// MaxFailedLoginAttempts is the number of consecutive failed logins that deactivates an account.
const MaxFailedLoginAttempts = 3

// BcryptCost is the hashing cost for stored passwords. Tests lower it.
var BcryptCost = 12

// Role constants
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleEmployee}

// Domain errors
var (
	ErrInvalidEmail     = errors.New("email must contain '@'")
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrEmptyCompany     = errors.New("account must belong to a company")
	ErrInvalidRole      = errors.New("role must be one of: admin, employee")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrWrongPassword    = errors.New("incorrect password")
	ErrSamePassword     = errors.New("new password must differ from the current password")
)

// Account is an admin or employee login belonging to one company.
type Account struct {
	ID                  string
	CompanyID           string
	Name                string
	Email               string
	Phone               string
	Designation         string
	Role                string
	PasswordHash        string
	IsActive            bool // false after MaxFailedLoginAttempts; cleared by a password reset
	Disabled            bool // set by an admin; only an admin clears it
	FailedLoginAttempts int
	LastLoginAt         time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks if the Account has valid data.
// PRE: Account struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Account) Validate() error {
	if strings.TrimSpace(a.CompanyID) == "" {
		return ErrEmptyCompany
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > MaxNameLength {
		return errors.New("name cannot exceed 200 characters")
	}
	if strings.TrimSpace(a.Email) == "" {
		return ErrEmptyEmail
	}
	if len(a.Email) > MaxEmailLength {
		return errors.New("email cannot exceed 254 characters")
	}
	if !strings.Contains(a.Email, "@") {
		return ErrInvalidEmail
	}
	if !isValidRole(a.Role) {
		return ErrInvalidRole
	}
	return nil
}

// ValidatePassword checks a plaintext password against the length policy.
func ValidatePassword(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// SetPassword hashes and stores a password using bcrypt.
// PRE: plaintext satisfies ValidatePassword
// POST: PasswordHash is set to bcrypt hash
func (a *Account) SetPassword(plaintext string) error {
	if err := ValidatePassword(plaintext); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), BcryptCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
// PRE: PasswordHash is set
// INVARIANT: Account fields are not mutated
func (a *Account) CheckPassword(plaintext string) error {
	if a.PasswordHash == "" {
		return ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plaintext)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// RecordFailedLogin increments the failed login counter and deactivates the
// account once it reaches MaxFailedLoginAttempts.
// PRE: Account exists
// POST: FailedLoginAttempts incremented; IsActive false if >= MaxFailedLoginAttempts
// Returns true when this call deactivated the account.
func (a *Account) RecordFailedLogin() bool {
	a.FailedLoginAttempts++
	if a.FailedLoginAttempts >= MaxFailedLoginAttempts && a.IsActive {
		a.IsActive = false
		return true
	}
	return false
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// CheckDummyPassword runs one bcrypt comparison against a fixed hash, keeping
// a login for an unknown email as slow as one with a wrong password.
func CheckDummyPassword(plaintext string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("no-such-account"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
}

// RecordSuccessfulLogin clears the failed login counter.
// PRE: password was verified
// POST: FailedLoginAttempts is 0, LastLoginAt is now
func (a *Account) RecordSuccessfulLogin(now time.Time) {
	a.FailedLoginAttempts = 0
	a.LastLoginAt = now
}

// Reactivate restores login after a password reset or an admin unlock.
// POST: IsActive is true, FailedLoginAttempts is 0
func (a *Account) Reactivate() {
	a.IsActive = true
	a.FailedLoginAttempts = 0
}

// IsAdmin returns true if the account has admin role.
// INVARIANT: Account fields are not mutated
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func isValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
