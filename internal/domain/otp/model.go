// Package otp models the one-time codes used for email password resets.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

// DefaultTTL is how long a code stays valid.
const DefaultTTL = 10 * time.Minute

// DefaultMaxAttempts bounds wrong guesses against one code.
const DefaultMaxAttempts = 5

// Domain errors
var (
	ErrNotFound        = errors.New("no reset code has been requested for this email")
	ErrExpired         = errors.New("reset code has expired")
	ErrInvalid         = errors.New("reset code is incorrect")
	ErrTooManyAttempts = errors.New("too many incorrect attempts; request a new code")
	ErrNotVerified     = errors.New("reset code has not been verified")
)

// OTP is the single outstanding reset code for an email.
// Only the SHA-256 of the code is stored.
type OTP struct {
	ID        string
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	Verified  bool
	Attempts  int
	CreatedAt time.Time
}

// GenerateCode returns a uniformly random CodeLength-digit code.
// POST: len(code) == CodeLength, all digits
func GenerateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// HashCode returns the hex SHA-256 of code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// New builds an unverified OTP for email that expires ttl after now.
// PRE: email is normalized, code came from GenerateCode
// POST: Verified is false, Attempts is 0
func New(id, email, code string, now time.Time, ttl time.Duration) OTP {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return OTP{
		ID:        id,
		Email:     email,
		CodeHash:  HashCode(code),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsExpired reports whether the code is past its expiry.
// INVARIANT: OTP fields are not mutated
func (o *OTP) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// CheckUsable reports whether the code may still be guessed.
// INVARIANT: OTP fields are not mutated
func (o *OTP) CheckUsable(now time.Time, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if o.IsExpired(now) {
		return ErrExpired
	}
	if o.Attempts >= maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

// Matches compares code against the stored hash in constant time.
func (o *OTP) Matches(code string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(code)), []byte(o.CodeHash)) == 1
}

// CanReset reports whether this OTP authorizes a password reset.
func (o *OTP) CanReset(now time.Time) error {
	if o.IsExpired(now) {
		return ErrExpired
	}
	if !o.Verified {
		return ErrNotVerified
	}
	return nil
}
