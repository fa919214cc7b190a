package otp

import (
	"context"
	"errors"
	"time"

	domain "crm/internal/domain/otp"
)

// ErrNoAttemptsLeft is returned when a guess cannot be counted against the
// record: the limit is reached or the code was replaced.
var ErrNoAttemptsLeft = errors.New("otp: no attempts left")

// Store persists the single outstanding reset code per email.
type Store interface {
	// GetByEmail returns the code record for email.
	// POST: error wraps storage.ErrNotFound when none exists
	GetByEmail(ctx context.Context, email string) (domain.OTP, error)

	// Save inserts or replaces the record for o.Email.
	Save(ctx context.Context, o domain.OTP) error

	// ConsumeAttempt atomically counts one guess against record id.
	// POST: returns ErrNoAttemptsLeft when attempts already reached maxAttempts
	ConsumeAttempt(ctx context.Context, email, id string, maxAttempts int) error

	// MarkVerified flags record id as verified and gives back the attempt
	// consumed by the matching guess.
	MarkVerified(ctx context.Context, email, id string) error

	// Delete removes the record for email. Missing records are not an error.
	Delete(ctx context.Context, email string) error

	// DeleteExpired removes records that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Ensure SQLStore implements Store interface.
var _ Store = (*SQLStore)(nil)
