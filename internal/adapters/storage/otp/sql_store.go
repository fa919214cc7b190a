package otp

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crm/internal/adapters/storage"
	domain "crm/internal/domain/otp"
)

// SQLStore implements Store over SQLite or Postgres.
type SQLStore struct {
	db storage.SQLDB
}

// NewSQLStore creates a new OTP store.
func NewSQLStore(db storage.SQLDB) *SQLStore {
	return &SQLStore{db: db}
}

// GetByEmail returns the code record for email.
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (domain.OTP, error) {
	var o domain.OTP
	var verified int
	var expiresAt, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, code_hash, expires_at, verified, attempts, created_at FROM otp WHERE email = ?`, email).
		Scan(&o.ID, &o.Email, &o.CodeHash, &expiresAt, &verified, &o.Attempts, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OTP{}, storage.NotFound("otp")
	}
	if err != nil {
		return domain.OTP{}, err
	}
	o.Verified = verified == 1
	o.ExpiresAt, _ = storage.ParseTime(expiresAt)
	o.CreatedAt, _ = storage.ParseTime(createdAt)
	return o, nil
}

// Save inserts or replaces the record for o.Email.
// POST: at most one record exists per email
func (s *SQLStore) Save(ctx context.Context, o domain.OTP) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO otp (email, id, code_hash, expires_at, verified, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   id=excluded.id, code_hash=excluded.code_hash, expires_at=excluded.expires_at,
		   verified=excluded.verified, attempts=excluded.attempts, created_at=excluded.created_at`,
		o.Email, o.ID, o.CodeHash, storage.FormatTime(o.ExpiresAt), storage.BoolToInt(o.Verified),
		o.Attempts, storage.FormatTime(o.CreatedAt))
	return err
}

// ConsumeAttempt increments attempts with a guarded UPDATE so concurrent
// guesses can never exceed maxAttempts in total.
func (s *SQLStore) ConsumeAttempt(ctx context.Context, email, id string, maxAttempts int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE otp SET attempts = attempts + 1 WHERE email = ? AND id = ? AND attempts < ?`,
		email, id, maxAttempts)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoAttemptsLeft
	}
	return nil
}

// MarkVerified flags the record verified and returns the consumed attempt.
func (s *SQLStore) MarkVerified(ctx context.Context, email, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE otp SET verified = 1, attempts = attempts - 1 WHERE email = ? AND id = ? AND attempts > 0`,
		email, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.NotFound("otp")
	}
	return nil
}

// Delete removes the record for email.
func (s *SQLStore) Delete(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM otp WHERE email = ?`, email)
	return err
}

// DeleteExpired removes records that expired before the cutoff.
func (s *SQLStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM otp WHERE expires_at < ?`, storage.FormatTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
