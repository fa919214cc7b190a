package middleware

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"crm/internal/domain/account"
)

// ErrInvalidToken is returned for bearer tokens that fail signature, expiry or revocation checks.
var ErrInvalidToken = errors.New("invalid or expired token")

const tokenIssuer = "crm"

// Claims are the JWT claims carried by an API token.
type Claims struct {
	Company string `json:"company"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 API tokens.
// Tokens cannot be recalled individually; RevokeAccount rejects every token an
// account was issued before the call, for the lifetime of the process.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewTokenIssuer creates an issuer. ttl <= 0 falls back to DefaultSessionTTL.
// PRE: len(secret) > 0
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now, revoked: make(map[string]time.Time)}
}

// Issue signs a token for p and returns it with its expiry.
// POST: sub = account ID, company = company ID, role = p.Role
func (ti *TokenIssuer) Issue(p account.Principal) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	claims := Claims{
		Company: p.CompanyID,
		Email:   p.Email,
		Role:    p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   p.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies raw and returns the session it stands for.
func (ti *TokenIssuer) Parse(raw string) (Session, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Company == "" {
		return Session{}, ErrInvalidToken
	}
	issued := time.Time{}
	if claims.IssuedAt != nil {
		issued = claims.IssuedAt.Time
	}
	ti.mu.RLock()
	cutoff, revoked := ti.revoked[claims.Subject]
	ti.mu.RUnlock()
	if revoked && !issued.After(cutoff) {
		return Session{}, ErrInvalidToken
	}
	return Session{
		AccountID: claims.Subject,
		CompanyID: claims.Company,
		Email:     claims.Email,
		Role:      claims.Role,
		CreatedAt: issued,
		Token:     true,
	}, nil
}

// RevokeAccount invalidates every token issued to accountID up to now.
func (ti *TokenIssuer) RevokeAccount(accountID string) {
	// JWT timestamps have second precision.
	cutoff := ti.now().Truncate(time.Second)
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.revoked[accountID] = cutoff
}
