package account_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"crm/internal/domain/account"
)

func init() {
	account.BcryptCost = bcrypt.MinCost
}

// TestAccount_Validate tests validation of Account.
func TestAccount_Validate(t *testing.T) {
	valid := func() account.Account {
		return account.Account{
			ID:        "1",
			CompanyID: "c1",
			Name:      "Asha Rao",
			Email:     "asha@acme.test",
			Role:      account.RoleAdmin,
		}
	}
	tests := []struct {
		name    string
		mutate  func(a *account.Account)
		wantErr error
	}{
		{name: "valid admin", mutate: func(a *account.Account) {}},
		{name: "valid employee", mutate: func(a *account.Account) { a.Role = account.RoleEmployee }},
		{name: "missing company", mutate: func(a *account.Account) { a.CompanyID = "" }, wantErr: account.ErrEmptyCompany},
		{name: "missing name", mutate: func(a *account.Account) { a.Name = "  " }, wantErr: account.ErrEmptyName},
		{name: "empty email", mutate: func(a *account.Account) { a.Email = "" }, wantErr: account.ErrEmptyEmail},
		{name: "email without at", mutate: func(a *account.Account) { a.Email = "asha.acme.test" }, wantErr: account.ErrInvalidEmail},
		{name: "unknown role", mutate: func(a *account.Account) { a.Role = "coach" }, wantErr: account.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid()
			tt.mutate(&a)
			err := a.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccount_Validate_LongEmail(t *testing.T) {
	a := account.Account{CompanyID: "c1", Name: "x", Role: account.RoleAdmin, Email: strings.Repeat("a", 250) + "@x.io"}
	if err := a.Validate(); err == nil {
		t.Error("expected error for email over 254 characters")
	}
}

// TestAccount_SetPassword tests the password policy and hashing.
func TestAccount_SetPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "empty", password: "", wantErr: account.ErrEmptyPassword},
		{name: "too short", password: "short7!", wantErr: account.ErrPasswordTooShort},
		{name: "minimum length", password: "exactly8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a account.Account
			err := a.SetPassword(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetPassword() = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (a.PasswordHash == "" || a.PasswordHash == tt.password) {
				t.Errorf("PasswordHash not set to a hash: %q", a.PasswordHash)
			}
		})
	}
}

func TestAccount_CheckPassword(t *testing.T) {
	var a account.Account
	if err := a.CheckPassword("anything"); !errors.Is(err, account.ErrWrongPassword) {
		t.Errorf("no hash: got %v, want ErrWrongPassword", err)
	}
	if err := a.SetPassword("correct horse"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if err := a.CheckPassword("correct horse"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := a.CheckPassword("wrong horse"); !errors.Is(err, account.ErrWrongPassword) {
		t.Errorf("wrong password: got %v, want ErrWrongPassword", err)
	}
}

// TestAccount_RecordFailedLogin verifies deactivation on the third failure.
func TestAccount_RecordFailedLogin(t *testing.T) {
	a := account.Account{IsActive: true}
	for i := 1; i < account.MaxFailedLoginAttempts; i++ {
		if a.RecordFailedLogin() {
			t.Fatalf("attempt %d deactivated the account early", i)
		}
		if !a.IsActive || a.FailedLoginAttempts != i {
			t.Fatalf("attempt %d: IsActive=%v attempts=%d", i, a.IsActive, a.FailedLoginAttempts)
		}
	}
	if !a.RecordFailedLogin() {
		t.Error("third failure should report deactivation")
	}
	if a.IsActive || a.CanLogin() {
		t.Error("account should be inactive after 3 failures")
	}
	// further failures keep counting but do not re-report deactivation
	if a.RecordFailedLogin() {
		t.Error("fourth failure should not report deactivation again")
	}
	if a.FailedLoginAttempts != 4 {
		t.Errorf("FailedLoginAttempts = %d, want 4", a.FailedLoginAttempts)
	}
}

func TestAccount_RecordSuccessfulLogin(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	a := account.Account{IsActive: true, FailedLoginAttempts: 2}
	a.RecordSuccessfulLogin(now)
	if a.FailedLoginAttempts != 0 {
		t.Errorf("FailedLoginAttempts = %d, want 0", a.FailedLoginAttempts)
	}
	if !a.LastLoginAt.Equal(now) {
		t.Errorf("LastLoginAt = %v, want %v", a.LastLoginAt, now)
	}
}

func TestAccount_Reactivate(t *testing.T) {
	a := account.Account{IsActive: false, FailedLoginAttempts: 3}
	a.Reactivate()
	if !a.IsActive || a.FailedLoginAttempts != 0 {
		t.Errorf("after Reactivate: IsActive=%v attempts=%d", a.IsActive, a.FailedLoginAttempts)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := account.NormalizeEmail("  Asha@Acme.TEST "); got != "asha@acme.test" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}
