package account_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm/internal/adapters/storage"
	"crm/internal/adapters/storage/account"
	"crm/internal/adapters/storage/storagetest"
	domain "crm/internal/domain/account"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newAccount(id, company, name, email, role string) domain.Account {
	return domain.Account{
		ID: id, CompanyID: company, Name: name, Email: email, Role: role,
		PasswordHash: "hash", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
}

func TestSQLStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := account.NewSQLStore(storagetest.Open(t))

	a := newAccount("a1", "c1", "Ana", "Ana@Acme.test", domain.RoleAdmin)
	a.LastLoginAt = now.Add(time.Minute)
	require.NoError(t, store.Save(ctx, a))

	got, err := store.GetByEmail(ctx, "ANA@acme.test")
	require.NoError(t, err)
	assert.Equal(t, "ana@acme.test", got.Email)
	assert.True(t, got.IsActive)
	assert.Equal(t, a.LastLoginAt, got.LastLoginAt)

	_, err = store.GetByID(ctx, "other-company", "a1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "cross-company read must look like not found")

	got, err = store.GetByID(ctx, "c1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
}

func TestSQLStore_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := account.NewSQLStore(storagetest.Open(t))

	require.NoError(t, store.Save(ctx, newAccount("a1", "c1", "Ana", "ana@acme.test", domain.RoleAdmin)))
	err := store.Save(ctx, newAccount("a2", "c2", "Ana Two", "ana@acme.test", domain.RoleAdmin))
	assert.Error(t, err, "email is unique across companies")
}

// TestSQLStore_RecordFailedLogin verifies the third failure deactivates the account.
func TestSQLStore_RecordFailedLogin(t *testing.T) {
	ctx := context.Background()
	store := account.NewSQLStore(storagetest.Open(t))
	require.NoError(t, store.Save(ctx, newAccount("a1", "c1", "Ana", "ana@acme.test", domain.RoleEmployee)))

	for i := 1; i <= 2; i++ {
		a, err := store.RecordFailedLogin(ctx, "a1", domain.MaxFailedLoginAttempts)
		require.NoError(t, err)
		assert.Equal(t, i, a.FailedLoginAttempts)
		assert.True(t, a.IsActive)
	}
	a, err := store.RecordFailedLogin(ctx, "a1", domain.MaxFailedLoginAttempts)
	require.NoError(t, err)
	assert.Equal(t, 3, a.FailedLoginAttempts)
	assert.False(t, a.IsActive)

	_, err = store.RecordFailedLogin(ctx, "missing", domain.MaxFailedLoginAttempts)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLStore_List(t *testing.T) {
	ctx := context.Background()
	store := account.NewSQLStore(storagetest.Open(t))

	require.NoError(t, store.Save(ctx, newAccount("a0", "c1", "Zed Admin", "zed@acme.test", domain.RoleAdmin)))
	for i := 1; i <= 5; i++ {
		e := newAccount(fmt.Sprintf("e%d", i), "c1", fmt.Sprintf("Emp %d", i), fmt.Sprintf("emp%d@acme.test", i), domain.RoleEmployee)
		if i == 5 {
			e.Disabled = true
		}
		require.NoError(t, store.Save(ctx, e))
	}
	require.NoError(t, store.Save(ctx, newAccount("x1", "c2", "Other", "other@globex.test", domain.RoleEmployee)))

	all, total, err := store.List(ctx, account.ListFilter{CompanyID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, all, 6)
	assert.Equal(t, "Emp 1", all[0].Name)

	page, total, err := store.List(ctx, account.ListFilter{CompanyID: "c1", Role: domain.RoleEmployee, Sort: "name", Dir: "desc", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Emp 3", page[0].Name)

	disabled, _, err := store.List(ctx, account.ListFilter{CompanyID: "c1", Status: "disabled"})
	require.NoError(t, err)
	require.Len(t, disabled, 1)
	assert.Equal(t, "e5", disabled[0].ID)

	found, _, err := store.List(ctx, account.ListFilter{CompanyID: "c1", Search: "ZED"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a0", found[0].ID)
}
