package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func TestAccountCreateAndAuthenticate(t *testing.T) {
	repo := newMockAccountRepo()
	svc := NewAccountService(repo, plainHasher{})
	ctx := context.Background()

	user, err := svc.Create(ctx, " alice ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "hashed:s3cret", user.PasswordHash)

	got, err := svc.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Authenticate(ctx, "bob", "s3cret")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountCreate_Validation(t *testing.T) {
	svc := NewAccountService(newMockAccountRepo(), plainHasher{})
	ctx := context.Background()

	_, err := svc.Create(ctx, "   ", "pw")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Create(ctx, "alice", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAccount_PasswordByteLimit(t *testing.T) {
	repo := newMockAccountRepo()
	svc := NewAccountService(repo, plainHasher{})
	ctx := context.Background()

	// 72 characters, 144 bytes
	long := strings.Repeat("é", 72)

	_, err := svc.Create(ctx, "alice", long)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Create(ctx, "alice", strings.Repeat("a", 72))
	require.NoError(t, err)

	_, err = svc.Update(ctx, "alice", domain.UserUpdate{Password: strPtr(long)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Authenticate(ctx, "alice", strings.Repeat("a", 72))
	assert.NoError(t, err)
}

func TestAccountCreate_DuplicateUsername(t *testing.T) {
	svc := NewAccountService(newMockAccountRepo(), plainHasher{})
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "one")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "alice", "two")
	assert.ErrorIs(t, err, domain.ErrConflict)

	// original password still works
	_, err = svc.Authenticate(ctx, "alice", "one")
	assert.NoError(t, err)
}

func TestAccountUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("rename and change password", func(t *testing.T) {
		svc := NewAccountService(newMockAccountRepo(), plainHasher{})
		_, err := svc.Create(ctx, "alice", "old")
		require.NoError(t, err)

		user, err := svc.Update(ctx, "alice", domain.UserUpdate{NewUsername: strPtr("alicia"), Password: strPtr("new")})
		require.NoError(t, err)
		assert.Equal(t, "alicia", user.Username)

		_, err = svc.Authenticate(ctx, "alicia", "new")
		assert.NoError(t, err)
		_, err = svc.Authenticate(ctx, "alice", "old")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("password only keeps username", func(t *testing.T) {
		svc := NewAccountService(newMockAccountRepo(), plainHasher{})
		_, err := svc.Create(ctx, "alice", "old")
		require.NoError(t, err)

		user, err := svc.Update(ctx, "alice", domain.UserUpdate{Password: strPtr("new")})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("rename onto taken name", func(t *testing.T) {
		svc := NewAccountService(newMockAccountRepo(), plainHasher{})
		_, err := svc.Create(ctx, "alice", "a")
		require.NoError(t, err)
		_, err = svc.Create(ctx, "bob", "b")
		require.NoError(t, err)

		_, err = svc.Update(ctx, "alice", domain.UserUpdate{NewUsername: strPtr("bob")})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc := NewAccountService(newMockAccountRepo(), plainHasher{})
		_, err := svc.Update(ctx, "ghost", domain.UserUpdate{Password: strPtr("x")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("nothing to change", func(t *testing.T) {
		svc := NewAccountService(newMockAccountRepo(), plainHasher{})
		_, err := svc.Update(ctx, "alice", domain.UserUpdate{})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = svc.Update(ctx, "alice", domain.UserUpdate{NewUsername: strPtr(" ")})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestAccountListAndDelete(t *testing.T) {
	svc := NewAccountService(newMockAccountRepo(), plainHasher{})
	ctx := context.Background()

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := svc.Create(ctx, name, "pw")
		require.NoError(t, err)
	}

	users, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Username)

	require.NoError(t, svc.Delete(ctx, "bob"))
	require.NoError(t, svc.Delete(ctx, "bob"))

	users, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestAccount_StorageFailure(t *testing.T) {
	repo := newMockAccountRepo()
	repo.err = errors.New("connection reset")
	svc := NewAccountService(repo, plainHasher{})

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorage)

	_, err = svc.Authenticate(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, domain.ErrStorage)
}
