package repositories

import (
	"context"
	"testing"

	"feed-lab/errors"

	"github.com/stretchr/testify/require"
)

func newTestUserRepository(t *testing.T) *UserRepository {
	t.Helper()
	repo, err := NewUserRepository(openTestDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func Test_CreateUser_And_Lookup(t *testing.T) {
	req := require.New(t)
	repo := newTestUserRepository(t)

	created, err := repo.CreateUser("alice", "hashed-password")
	req.NoError(err)
	req.Positive(int(created.ID))
	req.Equal("alice", created.Username)

	byName, err := repo.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(created, byName)

	byID, err := repo.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal(created, byID)
}

func Test_CreateUser_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	repo := newTestUserRepository(t)

	_, err := repo.CreateUser("alice", "hash-1")
	req.NoError(err)

	_, err = repo.CreateUser("alice", "hash-2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_GetUser_Unknown(t *testing.T) {
	req := require.New(t)
	repo := newTestUserRepository(t)

	_, err := repo.GetUserByUsername("nobody")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repo.GetUserByID(999)
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func Test_DisplayName_Resolves_Username(t *testing.T) {
	req := require.New(t)
	repo := newTestUserRepository(t)

	created, err := repo.CreateUser("bob", "hash")
	req.NoError(err)

	name, err := repo.DisplayName(context.Background(), created.ID)
	req.NoError(err)
	req.Equal("bob", name)

	_, err = repo.DisplayName(context.Background(), 404)
	req.ErrorIs(err, errors.ErrUserNotFound)
}
