package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/microtask-api/internal/constants"
	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/repository"
	"github.com/yukikurage/microtask-api/internal/testutils"
)

func TestAuthService_SignupAndLogin(t *testing.T) {
	db := testutils.NewTestDB(t)
	service := NewAuthService(repository.NewUserRepository(db))
	ctx := context.Background()

	user, err := service.Signup(ctx, SignupInput{Username: " alice ", Password: "supersecret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "supersecret", user.PasswordHash)

	var groups []models.Group
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&groups).Error)
	require.Len(t, groups, 1)
	assert.Equal(t, constants.DefaultGroupTitle, groups[0].Title)

	loggedIn, err := service.Login(ctx, LoginInput{Username: "alice", Password: "supersecret"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	_, err = service.Login(ctx, LoginInput{Username: "alice", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.Login(ctx, LoginInput{Username: "nobody", Password: "supersecret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	found, err := service.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)

	_, err = service.GetUser(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_SignupValidation(t *testing.T) {
	db := testutils.NewTestDB(t)
	service := NewAuthService(repository.NewUserRepository(db))
	ctx := context.Background()

	_, err := service.Signup(ctx, SignupInput{Username: "  ", Password: "supersecret"})
	assert.ErrorIs(t, err, ErrUsernameRequired)

	_, err = service.Signup(ctx, SignupInput{Username: "bob", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = service.Signup(ctx, SignupInput{Username: "bob", Password: "supersecret"})
	require.NoError(t, err)

	_, err = service.Signup(ctx, SignupInput{Username: "bob", Password: "supersecret"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}
