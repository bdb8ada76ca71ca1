package service

import (
	"cbseprep_backend/internal/model"
	"cbseprep_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users, env.cfg)

	user, err := auth.Register(RegisterRequest{
		Name:       "Asha",
		Email:      "asha@example.com",
		Password:   "correct-horse",
		ClassLevel: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "correct-horse", user.Password, "password must be stored hashed")

	token, logged, err := auth.Login("asha@example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := util.ParseJWT(token, env.cfg.JWT.Secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.Student, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users, env.cfg)

	_, err := auth.Register(RegisterRequest{Name: "A", Email: "dup@example.com", Password: "password-1"})
	require.NoError(t, err)

	_, err = auth.Register(RegisterRequest{Name: "B", Email: "dup@example.com", Password: "password-2"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users, env.cfg)

	_, err := auth.Register(RegisterRequest{Name: "A", Email: "a@example.com", Password: "password-1"})
	require.NoError(t, err)

	_, _, err = auth.Login("a@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, util.KindValidation, util.KindOf(err))
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService(env.users, env.cfg)

	user, err := auth.Register(RegisterRequest{Name: "A", Email: "locked@example.com", Password: "password-1"})
	require.NoError(t, err)
	require.NoError(t, env.db.Model(user).Update("disabled", true).Error)

	_, _, err = auth.Login("locked@example.com", "password-1")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}
