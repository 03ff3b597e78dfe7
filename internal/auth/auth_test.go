package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}))

	return NewService(db, []byte("test-secret"))
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.SignUp(Credentials{Email: "shopper@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.NotEmpty(t, token.UserID)

	signIn, err := svc.SignIn(Credentials{Email: "shopper@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, token.UserID, signIn.UserID)

	claims, err := svc.ValidateToken(signIn.Token)
	require.NoError(t, err)
	assert.Equal(t, token.UserID, claims.UserID)
	assert.Equal(t, "shopper@example.com", claims.Email)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SignUp(Credentials{Email: "shopper@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.SignUp(Credentials{Email: "Shopper@Example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignUpRejectsWeakInput(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SignUp(Credentials{Email: "", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignUp(Credentials{Email: "shopper@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignInWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SignUp(Credentials{Email: "shopper@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.SignIn(Credentials{Email: "shopper@example.com", Password: "wrong-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignInUnknownEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.SignIn(Credentials{Email: "ghost@example.com", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsCorruptedToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.SignUp(Credentials{Email: "shopper@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token.Token + "x")
	assert.Error(t, err)
}
