package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndVerify(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute)

	token, err := m.Issue("u1", "alice")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "alice", claims.UserName)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute)

	issued := time.Now()
	m.now = func() time.Time { return issued }
	token, err := m.Issue("u1", "alice")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = m.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	signer := NewTokenManager("secret-a", 15*time.Minute)
	verifier := NewTokenManager("secret-b", 15*time.Minute)

	token, err := signer.Issue("u1", "alice")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", 15*time.Minute)
	_, err := m.Verify("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
