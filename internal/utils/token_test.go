package utils

import (
	"testing"
	"time"

	"github.com/otahak/herald/internal/config"
	"github.com/otahak/herald/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager(&config.JWTConfig{Secret: "test-secret", ExpireHours: 1})

	token, err := manager.IssuePlayerToken("ABCDEF", "player-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ParsePlayerToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", claims.GameCode)
	assert.Equal(t, "player-1", claims.PlayerID)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenManager(&config.JWTConfig{Secret: "secret-a", ExpireHours: 1})
	verifier := NewTokenManager(&config.JWTConfig{Secret: "secret-b", ExpireHours: 1})

	token, err := issuer.IssuePlayerToken("ABCDEF", "player-1")
	require.NoError(t, err)

	_, err = verifier.ParsePlayerToken(token)
	assert.Equal(t, errors.ErrTokenInvalid, errors.GetCode(err))
}

func TestTokenExpired(t *testing.T) {
	manager := NewTokenManager(&config.JWTConfig{Secret: "test-secret", ExpireHours: 1})
	manager.expiry = -time.Hour

	token, err := manager.IssuePlayerToken("ABCDEF", "player-1")
	require.NoError(t, err)

	_, err = manager.ParsePlayerToken(token)
	assert.Equal(t, errors.ErrTokenExpired, errors.GetCode(err))
}

func TestTokenGarbage(t *testing.T) {
	manager := NewTokenManager(&config.JWTConfig{Secret: "test-secret", ExpireHours: 1})

	_, err := manager.ParsePlayerToken("not.a.token")
	assert.Equal(t, errors.ErrTokenInvalid, errors.GetCode(err))
}
