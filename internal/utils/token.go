package utils

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/otahak/herald/internal/config"
	"github.com/otahak/herald/internal/errors"
)

// PlayerClaims ties a join token to one seat in one game.
type PlayerClaims struct {
	GameCode string `json:"game_code"`
	PlayerID string `json:"player_id"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies player join tokens. Tokens are handed out
// on create/join and presented over the websocket to claim a seat.
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewTokenManager builds a manager from config.
func NewTokenManager(cfg *config.JWTConfig) *TokenManager {
	expiry := time.Duration(cfg.ExpireHours) * time.Hour
	if expiry <= 0 {
		expiry = 720 * time.Hour
	}
	return &TokenManager{
		secret: []byte(cfg.Secret),
		expiry: expiry,
	}
}

// IssuePlayerToken signs a token for the given seat.
func (m *TokenManager) IssuePlayerToken(gameCode, playerID string) (string, error) {
	now := time.Now().UTC()
	claims := PlayerClaims{
		GameCode: gameCode,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTokenInvalid)
	}
	return signed, nil
}

// ParsePlayerToken verifies a token and returns its claims.
func (m *TokenManager) ParsePlayerToken(raw string) (*PlayerClaims, error) {
	claims := &PlayerClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Newf(errors.ErrTokenInvalid, "unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(err, errors.ErrTokenExpired)
		}
		return nil, errors.Wrap(err, errors.ErrTokenInvalid)
	}
	if !token.Valid {
		return nil, errors.New(errors.ErrTokenInvalid)
	}
	return claims, nil
}
