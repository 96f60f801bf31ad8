// Package session issues and verifies signed caller tokens. A token carries
// the username and security level that queue operations act on.
package session

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/PlanetLumi/TicketSystem/internal/domain"
	apperrors "github.com/PlanetLumi/TicketSystem/pkg/util"
)

const defaultTTL = 8 * time.Hour

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager. A non-positive ttl selects the
// default.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims describes JWT payload.
type Claims struct {
	Level domain.SecurityLevel `json:"level"`
	jwt.RegisteredClaims
}

// Issue builds and signs a token for caller.
func (tm *TokenManager) Issue(caller domain.Caller) (string, time.Time, error) {
	if caller.Username == "" {
		return "", time.Time{}, apperrors.NewValidationError("username is required", nil)
	} else if !caller.Level.Valid() {
		return "", time.Time{}, apperrors.NewValidationError("invalid security level", map[string]any{"level": int(caller.Level)})
	}

	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Level: caller.Level,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.Username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Parse validates tokenStr and returns the caller it names.
func (tm *TokenManager) Parse(tokenStr string) (domain.Caller, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return domain.Caller{}, apperrors.NewForbidden("invalid session token: " + err.Error())
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return domain.Caller{}, apperrors.NewForbidden("invalid token claims")
	}
	return domain.Caller{Username: claims.Subject, Level: claims.Level}, nil
}

// CurrentCallerLevel returns the level carried by tokenStr, or BASE when the
// token is missing or invalid.
func (tm *TokenManager) CurrentCallerLevel(tokenStr string) domain.SecurityLevel {
	caller, err := tm.Parse(tokenStr)
	if err != nil {
		return domain.SecurityLevelBase
	}
	return caller.Level
}
