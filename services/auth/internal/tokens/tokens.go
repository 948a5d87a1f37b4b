// Package tokens issues the HS256 access tokens that every service verifies
// with auth.JWTVerifier.
package tokens

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/example/study-spots/internal/platform/auth"
)

type Service struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

func (s Service) NewAccessToken(userID int64, username string, now time.Time) (string, time.Time, error) {
	if len(s.Secret) == 0 {
		return "", time.Time{}, errors.New("missing jwt secret")
	}
	if userID <= 0 {
		return "", time.Time{}, errors.New("invalid user id")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(s.AccessTokenTTL)

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username: username,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (s Service) ParseAccessToken(tokenString string) (*auth.Claims, error) {
	return auth.JWTVerifier{Secret: s.Secret}.Parse(tokenString)
}
