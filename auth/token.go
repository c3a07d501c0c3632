package auth

import (
	"time"

	"feed-lab/domain/dm"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the structure of the data stored inside the JWT.
type Claims struct {
	UserID   dm.UserID `json:"user_id"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}

// Tokens issues and validates the bearer credentials presented at handshake
// time. The secret and lifetime come from configuration; nothing is global.
type Tokens struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokens(secret string, lifetime time.Duration) Tokens {
	return Tokens{secret: []byte(secret), lifetime: lifetime}
}

// Generate creates a signed JWT for a specific user.
func (t Tokens) Generate(userID dm.UserID, username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "feed-lab",
		},
	}

	// HS256 (HMAC with SHA256), signed with the server's secret key.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses and validates the signature and expiration of a JWT string.
func (t Tokens) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
