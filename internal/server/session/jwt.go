// Package session issues and verifies the bearer tokens handed out after a
// successful authentication ceremony.
package session

import (
	"errors"
	"time"

	"github.com/dvoronkov/lockbox/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carries the identity reference alongside the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	IdentityID string `json:"iid"`
	UserName   string `json:"uname"`
}

// Issuer mints and verifies HS256 session tokens.
type Issuer struct {
	secret   []byte
	validity time.Duration
}

func NewIssuer(secret []byte, validity time.Duration) *Issuer {
	return &Issuer{secret: secret, validity: validity}
}

// Issue mints a token for the identity. Each token gets a unique jti so
// individual sessions are distinguishable in logs.
func (i *Issuer) Issue(identityID, userName string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
		IdentityID: identityID,
		UserName:   userName,
	})
	return token.SignedString(i.secret)
}

// Verify parses the token and returns its claims. Expired tokens yield
// common.ErrTokenExpired; any other problem yields common.ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
