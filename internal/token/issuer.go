// Package token mints the signed access tokens handed out to onboarded
// users. A token binds username and organization under an HS256 signature
// with an embedded expiry claim.
package token

import (
	"time"

	"github.com/auctionledger/onboard/internal/batch"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload: the standard expiry claim plus the username
// and organization the token is bound to. Nothing else from the user record
// goes into the token.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	OrgName  string `json:"orgName"`
}

// IssuedToken pairs the balance-free user record with its signed token,
// exactly as persisted in the token file.
type IssuedToken struct {
	User    batch.PublicUser `json:"user"`
	TokenID string           `json:"tokenId"`
}

// Issuer mints tokens with a fixed secret and time-to-live. Issue is pure
// computation; it has no side effects and no failure path beyond a
// malformed user record.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue validates the record, signs a Claims payload with
// exp = now + ttl, and returns the token together with the balance-free
// user.
func (i *Issuer) Issue(user *batch.UserRecord) (*IssuedToken, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(i.now().Add(i.ttl)),
		},
		Username: user.UserID,
		OrgName:  user.Org,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := t.SignedString(i.secret)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{User: user.Public(), TokenID: tokenString}, nil
}

// Decode parses and verifies a token minted by this issuer and returns its
// claims. Used by operators and tests to check what a token grants; the
// onboarding flow itself never verifies tokens.
func (i *Issuer) Decode(tokenID string) (*Claims, error) {
	claims := &Claims{}

	t, err := jwt.ParseWithClaims(tokenID, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}

	return claims, nil
}
