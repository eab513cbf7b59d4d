package conference

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

// sdkClaims are the claims the SDK expects in its auth JWT.
type sdkClaims struct {
	AppKey   string `json:"appKey"`
	SDKKey   string `json:"sdkKey"`
	Meeting  string `json:"mn,omitempty"`
	Role     int    `json:"role"`
	TokenExp int64  `json:"tokenExp"`
	jwt.RegisteredClaims
}

// GenerateJWT signs an HS256 SDK token for the host role, valid for 24h.
func GenerateJWT(sdkKey, sdkSecret, pmi string, now time.Time) (string, error) {
	if sdkKey == "" || sdkSecret == "" {
		return "", fmt.Errorf("generate jwt: %w", ErrInvalidParameter)
	}

	exp := now.Add(tokenTTL)
	claims := sdkClaims{
		AppKey:   sdkKey,
		SDKKey:   sdkKey,
		Meeting:  pmi,
		Role:     1,
		TokenExp: exp.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(sdkSecret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
