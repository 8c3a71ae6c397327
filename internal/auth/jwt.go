package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped into every token minted by this service.
const Issuer = "localchat-backend"

// ErrMissingClientID is returned for an otherwise valid token without a client id.
var ErrMissingClientID = errors.New("token has no client id")

// --- JWT Claims ---

// APIClaims includes standard JWT claims plus the calling client's id.
type APIClaims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// NewAccessToken generates a new HS256 access token for clientID.
func NewAccessToken(clientID string, jwtSecret string, expiration time.Duration) (string, error) {
	if jwtSecret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := APIClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   clientID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", fmt.Errorf("sign access token for %s: %w", clientID, err)
	}
	return signedToken, nil
}

// ParseAccessToken validates tokenString and returns its claims.
// Errors wrap the jwt package sentinels (jwt.ErrTokenExpired, jwt.ErrTokenMalformed, ...).
func ParseAccessToken(tokenString string, jwtSecret string) (*APIClaims, error) {
	claims := &APIClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	}, jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenSignatureInvalid
	}
	if claims.ClientID == "" {
		return nil, ErrMissingClientID
	}
	return claims, nil
}
