package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medimeet/telehealth-api/pkg/apperror"
)

// Claims is what the external identity provider asserts about a caller.
// ExternalID is the provider's stable user identifier; it maps 1:1 onto a
// local User row.
type Claims struct {
	ExternalID string
	Email      string
	Name       string
}

// Verifier validates a session token issued by the identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// JWTVerifier checks provider session tokens signed with the shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperror.Unauthorized("invalid token")
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperror.Unauthorized("invalid token claims")
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, apperror.Unauthorized("token missing subject")
	}

	email, _ := mapClaims["email"].(string)
	name, _ := mapClaims["name"].(string)

	return &Claims{ExternalID: sub, Email: email, Name: name}, nil
}
