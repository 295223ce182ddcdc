// Package identity turns bearer credentials into moderation participants.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tribunal/contexts/moderation-safety/report-consensus-service/domain/entities"
	domainerrors "tribunal/contexts/moderation-safety/report-consensus-service/domain/errors"
	"tribunal/contexts/moderation-safety/report-consensus-service/ports"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "tribunal"

var supportedAlgs = []string{jwt.SigningMethodHS256.Alg()}

// JWTResolver validates HS256 tokens and looks the subject up in Directory.
// Admin and banned flags always come from the directory, never the token.
type JWTResolver struct {
	Secret    []byte
	Directory ports.ParticipantDirectory
}

func NewJWTResolver(secret string, directory ports.ParticipantDirectory) (*JWTResolver, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if directory == nil {
		return nil, errors.New("participant directory is required")
	}
	return &JWTResolver{Secret: []byte(secret), Directory: directory}, nil
}

func (r *JWTResolver) ResolveParticipant(ctx context.Context, credential string) (entities.Participant, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return entities.Participant{}, domainerrors.ErrUnauthenticated
	}

	token, err := jwt.ParseWithClaims(credential, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return r.Secret, nil
	},
		jwt.WithValidMethods(supportedAlgs),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return entities.Participant{}, fmt.Errorf("%w: %v", domainerrors.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return entities.Participant{}, fmt.Errorf("%w: token has no subject", domainerrors.ErrUnauthenticated)
	}

	participant, err := r.Directory.LookupParticipant(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAgentNotFound) {
			return entities.Participant{}, fmt.Errorf("%w: unknown subject", domainerrors.ErrUnauthenticated)
		}
		return entities.Participant{}, err
	}
	return participant, nil
}

// Issue signs a token for subject valid for ttl.
func Issue(secret string, subject string, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret is required")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject is required")
	}
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
