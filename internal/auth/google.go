package auth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// Identity is a verified external identity as reported by the authentication
// provider.
type Identity struct {
	ExternalID string
	Email      string
	Name       string
	AvatarURL  string
}

// Verifier checks a provider credential and returns the identity it proves.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Identity, error)
}

// GoogleVerifier validates Google ID tokens against the configured OAuth
// client ID.
type GoogleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	payload, err := idtoken.Validate(ctx, credential, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("id token validation failed: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if payload.Subject == "" || email == "" {
		return nil, fmt.Errorf("id token is missing subject or email")
	}

	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)

	return &Identity{
		ExternalID: payload.Subject,
		Email:      email,
		Name:       name,
		AvatarURL:  picture,
	}, nil
}
