package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyToken checks a Firebase ID token and returns its uid and email claim.
func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", "", err
	}

	email, _ := result.Claims["email"].(string)
	return result.UID, email, nil
}
