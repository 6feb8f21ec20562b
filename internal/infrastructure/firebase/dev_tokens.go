package firebase

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyDevToken = errors.New("empty dev token")

// DevTokenVerifier accepts "<uid>" or "<uid>:<email>" as a bearer token.
// Only for local development and tests.
type DevTokenVerifier struct{}

func NewDevTokenVerifier() *DevTokenVerifier {
	return &DevTokenVerifier{}
}

func (DevTokenVerifier) VerifyToken(ctx context.Context, token string) (string, string, error) {
	uid, email, _ := strings.Cut(strings.TrimSpace(token), ":")
	if uid == "" {
		return "", "", ErrEmptyDevToken
	}
	return uid, email, nil
}
