package usecase

import "context"

// TokenVerifier turns a bearer token into the authenticated user's id and email.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (uid, email string, err error)
}

// RealtimeNotifier pushes a frame to every live connection of a user.
// Delivery is best effort; persisted state is the source of truth.
type RealtimeNotifier interface {
	SendToUser(userID, kind string, payload interface{})
}
