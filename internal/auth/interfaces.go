package auth

import (
	"context"

	"github.com/k-weiss/tokenpool/internal/remote"
)

// Handshaker abstracts the remote login/logout round-trips.
type Handshaker interface {
	Login(ctx context.Context) (*remote.LoginResult, error)
	Logout(ctx context.Context, token string) error
}
