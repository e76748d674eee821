package core

import (
	"context"

	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
)

type (
	AuthorizationStore interface {
		UpsertAuthorization(ctx context.Context, auth *Authorization) error
		IsAuthorized(ctx context.Context, owner, delegate uuid.UUID) (bool, error)
	}

	// Authorization lets a delegate withdraw, borrow, or withdraw
	// collateral on the owner's behalf. No expiry; the owner may revoke at
	// any time.
	Authorization struct {
		Owner    uuid.UUID `json:"owner"`
		Delegate uuid.UUID `json:"delegate"`
		Enabled  bool      `json:"enabled"`

		UpdatedAt int64 `json:"updatedAt"`
	}
)

func NewAuthorization(clk clock.Clock, owner, delegate uuid.UUID, enabled bool) *Authorization {
	return &Authorization{
		Owner:     owner,
		Delegate:  delegate,
		Enabled:   enabled,
		UpdatedAt: clk.Now().Unix(),
	}
}
