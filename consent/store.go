package consent

import (
	"context"

	"github.com/swypapp/sessionkit/provider"
)

// FlagStore records whether the user has completed the one-time legal
// consent step for a provider. Flags are durable across process restarts and
// are only ever set, never unset (account deletion is handled server-side).
type FlagStore interface {
	IsAgreed(ctx context.Context, variant provider.Variant) (bool, error)

	// SetAgreed marks the consent step done for the variant. Idempotent.
	SetAgreed(ctx context.Context, variant provider.Variant) error
}
