package tokens

import (
	"context"

	"github.com/swypapp/sessionkit/provider"
)

// Kind distinguishes the four token slots kept per provider variant.
type Kind string

const (
	ProviderAccess  Kind = "provider_access"
	ProviderRefresh Kind = "provider_refresh"
	BackendAccess   Kind = "backend_access"
	BackendRefresh  Kind = "backend_refresh"
)

// Kinds returns every token kind, in the order they are cleared and listed.
func Kinds() []Kind {
	return []Kind{ProviderAccess, ProviderRefresh, BackendAccess, BackendRefresh}
}

// Store is durable keyed storage for credential material. A missing key is a
// normal result, not an error. Writes must be fully visible before the call
// that issued them returns; concurrent writes to the same key are
// last-write-wins.
type Store interface {
	// Get returns the stored token and true, or "" and false when the key
	// has never been written or was cleared.
	Get(ctx context.Context, variant provider.Variant, kind Kind) (string, bool, error)

	// Set stores value under (variant, kind), replacing any previous value.
	Set(ctx context.Context, variant provider.Variant, kind Kind, value string) error

	// Clear removes every token kind stored for the variant.
	Clear(ctx context.Context, variant provider.Variant) error

	// ClearAll removes every provider's tokens.
	ClearAll(ctx context.Context) error
}
