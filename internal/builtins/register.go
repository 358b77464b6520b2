// ABOUTME: Registers every built-in pack with a registry
// ABOUTME: Used by the gateway and by tests that need the full tool catalog

package builtins

import (
	"fmt"
	"time"

	"github.com/2389/books-mcp/internal/auth"
	"github.com/2389/books-mcp/internal/books"
	"github.com/2389/books-mcp/internal/exchange"
	"github.com/2389/books-mcp/internal/packs"
)

// Deps are the collaborators the built-in packs run against.
type Deps struct {
	Gate  *auth.Gate
	Books *books.Repository
	Rates *exchange.Rates
	Now   func() time.Time
}

// RegisterAll registers the session, books and exchange packs.
func RegisterAll(registry *packs.Registry, deps Deps) error {
	all := []*packs.BuiltinPack{
		SessionPack(deps.Gate),
		BooksPack(deps.Books),
		ExchangePack(deps.Rates, deps.Now),
	}
	for _, pack := range all {
		if err := registry.RegisterBuiltinPack(pack); err != nil {
			return fmt.Errorf("registering %s: %w", pack.ID, err)
		}
	}
	return nil
}
