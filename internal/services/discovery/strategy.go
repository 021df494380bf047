package discovery

import (
	"context"

	"github.com/ternarybob/vacans/internal/models"
)

// Options carries per-run discovery inputs: role filters, advanced query
// terms, and strategy overrides. Zero value means "use the profile's
// configured strategy with no filters".
type Options struct {
	// Roles narrows site-search queries to specific role names; empty falls
	// back to the generic careers probe
	Roles []string

	// Query carries location/experience/exclusion terms and logic flags
	Query QueryOptions

	// Strategies overrides the profile's configured strategy when non-empty;
	// results from multiple strategies are unioned by URL
	Strategies []models.DiscoveryStrategy
}

// Strategy produces candidate job URLs for one company using one discovery
// method. Implementations degrade to an empty slice on failure rather than
// aborting the run; the returned error is logged by the engine, not raised.
type Strategy interface {
	Name() models.DiscoveryStrategy
	Discover(ctx context.Context, company *models.Company, profile *models.ScrapeProfile, validator *Validator, opts Options) ([]string, error)
}
