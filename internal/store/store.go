// Package store provides durable keyed persistence for leads and their
// insight sets, with sqlite and postgres drivers.
package store

import (
	"context"

	"github.com/sells-group/lead-navigator/internal/model"
)

// Store defines the local persistence interface. Leads are keyed by id;
// insights are keyed by owning lead id, one current set per lead.
type Store interface {
	// Leads
	StoreLeads(ctx context.Context, leads []model.Lead) error
	GetAllLeads(ctx context.Context) ([]model.Lead, error)
	// GetLeadByID returns (nil, nil) when the lead is not stored.
	GetLeadByID(ctx context.Context, id string) (*model.Lead, error)

	// Insights. StoreInsights atomically replaces the lead's current set;
	// a concurrent read sees either the old set or the new one.
	StoreInsights(ctx context.Context, leadID string, insights []model.Insight) error
	GetInsightsForLead(ctx context.Context, leadID string) ([]model.Insight, error)

	// Stats
	CountLeads(ctx context.Context) (int, error)
	CountInsights(ctx context.Context) (int, error)

	// Lifecycle
	ClearAllData(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
