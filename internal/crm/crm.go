// Package crm adapts remote CRM systems to the Lead model. Two sources are
// supported: SuiteCRM (default) and Salesforce.
package crm

import (
	"context"

	"github.com/sells-group/lead-navigator/internal/model"
)

// Client is the remote lead source consumed by the orchestration service.
type Client interface {
	GetAllLeads(ctx context.Context) ([]model.Lead, error)
	// GetLeadByID returns (nil, nil) when the CRM has no such lead.
	GetLeadByID(ctx context.Context, id string) (*model.Lead, error)
}
