package crm

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-navigator/internal/model"
	"github.com/sells-group/lead-navigator/pkg/suitecrm"
)

// SuiteCRMSource maps SuiteCRM V8 lead records into the Lead model.
type SuiteCRMSource struct {
	client suitecrm.Client
}

// NewSuiteCRMSource creates a lead source backed by the SuiteCRM API.
func NewSuiteCRMSource(client suitecrm.Client) *SuiteCRMSource {
	return &SuiteCRMSource{client: client}
}

func (s *SuiteCRMSource) GetAllLeads(ctx context.Context) ([]model.Lead, error) {
	records, err := s.client.GetAllLeads(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "crm: fetch leads")
	}

	leads := make([]model.Lead, 0, len(records))
	for _, rec := range records {
		lead, err := mapSuiteCRMLead(rec)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func (s *SuiteCRMSource) GetLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	rec, err := s.client.GetLeadByID(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "crm: fetch lead %s", id)
	}
	if rec == nil {
		return nil, nil
	}
	lead, err := mapSuiteCRMLead(*rec)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// mapSuiteCRMLead decodes the raw attribute object. The model's json tags
// match the SuiteCRM attribute names, so the mapping is a straight
// unmarshal plus the record id, which lives outside the attributes.
func mapSuiteCRMLead(rec suitecrm.Lead) (model.Lead, error) {
	var lead model.Lead
	if len(rec.Attributes) > 0 {
		if err := json.Unmarshal(rec.Attributes, &lead); err != nil {
			return model.Lead{}, eris.Wrapf(err, "crm: map lead %s", rec.ID)
		}
	}
	lead.ID = rec.ID
	return lead, nil
}
