// Package service orchestrates the local store, the remote CRM, and insight
// generation: get-or-fetch for leads, get-or-generate for insights.
package service

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/lead-navigator/internal/crm"
	"github.com/sells-group/lead-navigator/internal/insight"
	"github.com/sells-group/lead-navigator/internal/model"
	"github.com/sells-group/lead-navigator/internal/store"
)

// Service implements the operations exposed to the presentation layer. It
// holds no state beyond the initialization flag; all records live in the
// store.
type Service struct {
	store store.Store
	crm   crm.Client
	gen   *insight.Selector

	mu          sync.Mutex
	initialized bool
	initGroup   singleflight.Group
}

// New creates the orchestration service.
func New(st store.Store, crmClient crm.Client, gen *insight.Selector) *Service {
	return &Service{
		store: st,
		crm:   crmClient,
		gen:   gen,
	}
}

// Initialized reports whether the initial CRM fetch has completed.
func (s *Service) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// InitializeApp fetches the full lead list from the CRM and stores it
// locally. It is idempotent, and concurrent callers share one in-flight
// fetch. On failure the flag stays unset so a later call retries.
func (s *Service) InitializeApp(ctx context.Context) error {
	if s.Initialized() {
		return nil
	}

	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		if s.Initialized() {
			return nil, nil
		}

		leads, err := s.crm.GetAllLeads(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "service: initialize: fetch leads")
		}
		zap.L().Info("fetched leads from CRM", zap.Int("count", len(leads)))

		if err := s.store.StoreLeads(ctx, leads); err != nil {
			return nil, eris.Wrap(err, "service: initialize: store leads")
		}

		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()

		zap.L().Info("application data initialized", zap.Int("leads", len(leads)))
		return nil, nil
	})
	return err
}

// GetAllLeads returns the locally stored leads, triggering initialization
// once when the store is empty.
func (s *Service) GetAllLeads(ctx context.Context) ([]model.Lead, error) {
	leads, err := s.store.GetAllLeads(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "service: get all leads")
	}

	if len(leads) == 0 {
		zap.L().Info("no leads stored locally, initializing")
		if err := s.InitializeApp(ctx); err != nil {
			return nil, err
		}
		leads, err = s.store.GetAllLeads(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "service: get all leads after init")
		}
	}

	return leads, nil
}

// GetLeadByID looks a lead up locally first, then falls back to a single
// remote fetch, storing the result. Returns (nil, nil) when neither side
// has the lead.
func (s *Service) GetLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := s.store.GetLeadByID(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "service: get lead %s", id)
	}
	if lead != nil {
		return lead, nil
	}

	zap.L().Info("lead not stored locally, fetching from CRM", zap.String("lead_id", id))
	lead, err = s.crm.GetLeadByID(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "service: fetch lead %s", id)
	}
	if lead == nil {
		return nil, nil
	}

	if err := s.store.StoreLeads(ctx, []model.Lead{*lead}); err != nil {
		return nil, eris.Wrapf(err, "service: store fetched lead %s", id)
	}
	return lead, nil
}

// GetInsightsForLead returns the stored insight set for a lead, empty if
// none has been generated.
func (s *Service) GetInsightsForLead(ctx context.Context, leadID string) ([]model.Insight, error) {
	insights, err := s.store.GetInsightsForLead(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "service: get insights for lead %s", leadID)
	}
	return insights, nil
}

// GenerateInsightsForLead computes a fresh insight set and persists it,
// replacing any stored set.
func (s *Service) GenerateInsightsForLead(ctx context.Context, lead model.Lead) ([]model.Insight, error) {
	insights := s.gen.Generate(ctx, lead)
	zap.L().Info("generated insights",
		zap.String("lead_id", lead.ID),
		zap.Int("count", len(insights)),
	)

	if err := s.store.StoreInsights(ctx, lead.ID, insights); err != nil {
		return nil, eris.Wrapf(err, "service: store insights for lead %s", lead.ID)
	}
	return insights, nil
}

// GetOrGenerateInsights returns the stored insight set for a lead,
// generating and persisting one when none exists. Generation happens at
// most once per lead per cache lifetime.
func (s *Service) GetOrGenerateInsights(ctx context.Context, lead model.Lead) ([]model.Insight, error) {
	insights, err := s.GetInsightsForLead(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	if len(insights) > 0 {
		return insights, nil
	}

	zap.L().Info("no stored insights, generating", zap.String("lead_id", lead.ID))
	return s.GenerateInsightsForLead(ctx, lead)
}

// RefreshAllData clears the local store, resets the initialization flag,
// and re-fetches everything from the CRM.
func (s *Service) RefreshAllData(ctx context.Context) error {
	if err := s.store.ClearAllData(ctx); err != nil {
		return eris.Wrap(err, "service: refresh: clear store")
	}

	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()

	if err := s.InitializeApp(ctx); err != nil {
		return err
	}

	zap.L().Info("data refresh complete")
	return nil
}

// SearchLeads filters the cached lead set by a case-insensitive substring
// match against full name, account name, and primary email.
func (s *Service) SearchLeads(ctx context.Context, query string) ([]model.Lead, error) {
	leads, err := s.GetAllLeads(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "service: search leads")
	}

	q := strings.ToLower(query)
	var matches []model.Lead
	for _, lead := range leads {
		fullName := strings.ToLower(lead.FirstName + " " + lead.LastName)
		company := strings.ToLower(lead.AccountName)
		email := strings.ToLower(lead.Email1)

		if strings.Contains(fullName, q) || strings.Contains(company, q) || strings.Contains(email, q) {
			matches = append(matches, lead)
		}
	}
	return matches, nil
}

// GetDataStats returns aggregate record counts. It never fails: any store
// error is logged and zeros are returned.
func (s *Service) GetDataStats(ctx context.Context) model.DataStats {
	leads, err := s.store.CountLeads(ctx)
	if err != nil {
		zap.L().Warn("stats: count leads failed", zap.Error(err))
		return model.DataStats{}
	}
	insights, err := s.store.CountInsights(ctx)
	if err != nil {
		zap.L().Warn("stats: count insights failed", zap.Error(err))
		return model.DataStats{}
	}
	return model.DataStats{TotalLeads: leads, TotalInsights: insights}
}
