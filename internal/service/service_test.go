package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-navigator/internal/insight"
	"github.com/sells-group/lead-navigator/internal/model"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu       sync.Mutex
	leads    []model.Lead
	insights map[string][]model.Insight

	failCounts bool
}

func newMemStore() *memStore {
	return &memStore{insights: map[string][]model.Insight{}}
}

func (m *memStore) StoreLeads(_ context.Context, leads []model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lead := range leads {
		replaced := false
		for i := range m.leads {
			if m.leads[i].ID == lead.ID {
				m.leads[i] = lead
				replaced = true
				break
			}
		}
		if !replaced {
			m.leads = append(m.leads, lead)
		}
	}
	return nil
}

func (m *memStore) GetAllLeads(_ context.Context) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Lead(nil), m.leads...), nil
}

func (m *memStore) GetLeadByID(_ context.Context, id string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lead := range m.leads {
		if lead.ID == id {
			l := lead
			return &l, nil
		}
	}
	return nil, nil
}

func (m *memStore) StoreInsights(_ context.Context, leadID string, insights []model.Insight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights[leadID] = append([]model.Insight(nil), insights...)
	return nil
}

func (m *memStore) GetInsightsForLead(_ context.Context, leadID string) ([]model.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Insight(nil), m.insights[leadID]...), nil
}

func (m *memStore) CountLeads(_ context.Context) (int, error) {
	if m.failCounts {
		return 0, eris.New("db unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads), nil
}

func (m *memStore) CountInsights(_ context.Context) (int, error) {
	if m.failCounts {
		return 0, eris.New("db unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, set := range m.insights {
		n += len(set)
	}
	return n, nil
}

func (m *memStore) ClearAllData(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = nil
	m.insights = map[string][]model.Insight{}
	return nil
}

func (m *memStore) Migrate(_ context.Context) error { return nil }
func (m *memStore) Close() error                    { return nil }

// fakeCRM is a canned remote lead source that records call counts.
type fakeCRM struct {
	mu       sync.Mutex
	leads    []model.Lead
	err      error
	allCalls int
	byID     map[string]*model.Lead
}

func (f *fakeCRM) GetAllLeads(_ context.Context) ([]model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.leads, nil
}

func (f *fakeCRM) GetLeadByID(_ context.Context, id string) (*model.Lead, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[id], nil
}

// countingGenerator wraps the rule-based output and counts invocations.
type countingGenerator struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGenerator) Generate(_ context.Context, lead model.Lead) ([]model.Insight, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return []model.Insight{
		{ID: "engagement-1", Title: "Generated", Content: "for " + lead.ID, Category: model.CategoryEngagement, Confidence: 0.9},
	}, nil
}

func testLeads() []model.Lead {
	return []model.Lead{
		{ID: "lead-001", FirstName: "Sarah", LastName: "Johnson", AccountName: "Acme Manufacturing", Email1: "sarah@acme.com"},
		{ID: "lead-002", FirstName: "David", LastName: "Kim", AccountName: "Pacific Retail", Email1: "dkim@pacificretail.com"},
		{ID: "lead-003", FirstName: "Michael", LastName: "Chen", AccountName: "Global Logistics Inc", Email1: "mchen@globallogistics.com"},
	}
}

func newTestService(st *memStore, crmClient *fakeCRM, gen insight.Generator) *Service {
	return New(st, crmClient, insight.NewSelector(gen, insight.NewAnalyzer()))
}

func TestInitializeApp(t *testing.T) {
	st := newMemStore()
	crm := &fakeCRM{leads: testLeads()}
	svc := newTestService(st, crm, &countingGenerator{})

	require.NoError(t, svc.InitializeApp(context.Background()))
	assert.True(t, svc.Initialized())

	leads, err := st.GetAllLeads(context.Background())
	require.NoError(t, err)
	assert.Len(t, leads, 3)

	// Second call is a no-op.
	require.NoError(t, svc.InitializeApp(context.Background()))
	assert.Equal(t, 1, crm.allCalls)
}

func TestInitializeApp_RetriesAfterFailure(t *testing.T) {
	st := newMemStore()
	crm := &fakeCRM{err: eris.New("crm down")}
	svc := newTestService(st, crm, &countingGenerator{})

	require.Error(t, svc.InitializeApp(context.Background()))
	assert.False(t, svc.Initialized())

	crm.err = nil
	crm.leads = testLeads()
	require.NoError(t, svc.InitializeApp(context.Background()))
	assert.True(t, svc.Initialized())
}

func TestGetAllLeads_AutoInitializes(t *testing.T) {
	st := newMemStore()
	crm := &fakeCRM{leads: testLeads()}
	svc := newTestService(st, crm, &countingGenerator{})

	leads, err := svc.GetAllLeads(context.Background())
	require.NoError(t, err)
	assert.Len(t, leads, 3)
	assert.Equal(t, 1, crm.allCalls)

	// Subsequent reads come from the store.
	_, err = svc.GetAllLeads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, crm.allCalls)
}

func TestGetLeadByID_RemoteFallback(t *testing.T) {
	st := newMemStore()
	remote := model.Lead{ID: "lead-099", FirstName: "Nina", LastName: "Patel"}
	crm := &fakeCRM{byID: map[string]*model.Lead{"lead-099": &remote}}
	svc := newTestService(st, crm, &countingGenerator{})

	lead, err := svc.GetLeadByID(context.Background(), "lead-099")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "Nina Patel", lead.FullName())

	// The fetched lead is now cached locally.
	stored, err := st.GetLeadByID(context.Background(), "lead-099")
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestGetLeadByID_NotFoundAnywhere(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeCRM{byID: map[string]*model.Lead{}}, &countingGenerator{})

	lead, err := svc.GetLeadByID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, lead)
}

func TestGetLeadByID_RemoteErrorPropagates(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeCRM{err: eris.New("timeout")}, &countingGenerator{})

	_, err := svc.GetLeadByID(context.Background(), "lead-001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch lead")
}

func TestGetOrGenerateInsights_CachesResult(t *testing.T) {
	st := newMemStore()
	gen := &countingGenerator{}
	svc := newTestService(st, &fakeCRM{}, gen)

	lead := model.Lead{ID: "lead-001", FirstName: "Sarah"}

	first, err := svc.GetOrGenerateInsights(context.Background(), lead)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, gen.calls)

	second, err := svc.GetOrGenerateInsights(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.calls)
}

func TestGenerateInsightsForLead_ReplacesStored(t *testing.T) {
	st := newMemStore()
	gen := &countingGenerator{}
	svc := newTestService(st, &fakeCRM{}, gen)

	lead := model.Lead{ID: "lead-001"}

	_, err := svc.GetOrGenerateInsights(context.Background(), lead)
	require.NoError(t, err)

	_, err = svc.GenerateInsightsForLead(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestRefreshAllData(t *testing.T) {
	st := newMemStore()
	crm := &fakeCRM{leads: testLeads()}
	svc := newTestService(st, crm, &countingGenerator{})

	require.NoError(t, svc.InitializeApp(context.Background()))
	require.NoError(t, st.StoreInsights(context.Background(), "lead-001", []model.Insight{
		{ID: "engagement-1", Title: "old", Content: "old", Category: model.CategoryEngagement, Confidence: 0.8},
	}))

	require.NoError(t, svc.RefreshAllData(context.Background()))

	assert.True(t, svc.Initialized())
	assert.Equal(t, 2, crm.allCalls)

	insights, err := st.GetInsightsForLead(context.Background(), "lead-001")
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestSearchLeads(t *testing.T) {
	st := newMemStore()
	crm := &fakeCRM{leads: testLeads()}
	svc := newTestService(st, crm, &countingGenerator{})

	tests := []struct {
		query   string
		wantIDs []string
	}{
		{"chen", []string{"lead-003"}},
		{"CHEN", []string{"lead-003"}},
		{"global", []string{"lead-003"}},
		{"pacificretail.com", []string{"lead-002"}},
		{"michael chen", []string{"lead-003"}},
		{"zzz", nil},
		{"", []string{"lead-001", "lead-002", "lead-003"}},
	}

	for _, tt := range tests {
		t.Run("query "+tt.query, func(t *testing.T) {
			matches, err := svc.SearchLeads(context.Background(), tt.query)
			require.NoError(t, err)

			var ids []string
			for _, l := range matches {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestGetDataStats(t *testing.T) {
	st := newMemStore()
	crm := &fakeCRM{leads: testLeads()}
	svc := newTestService(st, crm, &countingGenerator{})

	require.NoError(t, svc.InitializeApp(context.Background()))
	require.NoError(t, st.StoreInsights(context.Background(), "lead-001", []model.Insight{
		{ID: "engagement-1", Title: "t", Content: "c", Category: model.CategoryEngagement, Confidence: 0.8},
	}))

	stats := svc.GetDataStats(context.Background())
	assert.Equal(t, 3, stats.TotalLeads)
	assert.Equal(t, 1, stats.TotalInsights)
}

func TestGetDataStats_ZerosOnError(t *testing.T) {
	st := newMemStore()
	st.failCounts = true
	svc := newTestService(st, &fakeCRM{}, &countingGenerator{})

	stats := svc.GetDataStats(context.Background())
	assert.Zero(t, stats.TotalLeads)
	assert.Zero(t, stats.TotalInsights)
}

func TestInitializeApp_Concurrent(t *testing.T) {
	st := newMemStore()
	crm := &fakeCRM{leads: testLeads()}
	svc := newTestService(st, crm, &countingGenerator{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.InitializeApp(context.Background())
		}()
	}
	wg.Wait()

	assert.True(t, svc.Initialized())
	assert.Equal(t, 1, crm.allCalls)
}
