package crm

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSalesforce struct {
	records  []sfLead
	err      error
	lastSOQL string
}

func (f *fakeSalesforce) Query(_ context.Context, soql string, out any) error {
	f.lastSOQL = soql
	if f.err != nil {
		return f.err
	}
	*out.(*[]sfLead) = f.records
	return nil
}

func TestSalesforceSource_GetAllLeads(t *testing.T) {
	sf := &fakeSalesforce{records: []sfLead{
		{
			ID:          "00Q000000000001",
			FirstName:   "Sarah",
			LastName:    "Johnson",
			Company:     "Acme Manufacturing",
			Email:       "sarah@acme.com",
			Phone:       "555-0100",
			State:       "Illinois",
			CreatedDate: "2025-05-01T10:00:00Z",
		},
	}}
	src := NewSalesforceSource(sf, 50)

	leads, err := src.GetAllLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 1)

	lead := leads[0]
	assert.Equal(t, "00Q000000000001", lead.ID)
	assert.Equal(t, "Acme Manufacturing", lead.AccountName)
	assert.Equal(t, "sarah@acme.com", lead.Email1)
	assert.Equal(t, "555-0100", lead.PhoneWork)
	assert.Equal(t, "Illinois", lead.PrimaryAddressState)
	assert.Equal(t, "2025-05-01T10:00:00Z", lead.DateEntered)

	assert.Contains(t, sf.lastSOQL, "FROM Lead")
	assert.Contains(t, sf.lastSOQL, "LIMIT 50")
}

func TestSalesforceSource_DefaultLimit(t *testing.T) {
	sf := &fakeSalesforce{}
	src := NewSalesforceSource(sf, 0)

	_, err := src.GetAllLeads(context.Background())
	require.NoError(t, err)
	assert.Contains(t, sf.lastSOQL, "LIMIT 20")
}

func TestSalesforceSource_GetLeadByID(t *testing.T) {
	sf := &fakeSalesforce{records: []sfLead{{ID: "00Q1", LastName: "Kim"}}}
	src := NewSalesforceSource(sf, 20)

	lead, err := src.GetLeadByID(context.Background(), "00Q1")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "Kim", lead.LastName)
	assert.Contains(t, sf.lastSOQL, "WHERE Id = '00Q1'")
}

func TestSalesforceSource_GetLeadByID_NotFound(t *testing.T) {
	src := NewSalesforceSource(&fakeSalesforce{}, 20)

	lead, err := src.GetLeadByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, lead)
}

func TestSalesforceSource_QueryError(t *testing.T) {
	src := NewSalesforceSource(&fakeSalesforce{err: eris.New("expired session")}, 20)

	_, err := src.GetAllLeads(context.Background())
	require.Error(t, err)
}

func TestEscapeSOQL(t *testing.T) {
	sf := &fakeSalesforce{}
	src := NewSalesforceSource(sf, 20)

	_, err := src.GetLeadByID(context.Background(), `a'; DROP TABLE--`)
	require.NoError(t, err)
	assert.Contains(t, sf.lastSOQL, `WHERE Id = 'a\'; DROP TABLE--'`)
}
