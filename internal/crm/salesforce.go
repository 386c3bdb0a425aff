package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/lead-navigator/internal/model"
	"github.com/sells-group/lead-navigator/pkg/salesforce"
)

// leadFields is the SOQL column list fetched for every lead query.
const leadFields = "Id, Salutation, FirstName, LastName, Title, Company, Email, Phone, MobilePhone, Website, LeadSource, Status, Description, Street, City, State, PostalCode, Country, CreatedDate, LastModifiedDate"

// SalesforceSource maps Salesforce Lead sObjects into the Lead model.
type SalesforceSource struct {
	client salesforce.Client
	limit  int
}

// NewSalesforceSource creates a lead source backed by the Salesforce API.
// limit caps the number of leads fetched by GetAllLeads.
func NewSalesforceSource(client salesforce.Client, limit int) *SalesforceSource {
	if limit <= 0 {
		limit = 20
	}
	return &SalesforceSource{client: client, limit: limit}
}

// sfLead mirrors the queried Lead sObject columns.
type sfLead struct {
	ID               string `json:"Id"`
	Salutation       string `json:"Salutation"`
	FirstName        string `json:"FirstName"`
	LastName         string `json:"LastName"`
	Title            string `json:"Title"`
	Company          string `json:"Company"`
	Email            string `json:"Email"`
	Phone            string `json:"Phone"`
	MobilePhone      string `json:"MobilePhone"`
	Website          string `json:"Website"`
	LeadSource       string `json:"LeadSource"`
	Status           string `json:"Status"`
	Description      string `json:"Description"`
	Street           string `json:"Street"`
	City             string `json:"City"`
	State            string `json:"State"`
	PostalCode       string `json:"PostalCode"`
	Country          string `json:"Country"`
	CreatedDate      string `json:"CreatedDate"`
	LastModifiedDate string `json:"LastModifiedDate"`
}

func (s *SalesforceSource) GetAllLeads(ctx context.Context) ([]model.Lead, error) {
	soql := fmt.Sprintf("SELECT %s FROM Lead ORDER BY LastModifiedDate DESC LIMIT %d", leadFields, s.limit)

	var records []sfLead
	if err := s.client.Query(ctx, soql, &records); err != nil {
		return nil, err
	}

	leads := make([]model.Lead, len(records))
	for i, rec := range records {
		leads[i] = mapSalesforceLead(rec)
	}
	return leads, nil
}

func (s *SalesforceSource) GetLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	soql := fmt.Sprintf("SELECT %s FROM Lead WHERE Id = '%s' LIMIT 1", leadFields, escapeSOQL(id))

	var records []sfLead
	if err := s.client.Query(ctx, soql, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	lead := mapSalesforceLead(records[0])
	return &lead, nil
}

func mapSalesforceLead(rec sfLead) model.Lead {
	return model.Lead{
		ID:                    rec.ID,
		Salutation:            rec.Salutation,
		FirstName:             rec.FirstName,
		LastName:              rec.LastName,
		Title:                 rec.Title,
		AccountName:           rec.Company,
		Email1:                rec.Email,
		PhoneWork:             rec.Phone,
		PhoneMobile:           rec.MobilePhone,
		Website:               rec.Website,
		LeadSource:            rec.LeadSource,
		Status:                rec.Status,
		Description:           rec.Description,
		PrimaryAddressStreet:  rec.Street,
		PrimaryAddressCity:    rec.City,
		PrimaryAddressState:   rec.State,
		PrimaryAddressPostal:  rec.PostalCode,
		PrimaryAddressCountry: rec.Country,
		DateEntered:           rec.CreatedDate,
		DateModified:          rec.LastModifiedDate,
	}
}

// escapeSOQL escapes quote characters in a user-supplied id so it can be
// embedded in a SOQL string literal.
func escapeSOQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
