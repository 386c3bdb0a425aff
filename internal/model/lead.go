package model

import (
	"strings"
	"time"
)

// LeadStatus values follow the CRM's conventional open set. Status is
// free-text upstream, so these are matching constants, not an enum.
const (
	StatusNew       = "New"
	StatusContacted = "Contacted"
	StatusQualified = "Qualified"
)

// Lead is a prospective customer record fetched from the CRM. Every field
// except ID is optional; absence is an empty string. ID is the only field
// assumed unique and is the sole storage key.
type Lead struct {
	ID                      string `json:"id"`
	Salutation              string `json:"salutation,omitempty"`
	FirstName               string `json:"first_name,omitempty"`
	LastName                string `json:"last_name,omitempty"`
	Title                   string `json:"title,omitempty"`
	Department              string `json:"department,omitempty"`
	AccountName             string `json:"account_name,omitempty"`
	Email1                  string `json:"email1,omitempty"`
	Email2                  string `json:"email2,omitempty"`
	PhoneMobile             string `json:"phone_mobile,omitempty"`
	PhoneWork               string `json:"phone_work,omitempty"`
	PhoneHome               string `json:"phone_home,omitempty"`
	PhoneOther              string `json:"phone_other,omitempty"`
	PhoneFax                string `json:"phone_fax,omitempty"`
	Website                 string `json:"website,omitempty"`
	LeadSource              string `json:"lead_source,omitempty"`
	LeadSourceDescription   string `json:"lead_source_description,omitempty"`
	Status                  string `json:"status,omitempty"`
	StatusDescription       string `json:"status_description,omitempty"`
	Description             string `json:"description,omitempty"`
	PrimaryAddressStreet    string `json:"primary_address_street,omitempty"`
	PrimaryAddressCity      string `json:"primary_address_city,omitempty"`
	PrimaryAddressState     string `json:"primary_address_state,omitempty"`
	PrimaryAddressPostal    string `json:"primary_address_postalcode,omitempty"`
	PrimaryAddressCountry   string `json:"primary_address_country,omitempty"`
	AltAddressStreet        string `json:"alt_address_street,omitempty"`
	AltAddressCity          string `json:"alt_address_city,omitempty"`
	AltAddressState         string `json:"alt_address_state,omitempty"`
	AltAddressPostal        string `json:"alt_address_postalcode,omitempty"`
	AltAddressCountry       string `json:"alt_address_country,omitempty"`
	AssignedUserName        string `json:"assigned_user_name,omitempty"`
	ReferredBy              string `json:"refered_by,omitempty"`
	Converted               string `json:"converted,omitempty"`
	DoNotCall               string `json:"do_not_call,omitempty"`
	DateEntered             string `json:"date_entered,omitempty"`
	DateModified            string `json:"date_modified,omitempty"`
}

// FullName joins first and last name, trimming when either is absent.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// Location joins the non-empty primary address city/state/country parts.
func (l Lead) Location() string {
	var parts []string
	for _, p := range []string{l.PrimaryAddressCity, l.PrimaryAddressState, l.PrimaryAddressCountry} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ModifiedAt parses date_modified. Returns zero time and false when the
// field is absent or not RFC 3339.
func (l Lead) ModifiedAt() (time.Time, bool) {
	if l.DateModified == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, l.DateModified)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DaysSinceModified returns the whole days elapsed between date_modified and
// now. Returns false when date_modified is absent or unparsable.
func (l Lead) DaysSinceModified(now time.Time) (int, bool) {
	t, ok := l.ModifiedAt()
	if !ok {
		return 0, false
	}
	return int(now.Sub(t).Hours() / 24), true
}
