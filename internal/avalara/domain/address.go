package domain

import (
	"fmt"
	"strings"
)

// Address roles used in the addresses map of a document or line.
const (
	AddressRoleShipTo   = "shipTo"
	AddressRoleShipFrom = "shipFrom"
)

// AddressRecord is the canonical address shape sent to the tax service.
type AddressRecord struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

// Code is a structural identity key built from the normalised field values.
// Identical addresses always produce the same code, in any process.
func (a AddressRecord) Code() string {
	parts := []string{a.Line1, a.Line2, a.City, a.Region, a.Country, a.PostalCode}
	for i, part := range parts {
		parts[i] = strings.ToUpper(strings.Join(strings.Fields(part), " "))
	}
	return strings.Join(parts, "|")
}

// AddressSource is anything that can be normalised into an AddressRecord.
type AddressSource interface {
	Resolve() (AddressRecord, error)
}

type Country struct {
	ISO3166Alpha2 string
	PrintableName string
}

// PostalAddress is a domain address such as a partner's primary address or an
// order's shipping address. Country takes precedence over CountryID.
type PostalAddress struct {
	Line1     string
	Line2     string
	City      string
	State     string
	Postcode  string
	Country   *Country
	CountryID string
}

func (a PostalAddress) Resolve() (AddressRecord, error) {
	country, err := resolveCountry(a.Country, a.CountryID)
	if err != nil {
		return AddressRecord{}, err
	}
	return AddressRecord{
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		Region:     strings.TrimSpace(a.State),
		Country:    country,
		PostalCode: strings.TrimSpace(a.Postcode),
	}, nil
}

// RawAddress is a checkout submission's address as a field map. City lives
// under "line4"; "country" may hold a *Country, a Country or an alpha-2 string.
type RawAddress map[string]any

func (r RawAddress) Resolve() (AddressRecord, error) {
	var country *Country
	switch value := r["country"].(type) {
	case *Country:
		country = value
	case Country:
		country = &value
	case string:
		if strings.TrimSpace(value) != "" {
			country = &Country{ISO3166Alpha2: value}
		}
	}

	code, err := resolveCountry(country, r.str("country_id"))
	if err != nil {
		return AddressRecord{}, err
	}
	return AddressRecord{
		Line1:      r.str("line1"),
		Line2:      r.str("line2"),
		City:       r.str("line4"),
		Region:     r.str("state"),
		Country:    code,
		PostalCode: r.str("postcode"),
	}, nil
}

func (r RawAddress) str(key string) string {
	switch value := r[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case fmt.Stringer:
		return strings.TrimSpace(value.String())
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func resolveCountry(country *Country, countryID string) (string, error) {
	if country != nil {
		if code := strings.TrimSpace(country.ISO3166Alpha2); code != "" {
			return strings.ToUpper(code), nil
		}
	}
	if code := strings.TrimSpace(countryID); code != "" {
		return strings.ToUpper(code), nil
	}
	return "", &ConfigurationError{Field: "country", Message: "could not find country on address"}
}
