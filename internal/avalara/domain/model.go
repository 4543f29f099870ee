package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// DocType selects whether the tax service records the transaction.
type DocType string

const (
	DocTypeSalesOrder   DocType = "SalesOrder"   // quote, not committed
	DocTypeSalesInvoice DocType = "SalesInvoice" // committed
)

func DocTypeFor(commit bool) DocType {
	if commit {
		return DocTypeSalesInvoice
	}
	return DocTypeSalesOrder
}

const (
	ShippingLineNumber = "SHIPPING"
	ShippingTaxCode    = "FR"
	AnonymousCustomer  = "anonymous"

	MaxDescriptionLength = 255
)

// TaxQuoteRequest is the transactions/create request body.
type TaxQuoteRequest struct {
	CompanyCode  string                   `json:"companyCode"`
	Date         string                   `json:"date"`
	CustomerCode string                   `json:"customerCode"`
	Code         string                   `json:"code"`
	Type         DocType                  `json:"type"`
	Addresses    map[string]AddressRecord `json:"addresses"`
	Lines        []LineItem               `json:"lines"`
}

type LineItem struct {
	Number          string                   `json:"number"`
	Quantity        int                      `json:"quantity"`
	TaxCode         string                   `json:"taxCode"`
	ItemCode        string                   `json:"itemCode"`
	Description     string                   `json:"description"`
	Amount          decimal.Decimal          `json:"amount"`
	Addresses       map[string]AddressRecord `json:"addresses,omitempty"`
	OriginCode      string                   `json:"originCode,omitempty"`
	DestinationCode string                   `json:"destinationCode,omitempty"`
}

// TaxQuoteResponse keeps only what reconciliation needs plus the raw body.
type TaxQuoteResponse struct {
	Code         string          `json:"code,omitempty"`
	TotalTaxable decimal.Decimal `json:"totalTaxable"`
	TotalTax     decimal.Decimal `json:"totalTax"`
	Lines        []TaxLine       `json:"lines"`

	Raw json.RawMessage `json:"-"`
}

type TaxLine struct {
	LineNumber string          `json:"lineNumber"`
	Tax        decimal.Decimal `json:"tax"`
}
