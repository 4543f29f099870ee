package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxbridge/pkg/db/pagination"
)

// Gateway performs one round trip to the tax service.
type Gateway interface {
	PostTaxQuote(ctx context.Context, payload *TaxQuoteRequest) (*TaxQuoteResponse, error)
}

// QuoteCache short-circuits repeated quotes for an unchanged basket.
type QuoteCache interface {
	Get(ctx context.Context, payload *TaxQuoteRequest) (*TaxQuoteResponse, bool, error)
	Set(ctx context.Context, payload *TaxQuoteRequest, resp *TaxQuoteResponse) error
}

type Service interface {
	ApplyTaxesToSubmission(ctx context.Context, submission *Submission) error
	ApplyTaxes(ctx context.Context, user User, basket Basket, shippingAddress AddressSource, shippingMethod ShippingMethod, shippingCharge ShippingCharge) error
	FetchTaxInfo(ctx context.Context, user User, basket Basket, shippingAddress AddressSource, shippingMethod ShippingMethod, shippingCharge ShippingCharge) (*TaxQuoteResponse, error)
	Submit(ctx context.Context, order Order) (*TaxQuoteResponse, error)
}

type AuditService interface {
	List(ctx context.Context, req ListTaxRequestsRequest) (ListTaxRequestsResponse, error)
	Get(ctx context.Context, id string) (*TaxRequestDetail, error)
}

type ListTaxRequestsRequest struct {
	pagination.Pagination
	StartAt *time.Time
	EndAt   *time.Time
}

type ListTaxRequestsResponse struct {
	pagination.PageInfo
	TaxRequests []TaxRequestView `json:"tax_requests"`
}

type TaxRequestView struct {
	ID            string           `json:"id"`
	AccountNumber string           `json:"account_number"`
	Method        string           `json:"method"`
	URL           string           `json:"url"`
	DocCode       string           `json:"doc_code,omitempty"`
	DocType       string           `json:"doc_type,omitempty"`
	ResultCode    string           `json:"result_code,omitempty"`
	TotalTaxable  *decimal.Decimal `json:"total_taxable,omitempty"`
	TotalTax      string           `json:"total_tax,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// TaxRequestDetail adds the indented request and response bodies.
type TaxRequestDetail struct {
	TaxRequestView
	Request  string `json:"request"`
	Response string `json:"response"`
}
