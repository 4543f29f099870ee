package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration      = errors.New("avalara_configuration_error")
	ErrGatewayUnavailable = errors.New("avalara_gateway_unavailable")
	ErrRemoteTax          = errors.New("avalara_remote_error")
	ErrReconciliation     = errors.New("avalara_reconciliation_error")

	ErrNotFound         = errors.New("not_found")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)

// ConfigurationError reports required commerce data that is missing, such as
// an address without a country or a partner without a primary address.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("avalara configuration error: %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// GatewayUnavailableError wraps a transport failure talking to the tax service.
type GatewayUnavailableError struct {
	URL string
	Err error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("avalara unavailable: %s: %v", e.URL, e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }

func (e *GatewayUnavailableError) Is(target error) bool { return target == ErrGatewayUnavailable }

// RemoteTaxError carries the message the tax service returned verbatim.
type RemoteTaxError struct {
	StatusCode int
	Message    string
}

func (e *RemoteTaxError) Error() string { return e.Message }

func (e *RemoteTaxError) Is(target error) bool { return target == ErrRemoteTax }

// ReconciliationError means the response does not cover a line that was sent.
type ReconciliationError struct {
	DocID      string
	LineNumber string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("unable to determine taxes on %s: no tax returned for line %s", e.DocID, e.LineNumber)
}

func (e *ReconciliationError) Is(target error) bool { return target == ErrReconciliation }
