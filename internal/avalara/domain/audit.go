package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TaxRequest is one request/response exchange with the tax service. Rows are
// append-only; nothing updates or deletes them.
type TaxRequest struct {
	ID            snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	AccountNumber string       `gorm:"column:account_number;size:64;not null"`
	Method        string       `gorm:"size:32;not null;default:GET"`
	URL           string       `gorm:"column:url;size:255;not null"`
	Request       string       `gorm:"type:text;not null;default:''"`
	Response      string       `gorm:"type:text;not null"`
	CreatedAt     time.Time    `gorm:"not null;index:idx_avalara_requests_created_at"`
}

func (TaxRequest) TableName() string { return "avalara_requests" }

func (r TaxRequest) String() string {
	docType, _ := r.DocType()
	resultCode, _ := r.ResultCode()
	return fmt.Sprintf("%s request, result: %s", docType, resultCode)
}

// DocCode is the document code sent in the request, if any.
func (r TaxRequest) DocCode() (string, bool) {
	return stringField(r.Request, "code")
}

func (r TaxRequest) DocType() (string, bool) {
	return stringField(r.Request, "type")
}

// ResultCode is the document code echoed back by the service.
func (r TaxRequest) ResultCode() (string, bool) {
	return stringField(r.Response, "code")
}

func (r TaxRequest) TotalTaxable() (decimal.Decimal, bool) {
	return decimalField(r.Response, "totalTaxable")
}

// TotalTax is rounded to cents for display.
func (r TaxRequest) TotalTax() (string, bool) {
	value, ok := decimalField(r.Response, "totalTax")
	if !ok {
		return "", false
	}
	return value.StringFixed(2), true
}

func jsonFields(body string) map[string]json.RawMessage {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil
	}
	return fields
}

func stringField(body, key string) (string, bool) {
	raw, ok := jsonFields(body)[key]
	if !ok || string(raw) == "null" {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

func decimalField(body, key string) (decimal.Decimal, bool) {
	raw, ok := jsonFields(body)[key]
	if !ok || string(raw) == "null" {
		return decimal.Decimal{}, false
	}
	var value decimal.Decimal
	if err := value.UnmarshalJSON(raw); err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}
