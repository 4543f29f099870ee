// Package reconcile writes the tax returned by Avalara back onto commerce lines.
package reconcile

import (
	"strconv"

	"github.com/shopspring/decimal"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
)

// unitTaxScale bounds the per-unit quotient. Quotients that terminate within it
// are exact; others are rounded half up at this many places.
const unitTaxScale = 28

type lineTax struct {
	line avalaradomain.Line
	unit decimal.Decimal
}

// Apply validates the whole response before touching any line. If a line or
// the shipping entry is missing, nothing is mutated.
// A nil response is treated as one that returned no lines.
func Apply(docID string, lines []avalaradomain.Line, shipping avalaradomain.ShippingCharge, resp *avalaradomain.TaxQuoteResponse) error {
	if shipping == nil {
		return &avalaradomain.ConfigurationError{Field: "shipping_charge", Message: "shipping charge is required to apply taxes"}
	}

	var returned []avalaradomain.TaxLine
	if resp != nil {
		returned = resp.Lines
	}
	taxes := make(map[string]decimal.Decimal, len(returned))
	for _, taxLine := range returned {
		taxes[taxLine.LineNumber] = taxLine.Tax
	}

	pending := make([]lineTax, 0, len(lines))
	for _, line := range lines {
		number := strconv.FormatInt(line.LineID(), 10)
		tax, ok := taxes[number]
		if !ok {
			return &avalaradomain.ReconciliationError{DocID: docID, LineNumber: number}
		}
		if line.Quantity() < 1 {
			return &avalaradomain.ConfigurationError{Field: "quantity", Message: "line " + number + " has no quantity"}
		}
		pending = append(pending, lineTax{
			line: line,
			unit: tax.DivRound(decimal.NewFromInt(int64(line.Quantity())), unitTaxScale),
		})
	}

	shippingTax, ok := taxes[avalaradomain.ShippingLineNumber]
	if !ok {
		return &avalaradomain.ReconciliationError{DocID: docID, LineNumber: avalaradomain.ShippingLineNumber}
	}

	for _, p := range pending {
		p.line.SetUnitTax(p.unit)
	}
	shipping.SetTax(shippingTax)
	return nil
}
