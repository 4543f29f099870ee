package domain

import "github.com/shopspring/decimal"

// The commerce model lives outside this module. These are the capabilities the
// tax integration needs from it.

type User interface {
	// UserID returns zero for anonymous shoppers.
	UserID() int64
}

type Product interface {
	Description() string
	// TaxCategory reports the product's tax code, or false when none is set.
	TaxCategory() (string, bool)
}

type Partner interface {
	Name() string
	// PrimaryAddress returns nil when the partner has no address on file.
	PrimaryAddress() AddressSource
}

type StockRecord interface {
	PartnerSKU() string
	Partner() Partner
}

// Line is a basket or order line.
type Line interface {
	LineID() int64
	Quantity() int
	Product() Product
	StockRecord() StockRecord
	// LinePriceExclTax is the tax-exclusive price of the whole line.
	LinePriceExclTax() decimal.Decimal
	// SetUnitTax assigns the per-unit tax. Rounding is left to the caller.
	SetUnitTax(tax decimal.Decimal)
}

// BasketLine is a line that has not been committed to an order yet; its
// discounts are only applied through LinePriceExclTaxInclDiscounts.
type BasketLine interface {
	Line
	LinePriceExclTaxInclDiscounts() decimal.Decimal
}

type ShippingCharge interface {
	ExclTax() decimal.Decimal
	SetTax(tax decimal.Decimal)
}

type ShippingMethod interface {
	Name() string
}

type Basket interface {
	BasketID() int64
	AllLines() []Line
}

type Order interface {
	Number() string
	User() User
	Lines() []Line
	ShippingAddress() AddressSource
	ShippingMethodName() string
	ShippingExclTax() decimal.Decimal
}

type OrderTotal struct {
	ExclTax decimal.Decimal
	InclTax decimal.Decimal
}

// TotalCalculator recomputes an order total once line and shipping taxes are known.
type TotalCalculator interface {
	Calculate(basket Basket, shippingCharge ShippingCharge) OrderTotal
}

// Submission is the checkout payload a payment-details step works with.
type Submission struct {
	User            User
	Basket          Basket
	ShippingAddress AddressSource
	ShippingMethod  ShippingMethod
	ShippingCharge  ShippingCharge
	OrderTotal      OrderTotal
}
