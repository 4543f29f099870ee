// Package avalaratest provides in-memory commerce fixtures for tests.
package avalaratest

import (
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxbridge/internal/avalara/domain"
)

type User struct{ ID int64 }

func (u *User) UserID() int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

type Product struct {
	Desc       string
	TaxCode    string
	HasTaxCode bool
}

func (p *Product) Description() string { return p.Desc }

func (p *Product) TaxCategory() (string, bool) { return p.TaxCode, p.HasTaxCode }

type Partner struct {
	PartnerName string
	Address     domain.AddressSource
}

func (p *Partner) Name() string { return p.PartnerName }

func (p *Partner) PrimaryAddress() domain.AddressSource { return p.Address }

type StockRecord struct {
	SKU        string
	PartnerRef *Partner
}

func (s *StockRecord) PartnerSKU() string { return s.SKU }

func (s *StockRecord) Partner() domain.Partner { return s.PartnerRef }

// OrderLine is a committed line: only LinePriceExclTax is available.
type OrderLine struct {
	ID       int64
	Qty      int
	Prod     *Product
	Stock    *StockRecord
	Price    decimal.Decimal
	UnitTax  decimal.Decimal
	TaxIsSet bool
}

func (l *OrderLine) LineID() int64                     { return l.ID }
func (l *OrderLine) Quantity() int                     { return l.Qty }
func (l *OrderLine) Product() domain.Product           { return l.Prod }
func (l *OrderLine) StockRecord() domain.StockRecord   { return l.Stock }
func (l *OrderLine) LinePriceExclTax() decimal.Decimal { return l.Price }
func (l *OrderLine) SetUnitTax(tax decimal.Decimal)    { l.UnitTax, l.TaxIsSet = tax, true }

// BasketLine carries both the list price and the discounted price.
type BasketLine struct {
	OrderLine
	DiscountedPrice decimal.Decimal
}

func (l *BasketLine) LinePriceExclTaxInclDiscounts() decimal.Decimal { return l.DiscountedPrice }

type ShippingCharge struct {
	Amount   decimal.Decimal
	Tax      decimal.Decimal
	TaxIsSet bool
}

func (s *ShippingCharge) ExclTax() decimal.Decimal { return s.Amount }

func (s *ShippingCharge) SetTax(tax decimal.Decimal) { s.Tax, s.TaxIsSet = tax, true }

type ShippingMethod struct{ MethodName string }

func (m *ShippingMethod) Name() string { return m.MethodName }

type Basket struct {
	ID        int64
	BasketLns []domain.Line
}

func (b *Basket) BasketID() int64 { return b.ID }

func (b *Basket) AllLines() []domain.Line { return b.BasketLns }

type Order struct {
	OrderNumber string
	Owner       domain.User
	OrderLines  []domain.Line
	ShipTo      domain.AddressSource
	MethodName  string
	Shipping    decimal.Decimal
}

func (o *Order) Number() string                        { return o.OrderNumber }
func (o *Order) User() domain.User                     { return o.Owner }
func (o *Order) Lines() []domain.Line                  { return o.OrderLines }
func (o *Order) ShippingAddress() domain.AddressSource { return o.ShipTo }
func (o *Order) ShippingMethodName() string            { return o.MethodName }
func (o *Order) ShippingExclTax() decimal.Decimal      { return o.Shipping }

// WarehouseAddress is a US partner address used across tests.
func WarehouseAddress() domain.PostalAddress {
	return domain.PostalAddress{
		Line1:    "100 Warehouse Way",
		City:     "Seattle",
		State:    "WA",
		Postcode: "98101",
		Country:  &domain.Country{ISO3166Alpha2: "US", PrintableName: "United States"},
	}
}

// CustomerAddress is a submission-style shipping address.
func CustomerAddress() domain.RawAddress {
	return domain.RawAddress{
		"line1":    "1 Main St",
		"line2":    "Apt 4",
		"line4":    "Portland",
		"state":    "OR",
		"postcode": "97201",
		"country":  &domain.Country{ISO3166Alpha2: "US"},
	}
}

// NewBasketLine builds a basket line from a partner; price is the discounted line price.
func NewBasketLine(id int64, qty int, price string, partner *Partner) *BasketLine {
	amount := decimal.RequireFromString(price)
	return &BasketLine{
		OrderLine: OrderLine{
			ID:    id,
			Qty:   qty,
			Prod:  &Product{Desc: "Product " + strconv.FormatInt(id, 10), TaxCode: "P0000000", HasTaxCode: true},
			Stock: &StockRecord{SKU: "SKU-" + strconv.FormatInt(id, 10), PartnerRef: partner},
			Price: amount,
		},
		DiscountedPrice: amount,
	}
}

func NewPartner(name string, address domain.AddressSource) *Partner {
	return &Partner{PartnerName: name, Address: address}
}
