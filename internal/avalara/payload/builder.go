package payload

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"github.com/smallbiznis/taxbridge/internal/clock"
	"github.com/smallbiznis/taxbridge/internal/config"
)

const dateLayout = "2006-01-02"

// Input is everything needed to describe one tax document.
type Input struct {
	DocType         avalaradomain.DocType
	DocCode         string
	User            avalaradomain.User
	Lines           []avalaradomain.Line
	ShippingAddress avalaradomain.AddressSource
	ShippingMethod  string
	ShippingCharge  decimal.Decimal
}

// Builder turns commerce lines into a transactions/create document. It does
// no I/O; the only non-input value it reads is the current date.
type Builder struct {
	cfg   *config.AvalaraConfigHolder
	clock clock.Clock
}

func NewBuilder(cfg *config.AvalaraConfigHolder, clk clock.Clock) *Builder {
	return &Builder{cfg: cfg, clock: clk}
}

func (b *Builder) Build(in Input) (*avalaradomain.TaxQuoteRequest, error) {
	if in.ShippingAddress == nil {
		return nil, &avalaradomain.ConfigurationError{Field: "shipping_address", Message: "shipping address is required"}
	}
	shipTo, err := in.ShippingAddress.Resolve()
	if err != nil {
		return nil, err
	}

	doc := &avalaradomain.TaxQuoteRequest{
		CompanyCode:  b.cfg.Get().CompanyCode,
		Date:         b.clock.Now().Format(dateLayout),
		CustomerCode: customerCode(in.User),
		Code:         in.DocCode,
		Type:         in.DocType,
		Addresses:    map[string]avalaradomain.AddressRecord{avalaradomain.AddressRoleShipTo: shipTo},
		Lines:        make([]avalaradomain.LineItem, 0, len(in.Lines)+1),
	}

	// Origin codes in first-seen order; the first one is also the shipping origin.
	var originCodes []string
	seenOrigins := map[string]struct{}{}

	for _, line := range in.Lines {
		item, origin, err := lineItem(line)
		if err != nil {
			return nil, err
		}

		code := origin.Code()
		if _, seen := seenOrigins[code]; !seen {
			seenOrigins[code] = struct{}{}
			originCodes = append(originCodes, code)
			item.Addresses = map[string]avalaradomain.AddressRecord{avalaradomain.AddressRoleShipFrom: origin}
		}

		doc.Lines = append(doc.Lines, item)
	}

	if len(originCodes) == 0 {
		return nil, &avalaradomain.ConfigurationError{Field: "lines", Message: "at least one line is required to resolve a ship-from address"}
	}

	doc.Lines = append(doc.Lines, avalaradomain.LineItem{
		Number:          avalaradomain.ShippingLineNumber,
		Quantity:        1,
		TaxCode:         avalaradomain.ShippingTaxCode,
		ItemCode:        "",
		Description:     truncate(in.ShippingMethod),
		Amount:          in.ShippingCharge,
		OriginCode:      originCodes[0],
		DestinationCode: shipTo.Code(),
	})

	return doc, nil
}

func lineItem(line avalaradomain.Line) (avalaradomain.LineItem, avalaradomain.AddressRecord, error) {
	number := strconv.FormatInt(line.LineID(), 10)
	if line.Quantity() < 1 {
		return avalaradomain.LineItem{}, avalaradomain.AddressRecord{}, &avalaradomain.ConfigurationError{
			Field:   "quantity",
			Message: "line " + number + " must have a quantity of at least 1",
		}
	}

	record := line.StockRecord()
	if record == nil || record.Partner() == nil {
		return avalaradomain.LineItem{}, avalaradomain.AddressRecord{}, &avalaradomain.ConfigurationError{
			Field:   "stock_record",
			Message: "line " + number + " has no partner stock record",
		}
	}

	partner := record.Partner()
	source := partner.PrimaryAddress()
	if source == nil {
		return avalaradomain.LineItem{}, avalaradomain.AddressRecord{}, &avalaradomain.ConfigurationError{
			Field:   "partner_address",
			Message: "you need to create a primary address for partner " + partner.Name() + " in order for Avalara to be able to calculate taxes",
		}
	}
	origin, err := source.Resolve()
	if err != nil {
		return avalaradomain.LineItem{}, avalaradomain.AddressRecord{}, err
	}

	var taxCode, description string
	if product := line.Product(); product != nil {
		if code, ok := product.TaxCategory(); ok {
			taxCode = code
		}
		description = truncate(product.Description())
	}

	return avalaradomain.LineItem{
		Number:      number,
		Quantity:    line.Quantity(),
		TaxCode:     taxCode,
		ItemCode:    record.PartnerSKU(),
		Description: description,
		Amount:      lineAmount(line),
	}, origin, nil
}

// lineAmount prefers the discount-inclusive price on uncommitted basket lines.
func lineAmount(line avalaradomain.Line) decimal.Decimal {
	if basketLine, ok := line.(avalaradomain.BasketLine); ok {
		return basketLine.LinePriceExclTaxInclDiscounts()
	}
	return line.LinePriceExclTax()
}

func customerCode(user avalaradomain.User) string {
	if user == nil || user.UserID() == 0 {
		return avalaradomain.AnonymousCustomer
	}
	return "customer-" + strconv.FormatInt(user.UserID(), 10)
}

func truncate(value string) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= avalaradomain.MaxDescriptionLength {
		return value
	}
	return string(runes[:avalaradomain.MaxDescriptionLength])
}
