package service

import (
	"context"
	"fmt"

	avalaradomain "github.com/smallbiznis/taxbridge/internal/avalara/domain"
	"github.com/smallbiznis/taxbridge/internal/avalara/payload"
	"github.com/smallbiznis/taxbridge/internal/avalara/reconcile"
	obslogger "github.com/smallbiznis/taxbridge/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Builder *payload.Builder
	Gateway avalaradomain.Gateway
	Cache   avalaradomain.QuoteCache      `optional:"true"`
	Totals  avalaradomain.TotalCalculator `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	builder *payload.Builder
	gateway avalaradomain.Gateway
	cache   avalaradomain.QuoteCache
	totals  avalaradomain.TotalCalculator
}

func NewService(p Params) avalaradomain.Service {
	return &Service{
		log:     p.Log.Named("avalara.service"),
		builder: p.Builder,
		gateway: p.Gateway,
		cache:   p.Cache,
		totals:  p.Totals,
	}
}

// ApplyTaxesToSubmission applies taxes to the basket and shipping charge of
// a checkout submission, then recomputes its order total.
func (s *Service) ApplyTaxesToSubmission(ctx context.Context, submission *avalaradomain.Submission) error {
	if submission == nil {
		return &avalaradomain.ConfigurationError{Field: "submission", Message: "submission is required"}
	}
	if s.totals == nil {
		return &avalaradomain.ConfigurationError{Field: "total_calculator", Message: "no order total calculator configured"}
	}

	if err := s.ApplyTaxes(ctx,
		submission.User,
		submission.Basket,
		submission.ShippingAddress,
		submission.ShippingMethod,
		submission.ShippingCharge,
	); err != nil {
		return err
	}

	submission.OrderTotal = s.totals.Calculate(submission.Basket, submission.ShippingCharge)
	return nil
}

func (s *Service) ApplyTaxes(ctx context.Context, user avalaradomain.User, basket avalaradomain.Basket, shippingAddress avalaradomain.AddressSource, shippingMethod avalaradomain.ShippingMethod, shippingCharge avalaradomain.ShippingCharge) error {
	if shippingCharge == nil {
		return &avalaradomain.ConfigurationError{Field: "shipping_charge", Message: "shipping charge is required to apply taxes"}
	}
	resp, err := s.FetchTaxInfo(ctx, user, basket, shippingAddress, shippingMethod, shippingCharge)
	if err != nil {
		return err
	}

	docID := fmt.Sprintf("basket #%d", basket.BasketID())
	if err := reconcile.Apply(docID, basket.AllLines(), shippingCharge, resp); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("tax response does not cover basket",
			zap.Int64("basket_id", basket.BasketID()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// FetchTaxInfo quotes a basket without committing it. A cached quote for an
// identical basket is returned without calling the service.
func (s *Service) FetchTaxInfo(ctx context.Context, user avalaradomain.User, basket avalaradomain.Basket, shippingAddress avalaradomain.AddressSource, shippingMethod avalaradomain.ShippingMethod, shippingCharge avalaradomain.ShippingCharge) (*avalaradomain.TaxQuoteResponse, error) {
	if basket == nil {
		return nil, &avalaradomain.ConfigurationError{Field: "basket", Message: "basket is required"}
	}
	log := obslogger.WithContext(ctx, s.log).With(zap.Int64("basket_id", basket.BasketID()))

	in := payload.Input{
		DocType:         avalaradomain.DocTypeFor(false),
		DocCode:         fmt.Sprintf("basket-%d", basket.BasketID()),
		User:            user,
		Lines:           basket.AllLines(),
		ShippingAddress: shippingAddress,
	}
	if shippingMethod != nil {
		in.ShippingMethod = shippingMethod.Name()
	}
	if shippingCharge != nil {
		in.ShippingCharge = shippingCharge.ExclTax()
	}

	doc, err := s.builder.Build(in)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, doc)
		if err != nil {
			log.Warn("quote cache lookup failed", zap.Error(err))
		} else if hit {
			log.Debug("quote cache hit")
			return cached, nil
		}
	}

	resp, err := s.gateway.PostTaxQuote(ctx, doc)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, doc, resp); err != nil {
			log.Warn("quote cache store failed", zap.Error(err))
		}
	}
	return resp, nil
}

// Submit commits the tax document for a placed order. The response is not
// reconciled back onto the order.
func (s *Service) Submit(ctx context.Context, order avalaradomain.Order) (*avalaradomain.TaxQuoteResponse, error) {
	if order == nil {
		return nil, &avalaradomain.ConfigurationError{Field: "order", Message: "order is required"}
	}

	doc, err := s.builder.Build(payload.Input{
		DocType:         avalaradomain.DocTypeFor(true),
		DocCode:         order.Number(),
		User:            order.User(),
		Lines:           order.Lines(),
		ShippingAddress: order.ShippingAddress(),
		ShippingMethod:  order.ShippingMethodName(),
		ShippingCharge:  order.ShippingExclTax(),
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.PostTaxQuote(ctx, doc)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("tax commit failed",
			zap.String("order_number", order.Number()),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}
