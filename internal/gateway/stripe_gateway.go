package gateway

import (
	"context"

	stripego "github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/charge"
	"github.com/stripe/stripe-go/v83/refund"

	"github.com/richxcame/bus-ledger/pkg/models"
	"github.com/richxcame/bus-ledger/pkg/resilience"
)

// localAmexlessCountries marks the merchant countries whose Amex-absent
// charges get the "local" admin fee rate; anything outside it, or paid with
// Amex, falls back to the standard rate.
var localAmexlessCountries = map[string]bool{"US": true}

// StripeConfig parameterizes the Stripe key, fee rates and micro/minimum
// charge thresholds; of these, pkg/config.GatewayConfig supplies only
// MinChargeCents.
type StripeConfig struct {
	SecretKey        string
	MinChargeCents   int64
	MicroCeilingCents int64
	StandardFeeBps   int64 // basis points, e.g. 290 = 2.9%
	StandardFeeFixed int64 // cents, e.g. 30
	LocalFeeBps      int64
	LocalFeeFixed    int64
	MerchantCountry  string
}

// StripeGateway implements Gateway against the real Stripe Charges API,
// wrapped in retry-with-backoff and a circuit breaker so a flaky network
// doesn't surface as a hard charge failure on the first try.
type StripeGateway struct {
	cfg     StripeConfig
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	stripego.Key = cfg.SecretKey
	breaker := resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "stripe-gateway",
		FailureThreshold: 5,
		SuccessThreshold: 2,
	}, nil)
	return &StripeGateway{cfg: cfg, retry: resilience.DefaultRetryConfig(), breaker: breaker}
}

// wrapStripeError converts a stripe-go error into the domain ChargeError,
// mirroring the teacher service's wrapStripeError: pass through an
// already-typed error, otherwise wrap with the gateway's own message.
func wrapStripeError(err error, fallbackMessage string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*ChargeError); ok {
		return err
	}
	return &ChargeError{Message: fallbackMessage, Err: err}
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*models.Charge, error) {
	result, err := resilience.RetryWithBreaker(ctx, g.retry, g.breaker, func(ctx context.Context) (interface{}, error) {
		params := &stripego.ChargeParams{
			Amount:              stripego.Int64(req.ValueCents),
			Currency:            stripego.String(string(stripego.CurrencyUSD)),
			Description:         stripego.String(req.Description),
			StatementDescriptor: stripego.String(req.StatementDescriptor),
		}
		params.SetIdempotencyKey(req.IdempotencyKey)
		if req.Destination != "" {
			params.TransferData = &stripego.ChargeTransferDataParams{Destination: stripego.String(req.Destination)}
		}
		switch {
		case req.CustomerID != "":
			params.Customer = stripego.String(req.CustomerID)
			if req.SourceID != "" {
				params.Source = &stripego.PaymentSourceSourceParams{Card: stripego.String(req.SourceID)}
			}
		case req.Source != "":
			params.Source = &stripego.PaymentSourceSourceParams{Card: stripego.String(req.Source)}
		}

		ch, err := charge.New(params)
		if err != nil {
			return nil, err
		}
		return ch, nil
	})
	if err != nil {
		return nil, wrapStripeError(err, "card charge failed")
	}

	ch := result.(*stripego.Charge)
	return stripeChargeToModel(ch), nil
}

func (g *StripeGateway) RetrieveCharge(ctx context.Context, resourceID string) (*models.Charge, error) {
	result, err := resilience.RetryWithBreaker(ctx, g.retry, g.breaker, func(ctx context.Context) (interface{}, error) {
		return charge.Get(resourceID, nil)
	})
	if err != nil {
		return nil, wrapStripeError(err, "retrieve charge failed")
	}
	return stripeChargeToModel(result.(*stripego.Charge)), nil
}

func (g *StripeGateway) RefundCharge(ctx context.Context, resourceID string, amountCents int64, reason string, idempotencyKey string) (*models.Charge, error) {
	_, err := resilience.RetryWithBreaker(ctx, g.retry, g.breaker, func(ctx context.Context) (interface{}, error) {
		params := &stripego.RefundParams{
			Charge: stripego.String(resourceID),
			Amount: stripego.Int64(amountCents),
		}
		params.SetIdempotencyKey(idempotencyKey)
		if reason != "" {
			params.Reason = stripego.String(reason)
		}
		return refund.New(params)
	})
	if err != nil {
		return nil, wrapStripeError(err, "refund failed")
	}
	return g.RetrieveCharge(ctx, resourceID)
}

func stripeChargeToModel(ch *stripego.Charge) *models.Charge {
	source := ""
	if ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Card != nil {
		source = string(ch.PaymentMethodDetails.Card.Brand)
	}
	return &models.Charge{
		ID:             ch.ID,
		AmountCents:    ch.Amount,
		AmountRefunded: ch.AmountRefunded,
		Source:         source,
	}
}

func (g *StripeGateway) MinChargeCents() int64 {
	return g.cfg.MinChargeCents
}

func (g *StripeGateway) IsMicro(amountCents int64) bool {
	return amountCents <= g.cfg.MicroCeilingCents
}

// IsLocalAndNonAmex reports whether source (a card brand string) isn't
// American Express and the configured MerchantCountry is in
// localAmexlessCountries. The card's issuing country is not checked.
func (g *StripeGateway) IsLocalAndNonAmex(source string) bool {
	isAmex := source == "amex" || source == "American Express"
	if isAmex {
		return false
	}
	return localAmexlessCountries[g.cfg.MerchantCountry]
}

func (g *StripeGateway) CalculateAdminFeeInCents(cents int64, isMicro, isLocalAndNonAmex bool) int64 {
	bps, fixed := g.cfg.StandardFeeBps, g.cfg.StandardFeeFixed
	if isLocalAndNonAmex {
		bps, fixed = g.cfg.LocalFeeBps, g.cfg.LocalFeeFixed
	}
	fee := cents*bps/10000 + fixed
	if isMicro {
		// Micro transactions carry no fixed component; the gateway absorbs it.
		fee = cents * bps / 10000
	}
	if fee < 0 {
		fee = 0
	}
	return fee
}
