// Package gateway implements the PaymentGatewayAdapter: card charge,
// refund, and fee computation against Stripe, idempotency-keyed and
// wrapped in retry-with-backoff and a circuit breaker.
package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/richxcame/bus-ledger/pkg/models"
)

// ChargeRequest is the validated input to Charge.
type ChargeRequest struct {
	ValueCents          int64
	Description         string
	StatementDescriptor string
	Destination         string // merchant id (company's Stripe account)
	IdempotencyKey      string
	Source              string // card token, when charging a bare source
	CustomerID          string // alternative to Source: an on-file customer
	SourceID            string
}

// Gateway is the narrow interface a refund/sale workflow needs from a card
// processor. Real (Stripe) and mock implementations let builder/workflow
// tests run without network I/O (design note §9).
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*models.Charge, error)
	RetrieveCharge(ctx context.Context, resourceID string) (*models.Charge, error)
	RefundCharge(ctx context.Context, resourceID string, amountCents int64, reason string, idempotencyKey string) (*models.Charge, error)

	MinChargeCents() int64
	IsMicro(amountCents int64) bool
	IsLocalAndNonAmex(source string) bool
	CalculateAdminFeeInCents(cents int64, isMicro, isLocalAndNonAmex bool) int64
}

// ChargeError reports a gateway decline or transport failure (spec §7).
type ChargeError struct {
	Message string
	Err     error
}

func (e *ChargeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("charge error: %s: %v", e.Message, e.Err)
	}
	return "charge error: " + e.Message
}

func (e *ChargeError) Unwrap() error { return e.Err }

// idempotencyKeyPattern is the format every charge/refund call's key must
// match (spec §8): instance=<env>,bookingId=<txId>,session=<iat> or
// Refund:instance=<env>,{ticketId|routePassId}=<id>.
var idempotencyKeyPattern = regexp.MustCompile(`^(Refund:)?instance=[^,]*,.*$`)

// ValidIdempotencyKey reports whether key matches the required format.
func ValidIdempotencyKey(key string) bool {
	return idempotencyKeyPattern.MatchString(key)
}

// SaleIdempotencyKey builds the key for a ticket-sale/route-pass-purchase charge.
func SaleIdempotencyKey(instance, transactionID, sessionIat string) string {
	return fmt.Sprintf("instance=%s,bookingId=%s,session=%s", instance, transactionID, sessionIat)
}

// RefundIdempotencyKey builds the key for a ticket or route-pass refund.
func RefundIdempotencyKey(instance, entityField, entityID string) string {
	return fmt.Sprintf("Refund:instance=%s,%s=%s", instance, entityField, entityID)
}

// disallowedDescriptorChars must never appear in a statement descriptor.
const disallowedDescriptorChars = `<>"'`

// StatementDescriptor builds "{companyDescriptor[0..10]},Ref#{txId}",
// truncated to 22 characters, with <>"' stripped from the company portion
// (spec §4.9, §8).
func StatementDescriptor(companyDescriptor, transactionID string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(disallowedDescriptorChars, r) {
			return -1
		}
		return r
	}, companyDescriptor)

	if len(cleaned) > 10 {
		cleaned = cleaned[:10]
	}

	descriptor := fmt.Sprintf("%s,Ref#%s", cleaned, transactionID)
	if len(descriptor) > 22 {
		descriptor = descriptor[:22]
	}
	return descriptor
}
