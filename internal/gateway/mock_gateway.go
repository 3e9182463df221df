package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/richxcame/bus-ledger/pkg/models"
)

// MockGateway is an in-memory Gateway for workflow tests that never touch
// the network (design note §9).
type MockGateway struct {
	mu             sync.Mutex
	charges        map[string]*models.Charge
	nextID         int
	minChargeCents int64
	microCeiling   int64
	feeBps         int64
	feeFixed       int64

	// ForceChargeErr, when set, is returned by every Charge call.
	ForceChargeErr error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		charges:        make(map[string]*models.Charge),
		minChargeCents: 50,
		microCeiling:   500,
		feeBps:         290,
		feeFixed:       30,
	}
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (*models.Charge, error) {
	if g.ForceChargeErr != nil {
		return nil, &ChargeError{Message: "mock gateway forced failure", Err: g.ForceChargeErr}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Idempotent replay: the same key returns the same charge instead of
	// minting a new one, mirroring the real gateway's idempotency contract.
	for _, ch := range g.charges {
		if ch.Source == req.IdempotencyKey {
			return ch, nil
		}
	}

	g.nextID++
	ch := &models.Charge{
		ID:          fmt.Sprintf("ch_mock_%d", g.nextID),
		AmountCents: req.ValueCents,
		Source:      req.IdempotencyKey,
	}
	g.charges[ch.ID] = ch
	return ch, nil
}

func (g *MockGateway) RetrieveCharge(ctx context.Context, resourceID string) (*models.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.charges[resourceID]
	if !ok {
		return nil, &ChargeError{Message: "charge not found: " + resourceID}
	}
	copy := *ch
	return &copy, nil
}

func (g *MockGateway) RefundCharge(ctx context.Context, resourceID string, amountCents int64, reason string, idempotencyKey string) (*models.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.charges[resourceID]
	if !ok {
		return nil, &ChargeError{Message: "charge not found: " + resourceID}
	}
	ch.AmountRefunded += amountCents
	copy := *ch
	return &copy, nil
}

func (g *MockGateway) MinChargeCents() int64 { return g.minChargeCents }

func (g *MockGateway) IsMicro(amountCents int64) bool { return amountCents <= g.microCeiling }

func (g *MockGateway) IsLocalAndNonAmex(source string) bool { return source != "amex" }

func (g *MockGateway) CalculateAdminFeeInCents(cents int64, isMicro, isLocalAndNonAmex bool) int64 {
	if isMicro {
		return cents * g.feeBps / 10000
	}
	return cents*g.feeBps/10000 + g.feeFixed
}
