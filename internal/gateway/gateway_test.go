package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementDescriptor(t *testing.T) {
	tests := []struct {
		name      string
		company   string
		txID      string
		wantLen   int
		wantClean bool
	}{
		{name: "short name", company: "Acme Bus", txID: "tx-123", wantLen: len("Acme Bus,Ref#tx-123")},
		{name: "long name truncates to 10", company: "The Really Long Bus Company", txID: "tx-123", wantLen: len("The Really,Ref#tx-123")},
		{name: "strips quotes and brackets", company: `<Ac"me'>`, txID: "tx-1", wantLen: len("Acme,Ref#tx-1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descriptor := StatementDescriptor(tt.company, tt.txID)
			assert.LessOrEqual(t, len(descriptor), 22)
			assert.Len(t, descriptor, tt.wantLen)
			assert.False(t, strings.ContainsAny(descriptor, `<>"'`))
		})
	}
}

func TestValidIdempotencyKey(t *testing.T) {
	assert.True(t, ValidIdempotencyKey(SaleIdempotencyKey("prod", "tx-1", "169000")))
	assert.True(t, ValidIdempotencyKey(RefundIdempotencyKey("prod", "ticketId", "tk-1")))
	assert.False(t, ValidIdempotencyKey("not-a-valid-key"))
}

func TestCalculateAdminFeeInCentsMicroHasNoFixedComponent(t *testing.T) {
	g := NewMockGateway()
	standard := g.CalculateAdminFeeInCents(1000, false, false)
	micro := g.CalculateAdminFeeInCents(1000, true, false)
	assert.Less(t, micro, standard)
}
