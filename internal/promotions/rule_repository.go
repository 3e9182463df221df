package promotions

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRuleLookup resolves promo codes against a promo_rules table:
// code, scope, percent_off/flat_off, usage cap, and an expiry.
type PostgresRuleLookup struct {
	pool *pgxpool.Pool
}

func NewPostgresRuleLookup(pool *pgxpool.Pool) *PostgresRuleLookup {
	return &PostgresRuleLookup{pool: pool}
}

func (l *PostgresRuleLookup) Resolve(ctx context.Context, code string, scope Scope, opts map[string]interface{}) (Rule, error) {
	var (
		rule       Rule
		ruleScope  string
		expiresAt  *time.Time
		maxUses    *int
		usesCount  int
	)
	err := l.pool.QueryRow(ctx, `
		SELECT code, scope, percent_off, flat_off, expires_at, max_uses, uses_count
		FROM promo_rules
		WHERE code = $1
	`, code).Scan(&rule.Code, &ruleScope, &rule.PercentOff, &rule.FlatOff, &expiresAt, &maxUses, &usesCount)
	if err != nil {
		return Rule{}, &PromoError{Code: code, Reason: "unknown promo code"}
	}

	rule.Scope = Scope(ruleScope)
	if rule.Scope != scope {
		return Rule{}, &PromoError{Code: code, Reason: fmt.Sprintf("not valid for scope %q", scope)}
	}
	if expiresAt != nil && time.Now().After(*expiresAt) {
		return Rule{}, &PromoError{Code: code, Reason: "expired"}
	}
	if maxUses != nil && usesCount >= *maxUses {
		return Rule{}, &PromoError{Code: code, Reason: "exhausted"}
	}
	return rule, nil
}
