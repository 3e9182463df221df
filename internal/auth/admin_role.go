// Package auth defines the narrow external collaborator the ledger
// workflows call to authorize admin-only operations (refunds, cancellation).
// Role policy, session handling, and the rest of account management are
// explicitly out of scope (spec §1) and live, if anywhere, outside this
// repository; this package only declares the interface workflows depend on
// and a deny-by-default implementation useful in tests.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/richxcame/bus-ledger/pkg/models"
)

// Authorizer is assertAdminRole (spec §6): it returns an error when
// credentials don't authorize action against companyID.
type Authorizer interface {
	AssertAdminRole(ctx context.Context, creds models.Credentials, action string, companyID uuid.UUID) error
}

// CompanyScopedAuthorizer authorizes admin/superadmin credentials whose
// AdminID is recognized as an administrator of companyID. Superadmins are
// authorized for every company. This is the narrowest policy that satisfies
// the refund/cancellation workflows; a richer admin-role policy is an
// external concern (spec §1) this repository doesn't own.
type CompanyScopedAuthorizer struct {
	// CompanyAdmins maps a company id to the set of admin ids authorized
	// for it. Populated from whatever external admin-role store the
	// deployment uses; this package has no opinion on its shape.
	CompanyAdmins map[uuid.UUID]map[uuid.UUID]bool
}

func NewCompanyScopedAuthorizer(companyAdmins map[uuid.UUID]map[uuid.UUID]bool) *CompanyScopedAuthorizer {
	return &CompanyScopedAuthorizer{CompanyAdmins: companyAdmins}
}

func (a *CompanyScopedAuthorizer) AssertAdminRole(ctx context.Context, creds models.Credentials, action string, companyID uuid.UUID) error {
	switch creds.Scope {
	case models.ScopeSuperadmin:
		return nil
	case models.ScopeAdmin:
		if creds.AdminID == nil {
			return fmt.Errorf("auth: admin credentials missing adminId for action %q", action)
		}
		admins := a.CompanyAdmins[companyID]
		if admins != nil && admins[*creds.AdminID] {
			return nil
		}
		return fmt.Errorf("auth: admin %s is not authorized for company %s", *creds.AdminID, companyID)
	default:
		return fmt.Errorf("auth: scope %q may not perform action %q", creds.Scope, action)
	}
}
