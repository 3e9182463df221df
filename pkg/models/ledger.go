// Package models holds the entities shared across ledger workflows: the
// journal itself (Transaction/TransactionItem), the operational entities a
// journal affects (Ticket, RoutePass), and the schedule data
// (Trip/TripStop/Route/TransportCompany) a sale or refund consults; of the
// schedule data only a trip's seat count is written, by a ticket sale.
package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType enumerates the kinds of journal entries this engine produces.
type TransactionType string

const (
	TransactionTicketPurchase    TransactionType = "ticketPurchase"
	TransactionRoutePassPurchase TransactionType = "routePassPurchase"
	TransactionRefundPayment     TransactionType = "refundPayment"
)

// ItemType enumerates the typed line-item variants of a TransactionItem.
type ItemType string

const (
	ItemTicketSale   ItemType = "ticketSale"
	ItemTicketRefund ItemType = "ticketRefund"
	ItemRoutePass    ItemType = "routePass"
	ItemDiscount     ItemType = "discount"
	ItemPayment      ItemType = "payment"
	ItemTransfer     ItemType = "transfer"
	ItemAccount      ItemType = "account" // COGS
)

// CreatorScope identifies who initiated a Transaction.
type CreatorScope string

const (
	CreatorScopeUser       CreatorScope = "user"
	CreatorScopeAdmin      CreatorScope = "admin"
	CreatorScopeSuperadmin CreatorScope = "superadmin"
	CreatorScopeDriver     CreatorScope = "driver"
)

// Creator identifies the actor a Transaction is attributed to.
type Creator struct {
	Scope CreatorScope
	ID    uuid.UUID
}

// TransactionItem is one debit or credit posting against a typed account or entity.
// Exactly one of Debit/Credit is positive; the other is zero.
type TransactionItem struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	ItemType      ItemType
	ItemID        *uuid.UUID
	Debit         float64
	Credit        float64
	Notes         map[string]interface{}
	// CompanyID is set on transfer and routePass items to enforce the
	// single-counterparty invariant.
	CompanyID *uuid.UUID
}

// Signed returns the item's contribution to the zero-sum total: +Debit - Credit.
func (i TransactionItem) Signed() float64 {
	return i.Debit - i.Credit
}

// Transaction is a balanced journal entry comprising multiple line items,
// committed atomically with the operational state changes it describes.
type Transaction struct {
	ID          uuid.UUID
	Type        TransactionType
	Committed   bool
	Description string
	CreatedBy   Creator
	CreatedAt   time.Time
	Items       []TransactionItem
}

// ZeroSum returns Σ debit − Σ credit across all items.
func (t Transaction) ZeroSum() float64 {
	var sum float64
	for _, item := range t.Items {
		sum += item.Signed()
	}
	return sum
}

// ItemsOfType returns the items of the given type, in insertion order.
func (t Transaction) ItemsOfType(itemType ItemType) []TransactionItem {
	var out []TransactionItem
	for _, item := range t.Items {
		if item.ItemType == itemType {
			out = append(out, item)
		}
	}
	return out
}

// TicketStatus enumerates a Ticket's lifecycle states.
type TicketStatus string

const (
	TicketPending  TicketStatus = "pending"
	TicketValid    TicketStatus = "valid"
	TicketVoid     TicketStatus = "void"
	TicketFailed   TicketStatus = "failed"
	TicketRefunded TicketStatus = "refunded"
)

// Ticket represents a single passenger's seat on a single trip leg.
type Ticket struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	TripID        uuid.UUID
	BoardStopID   uuid.UUID
	AlightStopID  uuid.UUID
	Status        TicketStatus
	DiscountValue float64
}

// RoutePassStatus enumerates a RoutePass's lifecycle states.
type RoutePassStatus string

const (
	RoutePassValid    RoutePassStatus = "valid"
	RoutePassVoid     RoutePassStatus = "void"
	RoutePassExpired  RoutePassStatus = "expired"
	RoutePassRefunded RoutePassStatus = "refunded"
	RoutePassFailed   RoutePassStatus = "failed"
)

// RoutePass is a prepaid, tag-scoped credit redeemable for a single ticket
// on any trip of a matching route.
type RoutePass struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	CompanyID     uuid.UUID
	Tag           string
	Status        RoutePassStatus
	Price         float64
	DiscountValue float64
}

// BookingWindowType selects how a trip's booking cutoff is computed.
type BookingWindowType string

const (
	BookingWindowStop      BookingWindowType = "stop"
	BookingWindowFirstStop BookingWindowType = "firstStop"
)

// BookingInfo describes a trip's booking cutoff rule.
type BookingInfo struct {
	WindowType BookingWindowType
	// WindowSize is a duration in milliseconds, matching the source platform's convention.
	WindowSize int64
}

// TripStop is a scheduled stop along a Trip.
type TripStop struct {
	ID   uuid.UUID
	Time time.Time
}

// Trip is a single scheduled run of a Route; a workflow writes only its
// SeatsAvailable, which a ticket sale decrements.
type Trip struct {
	ID             uuid.UUID
	RouteID        uuid.UUID
	IsRunning      bool
	SeatsAvailable int
	Price          float64
	BookingInfo    BookingInfo
	TripStops      []TripStop
}

// StopByID finds a TripStop by id, or returns (zero, false).
func (t Trip) StopByID(id uuid.UUID) (TripStop, bool) {
	for _, stop := range t.TripStops {
		if stop.ID == id {
			return stop, true
		}
	}
	return TripStop{}, false
}

// Route groups Trips under a shared set of tags and a single operating company.
type Route struct {
	ID                uuid.UUID
	TransportCompanyID uuid.UUID
	Tags              []string
}

// TransportCompany is the counterparty every transfer/routePass item must agree on.
type TransportCompany struct {
	ID              uuid.UUID
	Name            string
	SmsOpCode       string
	StripeClientID  string
	StripeSandboxID string
}

// Descriptor returns the company's statement-descriptor source string:
// its SMS op code if set, else its name.
func (c TransportCompany) Descriptor() string {
	if c.SmsOpCode != "" {
		return c.SmsOpCode
	}
	return c.Name
}

// MerchantID returns the Stripe destination account id for the given mode.
func (c TransportCompany) MerchantID(live bool) string {
	if live {
		return c.StripeClientID
	}
	return c.StripeSandboxID
}

// Payment is the 1:1 external-gateway record backing a Transaction's payment item.
type Payment struct {
	ID              uuid.UUID
	TransactionID   uuid.UUID
	PaymentResource string
	Data            map[string]interface{}
	IsMicro         bool
}

// Charge is the gateway-side record a PaymentGatewayAdapter charges and reads back.
type Charge struct {
	ID              string
	AmountCents     int64
	AmountRefunded  int64
	Source          string
}

// BalanceCents returns the charge's remaining, unrefunded balance in cents.
func (c Charge) BalanceCents() int64 {
	return c.AmountCents - c.AmountRefunded
}

// CredentialScope identifies the kind of actor presenting credentials to assertAdminRole.
type CredentialScope string

const (
	ScopeUser       CredentialScope = "user"
	ScopeAdmin      CredentialScope = "admin"
	ScopeSuperadmin CredentialScope = "superadmin"
	ScopeDriver     CredentialScope = "driver"
)

// Credentials is the shape assertAdminRole expects from a caller.
type Credentials struct {
	Scope    CredentialScope
	AdminID  *uuid.UUID
	Email    string
	DriverID *uuid.UUID
}
