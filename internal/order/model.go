package order

import (
	"strings"
	"time"

	"storefront/internal/address"
	"storefront/internal/cart"
	"storefront/internal/identity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCancelled, StatusRefunded,
}

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range allStatuses {
		if st == candidate {
			return st, nil
		}
	}
	return "", unknownStatus(s)
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type DeliveryMethod string

const (
	DeliveryHome        DeliveryMethod = "home_delivery"
	DeliveryAgentPickup DeliveryMethod = "agent_pickup"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMobileMoney    PaymentMethod = "mobile_money"
	PaymentCard           PaymentMethod = "card"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

// InitialPaymentStatus is the payment status a new order starts with.
func (m PaymentMethod) InitialPaymentStatus() PaymentStatus {
	if m == PaymentCashOnDelivery {
		return PaymentPending
	}
	return PaymentUnpaid
}

type Order struct {
	ID                uuid.UUID      `json:"id"`
	OrderNumber       string         `json:"order_number"`
	AccountID         *uint          `json:"account_id,omitempty"`
	GuestSessionID    *string        `json:"-"`
	Status            Status         `json:"status"`
	Pricing           Pricing        `json:"pricing"`
	DeliveryMethod    DeliveryMethod `json:"delivery_method"`
	PaymentMethod     PaymentMethod  `json:"payment_method"`
	PaymentStatus     PaymentStatus  `json:"payment_status"`
	AgentLocation     *string        `json:"agent_location,omitempty"`
	AgentInstructions *string        `json:"agent_instructions,omitempty"`
	CustomerPhone     string         `json:"customer_phone"`
	CustomerEmail     *string        `json:"customer_email,omitempty"`
	VerificationCode  string         `json:"verification_code"`
	ReceiptRef        *string        `json:"receipt_ref,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	Lines   []Line        `json:"lines,omitempty"`
	Address *Address      `json:"address,omitempty"`
	History []StatusEvent `json:"history,omitempty"`
}

// OwnedBy reports whether owner placed the order.
func (o *Order) OwnedBy(owner identity.OwnerKey) bool {
	if id, ok := owner.AccountID(); ok {
		return o.AccountID != nil && *o.AccountID == id
	}
	if token, ok := owner.SessionToken(); ok {
		return o.GuestSessionID != nil && *o.GuestSessionID == token
	}
	return false
}

// Line is a snapshot of a purchased product, independent of later catalog edits.
type Line struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Attributes cart.Attributes `json:"attributes,omitempty"`
}

const AddressShipping = "shipping"

type Address struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"order_id"`
	Type    string    `json:"type"`
	address.Shipping
}

type StatusEvent struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Status    Status    `json:"status"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Receipt is what a shopper gets back from a successful checkout.
type Receipt struct {
	OrderID          uuid.UUID       `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	VerificationCode string          `json:"verification_code"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Status           Status          `json:"status"`
}
