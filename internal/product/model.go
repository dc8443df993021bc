package product

import "github.com/shopspring/decimal"

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disable"
	StatusDraft    Status = "draft"
	StatusArchived Status = "archived"
)

// IsPurchasable reports whether products in this status may be added to a cart.
func (s Status) IsPurchasable() bool {
	return s == StatusActive
}

// PurchasableStatuses lists the statuses accepted at cart and checkout time.
func PurchasableStatuses() []string {
	return []string{string(StatusActive)}
}

type Product struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Status Status          `json:"status"`
}
