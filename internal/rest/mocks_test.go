package rest

import (
	"context"

	"storefront/internal/cart"
	"storefront/internal/identity"
	"storefront/internal/order"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetOrCreateCart(ctx context.Context, owner identity.OwnerKey) (*cart.Cart, error) {
	args := m.Called(ctx, owner)
	c, _ := args.Get(0).(*cart.Cart)
	return c, args.Error(1)
}

func (m *MockCartService) View(ctx context.Context, owner identity.OwnerKey) (*cart.View, error) {
	args := m.Called(ctx, owner)
	v, _ := args.Get(0).(*cart.View)
	return v, args.Error(1)
}

func (m *MockCartService) AddLine(ctx context.Context, c *cart.Cart, productID string, quantity int, attrs cart.Attributes) (*cart.Line, error) {
	args := m.Called(ctx, c, productID, quantity, attrs)
	l, _ := args.Get(0).(*cart.Line)
	return l, args.Error(1)
}

func (m *MockCartService) UpdateQuantity(ctx context.Context, c *cart.Cart, lineID uuid.UUID, quantity int) (*cart.Line, error) {
	args := m.Called(ctx, c, lineID, quantity)
	l, _ := args.Get(0).(*cart.Line)
	return l, args.Error(1)
}

func (m *MockCartService) RemoveLine(ctx context.Context, c *cart.Cart, lineID uuid.UUID) error {
	return m.Called(ctx, c, lineID).Error(0)
}

func (m *MockCartService) Clear(ctx context.Context, cartID uuid.UUID) error {
	return m.Called(ctx, cartID).Error(0)
}

type MockMerger struct {
	mock.Mock
}

func (m *MockMerger) Merge(ctx context.Context, sessionToken string, accountID uint) (*cart.MergeResult, error) {
	args := m.Called(ctx, sessionToken, accountID)
	r, _ := args.Get(0).(*cart.MergeResult)
	return r, args.Error(1)
}

type MockCheckout struct {
	mock.Mock
}

func (m *MockCheckout) Build(ctx context.Context, owner identity.OwnerKey, in order.CheckoutInput) (*order.Receipt, error) {
	args := m.Called(ctx, owner, in)
	r, _ := args.Get(0).(*order.Receipt)
	return r, args.Error(1)
}

func (m *MockCheckout) Preview(ctx context.Context, owner identity.OwnerKey) (*order.Preview, error) {
	args := m.Called(ctx, owner)
	p, _ := args.Get(0).(*order.Preview)
	return p, args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Transition(ctx context.Context, orderID uuid.UUID, target string, notes *string) (*order.Order, error) {
	args := m.Called(ctx, orderID, target, notes)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrderService) Order(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *MockOrderService) History(ctx context.Context, orderID uuid.UUID) ([]order.StatusEvent, error) {
	args := m.Called(ctx, orderID)
	h, _ := args.Get(0).([]order.StatusEvent)
	return h, args.Error(1)
}

func (m *MockOrderService) ReceiptByVerificationCode(ctx context.Context, code string) (*order.Order, error) {
	args := m.Called(ctx, code)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}
