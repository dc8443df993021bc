package cart

import (
	"context"

	"storefront/internal/identity"
	"storefront/internal/product"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetCartByOwner(ctx context.Context, owner identity.OwnerKey) (*Cart, error) {
	args := m.Called(ctx, owner)
	c, _ := args.Get(0).(*Cart)
	return c, args.Error(1)
}

func (m *MockRepository) LockCartByOwner(ctx context.Context, owner identity.OwnerKey) (*Cart, error) {
	args := m.Called(ctx, owner)
	c, _ := args.Get(0).(*Cart)
	return c, args.Error(1)
}

func (m *MockRepository) LockCart(ctx context.Context, cartID uuid.UUID) (*Cart, error) {
	args := m.Called(ctx, cartID)
	c, _ := args.Get(0).(*Cart)
	return c, args.Error(1)
}

func (m *MockRepository) CreateCart(ctx context.Context, c *Cart) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockRepository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	return m.Called(ctx, cartID).Error(0)
}

func (m *MockRepository) ReassignCart(ctx context.Context, cartID uuid.UUID, owner identity.OwnerKey) error {
	return m.Called(ctx, cartID, owner).Error(0)
}

func (m *MockRepository) TouchCart(ctx context.Context, cartID uuid.UUID) error {
	return m.Called(ctx, cartID).Error(0)
}

func (m *MockRepository) ListLines(ctx context.Context, cartID uuid.UUID) ([]Line, error) {
	args := m.Called(ctx, cartID)
	lines, _ := args.Get(0).([]Line)
	return lines, args.Error(1)
}

func (m *MockRepository) GetLine(ctx context.Context, cartID, lineID uuid.UUID) (*Line, error) {
	args := m.Called(ctx, cartID, lineID)
	l, _ := args.Get(0).(*Line)
	return l, args.Error(1)
}

func (m *MockRepository) LineCart(ctx context.Context, lineID uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, lineID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockRepository) FindLine(ctx context.Context, cartID uuid.UUID, id Identity) (*Line, error) {
	args := m.Called(ctx, cartID, id)
	l, _ := args.Get(0).(*Line)
	return l, args.Error(1)
}

func (m *MockRepository) UpsertLine(ctx context.Context, l *Line) (*Line, error) {
	args := m.Called(ctx, l)
	out, _ := args.Get(0).(*Line)
	return out, args.Error(1)
}

func (m *MockRepository) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) (*Line, error) {
	args := m.Called(ctx, lineID, quantity)
	l, _ := args.Get(0).(*Line)
	return l, args.Error(1)
}

func (m *MockRepository) IncrementLineQuantity(ctx context.Context, lineID uuid.UUID, delta int) (*Line, error) {
	args := m.Called(ctx, lineID, delta)
	l, _ := args.Get(0).(*Line)
	return l, args.Error(1)
}

func (m *MockRepository) DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) (bool, error) {
	args := m.Called(ctx, cartID, lineID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ClearLines(ctx context.Context, cartID uuid.UUID) (int64, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(int64), args.Error(1)
}

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) GetProduct(ctx context.Context, productID string) (*product.Product, error) {
	args := m.Called(ctx, productID)
	p, _ := args.Get(0).(*product.Product)
	return p, args.Error(1)
}

// passthroughTx runs fn without a database.
type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
