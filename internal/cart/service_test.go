package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/db"
	"storefront/internal/identity"
	"storefront/internal/product"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestService(repo Repository, products product.Lookup) *service {
	s := NewService(repo, products, passthroughTx{}, 24*time.Hour).(*service)
	s.now = func() time.Time { return testNow }
	return s
}

func activeProduct(id string, stock int, price string) *product.Product {
	return &product.Product{
		ID:     id,
		Name:   "Product " + id,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: product.StatusActive,
	}
}

func TestService_GetOrCreateCart(t *testing.T) {
	ctx := context.Background()
	owner := identity.SessionOwner("tok")

	t.Run("ReturnsLiveCart", func(t *testing.T) {
		repo := new(MockRepository)
		existing := &Cart{ID: uuid.New(), Owner: owner, ExpiresAt: testNow.Add(time.Hour)}
		repo.On("GetCartByOwner", mock.Anything, owner).Return(existing, nil)

		c, err := newTestService(repo, nil).GetOrCreateCart(ctx, owner)

		require.NoError(t, err)
		assert.Equal(t, existing.ID, c.ID)
		repo.AssertNotCalled(t, "CreateCart", mock.Anything, mock.Anything)
	})

	t.Run("CreatesWhenAbsent", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetCartByOwner", mock.Anything, owner).Return(nil, nil)
		repo.On("CreateCart", mock.Anything, mock.MatchedBy(func(c *Cart) bool {
			return c.Owner == owner && c.ExpiresAt.Equal(testNow.Add(24*time.Hour))
		})).Return(nil)

		c, err := newTestService(repo, nil).GetOrCreateCart(ctx, owner)

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, c.ID)
		repo.AssertExpectations(t)
	})

	t.Run("ReplacesExpiredCart", func(t *testing.T) {
		repo := new(MockRepository)
		stale := &Cart{ID: uuid.New(), Owner: owner, ExpiresAt: testNow.Add(-time.Hour)}
		repo.On("GetCartByOwner", mock.Anything, owner).Return(stale, nil)
		repo.On("DeleteCart", mock.Anything, stale.ID).Return(nil)
		repo.On("CreateCart", mock.Anything, mock.AnythingOfType("*cart.Cart")).Return(nil)

		c, err := newTestService(repo, nil).GetOrCreateCart(ctx, owner)

		require.NoError(t, err)
		assert.NotEqual(t, stale.ID, c.ID)
		repo.AssertExpectations(t)
	})

	t.Run("ConcurrentCreateReadsWinner", func(t *testing.T) {
		repo := new(MockRepository)
		winner := &Cart{ID: uuid.New(), Owner: owner, ExpiresAt: testNow.Add(time.Hour)}
		repo.On("GetCartByOwner", mock.Anything, owner).Return(nil, nil).Once()
		repo.On("CreateCart", mock.Anything, mock.Anything).Return(errCartOwnerTaken)
		repo.On("GetCartByOwner", mock.Anything, owner).Return(winner, nil).Once()

		c, err := newTestService(repo, nil).GetOrCreateCart(ctx, owner)

		require.NoError(t, err)
		assert.Equal(t, winner.ID, c.ID)
	})

	t.Run("InvalidOwner", func(t *testing.T) {
		_, err := newTestService(new(MockRepository), nil).GetOrCreateCart(ctx, identity.OwnerKey{})
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})
}

func TestService_View(t *testing.T) {
	ctx := context.Background()
	owner := identity.AccountOwner(3)

	t.Run("NoCart", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetCartByOwner", mock.Anything, owner).Return(nil, nil)

		v, err := newTestService(repo, nil).View(ctx, owner)

		require.NoError(t, err)
		assert.Nil(t, v.Cart)
		assert.Empty(t, v.Lines)
		repo.AssertNotCalled(t, "CreateCart", mock.Anything, mock.Anything)
	})

	t.Run("WithLines", func(t *testing.T) {
		repo := new(MockRepository)
		c := &Cart{ID: uuid.New(), Owner: owner, ExpiresAt: testNow.Add(time.Hour)}
		repo.On("GetCartByOwner", mock.Anything, owner).Return(c, nil)
		repo.On("ListLines", mock.Anything, c.ID).Return([]Line{line("P", 2, "10.00", nil)}, nil)

		v, err := newTestService(repo, nil).View(ctx, owner)

		require.NoError(t, err)
		assert.Equal(t, "20", v.Subtotal.String())
	})
}

func TestService_AddLine(t *testing.T) {
	ctx := context.Background()
	c := &Cart{ID: uuid.New(), Owner: identity.SessionOwner("tok"), ExpiresAt: testNow.Add(time.Hour)}
	attrs := Attributes{"color": "red"}
	ident := Identity{ProductID: "P", AttributeKey: "color=red"}

	t.Run("NewLineCapturesPrice", func(t *testing.T) {
		repo := new(MockRepository)
		products := new(MockLookup)
		products.On("GetProduct", mock.Anything, "P").Return(activeProduct("P", 5, "10.00"), nil)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("FindLine", mock.Anything, c.ID, ident).Return(nil, nil)
		saved := line("P", 2, "10.00", attrs)
		repo.On("UpsertLine", mock.Anything, mock.MatchedBy(func(l *Line) bool {
			return l.Quantity == 2 && l.PriceSnapshot.Equal(decimal.RequireFromString("10.00")) && l.CartID == c.ID
		})).Return(&saved, nil)
		repo.On("TouchCart", mock.Anything, c.ID).Return(nil)

		l, err := newTestService(repo, products).AddLine(ctx, c, "P", 2, attrs)

		require.NoError(t, err)
		assert.Equal(t, 2, l.Quantity)
		repo.AssertExpectations(t)
	})

	t.Run("ExistingLineIncrementsAndKeepsSnapshot", func(t *testing.T) {
		repo := new(MockRepository)
		products := new(MockLookup)
		products.On("GetProduct", mock.Anything, "P").Return(activeProduct("P", 5, "12.00"), nil)
		existing := line("P", 1, "10.00", attrs)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("FindLine", mock.Anything, c.ID, ident).Return(&existing, nil)
		updated := existing
		updated.Quantity = 3
		repo.On("IncrementLineQuantity", mock.Anything, existing.ID, 2).Return(&updated, nil)
		repo.On("TouchCart", mock.Anything, c.ID).Return(nil)

		l, err := newTestService(repo, products).AddLine(ctx, c, "P", 2, Attributes{"color": "red"})

		require.NoError(t, err)
		assert.Equal(t, 3, l.Quantity)
		assert.Equal(t, "10", l.PriceSnapshot.String())
		repo.AssertNotCalled(t, "UpsertLine", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateLineQuantity", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InsufficientStockCountsExistingQuantity", func(t *testing.T) {
		repo := new(MockRepository)
		products := new(MockLookup)
		products.On("GetProduct", mock.Anything, "P").Return(activeProduct("P", 5, "10.00"), nil)
		existing := line("P", 4, "10.00", attrs)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("FindLine", mock.Anything, c.ID, ident).Return(&existing, nil)

		_, err := newTestService(repo, products).AddLine(ctx, c, "P", 2, attrs)

		assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
		repo.AssertNotCalled(t, "IncrementLineQuantity", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("CartGoneBeforeLock", func(t *testing.T) {
		repo := new(MockRepository)
		products := new(MockLookup)
		products.On("GetProduct", mock.Anything, "P").Return(activeProduct("P", 5, "10.00"), nil)
		repo.On("LockCart", mock.Anything, c.ID).Return(nil, nil)

		_, err := newTestService(repo, products).AddLine(ctx, c, "P", 1, attrs)

		assert.ErrorIs(t, err, ErrCartNotFound)
		repo.AssertNotCalled(t, "FindLine", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ExpiredCartRejected", func(t *testing.T) {
		repo := new(MockRepository)
		products := new(MockLookup)
		products.On("GetProduct", mock.Anything, "P").Return(activeProduct("P", 5, "10.00"), nil)
		expired := *c
		expired.ExpiresAt = testNow.Add(-time.Minute)
		repo.On("LockCart", mock.Anything, c.ID).Return(&expired, nil)

		_, err := newTestService(repo, products).AddLine(ctx, c, "P", 1, attrs)

		assert.ErrorIs(t, err, ErrCartNotFound)
	})

	t.Run("UnknownProductIsUnavailable", func(t *testing.T) {
		products := new(MockLookup)
		products.On("GetProduct", mock.Anything, "X").Return(nil, product.ErrProductNotFound)

		_, err := newTestService(new(MockRepository), products).AddLine(ctx, c, "X", 1, nil)

		assert.ErrorIs(t, err, apperror.ErrProductUnavailable)
	})

	t.Run("InactiveProductIsUnavailable", func(t *testing.T) {
		products := new(MockLookup)
		p := activeProduct("P", 5, "10.00")
		p.Status = product.StatusArchived
		products.On("GetProduct", mock.Anything, "P").Return(p, nil)

		_, err := newTestService(new(MockRepository), products).AddLine(ctx, c, "P", 1, nil)

		assert.ErrorIs(t, err, apperror.ErrProductUnavailable)
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		s := newTestService(new(MockRepository), new(MockLookup))

		_, err := s.AddLine(ctx, c, "P", 0, nil)
		assert.ErrorIs(t, err, ErrInvalidQuantity)

		_, err = s.AddLine(ctx, c, "", 1, nil)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})
}

func TestService_AddLine_LocksCartBeforeReadingLine(t *testing.T) {
	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	c := &Cart{ID: uuid.New(), Owner: identity.SessionOwner("tok"), ExpiresAt: testNow.Add(time.Hour)}
	lineID := uuid.New()
	products := new(MockLookup)
	products.On("GetProduct", mock.Anything, "P").Return(activeProduct("P", 5, "10.00"), nil)

	s := NewService(NewRepository(sqlDB), products, db.NewTxManager(sqlDB), 24*time.Hour).(*service)
	s.now = func() time.Time { return testNow }

	sqlMock.ExpectBegin()
	sqlMock.ExpectQuery(`SELECT (.+) FROM carts WHERE id = \$1 FOR UPDATE`).
		WithArgs(c.ID).
		WillReturnRows(sqlmock.NewRows(cartCols).AddRow(c.ID.String(), nil, "tok", c.ExpiresAt, testNow, testNow))
	sqlMock.ExpectQuery(`SELECT (.+) FROM cart_lines WHERE cart_id = \$1 AND product_id = \$2`).
		WithArgs(c.ID, "P", "").
		WillReturnRows(sqlmock.NewRows(lineCols).
			AddRow(lineID.String(), c.ID.String(), "P", 1, "10.00", []byte(`{}`), testNow, testNow))
	sqlMock.ExpectQuery(`UPDATE cart_lines SET quantity = quantity \+ \$1`).
		WithArgs(1, lineID).
		WillReturnRows(sqlmock.NewRows(lineCols).
			AddRow(lineID.String(), c.ID.String(), "P", 2, "10.00", []byte(`{}`), testNow, testNow))
	sqlMock.ExpectExec(`UPDATE carts SET updated_at`).
		WithArgs(c.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectCommit()

	l, err := s.AddLine(context.Background(), c, "P", 1, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, l.Quantity)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestService_UpdateQuantity(t *testing.T) {
	ctx := context.Background()
	c := &Cart{ID: uuid.New(), ExpiresAt: testNow.Add(time.Hour)}
	existing := line("P", 1, "10.00", nil)
	existing.CartID = c.ID

	t.Run("ZeroRemovesLine", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("GetLine", mock.Anything, c.ID, existing.ID).Return(&existing, nil)
		repo.On("DeleteLine", mock.Anything, c.ID, existing.ID).Return(true, nil)
		repo.On("TouchCart", mock.Anything, c.ID).Return(nil)

		l, err := newTestService(repo, new(MockLookup)).UpdateQuantity(ctx, c, existing.ID, 0)

		require.NoError(t, err)
		assert.Nil(t, l)
		repo.AssertExpectations(t)
	})

	t.Run("RevalidatesStock", func(t *testing.T) {
		repo := new(MockRepository)
		products := new(MockLookup)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("GetLine", mock.Anything, c.ID, existing.ID).Return(&existing, nil)
		products.On("GetProduct", mock.Anything, "P").Return(activeProduct("P", 3, "10.00"), nil)

		_, err := newTestService(repo, products).UpdateQuantity(ctx, c, existing.ID, 4)

		assert.ErrorIs(t, err, apperror.ErrInsufficientStock)
	})

	t.Run("SetsQuantity", func(t *testing.T) {
		repo := new(MockRepository)
		products := new(MockLookup)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("GetLine", mock.Anything, c.ID, existing.ID).Return(&existing, nil)
		products.On("GetProduct", mock.Anything, "P").Return(activeProduct("P", 3, "10.00"), nil)
		updated := existing
		updated.Quantity = 3
		repo.On("UpdateLineQuantity", mock.Anything, existing.ID, 3).Return(&updated, nil)
		repo.On("TouchCart", mock.Anything, c.ID).Return(nil)

		l, err := newTestService(repo, products).UpdateQuantity(ctx, c, existing.ID, 3)

		require.NoError(t, err)
		assert.Equal(t, 3, l.Quantity)
	})

	t.Run("LineOfAnotherCart", func(t *testing.T) {
		repo := new(MockRepository)
		other := uuid.New()
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("GetLine", mock.Anything, c.ID, other).Return(nil, nil)

		_, err := newTestService(repo, new(MockLookup)).UpdateQuantity(ctx, c, other, 2)

		assert.ErrorIs(t, err, ErrLineNotFound)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})
}

func TestService_RemoveLine(t *testing.T) {
	ctx := context.Background()
	c := &Cart{ID: uuid.New(), ExpiresAt: testNow.Add(time.Hour)}
	lineID := uuid.New()

	t.Run("Deleted", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("DeleteLine", mock.Anything, c.ID, lineID).Return(true, nil)
		repo.On("TouchCart", mock.Anything, c.ID).Return(nil)

		assert.NoError(t, newTestService(repo, nil).RemoveLine(ctx, c, lineID))
		repo.AssertNotCalled(t, "LineCart", mock.Anything, mock.Anything)
	})

	t.Run("AlreadyGoneIsIdempotent", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("DeleteLine", mock.Anything, c.ID, lineID).Return(false, nil)
		repo.On("LineCart", mock.Anything, lineID).Return(uuid.Nil, nil)

		assert.NoError(t, newTestService(repo, nil).RemoveLine(ctx, c, lineID))
	})

	t.Run("LineOfAnotherCart", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("DeleteLine", mock.Anything, c.ID, lineID).Return(false, nil)
		repo.On("LineCart", mock.Anything, lineID).Return(uuid.New(), nil)

		err := newTestService(repo, nil).RemoveLine(ctx, c, lineID)
		assert.ErrorIs(t, err, ErrLineNotFound)
	})

	t.Run("CartMissing", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("LockCart", mock.Anything, c.ID).Return(nil, nil)

		err := newTestService(repo, nil).RemoveLine(ctx, c, lineID)
		assert.ErrorIs(t, err, ErrCartNotFound)
		repo.AssertNotCalled(t, "DeleteLine", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StorageError", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("LockCart", mock.Anything, c.ID).Return(c, nil)
		repo.On("DeleteLine", mock.Anything, c.ID, lineID).Return(false, apperror.Persistence(errors.New("db down")))

		err := newTestService(repo, nil).RemoveLine(ctx, c, lineID)
		assert.ErrorIs(t, err, apperror.ErrPersistence)
	})
}

func TestService_Clear(t *testing.T) {
	repo := new(MockRepository)
	cartID := uuid.New()
	repo.On("ClearLines", mock.Anything, cartID).Return(int64(2), nil)

	assert.NoError(t, newTestService(repo, nil).Clear(context.Background(), cartID))
	repo.AssertExpectations(t)
}
