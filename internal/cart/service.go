package cart

import (
	"context"
	"errors"
	"time"

	"storefront/internal/db"
	"storefront/internal/identity"
	"storefront/internal/logger"
	"storefront/internal/product"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the per-owner cart store.
type Service interface {
	GetOrCreateCart(ctx context.Context, owner identity.OwnerKey) (*Cart, error)
	View(ctx context.Context, owner identity.OwnerKey) (*View, error)
	AddLine(ctx context.Context, c *Cart, productID string, quantity int, attrs Attributes) (*Line, error)
	UpdateQuantity(ctx context.Context, c *Cart, lineID uuid.UUID, quantity int) (*Line, error)
	RemoveLine(ctx context.Context, c *Cart, lineID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type service struct {
	repo     Repository
	products product.Lookup
	tx       db.Transactor
	ttl      time.Duration
	now      func() time.Time
}

func NewService(repo Repository, products product.Lookup, tx db.Transactor, ttl time.Duration) Service {
	return &service{
		repo:     repo,
		products: products,
		tx:       tx,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateCart returns the owner's live cart, replacing an expired one.
func (s *service) GetOrCreateCart(ctx context.Context, owner identity.OwnerKey) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "GetOrCreateCart"),
		zap.String("owner", owner.String()),
	)

	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}

	var out *Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetCartByOwner(ctx, owner)
		if err != nil {
			return err
		}

		now := s.now()
		if existing != nil && !existing.Expired(now) {
			out = existing
			return nil
		}
		if existing != nil {
			log.Info("discarding expired cart", zap.String("cart_id", existing.ID.String()))
			if err := s.repo.DeleteCart(ctx, existing.ID); err != nil {
				return err
			}
		}

		c := &Cart{
			ID:        uuid.New(),
			Owner:     owner,
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateCart(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})

	if errors.Is(err, errCartOwnerTaken) {
		// Lost the race to a concurrent request; use the cart it created.
		c, err := s.repo.GetCartByOwner(ctx, owner)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, ErrCartNotFound
		}
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	return out, nil
}

// View never creates a cart: an owner without a live cart sees an empty one.
func (s *service) View(ctx context.Context, owner identity.OwnerKey) (*View, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}

	c, err := s.repo.GetCartByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c == nil || c.Expired(s.now()) {
		return NewView(nil, nil), nil
	}

	lines, err := s.repo.ListLines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return NewView(c, lines), nil
}

func (s *service) loadPurchasable(ctx context.Context, productID string) (*product.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, product.ErrProductNotFound) {
		return nil, productUnavailable(productID, "does not exist")
	}
	if err != nil {
		return nil, err
	}
	if !p.Status.IsPurchasable() {
		return nil, productUnavailable(productID, "is "+string(p.Status))
	}
	return p, nil
}

// AddLine merges into the line with the same product and attributes, or adds
// a new line priced at the current catalog price.
func (s *service) AddLine(
	ctx context.Context,
	c *Cart,
	productID string,
	quantity int,
	attrs Attributes,
) (*Line, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AddLine"),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
	)

	if c == nil {
		return nil, ErrCartNotFound
	}
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	attrs = attrs.Normalize()

	// 1️⃣ Product must exist and be purchasable
	p, err := s.loadPurchasable(ctx, productID)
	if err != nil {
		log.Info("product rejected", zap.Error(err))
		return nil, err
	}

	var out *Line
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// 2️⃣ Serialize with other writers of this cart
		if err := s.lockLiveCart(ctx, c.ID); err != nil {
			return err
		}

		// 3️⃣ Existing line with the same identity
		existing, err := s.repo.FindLine(ctx, c.ID, Identity{ProductID: productID, AttributeKey: attrs.Key()})
		if err != nil {
			return err
		}

		// 4️⃣ Stock covers the resulting quantity
		finalQty := quantity
		if existing != nil {
			finalQty += existing.Quantity
		}
		if finalQty > p.Stock {
			return insufficientStock(productID, finalQty, p.Stock)
		}

		// 5️⃣ Insert or increment
		if existing == nil {
			out, err = s.repo.UpsertLine(ctx, &Line{
				CartID:        c.ID,
				ProductID:     productID,
				Quantity:      quantity,
				PriceSnapshot: p.Price,
				Attributes:    attrs,
			})
		} else {
			out, err = s.repo.IncrementLineQuantity(ctx, existing.ID, quantity)
		}
		if err != nil {
			return err
		}

		return s.repo.TouchCart(ctx, c.ID)
	})
	if err != nil {
		return nil, err
	}

	log.Info("cart line saved", zap.String("line_id", out.ID.String()), zap.Int("line_quantity", out.Quantity))
	return out, nil
}

// UpdateQuantity sets an absolute quantity. Zero or less removes the line and
// returns a nil line.
func (s *service) UpdateQuantity(ctx context.Context, c *Cart, lineID uuid.UUID, quantity int) (*Line, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateQuantity"),
		zap.String("line_id", lineID.String()),
		zap.Int("quantity", quantity),
	)

	if c == nil {
		return nil, ErrCartNotFound
	}

	var out *Line
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.lockLiveCart(ctx, c.ID); err != nil {
			return err
		}

		line, err := s.repo.GetLine(ctx, c.ID, lineID)
		if err != nil {
			return err
		}
		if line == nil {
			return ErrLineNotFound
		}

		if quantity <= 0 {
			if _, err := s.repo.DeleteLine(ctx, c.ID, lineID); err != nil {
				return err
			}
			return s.repo.TouchCart(ctx, c.ID)
		}

		p, err := s.loadPurchasable(ctx, line.ProductID)
		if err != nil {
			return err
		}
		if quantity > p.Stock {
			return insufficientStock(line.ProductID, quantity, p.Stock)
		}

		out, err = s.repo.UpdateLineQuantity(ctx, lineID, quantity)
		if err != nil {
			return err
		}
		return s.repo.TouchCart(ctx, c.ID)
	})
	if err != nil {
		log.Info("quantity update rejected", zap.Error(err))
		return nil, err
	}

	return out, nil
}

// RemoveLine succeeds when the line is already gone. It fails when the cart
// is gone or the line belongs to a different cart.
func (s *service) RemoveLine(ctx context.Context, c *Cart, lineID uuid.UUID) error {
	if c == nil {
		return ErrCartNotFound
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.lockLiveCart(ctx, c.ID); err != nil {
			return err
		}

		deleted, err := s.repo.DeleteLine(ctx, c.ID, lineID)
		if err != nil {
			return err
		}
		if deleted {
			return s.repo.TouchCart(ctx, c.ID)
		}

		holder, err := s.repo.LineCart(ctx, lineID)
		if err != nil {
			return err
		}
		if holder != uuid.Nil {
			return ErrLineNotFound
		}
		return nil
	})
}

// lockLiveCart locks the cart row for the rest of the transaction.
func (s *service) lockLiveCart(ctx context.Context, cartID uuid.UUID) error {
	current, err := s.repo.LockCart(ctx, cartID)
	if err != nil {
		return err
	}
	if current == nil || current.Expired(s.now()) {
		return ErrCartNotFound
	}
	return nil
}

func (s *service) Clear(ctx context.Context, cartID uuid.UUID) error {
	n, err := s.repo.ClearLines(ctx, cartID)
	if err != nil {
		return err
	}

	logger.FromCtx(ctx).Info("cart cleared",
		zap.String("layer", "service"),
		zap.String("cart_id", cartID.String()),
		zap.Int64("lines_removed", n),
	)
	return nil
}
