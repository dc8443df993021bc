package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/address"
	"storefront/internal/apperror"
	"storefront/internal/cart"
	"storefront/internal/db"
	"storefront/internal/identity"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/notification"
	"storefront/internal/product"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BuilderDeps are the collaborators of a Builder. Evicter and Metrics may be nil.
type BuilderDeps struct {
	Carts    cart.Repository
	Orders   Repository
	Products product.Lookup
	Stock    product.StockKeeper
	Regions  address.RegionReference
	Evicter  product.Evicter
	Notifier notification.Dispatcher
	Tx       db.Transactor
	Metrics  *metrics.Registry
}

type BuilderConfig struct {
	PriceTolerance decimal.Decimal
	AdminEmail     string
}

// Builder turns an owner's cart into a placed order.
type Builder struct {
	deps     BuilderDeps
	cfg      BuilderConfig
	validate *validator.Validate
	now      func() time.Time
}

func NewBuilder(deps BuilderDeps, cfg BuilderConfig) *Builder {
	return &Builder{
		deps:     deps,
		cfg:      cfg,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Build places an order from the owner's cart in one transaction. On any
// failure nothing is written and the cart is left as it was.
func (b *Builder) Build(ctx context.Context, owner identity.OwnerKey, in CheckoutInput) (*Receipt, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Build"),
		zap.String("owner", owner.String()),
	)
	timer := metrics.StartTimer()

	if !owner.Valid() {
		return nil, ErrNoCart
	}

	// 1️⃣ Payload shape
	in.normalize()
	if err := b.validate.Struct(in); err != nil {
		log.Info("checkout payload rejected", zap.Error(err))
		return nil, validationError(err)
	}

	// 2️⃣ Shipping region must be known
	ok, err := b.deps.Regions.RegionExists(ctx, in.Address.Country, in.Address.Region)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s, %s", ErrUnknownRegion, in.Address.Region, in.Address.Country)
	}

	// 3️⃣ Transaction, retried whole when a generated code collides
	var (
		placed   *Order
		reserved []string
	)
	for attempt := 1; ; attempt++ {
		placed, reserved, err = b.buildOnce(ctx, owner, in)
		if errors.Is(err, errCodeCollision) && attempt < maxBuildAttempts {
			b.deps.Metrics.Counter(metrics.OrderBuildRetries).Inc()
			log.Warn("retrying checkout after code collision", zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if errors.Is(err, errCodeCollision) {
		err = apperror.Persistence(err)
	}
	if err != nil {
		b.deps.Metrics.Counter(metrics.OrderBuildFailures).Inc()
		log.Warn("checkout failed", zap.Error(err))
		return nil, err
	}

	b.deps.Metrics.Counter(metrics.OrdersPlaced).Inc()
	b.deps.Metrics.ObserveSince(metrics.OrderBuildMillis, timer)
	log.Info("order placed",
		zap.String("order_id", placed.ID.String()),
		zap.String("order_number", placed.OrderNumber),
		zap.String("total", placed.Pricing.Total.StringFixed(2)),
	)

	// 4️⃣ After commit: cache and notifications, never failing the order
	if b.deps.Evicter != nil {
		b.deps.Evicter.Evict(ctx, reserved...)
	}
	b.notifyPlaced(ctx, placed)

	return &Receipt{
		OrderID:          placed.ID,
		OrderNumber:      placed.OrderNumber,
		VerificationCode: placed.VerificationCode,
		TotalAmount:      placed.Pricing.Total,
		Status:           placed.Status,
	}, nil
}

func (b *Builder) buildOnce(ctx context.Context, owner identity.OwnerKey, in CheckoutInput) (*Order, []string, error) {
	var (
		placed   *Order
		reserved []string
	)

	err := b.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		now := b.now()

		// Lock the cart so a concurrent checkout waits and then sees it empty.
		c, err := b.deps.Carts.LockCartByOwner(ctx, owner)
		if err != nil {
			return err
		}
		if c == nil || c.Expired(now) {
			return ErrNoCart
		}

		cartLines, err := b.deps.Carts.ListLines(ctx, c.ID)
		if err != nil {
			return err
		}
		lines, partial, err := selectLines(cartLines, in.Lines)
		if err != nil {
			return err
		}

		pricing, err := Reconcile(lines, in.Pricing, b.cfg.PriceTolerance)
		if err != nil {
			return err
		}

		reserved = reserved[:0]
		for _, l := range lines {
			if err := b.deps.Stock.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
			reserved = append(reserved, l.ProductID)
		}

		o, err := b.newOrder(owner, in, pricing, now)
		if err != nil {
			return err
		}
		if err := b.deps.Orders.InsertOrder(ctx, o); err != nil {
			return err
		}

		o.Address = &Address{
			ID:       uuid.New(),
			OrderID:  o.ID,
			Type:     AddressShipping,
			Shipping: in.Address,
		}
		if err := b.deps.Orders.InsertAddress(ctx, o.Address); err != nil {
			return err
		}

		o.Lines = make([]Line, 0, len(lines))
		for _, l := range lines {
			o.Lines = append(o.Lines, Line{
				ID:         uuid.New(),
				OrderID:    o.ID,
				ProductID:  l.ProductID,
				Quantity:   l.Quantity,
				UnitPrice:  l.PriceSnapshot,
				Attributes: l.Attributes,
			})
		}
		if err := b.deps.Orders.InsertLines(ctx, o.Lines); err != nil {
			return err
		}

		note := initialStatusNote
		event := StatusEvent{ID: uuid.New(), OrderID: o.ID, Status: StatusPending, Notes: &note, CreatedAt: now}
		if err := b.deps.Orders.InsertStatusEvent(ctx, &event); err != nil {
			return err
		}
		o.History = []StatusEvent{event}

		// Clearing last makes a second concurrent build find nothing to order.
		if partial {
			for _, l := range lines {
				if _, err := b.deps.Carts.DeleteLine(ctx, c.ID, l.ID); err != nil {
					return err
				}
			}
		} else if _, err := b.deps.Carts.ClearLines(ctx, c.ID); err != nil {
			return err
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return placed, reserved, nil
}

func (b *Builder) newOrder(owner identity.OwnerKey, in CheckoutInput, pricing Pricing, now time.Time) (*Order, error) {
	number, err := NewOrderNumber(now)
	if err != nil {
		return nil, err
	}
	code, err := NewVerificationCode()
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:                uuid.New(),
		OrderNumber:       number,
		Status:            StatusPending,
		Pricing:           pricing,
		DeliveryMethod:    in.DeliveryMethod,
		PaymentMethod:     in.PaymentMethod,
		PaymentStatus:     in.PaymentMethod.InitialPaymentStatus(),
		AgentLocation:     in.AgentLocation,
		AgentInstructions: in.AgentInstructions,
		CustomerPhone:     in.Contact.Phone,
		CustomerEmail:     in.customerEmail(),
		VerificationCode:  code,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if id, ok := owner.AccountID(); ok {
		o.AccountID = &id
	}
	if token, ok := owner.SessionToken(); ok {
		o.GuestSessionID = &token
	}
	return o, nil
}

// selectLines resolves the submitted selection against the cart. An empty
// selection means the whole cart. partial reports whether lines were left out.
func selectLines(cartLines []cart.Line, selection []LineSelection) ([]cart.Line, bool, error) {
	if len(selection) == 0 {
		if len(cartLines) == 0 {
			return nil, false, ErrNoLines
		}
		return cartLines, false, nil
	}

	byID := make(map[uuid.UUID]cart.Line, len(cartLines))
	for _, l := range cartLines {
		byID[l.ID] = l
	}

	seen := make(map[uuid.UUID]bool, len(selection))
	out := make([]cart.Line, 0, len(selection))
	for _, sel := range selection {
		l, ok := byID[sel.LineID]
		if !ok {
			return nil, false, fmt.Errorf("%w: line %s is not in the cart", ErrInvalidLine, sel.LineID)
		}
		if seen[sel.LineID] {
			return nil, false, fmt.Errorf("%w: line %s selected twice", ErrInvalidLine, sel.LineID)
		}
		if l.Quantity != sel.Quantity {
			return nil, false, fmt.Errorf("%w: line %s has quantity %d, not %d",
				ErrInvalidLine, sel.LineID, l.Quantity, sel.Quantity)
		}
		seen[sel.LineID] = true
		out = append(out, l)
	}
	return out, len(out) < len(cartLines), nil
}

func (b *Builder) notifyPlaced(ctx context.Context, o *Order) {
	if b.deps.Notifier == nil {
		return
	}
	payload := map[string]any{
		"order_id":          o.ID.String(),
		"order_number":      o.OrderNumber,
		"verification_code": o.VerificationCode,
		"total":             o.Pricing.Total.StringFixed(2),
		"status":            string(o.Status),
		"payment_method":    string(o.PaymentMethod),
	}
	if o.CustomerEmail != nil {
		b.deps.Notifier.Notify(ctx, notification.KindOrderPlaced, *o.CustomerEmail, payload)
	}
	if b.cfg.AdminEmail != "" {
		b.deps.Notifier.Notify(ctx, notification.KindOrderPlaced, b.cfg.AdminEmail, payload)
	}
}

type LineCheck struct {
	LineID    uuid.UUID       `json:"line_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Problem   string          `json:"problem,omitempty"`
}

type Preview struct {
	Lines     []LineCheck     `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
	Ready     bool            `json:"ready"`
}

const previewConcurrency = 8

// Preview reports what a checkout of the owner's cart would meet, without
// writing anything. Catalog checks run concurrently.
func (b *Builder) Preview(ctx context.Context, owner identity.OwnerKey) (*Preview, error) {
	c, err := b.deps.Carts.GetCartByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c == nil || c.Expired(b.now()) {
		return nil, ErrNoCart
	}

	lines, err := b.deps.Carts.ListLines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNoLines
	}

	checks := make([]LineCheck, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewConcurrency)
	for i, l := range lines {
		g.Go(func() error {
			check := LineCheck{
				LineID:    l.ID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				UnitPrice: l.PriceSnapshot,
			}
			p, err := b.deps.Products.GetProduct(gctx, l.ProductID)
			switch {
			case errors.Is(err, product.ErrProductNotFound):
				check.Problem = "product no longer exists"
			case err != nil:
				return err
			case !p.Status.IsPurchasable():
				check.Problem = "product is " + string(p.Status)
			case p.Stock < l.Quantity:
				check.Problem = fmt.Sprintf("only %d in stock", p.Stock)
			}
			checks[i] = check
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Preview{Lines: checks, Subtotal: LinesSubtotal(lines), Ready: true}
	for _, chk := range checks {
		out.ItemCount += chk.Quantity
		if chk.Problem != "" {
			out.Ready = false
		}
	}
	return out, nil
}
