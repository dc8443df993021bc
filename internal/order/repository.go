package order

import (
	"context"
	"database/sql"
	"errors"

	"storefront/internal/apperror"
	"storefront/internal/db"
	"storefront/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	InsertOrder(ctx context.Context, o *Order) error
	InsertAddress(ctx context.Context, a *Address) error
	InsertLines(ctx context.Context, lines []Line) error
	InsertStatusEvent(ctx context.Context, e *StatusEvent) error

	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	GetOrderByVerificationCode(ctx context.Context, code string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status, payment PaymentStatus) error

	ListLines(ctx context.Context, orderID uuid.UUID) ([]Line, error)
	GetAddress(ctx context.Context, orderID uuid.UUID) (*Address, error)
	ListStatusEvents(ctx context.Context, orderID uuid.UUID) ([]StatusEvent, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `id, order_number, account_id, guest_session_id, status,
	subtotal, shipping_amount, tax_amount, discount_amount, total_amount,
	delivery_method, payment_method, payment_status, agent_location, agent_instructions,
	customer_phone, customer_email, verification_code, receipt_ref, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o       Order
		account sql.NullInt64
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &account, &o.GuestSessionID, &o.Status,
		&o.Pricing.Subtotal, &o.Pricing.Shipping, &o.Pricing.Tax, &o.Pricing.Discount, &o.Pricing.Total,
		&o.DeliveryMethod, &o.PaymentMethod, &o.PaymentStatus, &o.AgentLocation, &o.AgentInstructions,
		&o.CustomerPhone, &o.CustomerEmail, &o.VerificationCode, &o.ReceiptRef, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if account.Valid {
		id := uint(account.Int64)
		o.AccountID = &id
	}
	return &o, nil
}

// InsertOrder returns errCodeCollision when the order number or verification
// code is already taken.
func (r *repository) InsertOrder(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "InsertOrder"),
		zap.String("order_number", o.OrderNumber),
	)

	var account any
	if o.AccountID != nil {
		account = int64(*o.AccountID)
	}

	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`,
		o.ID, o.OrderNumber, account, o.GuestSessionID, o.Status,
		o.Pricing.Subtotal, o.Pricing.Shipping, o.Pricing.Tax, o.Pricing.Discount, o.Pricing.Total,
		o.DeliveryMethod, o.PaymentMethod, o.PaymentStatus, o.AgentLocation, o.AgentInstructions,
		o.CustomerPhone, o.CustomerEmail, o.VerificationCode, o.ReceiptRef, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == apperror.PgUniqueViolation {
			log.Warn("order code collision", zap.String("constraint", pqErr.Constraint))
			return errCodeCollision
		}
		log.Error("failed to insert order", zap.Error(err))
		return apperror.Persistence(err)
	}
	return nil
}

func (r *repository) InsertAddress(ctx context.Context, a *Address) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO order_addresses (id, order_id, type, full_name, phone, email, address, city, region, country, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.OrderID, a.Type, a.FullName, a.Phone, a.Email, a.Address, a.City, a.Region, a.Country, a.Notes)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to insert order address",
			zap.String("layer", "repository"),
			zap.String("order_id", a.OrderID.String()),
			zap.Error(err),
		)
		return apperror.Persistence(err)
	}
	return nil
}

func (r *repository) InsertLines(ctx context.Context, lines []Line) error {
	conn := db.Conn(ctx, r.db)
	for _, l := range lines {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, product_id, quantity, unit_price, attributes)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, l.ID, l.OrderID, l.ProductID, l.Quantity, l.UnitPrice, l.Attributes)
		if err != nil {
			logger.FromCtx(ctx).Error("failed to insert order line",
				zap.String("layer", "repository"),
				zap.String("order_id", l.OrderID.String()),
				zap.String("product_id", l.ProductID),
				zap.Error(err),
			)
			return apperror.Persistence(err)
		}
	}
	return nil
}

func (r *repository) InsertStatusEvent(ctx context.Context, e *StatusEvent) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO order_status_events (id, order_id, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.OrderID, e.Status, e.Notes, e.CreatedAt)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to insert status event",
			zap.String("layer", "repository"),
			zap.String("order_id", e.OrderID.String()),
			zap.String("status", string(e.Status)),
			zap.Error(err),
		)
		return apperror.Persistence(err)
	}
	return nil
}

func (r *repository) getOrder(ctx context.Context, method, where string, arg any) (*Order, error) {
	o, err := scanOrder(db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to load order",
			zap.String("layer", "repository"),
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, apperror.Persistence(err)
	}
	return o, nil
}

func (r *repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return r.getOrder(ctx, "GetOrder", "id = $1", orderID)
}

// LockOrder must run inside a transaction.
func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return r.getOrder(ctx, "LockOrder", "id = $1 FOR UPDATE", orderID)
}

func (r *repository) GetOrderByVerificationCode(ctx context.Context, code string) (*Order, error) {
	return r.getOrder(ctx, "GetOrderByVerificationCode", "verification_code = $1", code)
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status, payment PaymentStatus) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE orders
		SET status = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3
	`, status, payment, orderID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to update order status",
			zap.String("layer", "repository"),
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		return apperror.Persistence(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) ListLines(ctx context.Context, orderID uuid.UUID) ([]Line, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, attributes
		FROM order_lines
		WHERE order_id = $1
		ORDER BY product_id, id
	`, orderID)
	if err != nil {
		return nil, apperror.Persistence(err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Attributes); err != nil {
			return nil, apperror.Persistence(err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence(err)
	}
	return lines, nil
}

func (r *repository) GetAddress(ctx context.Context, orderID uuid.UUID) (*Address, error) {
	var a Address
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, order_id, type, full_name, phone, email, address, city, region, country, notes
		FROM order_addresses
		WHERE order_id = $1 AND type = $2
	`, orderID, AddressShipping).Scan(
		&a.ID, &a.OrderID, &a.Type, &a.FullName, &a.Phone, &a.Email,
		&a.Shipping.Address, &a.City, &a.Region, &a.Country, &a.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Persistence(err)
	}
	return &a, nil
}

// ListStatusEvents returns the history oldest first.
func (r *repository) ListStatusEvents(ctx context.Context, orderID uuid.UUID) ([]StatusEvent, error) {
	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, order_id, status, notes, created_at
		FROM order_status_events
		WHERE order_id = $1
		ORDER BY seq
	`, orderID)
	if err != nil {
		return nil, apperror.Persistence(err)
	}
	defer rows.Close()

	var events []StatusEvent
	for rows.Next() {
		var e StatusEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Notes, &e.CreatedAt); err != nil {
			return nil, apperror.Persistence(err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Persistence(err)
	}
	return events, nil
}
