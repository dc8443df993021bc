package cart

import (
	"context"
	"database/sql"
	"errors"

	"storefront/internal/apperror"
	"storefront/internal/db"
	"storefront/internal/identity"
	"storefront/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	// Carts. Reads return (nil, nil) when the owner has no cart; expired
	// carts are returned as-is and left to the caller to discard.
	GetCartByOwner(ctx context.Context, owner identity.OwnerKey) (*Cart, error)
	LockCartByOwner(ctx context.Context, owner identity.OwnerKey) (*Cart, error)
	LockCart(ctx context.Context, cartID uuid.UUID) (*Cart, error)
	CreateCart(ctx context.Context, c *Cart) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
	ReassignCart(ctx context.Context, cartID uuid.UUID, owner identity.OwnerKey) error
	TouchCart(ctx context.Context, cartID uuid.UUID) error

	// Lines.
	ListLines(ctx context.Context, cartID uuid.UUID) ([]Line, error)
	GetLine(ctx context.Context, cartID, lineID uuid.UUID) (*Line, error)
	LineCart(ctx context.Context, lineID uuid.UUID) (uuid.UUID, error)
	FindLine(ctx context.Context, cartID uuid.UUID, id Identity) (*Line, error)
	UpsertLine(ctx context.Context, l *Line) (*Line, error)
	UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) (*Line, error)
	IncrementLineQuantity(ctx context.Context, lineID uuid.UUID, delta int) (*Line, error)
	DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) (bool, error)
	ClearLines(ctx context.Context, cartID uuid.UUID) (int64, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const cartColumns = `id, account_id, session_token, expires_at, created_at, updated_at`

const lineColumns = `id, cart_id, product_id, quantity, price_snapshot, attributes, created_at, updated_at`

func ownerColumns(owner identity.OwnerKey) (any, any) {
	var account, session any
	if id, ok := owner.AccountID(); ok {
		account = int64(id)
	}
	if token, ok := owner.SessionToken(); ok {
		session = token
	}
	return account, session
}

func ownerPredicate(owner identity.OwnerKey) (string, any) {
	if id, ok := owner.AccountID(); ok {
		return "account_id = $1", int64(id)
	}
	token, _ := owner.SessionToken()
	return "session_token = $1", token
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCart(row rowScanner) (*Cart, error) {
	var (
		c       Cart
		account sql.NullInt64
		session sql.NullString
	)
	if err := row.Scan(&c.ID, &account, &session, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	switch {
	case account.Valid:
		c.Owner = identity.AccountOwner(uint(account.Int64))
	case session.Valid:
		c.Owner = identity.SessionOwner(session.String)
	}
	return &c, nil
}

func scanLine(row rowScanner) (*Line, error) {
	var l Line
	if err := row.Scan(
		&l.ID, &l.CartID, &l.ProductID, &l.Quantity,
		&l.PriceSnapshot, &l.Attributes, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) getCart(ctx context.Context, method string, owner identity.OwnerKey, lock bool) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", method),
		zap.String("owner", owner.String()),
	)

	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}

	where, arg := ownerPredicate(owner)
	query := `SELECT ` + cartColumns + ` FROM carts WHERE ` + where
	if lock {
		query += ` FOR UPDATE`
	}

	c, err := scanCart(db.Conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		log.Error("failed to load cart", zap.Error(err))
		return nil, apperror.Persistence(err)
	}
	return c, nil
}

func (r *repository) GetCartByOwner(ctx context.Context, owner identity.OwnerKey) (*Cart, error) {
	return r.getCart(ctx, "GetCartByOwner", owner, false)
}

// LockCartByOwner must run inside a transaction; the row stays locked until it ends.
func (r *repository) LockCartByOwner(ctx context.Context, owner identity.OwnerKey) (*Cart, error) {
	return r.getCart(ctx, "LockCartByOwner", owner, true)
}

// LockCart must run inside a transaction; the row stays locked until it ends.
// Returns (nil, nil) when the cart is gone.
func (r *repository) LockCart(ctx context.Context, cartID uuid.UUID) (*Cart, error) {
	c, err := scanCart(db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, cartID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to lock cart",
			zap.String("layer", "repository"),
			zap.String("cart_id", cartID.String()),
			zap.Error(err),
		)
		return nil, apperror.Persistence(err)
	}
	return c, nil
}

// CreateCart returns errCartOwnerTaken when a concurrent request created the
// owner's cart first.
func (r *repository) CreateCart(ctx context.Context, c *Cart) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateCart"),
		zap.String("owner", c.Owner.String()),
	)

	if !c.Owner.Valid() {
		return ErrInvalidOwner
	}

	account, session := ownerColumns(c.Owner)
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO carts (id, account_id, session_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, account, session, c.ExpiresAt, c.CreatedAt, c.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == apperror.PgUniqueViolation {
			log.Info("cart already created for owner")
			return errCartOwnerTaken
		}
		log.Error("failed to insert cart", zap.Error(err))
		return apperror.Persistence(err)
	}

	log.Info("cart created", zap.String("cart_id", c.ID.String()))
	return nil
}

func (r *repository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to delete cart",
			zap.String("layer", "repository"),
			zap.String("cart_id", cartID.String()),
			zap.Error(err),
		)
		return apperror.Persistence(err)
	}
	return nil
}

func (r *repository) ReassignCart(ctx context.Context, cartID uuid.UUID, owner identity.OwnerKey) error {
	if !owner.Valid() {
		return ErrInvalidOwner
	}

	account, session := ownerColumns(owner)
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE carts
		SET account_id = $1, session_token = $2, updated_at = NOW()
		WHERE id = $3
	`, account, session, cartID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to reassign cart",
			zap.String("layer", "repository"),
			zap.String("cart_id", cartID.String()),
			zap.String("owner", owner.String()),
			zap.Error(err),
		)
		return apperror.Persistence(err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (r *repository) TouchCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID)
	if err != nil {
		return apperror.Persistence(err)
	}
	return nil
}

func (r *repository) ListLines(ctx context.Context, cartID uuid.UUID) ([]Line, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListLines"),
		zap.String("cart_id", cartID.String()),
	)

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+lineColumns+`
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY created_at, id
	`, cartID)
	if err != nil {
		log.Error("failed to query cart lines", zap.Error(err))
		return nil, apperror.Persistence(err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			log.Error("failed to scan cart line", zap.Error(err))
			return nil, apperror.Persistence(err)
		}
		lines = append(lines, *l)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, apperror.Persistence(err)
	}

	return lines, nil
}

func (r *repository) GetLine(ctx context.Context, cartID, lineID uuid.UUID) (*Line, error) {
	l, err := scanLine(db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+lineColumns+`
		FROM cart_lines
		WHERE cart_id = $1 AND id = $2
	`, cartID, lineID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to load cart line",
			zap.String("layer", "repository"),
			zap.String("line_id", lineID.String()),
			zap.Error(err),
		)
		return nil, apperror.Persistence(err)
	}
	return l, nil
}

// LineCart returns the cart holding lineID, or uuid.Nil when no cart does.
func (r *repository) LineCart(ctx context.Context, lineID uuid.UUID) (uuid.UUID, error) {
	var cartID uuid.UUID
	err := db.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT cart_id FROM cart_lines WHERE id = $1`, lineID).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to resolve line cart",
			zap.String("layer", "repository"),
			zap.String("line_id", lineID.String()),
			zap.Error(err),
		)
		return uuid.Nil, apperror.Persistence(err)
	}
	return cartID, nil
}

func (r *repository) FindLine(ctx context.Context, cartID uuid.UUID, id Identity) (*Line, error) {
	l, err := scanLine(db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+lineColumns+`
		FROM cart_lines
		WHERE cart_id = $1 AND product_id = $2 AND attributes_key = $3
	`, cartID, id.ProductID, id.AttributeKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to find cart line",
			zap.String("layer", "repository"),
			zap.String("product_id", id.ProductID),
			zap.Error(err),
		)
		return nil, apperror.Persistence(err)
	}
	return l, nil
}

// UpsertLine inserts l, or adds its quantity to the existing line with the same
// identity. The existing price snapshot is kept.
func (r *repository) UpsertLine(ctx context.Context, l *Line) (*Line, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpsertLine"),
		zap.String("cart_id", l.CartID.String()),
		zap.String("product_id", l.ProductID),
	)

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}

	out, err := scanLine(db.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO cart_lines (id, cart_id, product_id, quantity, price_snapshot, attributes, attributes_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (cart_id, product_id, attributes_key)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING `+lineColumns,
		l.ID, l.CartID, l.ProductID, l.Quantity, l.PriceSnapshot, l.Attributes, l.Attributes.Key(),
	))
	if err != nil {
		log.Error("failed to upsert cart line", zap.Error(err))
		return nil, apperror.Persistence(err)
	}
	return out, nil
}

func (r *repository) UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) (*Line, error) {
	l, err := scanLine(db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE cart_lines
		SET quantity = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+lineColumns,
		quantity, lineID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to update cart line quantity",
			zap.String("layer", "repository"),
			zap.String("line_id", lineID.String()),
			zap.Error(err),
		)
		return nil, apperror.Persistence(err)
	}
	return l, nil
}

// IncrementLineQuantity adds delta to the stored quantity.
func (r *repository) IncrementLineQuantity(ctx context.Context, lineID uuid.UUID, delta int) (*Line, error) {
	l, err := scanLine(db.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE cart_lines
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+lineColumns,
		delta, lineID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLineNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to increment cart line quantity",
			zap.String("layer", "repository"),
			zap.String("line_id", lineID.String()),
			zap.Error(err),
		)
		return nil, apperror.Persistence(err)
	}
	return l, nil
}

func (r *repository) DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) (bool, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM cart_lines WHERE cart_id = $1 AND id = $2`, cartID, lineID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to delete cart line",
			zap.String("layer", "repository"),
			zap.String("line_id", lineID.String()),
			zap.Error(err),
		)
		return false, apperror.Persistence(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *repository) ClearLines(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM cart_lines WHERE cart_id = $1`, cartID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to clear cart lines",
			zap.String("layer", "repository"),
			zap.String("cart_id", cartID.String()),
			zap.Error(err),
		)
		return 0, apperror.Persistence(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
