package order

import (
	"context"
	"database/sql/driver"
	"regexp"
	"sync"
	"testing"
	"time"

	"storefront/internal/cart"
	"storefront/internal/db"
	"storefront/internal/metrics"
	"storefront/internal/notification"
	"storefront/internal/product"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

var (
	cartCols  = []string{"id", "account_id", "session_token", "expires_at", "created_at", "updated_at"}
	lineCols  = []string{"id", "cart_id", "product_id", "quantity", "price_snapshot", "attributes", "created_at", "updated_at"}
	orderCols = []string{
		"id", "order_number", "account_id", "guest_session_id", "status",
		"subtotal", "shipping_amount", "tax_amount", "discount_amount", "total_amount",
		"delivery_method", "payment_method", "payment_status", "agent_location", "agent_instructions",
		"customer_phone", "customer_email", "verification_code", "receipt_ref", "created_at", "updated_at",
	}
)

// decimalArg matches a NUMERIC argument by value.
type decimalArg string

func (a decimalArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	d, err := decimal.NewFromString(s)
	return err == nil && d.Equal(decimal.RequireFromString(string(a)))
}

// patternArg matches a string argument against a regular expression.
type patternArg string

func (a patternArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && regexp.MustCompile(string(a)).MatchString(s)
}

type regionStub struct {
	known bool
	err   error
}

func (r regionStub) RegionExists(context.Context, string, string) (bool, error) {
	return r.known, r.err
}

type notifyCall struct {
	Kind      notification.Kind
	Recipient string
	Payload   map[string]any
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *recordingNotifier) Notify(_ context.Context, kind notification.Kind, recipient string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{Kind: kind, Recipient: recipient, Payload: payload})
}

func (n *recordingNotifier) Calls() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}

type recordingEvicter struct {
	mu  sync.Mutex
	ids []string
}

func (e *recordingEvicter) Evict(_ context.Context, ids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, ids...)
}

// stubLookup serves products from a map and is safe for concurrent use.
type stubLookup map[string]*product.Product

func (s stubLookup) GetProduct(_ context.Context, id string) (*product.Product, error) {
	p, ok := s[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

type builderFixture struct {
	builder  *Builder
	mock     sqlmock.Sqlmock
	notifier *recordingNotifier
	evicter  *recordingEvicter
	metrics  *metrics.Registry
}

func newBuilderFixture(t *testing.T, regions regionStub, lookup product.Lookup) *builderFixture {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := &builderFixture{
		mock:     mock,
		notifier: &recordingNotifier{},
		evicter:  &recordingEvicter{},
		metrics:  metrics.NewRegistry(),
	}
	products := product.NewRepository(conn)
	if lookup == nil {
		lookup = products
	}

	f.builder = NewBuilder(BuilderDeps{
		Carts:    cart.NewRepository(conn),
		Orders:   NewRepository(conn),
		Products: lookup,
		Stock:    products,
		Regions:  regions,
		Evicter:  f.evicter,
		Notifier: f.notifier,
		Tx:       db.NewTxManager(conn),
		Metrics:  f.metrics,
	}, BuilderConfig{
		PriceTolerance: decimal.RequireFromString("0.01"),
		AdminEmail:     "ops@shop.test",
	})
	f.builder.now = func() time.Time { return fixedNow }
	return f
}

func guestCartRows(cartID uuid.UUID, token string) *sqlmock.Rows {
	return sqlmock.NewRows(cartCols).
		AddRow(cartID.String(), nil, token, fixedNow.Add(time.Hour), fixedNow, fixedNow)
}

func orderRow(id uuid.UUID, status Status, payment PaymentStatus, email any) *sqlmock.Rows {
	return sqlmock.NewRows(orderCols).AddRow(
		id.String(), "ORD-20260301-ABCDEF", int64(7), nil, string(status),
		"20.00", "5.00", "0.00", "0.00", "25.00",
		"home_delivery", "cash_on_delivery", string(payment), nil, nil,
		"+255700000001", email, "ABCD2345", nil, fixedNow, fixedNow,
	)
}
