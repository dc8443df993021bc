package cart

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"storefront/internal/identity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        uuid.UUID         `json:"id"`
	Owner     identity.OwnerKey `json:"-"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Expired carts are treated as absent by every read.
func (c *Cart) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

type Line struct {
	ID            uuid.UUID       `json:"id"`
	CartID        uuid.UUID       `json:"cart_id"`
	ProductID     string          `json:"product_id"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
	Attributes    Attributes      `json:"attributes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Identity is what makes two lines of the same cart the same line.
type Identity struct {
	ProductID    string
	AttributeKey string
}

func (l Line) Identity() Identity {
	return Identity{ProductID: l.ProductID, AttributeKey: l.Attributes.Key()}
}

func (l Line) Subtotal() decimal.Decimal {
	return l.PriceSnapshot.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type View struct {
	Cart      *Cart           `json:"cart"`
	Lines     []Line          `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
}

func NewView(c *Cart, lines []Line) *View {
	v := &View{Cart: c, Lines: lines, Subtotal: decimal.Zero}
	if v.Lines == nil {
		v.Lines = []Line{}
	}
	for _, l := range lines {
		v.Subtotal = v.Subtotal.Add(l.Subtotal())
		v.ItemCount += l.Quantity
	}
	return v
}

// Attributes maps a variant option name (color, size) to the chosen value.
// Order is irrelevant to line identity.
type Attributes map[string]string

// Normalize trims names and values and drops empty names.
func (a Attributes) Normalize() Attributes {
	if len(a) == 0 {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Key is the canonical, order-independent encoding used in the line identity.
func (a Attributes) Key() string {
	if len(a) == 0 {
		return ""
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(a[k]))
	}
	return strings.Join(parts, "&")
}

func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(a))
}

func (a *Attributes) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Attributes", src)
	}

	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*a = Attributes(m).Normalize()
	return nil
}
