package cart

import (
	"context"
	"sort"
	"time"

	"storefront/internal/db"
	"storefront/internal/identity"
	"storefront/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MergePlan is the set of writes that folds a guest cart into an account cart.
type MergePlan struct {
	// Updates are existing account lines carrying their new quantity.
	Updates []Line
	// Inserts are new account lines, one per identity the account did not hold.
	Inserts []Line
}

func (p MergePlan) Empty() bool {
	return len(p.Updates) == 0 && len(p.Inserts) == 0
}

// PlanMerge computes the merge without touching storage. Quantities of lines
// sharing an identity are summed and the account's price snapshot wins. The
// result does not depend on the order of either input.
func PlanMerge(accountCartID uuid.UUID, accountLines, guestLines []Line) MergePlan {
	// Fold guest lines first so duplicate identities collapse deterministically.
	folded := make(map[Identity]Line, len(guestLines))
	for _, gl := range guestLines {
		id := gl.Identity()
		cur, ok := folded[id]
		if !ok {
			folded[id] = gl
			continue
		}
		keep := cur
		if earlier(gl, cur) {
			keep = gl
		}
		keep.Quantity = cur.Quantity + gl.Quantity
		folded[id] = keep
	}

	existing := make(map[Identity]Line, len(accountLines))
	for _, al := range accountLines {
		existing[al.Identity()] = al
	}

	var plan MergePlan
	for id, gl := range folded {
		if al, ok := existing[id]; ok {
			al.Quantity += gl.Quantity
			plan.Updates = append(plan.Updates, al)
			continue
		}
		plan.Inserts = append(plan.Inserts, Line{
			CartID:        accountCartID,
			ProductID:     gl.ProductID,
			Quantity:      gl.Quantity,
			PriceSnapshot: gl.PriceSnapshot,
			Attributes:    gl.Attributes,
		})
	}

	sortLines(plan.Updates)
	sortLines(plan.Inserts)
	return plan
}

func earlier(a, b Line) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func sortLines(lines []Line) {
	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i].Identity(), lines[j].Identity()
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.AttributeKey < b.AttributeKey
	})
}

type MergeOutcome string

const (
	MergeNoop     MergeOutcome = "noop"
	MergeRekeyed  MergeOutcome = "rekeyed"
	MergeCombined MergeOutcome = "combined"
)

type MergeResult struct {
	Outcome       MergeOutcome `json:"outcome"`
	CartID        uuid.UUID    `json:"cart_id,omitempty"`
	LinesUpdated  int          `json:"lines_updated"`
	LinesInserted int          `json:"lines_inserted"`
}

// Merger folds a guest session's cart into an account's cart at sign-in.
type Merger struct {
	repo Repository
	tx   db.Transactor
	now  func() time.Time
}

func NewMerger(repo Repository, tx db.Transactor) *Merger {
	return &Merger{
		repo: repo,
		tx:   tx,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Merge runs in one transaction. A missing or expired guest cart is a no-op;
// running it twice is the same as running it once.
func (m *Merger) Merge(ctx context.Context, sessionToken string, accountID uint) (*MergeResult, error) {
	guest := identity.SessionOwner(sessionToken)
	account := identity.AccountOwner(accountID)

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Merge"),
		zap.String("account", account.String()),
	)

	if !guest.Valid() || !account.Valid() {
		return nil, ErrInvalidOwner
	}

	var result MergeResult
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := m.now()

		guestCart, err := m.repo.LockCartByOwner(ctx, guest)
		if err != nil {
			return err
		}
		if guestCart == nil {
			result = MergeResult{Outcome: MergeNoop}
			return nil
		}
		if guestCart.Expired(now) {
			result = MergeResult{Outcome: MergeNoop}
			return m.repo.DeleteCart(ctx, guestCart.ID)
		}

		accountCart, err := m.repo.LockCartByOwner(ctx, account)
		if err != nil {
			return err
		}
		if accountCart != nil && accountCart.Expired(now) {
			if err := m.repo.DeleteCart(ctx, accountCart.ID); err != nil {
				return err
			}
			accountCart = nil
		}

		// No account cart: the guest cart simply changes hands.
		if accountCart == nil {
			if err := m.repo.ReassignCart(ctx, guestCart.ID, account); err != nil {
				return err
			}
			result = MergeResult{Outcome: MergeRekeyed, CartID: guestCart.ID}
			return nil
		}

		guestLines, err := m.repo.ListLines(ctx, guestCart.ID)
		if err != nil {
			return err
		}
		accountLines, err := m.repo.ListLines(ctx, accountCart.ID)
		if err != nil {
			return err
		}

		plan := PlanMerge(accountCart.ID, accountLines, guestLines)
		for _, l := range plan.Updates {
			if _, err := m.repo.UpdateLineQuantity(ctx, l.ID, l.Quantity); err != nil {
				return err
			}
		}
		for i := range plan.Inserts {
			if _, err := m.repo.UpsertLine(ctx, &plan.Inserts[i]); err != nil {
				return err
			}
		}

		if err := m.repo.DeleteCart(ctx, guestCart.ID); err != nil {
			return err
		}
		if err := m.repo.TouchCart(ctx, accountCart.ID); err != nil {
			return err
		}

		result = MergeResult{
			Outcome:       MergeCombined,
			CartID:        accountCart.ID,
			LinesUpdated:  len(plan.Updates),
			LinesInserted: len(plan.Inserts),
		}
		return nil
	})
	if err != nil {
		log.Error("cart merge failed", zap.Error(err))
		return nil, err
	}

	log.Info("cart merge finished",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("lines_updated", result.LinesUpdated),
		zap.Int("lines_inserted", result.LinesInserted),
	)
	return &result, nil
}
