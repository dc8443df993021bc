package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/apperror"
	"storefront/internal/cart"
	"storefront/internal/identity"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/order"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errSignInRequired = fmt.Errorf("%w: sign in required", apperror.ErrUnauthorized)
	errAdminOnly      = fmt.Errorf("%w: admin role required", apperror.ErrUnauthorized)
	errNoOwner        = fmt.Errorf("%w: request has no cart owner", apperror.ErrUnauthorized)
)

type Checkout interface {
	Build(ctx context.Context, owner identity.OwnerKey, in order.CheckoutInput) (*order.Receipt, error)
	Preview(ctx context.Context, owner identity.OwnerKey) (*order.Preview, error)
}

type CartMerger interface {
	Merge(ctx context.Context, sessionToken string, accountID uint) (*cart.MergeResult, error)
}

type GuestRotator interface {
	RotateGuestToken(w http.ResponseWriter) string
}

type HandlerDeps struct {
	Carts    cart.Service
	Merger   CartMerger
	Checkout Checkout
	Orders   order.Service
	Guests   GuestRotator
	Metrics  *metrics.Registry
}

type Handler struct {
	deps HandlerDeps
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{deps: deps}
}

type AddLineRequest struct {
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	Attributes cart.Attributes `json:"attributes,omitempty"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type TransitionRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

func ownerFrom(r *http.Request) (identity.OwnerKey, error) {
	owner, ok := identity.FromContext(r.Context())
	if !ok {
		return identity.OwnerKey{}, errNoOwner
	}
	return owner, nil
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	view, err := h.deps.Carts.View(ctx, owner)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req AddLineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	c, err := h.deps.Carts.GetOrCreateCart(ctx, owner)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	line, err := h.deps.Carts.AddLine(ctx, c, strings.TrimSpace(req.ProductID), req.Quantity, req.Attributes)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, line)
}

// activeCart returns the owner's live cart, or nil when there is none.
func (h *Handler) activeCart(ctx context.Context, owner identity.OwnerKey) (*cart.Cart, error) {
	view, err := h.deps.Carts.View(ctx, owner)
	if err != nil {
		return nil, err
	}
	return view.Cart, nil
}

func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		writeError(ctx, w, cart.ErrLineNotFound)
		return
	}

	var req UpdateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	c, err := h.activeCart(ctx, owner)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	line, err := h.deps.Carts.UpdateQuantity(ctx, c, lineID, req.Quantity)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if line == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondJSON(w, http.StatusOK, line)
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		writeError(ctx, w, cart.ErrLineNotFound)
		return
	}

	c, err := h.activeCart(ctx, owner)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	if err := h.deps.Carts.RemoveLine(ctx, c, lineID); err != nil {
		writeError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MergeCart folds the visitor's guest cart into their account cart, then
// issues a fresh guest token so the old one cannot be merged again.
func (h *Handler) MergeCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	accountID, ok := owner.AccountID()
	if !ok {
		writeError(ctx, w, errSignInRequired)
		return
	}

	token := identity.GuestTokenFromContext(ctx)
	if token == "" {
		respondJSON(w, http.StatusOK, &cart.MergeResult{Outcome: cart.MergeNoop})
		return
	}

	result, err := h.deps.Merger.Merge(ctx, token, accountID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	h.deps.Guests.RotateGuestToken(w)
	if result.Outcome != cart.MergeNoop {
		h.deps.Metrics.Counter(metrics.CartMerges).Inc()
	}

	logger.FromCtx(ctx).Info("guest cart merged",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("lines_updated", result.LinesUpdated),
		zap.Int("lines_inserted", result.LinesInserted),
	)
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) PreviewCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	preview, err := h.deps.Checkout.Preview(ctx, owner)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, preview)
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var in order.CheckoutInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}

	receipt, err := h.deps.Checkout.Build(ctx, owner, in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, receipt)
}

// GetReceipt is public: the verification code is the credential.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	o, err := h.deps.Orders.ReceiptByVerificationCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

// GetOrder answers 404 for orders the caller does not own, so order ids
// cannot be probed.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := ownerFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(ctx, w, order.ErrOrderNotFound)
		return
	}

	o, err := h.deps.Orders.Order(ctx, orderID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if !o.OwnedBy(owner) && !identity.IsAdmin(ctx) {
		writeError(ctx, w, order.ErrOrderNotFound)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(ctx, w, order.ErrOrderNotFound)
		return
	}

	var req TransitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	o, err := h.deps.Orders.Transition(ctx, orderID, req.Status, req.Notes)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	samples := h.deps.Metrics.Snapshot()
	if samples == nil {
		samples = []metrics.Sample{}
	}
	respondJSON(w, http.StatusOK, samples)
}

// requireAdmin guards the back-office routes.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identity.IsAdmin(r.Context()) {
			writeError(r.Context(), w, errAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}
