package order

import (
	"errors"
	"fmt"
	"strings"

	"storefront/internal/address"
	"storefront/internal/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Contact struct {
	Phone string  `json:"phone" validate:"required,min=6,max=32"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

// LineSelection names a cart line to check out. Quantity must equal the
// line's quantity in the cart.
type LineSelection struct {
	LineID   uuid.UUID `json:"line_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"gt=0"`
}

type CheckoutInput struct {
	Contact           Contact          `json:"contact"`
	Address           address.Shipping `json:"address"`
	DeliveryMethod    DeliveryMethod   `json:"delivery_method" validate:"required,oneof=home_delivery agent_pickup"`
	AgentLocation     *string          `json:"agent_location,omitempty" validate:"required_if=DeliveryMethod agent_pickup"`
	AgentInstructions *string          `json:"agent_instructions,omitempty" validate:"omitempty,max=1000"`
	PaymentMethod     PaymentMethod    `json:"payment_method" validate:"required,oneof=cash_on_delivery mobile_money card bank_transfer"`
	Lines             []LineSelection  `json:"lines,omitempty" validate:"omitempty,dive"`
	Pricing           Pricing          `json:"pricing"`
}

func (in *CheckoutInput) normalize() {
	in.Contact.Phone = strings.TrimSpace(in.Contact.Phone)
	in.Contact.Email = trimOptional(in.Contact.Email)
	in.Address.Normalize()
	in.DeliveryMethod = DeliveryMethod(strings.ToLower(strings.TrimSpace(string(in.DeliveryMethod))))
	in.PaymentMethod = PaymentMethod(strings.ToLower(strings.TrimSpace(string(in.PaymentMethod))))
	in.AgentLocation = trimOptional(in.AgentLocation)
	in.AgentInstructions = trimOptional(in.AgentInstructions)
	if in.DeliveryMethod != DeliveryAgentPickup {
		in.AgentLocation = nil
		in.AgentInstructions = nil
	}
}

// customerEmail prefers the contact email over the address email.
func (in *CheckoutInput) customerEmail() *string {
	if in.Contact.Email != nil {
		return in.Contact.Email
	}
	return in.Address.Email
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validationError flattens validator output into one ErrValidation.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validationf("%v", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return apperror.Validationf("invalid fields: %s", strings.Join(fields, ", "))
}
