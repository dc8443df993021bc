package address

import "strings"

// Shipping is the address and contact a shopper submits at checkout.
type Shipping struct {
	FullName string  `json:"full_name" validate:"required,max=120"`
	Phone    string  `json:"phone" validate:"required,min=6,max=32"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Address  string  `json:"address" validate:"required,max=500"`
	City     string  `json:"city" validate:"required,max=120"`
	Region   string  `json:"region" validate:"required,max=120"`
	Country  string  `json:"country" validate:"required,max=120"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Normalize trims user input in place and drops empty optional fields.
func (s *Shipping) Normalize() {
	s.FullName = strings.TrimSpace(s.FullName)
	s.Phone = strings.TrimSpace(s.Phone)
	s.Address = strings.TrimSpace(s.Address)
	s.City = strings.TrimSpace(s.City)
	s.Region = strings.TrimSpace(s.Region)
	s.Country = strings.TrimSpace(s.Country)
	s.Email = trimOptional(s.Email)
	s.Notes = trimOptional(s.Notes)
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
