package marketplace

import (
	"github.com/sudo-init-do/mardikor/internal/domain"
)

// CreateOrderInput is what a customer posts to open an order.
type CreateOrderInput struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=5000"`
	Category    string           `json:"category" validate:"max=100"`
	Price       int64            `json:"price" validate:"gt=0"`
	Location    string           `json:"location" validate:"max=500"`
	Coordinates *domain.Location `json:"coordinates"`
}

// UpdateOrderRequest is the body of PUT /orders/:id. A status field turns
// the call into the matching lifecycle transition; the other fields edit a
// pending order.
type UpdateOrderRequest struct {
	domain.OrderPatch
	Status *domain.OrderStatus `json:"status,omitempty"`
	Price  *int64              `json:"price,omitempty"`
}

// CreateReviewRequest represents the request payload for creating a review
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}
