package domain

import "time"

// OrderStatus is a step of the order lifecycle.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderAccepted   OrderStatus = "ACCEPTED"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderAccepted, OrderInProgress, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// transitions lists the only legal edges of the lifecycle.
var transitions = map[OrderStatus]OrderStatus{
	OrderAccepted:   OrderPending,
	OrderInProgress: OrderAccepted,
	OrderCompleted:  OrderInProgress,
	OrderCancelled:  OrderPending,
}

// PriorStatus returns the single status an order must be in to move to next.
func PriorStatus(next OrderStatus) (OrderStatus, bool) {
	from, ok := transitions[next]
	return from, ok
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to OrderStatus) bool {
	prior, ok := transitions[to]
	return ok && prior == from
}

const (
	// CommissionPercent is the platform cut withheld at settlement.
	CommissionPercent = 10
	// MaxOrderPrice caps prices so corrupted values never reach a balance.
	MaxOrderPrice int64 = 100_000_000
)

// ValidPrice reports whether price is inside (0, MaxOrderPrice].
func ValidPrice(price int64) bool {
	return price > 0 && price <= MaxOrderPrice
}

// Split returns the commission and worker payout for price. Out of range
// prices settle to zero.
func Split(price int64) (commission, payout int64) {
	if !ValidPrice(price) {
		return 0, 0
	}
	commission = price * CommissionPercent / 100
	return commission, price - commission
}

// Review is the customer's feedback on a completed order.
type Review struct {
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Order is a unit of work posted by a customer.
type Order struct {
	ID          string      `json:"id"`
	CustomerID  string      `json:"customerId"`
	WorkerID    string      `json:"workerId,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
	Price       int64       `json:"price"`
	Location    string      `json:"location,omitempty"`
	Coordinates *Location   `json:"coordinates,omitempty"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	AcceptedAt  *time.Time  `json:"acceptedAt,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	CancelledAt *time.Time  `json:"cancelledAt,omitempty"`
	Review      *Review     `json:"review,omitempty"`
}

// OrderPatch carries the editable descriptive fields of a pending order.
type OrderPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Coordinates *Location `json:"coordinates,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p OrderPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Location == nil && p.Coordinates == nil
}

// Apply copies the set fields of p onto o.
func (p OrderPatch) Apply(o *Order) {
	if p.Title != nil {
		o.Title = *p.Title
	}
	if p.Description != nil {
		o.Description = *p.Description
	}
	if p.Category != nil {
		o.Category = *p.Category
	}
	if p.Location != nil {
		o.Location = *p.Location
	}
	if p.Coordinates != nil {
		c := *p.Coordinates
		o.Coordinates = &c
	}
}

// OrderFilter narrows order listings. Zero values match everything.
type OrderFilter struct {
	CustomerID  string
	WorkerID    string
	Participant string
	Status      OrderStatus
	Category    string
}

// Match reports whether o passes the filter.
func (f OrderFilter) Match(o Order) bool {
	if f.CustomerID != "" && o.CustomerID != f.CustomerID {
		return false
	}
	if f.WorkerID != "" && o.WorkerID != f.WorkerID {
		return false
	}
	if f.Participant != "" && o.CustomerID != f.Participant && o.WorkerID != f.Participant {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.Category != "" && o.Category != f.Category {
		return false
	}
	return true
}

// Settlement is the balance movement applied together with completion.
type Settlement struct {
	WorkerID   string
	Payout     int64
	Commission int64
}

// Transition is a compare-and-swap on an order's status.
type Transition struct {
	OrderID    string
	From       OrderStatus
	To         OrderStatus
	WorkerID   string // set on accept
	At         time.Time
	Settlement *Settlement
}
