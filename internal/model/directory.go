package model

import "time"

// Operator is the staff member recorded on every sale.
type Operator struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name" validate:"required,max=255"`
	CreatedAt time.Time `json:"created_at"`
}

// Customer is the optional buyer attached to a sale.
type Customer struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name" validate:"required,max=255"`
	Phone     *string   `json:"phone,omitempty" validate:"omitempty,min=1,max=32"`
	CreatedAt time.Time `json:"created_at"`
}
