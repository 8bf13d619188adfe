package model

import "time"

// Order statuses. success is terminal: a row never leaves it.
const (
	OrderStatusPending = "pending"
	OrderStatusSuccess = "success"
	OrderStatusFailed  = "failed"
)

// TerminalStatuses are the states a row never leaves. Unknown gateway
// statuses stored verbatim on provisional rows are not terminal.
var TerminalStatuses = []string{OrderStatusSuccess, OrderStatusFailed}

type Order struct {
	ID             string  `gorm:"primaryKey;size:36;not null"` // store-assigned uuid
	GatewayOrderID string  `gorm:"size:64;uniqueIndex;not null"`
	PaymentID      *string `gorm:"size:64;uniqueIndex"` // issued by the gateway on successful payment only

	// Amount is gateway minor units (paise, cents) at every call site.
	Amount   int64  `gorm:"not null"`
	Currency string `gorm:"size:8;not null"`

	Status string `gorm:"size:16;index;not null"`
	UserID string `gorm:"size:64;index"`

	CustomerEmail           string `gorm:"size:255"`
	CustomerEmailCanonical  string `gorm:"size:255;index"`
	CustomerPhone           string `gorm:"size:32"`
	CustomerPhoneNormalized string `gorm:"size:32;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → orders.id
	OrderID   string `gorm:"size:36;index;not null"`
	Name      string `gorm:"size:255;not null"`
	UnitPrice int64  `gorm:"not null"`
	Quantity  int32  `gorm:"not null"`
	Currency  string `gorm:"size:8;not null"`

	CreatedAt time.Time
}

type Profile struct {
	UserID         string `gorm:"primaryKey;size:64;not null"`
	Email          string `gorm:"size:255"`
	EmailCanonical string `gorm:"size:255;index"`
	Phone          string `gorm:"size:32"`
	FullName       string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
