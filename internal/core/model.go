package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products in the catalog (e.g. "Terminals", "Routers").
type Category struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Product represents a hardware item in the catalog.
//
// StockOnHand is the currently available (unassigned) unit count.
// HardwareTotal is the cumulative number of units ever sold to clients through
// buy assignments. It only moves forward: later quantity reductions, rent
// switches, or client deletions never decrement it. Manual corrections through
// UpdateProduct are the single exception.
type Product struct {
	ID            int             `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	CategoryID    *int            `json:"category_id,omitempty"`
	CategoryName  string          `json:"category_name,omitempty"` // joined from categories
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	RentPrice     decimal.Decimal `json:"rent_price"`
	StockOnHand   int             `json:"stock_on_hand"`
	HardwareTotal int             `json:"hardware_total"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AssignmentKind says whether a client bought or rents the assigned hardware.
type AssignmentKind string

const (
	KindBuy  AssignmentKind = "buy"
	KindRent AssignmentKind = "rent"
)

// Valid reports whether k is one of the two known kinds.
func (k AssignmentKind) Valid() bool {
	return k == KindBuy || k == KindRent
}

// Assignment is one product held by a client. A client holds at most one
// assignment per product.
//
// PurchasePrice and ClientPrice are snapshots taken when the assignment is
// first created. Later edits to the Product's prices must not retroactively
// change what an existing client was billed, so these fields are never
// refreshed from the catalog.
type Assignment struct {
	ID            int             `json:"id"`
	ClientID      int             `json:"client_id"`
	ProductID     int             `json:"product_id"`
	ProductCode   string          `json:"product_code"` // joined from products
	ProductName   string          `json:"product_name"` // joined from products
	Quantity      int             `json:"quantity"`
	Kind          AssignmentKind  `json:"kind"`
	MonthlyFee    decimal.Decimal `json:"monthly_fee"` // zero unless Kind == rent
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	ClientPrice   decimal.Decimal `json:"client_price"`
	AddedAt       time.Time       `json:"added_at"` // preserved across edits
}

// ClientStatus is the lifecycle state of a client account.
type ClientStatus string

const (
	StatusActive   ClientStatus = "active"
	StatusInactive ClientStatus = "inactive"
)

// Client is a customer who buys or rents hardware.
//
// InstallationAmount, MonthlyFee, HardwarePrice, and MonthsToCover default to
// values derived from the assignments (see finance.go) but each can be
// overridden at create/update time. MonthsToCover is re-derived whenever the
// financial inputs change and no override is given.
type Client struct {
	ID                 int             `json:"id"`
	Name               string          `json:"name"`
	Status             ClientStatus    `json:"status"`
	InstallationAmount decimal.Decimal `json:"installation_amount"`
	MonthlyFee         decimal.Decimal `json:"monthly_fee"`
	StarterPackPrice   decimal.Decimal `json:"starter_pack_price"`
	HardwarePrice      decimal.Decimal `json:"hardware_price"`
	ContractStartDate  *time.Time      `json:"contract_start_date,omitempty"`
	MonthsToCover      int             `json:"months_to_cover"`
	Assignments        []Assignment    `json:"assignments"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Commission is a one-off commission payment recorded against a client for a
// billing period (YYYY-MM).
type Commission struct {
	ID        int             `json:"id"`
	ClientID  int             `json:"client_id"`
	Period    string          `json:"period"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MovementType classifies a stock movement journal row.
type MovementType string

const (
	// MovementAssign covers stock taken or returned by a client assignment
	// change (create, quantity edit, kind switch, removal).
	MovementAssign MovementType = "ASSIGN"
	// MovementRelease is stock handed back when a client is deleted.
	MovementRelease MovementType = "RELEASE"
	// MovementAdjust is a manual stock correction on the product itself.
	MovementAdjust MovementType = "ADJUST"
)

// StockMovement is one append-only audit row for a stock-affecting change.
// Quantity is signed: negative when stock leaves the shelf, positive when it
// comes back. HardwareDelta records how much HardwareTotal moved; it is never
// negative for assignment-driven movements.
type StockMovement struct {
	ID            int          `json:"id"`
	ProductID     int          `json:"product_id"`
	ClientID      *int         `json:"client_id,omitempty"`
	Type          MovementType `json:"type"`
	Quantity      int          `json:"quantity"`
	HardwareDelta int          `json:"hardware_delta"`
	Note          string       `json:"note,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
