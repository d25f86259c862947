package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ── Transition table ──────────────────────────────────────────────────────────

// AssignmentState is the implicit state of a (product, client) pairing.
type AssignmentState string

const (
	StateNone AssignmentState = "none"
	StateBuy  AssignmentState = "buy"
	StateRent AssignmentState = "rent"
)

// StateOf maps an assignment kind to its ledger state.
func StateOf(kind AssignmentKind) AssignmentState {
	switch kind {
	case KindBuy:
		return StateBuy
	case KindRent:
		return StateRent
	default:
		return StateNone
	}
}

// Transition is one state change of a (product, client) pairing. FromQty and
// ToQty are zero when the respective side is StateNone.
//
// Stock and hardware effects are a pure function of the transition, so every
// one of the nine from×to combinations is enumerable and testable instead of
// being spread across ad hoc "was it buy before" conditionals.
type Transition struct {
	From    AssignmentState
	To      AssignmentState
	FromQty int
	ToQty   int
}

// StockDelta is the signed amount to add to the product's StockOnHand.
// Every transition returns what the client previously held and takes what it
// now holds, so the delta is uniformly FromQty - ToQty.
func (t Transition) StockDelta() int {
	return t.FromQty - t.ToQty
}

// HardwareDelta is the amount to add to the product's cumulative
// HardwareTotal. The counter is a high-water mark of units ever sold: it
// moves on transitions into the buy state and never decreases.
func (t Transition) HardwareDelta() int {
	switch {
	case t.To != StateBuy:
		// Into none or rent: nothing newly sold, nothing un-sold.
		return 0
	case t.From == StateBuy:
		// buy → buy: only a quantity increase counts as newly sold.
		if d := t.ToQty - t.FromQty; d > 0 {
			return d
		}
		return 0
	default:
		// none → buy and rent → buy: the full new quantity is newly sold.
		return t.ToQty
	}
}

// ErrInsufficientStock is returned when a transition asks for more units than
// the product can supply.
var ErrInsufficientStock = errors.New("insufficient stock")

// CheckStock validates the transition against the product's current available
// stock. During an edit the client's currently held quantity is handed back
// before the new request is checked, so the comparison base is
// stockOnHand + FromQty.
func (t Transition) CheckStock(stockOnHand int) error {
	available := stockOnHand + t.FromQty
	if t.ToQty > available {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, t.ToQty, available)
	}
	return nil
}

// ── Ledger application ────────────────────────────────────────────────────────

// StockLedger applies assignment transitions to product rows and journals
// every applied change as a StockMovement.
//
// All methods are TX-scoped: a client mutation touches several products and
// the caller owns the transaction, so either every product row moves or none
// does. Rows are locked FOR UPDATE before the stock check to keep concurrent
// edits from both passing validation against the same units.
type StockLedger struct{}

// ApplyTx applies one transition to a product inside the caller's TX.
// movementType distinguishes assignment edits from client-deletion releases
// in the journal. No-op transitions (zero stock and hardware delta) are
// skipped without journaling.
func (StockLedger) ApplyTx(ctx context.Context, tx pgx.Tx, productID int, clientID *int,
	t Transition, movementType MovementType, note string) error {

	stockDelta := t.StockDelta()
	hardwareDelta := t.HardwareDelta()
	if stockDelta == 0 && hardwareDelta == 0 {
		return nil
	}

	var code string
	var stockOnHand int
	err := tx.QueryRow(ctx,
		"SELECT code, stock_on_hand FROM products WHERE id = $1 FOR UPDATE",
		productID,
	).Scan(&code, &stockOnHand)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("product id=%d not found", productID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock product %d: %w", productID, err)
	}

	if err := t.CheckStock(stockOnHand); err != nil {
		return fmt.Errorf("product %s: %w", code, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE products
		SET stock_on_hand  = stock_on_hand + $1,
		    hardware_total = hardware_total + $2,
		    updated_at     = NOW()
		WHERE id = $3
	`, stockDelta, hardwareDelta, productID)
	if err != nil {
		return fmt.Errorf("failed to update stock for product %s: %w", code, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, client_id, movement_type, quantity, hardware_delta, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, productID, clientID, movementType, stockDelta, hardwareDelta, note)
	if err != nil {
		return fmt.Errorf("failed to journal stock movement for product %s: %w", code, err)
	}

	return nil
}

// AdjustTx records a manual stock correction on a product inside the caller's
// TX. Unlike assignment transitions it may also correct HardwareTotal, and it
// rejects any correction that would drive either counter below zero.
func (StockLedger) AdjustTx(ctx context.Context, tx pgx.Tx, productID, stockDelta, hardwareDelta int, note string) error {
	var code string
	var stockOnHand, hardwareTotal int
	err := tx.QueryRow(ctx,
		"SELECT code, stock_on_hand, hardware_total FROM products WHERE id = $1 FOR UPDATE",
		productID,
	).Scan(&code, &stockOnHand, &hardwareTotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("product id=%d not found", productID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock product %d: %w", productID, err)
	}

	if stockOnHand+stockDelta < 0 {
		return fmt.Errorf("product %s: stock cannot go below zero (have %d, delta %d)", code, stockOnHand, stockDelta)
	}
	if hardwareTotal+hardwareDelta < 0 {
		return fmt.Errorf("product %s: hardware total cannot go below zero (have %d, delta %d)", code, hardwareTotal, hardwareDelta)
	}

	_, err = tx.Exec(ctx, `
		UPDATE products
		SET stock_on_hand  = stock_on_hand + $1,
		    hardware_total = hardware_total + $2,
		    updated_at     = NOW()
		WHERE id = $3
	`, stockDelta, hardwareDelta, productID)
	if err != nil {
		return fmt.Errorf("failed to adjust stock for product %s: %w", code, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, client_id, movement_type, quantity, hardware_delta, note)
		VALUES ($1, NULL, $2, $3, $4, $5)
	`, productID, MovementAdjust, stockDelta, hardwareDelta, note)
	if err != nil {
		return fmt.Errorf("failed to journal stock adjustment for product %s: %w", code, err)
	}

	return nil
}
