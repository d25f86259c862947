package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Month arithmetic ──────────────────────────────────────────────────────────

// MonthsBetween returns the number of whole calendar months from a to b.
// A month counts only once b's day-of-month has reached a's day-of-month.
// Returns 0 when b is before a.
func MonthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// ── Assignment aggregation ────────────────────────────────────────────────────

// AssignmentTotals is the reduction of a client's assignment list into the
// four figures the billing flows work with.
type AssignmentTotals struct {
	// InstallationAmount is the one-time cost of all buy assignments:
	// Σ unitPrice × quantity, where unitPrice is the ClientPrice snapshot
	// when set, else the PurchasePrice snapshot.
	InstallationAmount decimal.Decimal
	// TotalMonthlyFee is Σ MonthlyFee over ALL assignments. The fee is
	// per-assignment, not per-unit: quantity deliberately does not multiply
	// into it.
	TotalMonthlyFee decimal.Decimal
	// HardwarePrice is the one-time hardware sale revenue. It uses the same
	// formula as InstallationAmount.
	HardwarePrice decimal.Decimal
	// TotalQuantity is Σ quantity over all assignments.
	TotalQuantity int
}

// AggregateAssignments reduces a client's assignments into AssignmentTotals.
// Pure function: no side effects, deterministic for a given input.
func AggregateAssignments(assignments []Assignment) AssignmentTotals {
	totals := AssignmentTotals{
		InstallationAmount: decimal.Zero,
		TotalMonthlyFee:    decimal.Zero,
		HardwarePrice:      decimal.Zero,
	}
	for _, a := range assignments {
		if a.Kind == KindBuy {
			unitPrice := a.ClientPrice
			if !unitPrice.IsPositive() {
				unitPrice = a.PurchasePrice
			}
			lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(a.Quantity)))
			totals.InstallationAmount = totals.InstallationAmount.Add(lineTotal)
			totals.HardwarePrice = totals.HardwarePrice.Add(lineTotal)
		}
		totals.TotalMonthlyFee = totals.TotalMonthlyFee.Add(a.MonthlyFee)
		totals.TotalQuantity += a.Quantity
	}
	return totals
}

// ── Payoff calculation ────────────────────────────────────────────────────────

// PayoffInput carries the financial figures of one client contract.
// All amounts are non-negative.
type PayoffInput struct {
	InstallationAmount decimal.Decimal
	MonthlyFee         decimal.Decimal
	StarterPackPrice   decimal.Decimal
	HardwarePrice      decimal.Decimal
}

// ProfitOneShot is the one-time revenue collected up front: starter pack plus
// hardware sale. The recurring fee is not folded in here; it enters the
// payoff rule as ongoing revenue.
func (p PayoffInput) ProfitOneShot() decimal.Decimal {
	return p.StarterPackPrice.Add(p.HardwarePrice)
}

// NetMonthOne is the cash position after the first billing month:
// one-shot revenue plus one month of fees, minus the installation cost.
func (p PayoffInput) NetMonthOne() decimal.Decimal {
	return p.ProfitOneShot().Add(p.MonthlyFee).Sub(p.InstallationAmount)
}

// MonthsToCover returns the number of whole billing months needed before
// cumulative revenue offsets the installation cost.
//
//   - MonthlyFee <= 0: no recurring payoff can be computed, returns 0.
//   - NetMonthOne >= 0 (exact zero included): covered in the first month,
//     returns 0.
//   - Otherwise 1 + ceil(remaining / MonthlyFee). The ceiling is the only
//     integer-producing step and biases toward one extra month rather than
//     under-counting.
func (p PayoffInput) MonthsToCover() int {
	if !p.MonthlyFee.IsPositive() {
		return 0
	}
	net := p.NetMonthOne()
	if !net.IsNegative() {
		return 0
	}
	remaining := net.Neg()
	return 1 + int(remaining.Div(p.MonthlyFee).Ceil().IntPart())
}

// ── Client metrics ────────────────────────────────────────────────────────────

// ClientMetrics is the dashboard view of one client's payback position.
type ClientMetrics struct {
	MonthsToCover     int             `json:"months_to_cover"`
	ProfitabilityDate time.Time       `json:"profitability_date"`
	ElapsedMonths     int             `json:"elapsed_months"`
	NetCashFlow       decimal.Decimal `json:"net_cash_flow"`
	Profitable        bool            `json:"profitable"`
}

// ComputeClientMetrics evaluates a contract's payback position as of a given
// date. A nil contract start means the contract starts "today" (asOf), so
// month 1 is just beginning.
//
// ElapsedMonths counts billing months already invoiced: 0 before the start
// date, 1 from the start date itself, +1 per whole month since. NetCashFlow
// keeps accumulating fee revenue past the coverage point, so a long-running
// client shows how far into profit it is, not just that it got there.
func ComputeClientMetrics(in PayoffInput, contractStart *time.Time, asOf time.Time) ClientMetrics {
	start := asOf
	if contractStart != nil {
		start = *contractStart
	}

	monthsToCover := in.MonthsToCover()

	profitDate := start
	if monthsToCover > 1 {
		profitDate = start.AddDate(0, monthsToCover-1, 0)
	}

	elapsed := 0
	if !asOf.Before(start) {
		elapsed = MonthsBetween(start, asOf) + 1
	}

	netCashFlow := in.ProfitOneShot().
		Add(in.MonthlyFee.Mul(decimal.NewFromInt(int64(elapsed)))).
		Sub(in.InstallationAmount)

	return ClientMetrics{
		MonthsToCover:     monthsToCover,
		ProfitabilityDate: profitDate,
		ElapsedMonths:     elapsed,
		NetCashFlow:       netCashFlow,
		Profitable:        !netCashFlow.IsNegative(),
	}
}
